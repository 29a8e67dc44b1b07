package peaexec

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oriys/peapod/internal/pea"
)

func init() {
	pea.RegisterExecutor("postgres-state", newPostgresStateExecutor)
}

// PostgresState is a reference Executor that persists a JSON snapshot
// of its accumulated requests to a Postgres table on Save, using the
// same pgxpool connection-pooling pattern as the rest of this module's
// Postgres access. When the owning Pea's ReadOnly config is set, Save
// refuses to write and reports an ExecutorRuntimeException instead of
// silently succeeding.
type PostgresState struct {
	pool     *pgxpool.Pool
	table    string
	peaName  string
	readOnly bool

	mu      sync.Mutex
	history []json.RawMessage
}

func newPostgresStateExecutor(spec pea.ExecutorSpec) (pea.Executor, error) {
	dsn, _ := spec.Config["dsn"].(string)
	if dsn == "" {
		return nil, fmt.Errorf("postgres-state: dsn is required")
	}
	table, _ := spec.Config["table"].(string)
	if table == "" {
		table = "pea_state"
	}

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres-state connect: %w", err)
	}
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres-state ping: %w", err)
	}

	readOnly, _ := spec.Config["read_only"].(bool)

	return &PostgresState{pool: pool, table: table, readOnly: readOnly}, nil
}

func (e *PostgresState) Attach(p *pea.Pea) {
	e.peaName = p.Name()
}

func (e *PostgresState) Call(ctx context.Context, requestType string, req pea.Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request for postgres-state: %w", err)
	}
	e.mu.Lock()
	e.history = append(e.history, data)
	e.mu.Unlock()
	return nil
}

func (e *PostgresState) Save(ctx context.Context) error {
	if e.readOnly {
		return pea.NewError(pea.KindExecutorRuntimeException, fmt.Errorf("postgres-state: save refused, pea is read-only"))
	}

	e.mu.Lock()
	pending := e.history
	e.history = nil
	e.mu.Unlock()

	if len(pending) == 0 {
		return nil
	}

	batch := json.RawMessage(mustMarshal(pending))
	_, err := e.pool.Exec(ctx,
		fmt.Sprintf(`INSERT INTO %s (pea_name, requests) VALUES ($1, $2)`, e.table),
		e.peaName, batch)
	if err != nil {
		return fmt.Errorf("postgres-state insert: %w", err)
	}
	return nil
}

func (e *PostgresState) Close(ctx context.Context) error {
	e.pool.Close()
	return nil
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		return []byte("null")
	}
	return data
}
