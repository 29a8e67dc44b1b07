package peaexec

import (
	"context"
	"testing"

	"github.com/oriys/peapod/internal/pea"
)

func TestPostgresState_SaveRefusedWhenReadOnly(t *testing.T) {
	e := &PostgresState{table: "pea_state", readOnly: true}

	err := e.Save(context.Background())
	if !pea.IsKind(err, pea.KindExecutorRuntimeException) {
		t.Fatalf("expected KindExecutorRuntimeException on a read-only save, got %v", err)
	}
}

func TestPostgresState_CallAccumulatesHistory(t *testing.T) {
	e := &PostgresState{table: "pea_state"}

	if err := e.Call(context.Background(), "index", "a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.Call(context.Background(), "index", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(e.history) != 2 {
		t.Fatalf("expected 2 accumulated entries, got %d", len(e.history))
	}
}

func TestPostgresState_CallMarshalError(t *testing.T) {
	e := &PostgresState{table: "pea_state"}

	if err := e.Call(context.Background(), "index", make(chan int)); err == nil {
		t.Fatal("expected an error marshaling an unmarshalable request")
	}
}

func TestPostgresState_AttachRecordsPeaName(t *testing.T) {
	e := &PostgresState{}
	p := &pea.Pea{}
	e.Attach(p)
	if e.peaName != p.Name() {
		t.Errorf("expected peaName to match the owning Pea's name, got %q", e.peaName)
	}
}
