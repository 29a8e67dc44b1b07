package streamlet

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"

	"github.com/oriys/peapod/internal/pea"
)

// Framed is the default Streamlet: a length-prefixed (4-byte BigEndian
// length + JSON body) framing over a net.Conn. It accepts a single
// connection per Start and never accepts another, matching a Pea's
// single inbound/outbound transport endpoint.
type Framed struct {
	listener net.Listener
	logger   *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	closed atomic.Bool

	received atomic.Int64
	sent     atomic.Int64
}

// NewFramed wraps an already-bound listener (tcp, unix, or vsock — the
// caller picks the socket topology, which is delegated per §1).
func NewFramed(listener net.Listener, logger *slog.Logger) *Framed {
	return &Framed{listener: listener, logger: logger}
}

// Start accepts one connection and invokes callback once per inbound
// frame until the connection closes, Close is called, or ctx is done
// (which calls Close).
func (f *Framed) Start(ctx context.Context, callback Callback) error {
	stop := context.AfterFunc(ctx, func() { _ = f.Close() })
	defer stop()

	conn, err := f.listener.Accept()
	if err != nil {
		if f.closed.Load() {
			return nil
		}
		return fmt.Errorf("streamlet accept: %w", err)
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()

	for {
		data, err := readFrame(conn)
		if err != nil {
			if err == io.EOF || f.closed.Load() {
				return nil
			}
			return fmt.Errorf("streamlet read: %w", err)
		}
		f.received.Add(1)

		msg, err := decodeMessage(data)
		if err != nil {
			return fmt.Errorf("streamlet decode: %w", err)
		}
		if err := callback(ctx, msg); err != nil {
			return err
		}
	}
}

// SendMessage writes one frame to the active connection.
func (f *Framed) SendMessage(ctx context.Context, msg *pea.Message) error {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("streamlet: no active connection")
	}

	data, err := encodeMessage(msg)
	if err != nil {
		return fmt.Errorf("streamlet encode: %w", err)
	}
	if err := writeFrame(conn, data); err != nil {
		return fmt.Errorf("streamlet write: %w", err)
	}
	f.sent.Add(1)
	return nil
}

// Close is idempotent: closing an already-closed Framed is a no-op.
func (f *Framed) Close() error {
	if !f.closed.CompareAndSwap(false, true) {
		return nil
	}
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn != nil {
		_ = conn.Close()
	}
	return f.listener.Close()
}

// PrintStats emits the running received/sent counters to logger.
func (f *Framed) PrintStats(logger *slog.Logger) {
	logger.Info("streamlet stats", "received", f.received.Load(), "sent", f.sent.Load())
}

func readFrame(conn net.Conn) ([]byte, error) {
	lenBuf := make([]byte, 4)
	if _, err := io.ReadFull(conn, lenBuf); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(lenBuf)
	data := make([]byte, size)
	if _, err := io.ReadFull(conn, data); err != nil {
		return nil, err
	}
	return data, nil
}

func writeFrame(conn net.Conn, data []byte) error {
	lenBuf := make([]byte, 4)
	binary.BigEndian.PutUint32(lenBuf, uint32(len(data)))
	if _, err := conn.Write(lenBuf); err != nil {
		return err
	}
	_, err := conn.Write(data)
	return err
}
