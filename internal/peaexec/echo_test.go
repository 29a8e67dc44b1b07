package peaexec

import (
	"context"
	"testing"

	"github.com/oriys/peapod/internal/pea"
)

func TestEcho_CallSaveCloseAreNoops(t *testing.T) {
	e := &Echo{}
	ctx := context.Background()

	if err := e.Call(ctx, "index", "payload"); err != nil {
		t.Errorf("expected Call to be a no-op, got %v", err)
	}
	if err := e.Save(ctx); err != nil {
		t.Errorf("expected Save to be a no-op, got %v", err)
	}
	if err := e.Close(ctx); err != nil {
		t.Errorf("expected Close to be a no-op, got %v", err)
	}
}

func TestEcho_AttachRecordsOwner(t *testing.T) {
	e := &Echo{}
	p := &pea.Pea{}
	e.Attach(p)
	if e.owner != p {
		t.Error("expected Attach to record the owning Pea")
	}
}

func TestEcho_RegisteredUnderEchoKind(t *testing.T) {
	exec, err := newEcho(pea.ExecutorSpec{Kind: "echo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := exec.(*Echo); !ok {
		t.Fatalf("expected newEcho to produce an *Echo, got %T", exec)
	}
}
