// Package streamlet implements the transport collaborator the Pea core
// treats as an external dependency (§6 of the pea package's contract):
// something that delivers decoded Messages to a callback and accepts
// outbound Messages, with framing and socket topology fully delegated.
package streamlet

import (
	"context"
	"log/slog"

	"github.com/oriys/peapod/internal/pea"
)

// Callback is an alias to pea.MessageHandler: one exact function type
// shared between this package's concrete Streamlets and pea.Pea's
// Streamlet interface, so Framed and Vsock satisfy pea.Streamlet
// without a wrapper.
type Callback = pea.MessageHandler

// Streamlet is the transport contract: New/Start/SendMessage/Close/PrintStats.
// Concrete constructors differ (Framed, Vsock); callers depend only on
// this interface and never care whether the underlying net.Listener
// came from vsock.Listen or a plain TCP bind.
type Streamlet interface {
	// Start blocks, invoking callback once per inbound message, until
	// Close unblocks it.
	Start(ctx context.Context, callback Callback) error
	// SendMessage enqueues an outbound message.
	SendMessage(ctx context.Context, msg *pea.Message) error
	// Close is idempotent and unblocks Start.
	Close() error
	// PrintStats emits transport counters to the logger.
	PrintStats(logger *slog.Logger)
}
