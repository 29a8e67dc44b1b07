package streamlet

import (
	"fmt"
	"log/slog"
	"net"
	"runtime"

	"github.com/mdlayher/vsock"
)

// ListenVsock binds a vsock listener on port, for Peas co-located with
// a microVM executor host over AF_VSOCK rather than TCP.
func ListenVsock(port uint32) (net.Listener, error) {
	if runtime.GOOS != "linux" {
		return nil, fmt.Errorf("vsock is only available on linux, got %s", runtime.GOOS)
	}
	l, err := vsock.Listen(port, nil)
	if err != nil {
		return nil, fmt.Errorf("vsock listen on port %d: %w", port, err)
	}
	return l, nil
}

// NewVsockStreamlet binds a vsock listener and wraps it in a Framed
// Streamlet, so a Pea whose upstream/downstream peer is a vsock-hosted
// process uses the same framing as a TCP- or unix-socket-backed Pea.
func NewVsockStreamlet(port uint32, logger *slog.Logger) (*Framed, error) {
	l, err := ListenVsock(port)
	if err != nil {
		return nil, err
	}
	return NewFramed(l, logger), nil
}
