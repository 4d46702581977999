package lifecycle

import (
	"errors"
	"fmt"
	"net"
	"syscall"
)

// ErrAddrInUse is returned by Listen when another process already holds the
// requested address.
var ErrAddrInUse = errors.New("port already in use")

// Listen binds a TCP listener to addr. A conflict with another listener is
// reported as ErrAddrInUse, distinct from any other bind failure.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if errors.Is(err, syscall.EADDRINUSE) {
		return nil, fmt.Errorf("binding %s: %w", addr, ErrAddrInUse)
	}
	if err != nil {
		return nil, fmt.Errorf("binding %s: %w", addr, err)
	}
	return ln, nil
}
