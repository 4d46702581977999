package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrSelfCheckFailed is wrapped by every error from a SelfCheck.
var ErrSelfCheckFailed = errors.New("self-check failed")

const maxHealthBody = 64 << 10

// SelfCheck confirms that a freshly bound server answers its health route.
type SelfCheck struct {
	Path    string
	Marker  string
	Timeout time.Duration

	// Client defaults to http.DefaultClient.
	Client *http.Client
}

// Run requests the health route through addr, and returns nil only if the
// server answers 200 with a body containing the marker.
func (c SelfCheck) Run(ctx context.Context, addr net.Addr) error {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	url, err := checkURL(addr, c.Path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfCheckFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSelfCheckFailed, err)
	}

	client := c.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: no response from %s within %v", ErrSelfCheckFailed, url, c.Timeout)
	case err != nil:
		return fmt.Errorf("%w: unable to reach %s: %v", ErrSelfCheckFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s answered with status %d", ErrSelfCheckFailed, url, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxHealthBody))
	if err != nil {
		return fmt.Errorf("%w: reading response from %s: %v", ErrSelfCheckFailed, url, err)
	}
	if !strings.Contains(string(body), c.Marker) {
		return fmt.Errorf("%w: response from %s lacks %q", ErrSelfCheckFailed, url, c.Marker)
	}
	return nil
}

// checkURL builds the health URL for a listener address. A listener bound to
// all interfaces is reached through the IPv4 loopback address.
func checkURL(addr net.Addr, path string) (string, error) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok {
		return "", fmt.Errorf("unsupported listener address %v", addr)
	}
	host := tcp.IP.String()
	if tcp.IP == nil || tcp.IP.IsUnspecified() {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(tcp.Port)) + path, nil
}
