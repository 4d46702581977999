// Package lifecycle runs the HTTP server from a bound listener through a
// startup self-check and a graceful drain, and publishes each stage it passes
// through.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ahamlinman/webglhost/internal/log"
	"github.com/ahamlinman/webglhost/internal/watch"
)

// ErrDrainTimeout is returned by Run when in-flight requests outlast the drain
// ceiling.
var ErrDrainTimeout = errors.New("drain timed out")

const (
	DefaultSelfCheckTimeout = 5 * time.Second
	DefaultDrainTimeout     = 10 * time.Second
)

// Options configures a Controller.
type Options struct {
	// HealthPath is requested by the self-check, and the response body must
	// contain HealthMarker.
	HealthPath   string
	HealthMarker string

	SelfCheckTimeout time.Duration
	DrainTimeout     time.Duration
}

// Controller runs an HTTP server through the stages of State.
type Controller struct {
	opts  Options
	state *watch.Value[State]
	log   *zap.Logger
}

// New creates a Controller in StateStarting.
func New(opts Options, logger *zap.Logger) *Controller {
	if opts.SelfCheckTimeout <= 0 {
		opts.SelfCheckTimeout = DefaultSelfCheckTimeout
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = DefaultDrainTimeout
	}
	c := &Controller{
		opts:  opts,
		state: watch.NewValue(StateStarting),
	}
	c.log = log.For(logger, c)
	return c
}

// State returns the watchable state of c.
func (c *Controller) State() *watch.Value[State] {
	return c.state
}

// Run serves handler on ln until ctx is canceled, then drains in-flight
// requests and returns.
//
// Run returns an error wrapping ErrSelfCheckFailed if the server does not
// answer its own health check, or ErrDrainTimeout if the drain outlasts its
// ceiling. Either way, c ends in StateStopped.
func (c *Controller) Run(ctx context.Context, ln net.Listener, handler http.Handler) error {
	defer c.setState(StateStopped)

	errorLog, _ := zap.NewStdLogAt(c.log, zap.WarnLevel)
	srv := &http.Server{Handler: handler, ErrorLog: errorLog}
	c.setState(StateListening, zap.Stringer("addr", ln.Addr()))

	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		err := srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving on %v: %w", ln.Addr(), err)
	})
	group.Go(func() error {
		check := SelfCheck{
			Path:    c.opts.HealthPath,
			Marker:  c.opts.HealthMarker,
			Timeout: c.opts.SelfCheckTimeout,
		}
		err := check.Run(gctx, ln.Addr())
		if err != nil && gctx.Err() == nil {
			c.state.Set(StateSelfCheckFailed)
			c.log.Error("Server did not answer its own health check", zap.Error(err))
			srv.Close()
			return err
		}
		if err == nil {
			c.setState(StateSelfCheckPassed)
			c.setState(StateRunning, zap.Strings("urls", serviceURLs(ln.Addr())))
		}

		<-gctx.Done()
		c.setState(StateDraining, zap.Duration("ceiling", c.opts.DrainTimeout))
		return c.drain(srv)
	})
	return group.Wait()
}

func (c *Controller) drain(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.opts.DrainTimeout)
	defer cancel()

	err := srv.Shutdown(ctx)
	if err == nil {
		return nil
	}
	srv.Close()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w after %v", ErrDrainTimeout, c.opts.DrainTimeout)
	}
	return fmt.Errorf("draining: %w", err)
}

func (c *Controller) setState(s State, fields ...zap.Field) {
	c.state.Set(s)
	c.log.Info(s.String(), fields...)
}
