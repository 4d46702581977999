package api

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/lifecycle"
	"github.com/ahamlinman/webglhost/internal/log"
	"github.com/ahamlinman/webglhost/internal/watch"
)

var websocketUpgrader websocket.Upgrader

var errShuttingDown = errors.New("service shutting down")

// LifecycleSocketHandler streams lifecycle state transitions to a single
// websocket client, and hangs up once the service begins to shut down.
type LifecycleSocketHandler struct {
	state     *watch.Value[lifecycle.State]
	log       *zap.Logger
	socket    *websocket.Conn
	watch     watch.Watch
	ctx       context.Context
	shutdown  context.CancelCauseFunc
	waitGroup sync.WaitGroup
}

func (h *Handler) handleLifecycleSocket(w http.ResponseWriter, r *http.Request) {
	ctx, shutdown := context.WithCancelCause(r.Context())
	lsh := &LifecycleSocketHandler{
		state:    h.state,
		ctx:      ctx,
		shutdown: shutdown,
	}
	lsh.log = log.For(h.log, lsh)
	lsh.ServeHTTP(w, r)
}

func (lsh *LifecycleSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	lsh.log.Debug("Starting new connection")
	defer func() {
		lsh.waitForCleanup()
		lsh.log.Debug("Connection done", zap.NamedError("cause", context.Cause(lsh.ctx)))
	}()

	var err error
	lsh.socket, err = websocketUpgrader.Upgrade(w, r, nil)
	if err != nil {
		lsh.shutdown(err)
		return
	}
	defer lsh.socket.Close()

	lsh.waitGroup.Add(1)
	go func() {
		defer lsh.waitGroup.Done()
		lsh.drainClient()
	}()

	lsh.watch = lsh.state.Watch(lsh.sendState)
	defer lsh.watch.Cancel()

	<-lsh.ctx.Done()
}

type lifecycleMsg struct {
	State string
}

func (lsh *LifecycleSocketHandler) sendState(s lifecycle.State) {
	if lsh.ctx.Err() != nil {
		return
	}

	if err := lsh.socket.WriteJSON(lifecycleMsg{State: s.String()}); err != nil {
		lsh.shutdown(err)
		return
	}

	if s.ShuttingDown() {
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, s.String())
		lsh.socket.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		lsh.shutdown(errShuttingDown)
	}
}

func (lsh *LifecycleSocketHandler) drainClient() {
	// Per https://pkg.go.dev/github.com/gorilla/websocket#hdr-Control_Messages,
	// incoming messages must be read even though the client has nothing to say.
	for {
		if _, _, err := lsh.socket.NextReader(); err != nil {
			lsh.shutdown(err)
			return
		}
	}
}

func (lsh *LifecycleSocketHandler) waitForCleanup() {
	if lsh.watch != nil {
		lsh.watch.Cancel()
		lsh.watch.Wait()
	}
	if lsh.socket != nil {
		lsh.socket.Close()
	}
	lsh.waitGroup.Wait()
}
