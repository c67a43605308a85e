package realtime

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sudo-init-do/localfix/internal/apperr"
	"github.com/sudo-init-do/localfix/internal/auth"
	"github.com/sudo-init-do/localfix/internal/disclosure"
	"github.com/sudo-init-do/localfix/internal/model"
)

const writeWait = 10 * time.Second

type wsEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type Feed struct {
	store Store
	hub   Subscriber
	log   *zap.Logger
}

func NewFeed(store Store, hub Subscriber, log *zap.Logger) *Feed {
	return &Feed{store: store, hub: hub, log: log}
}

// latest returns an onUpdate that keeps only the newest undelivered snapshot.
// It relies on having a single producer.
func latest(out chan Snapshot) func(Snapshot) {
	return func(s Snapshot) {
		select {
		case out <- s:
			return
		default:
		}
		select {
		case <-out:
		default:
		}
		out <- s
	}
}

// =========================
// Worker - websocket pushing the worker dashboard
// =========================
func (f *Feed) Worker(c echo.Context) error {
	s, err := auth.Require(c)
	if err != nil {
		return apperr.Respond(c, err)
	}
	if s.Role != model.RoleWorker {
		return apperr.Respond(c, apperr.Forbidden("Only workers have a dashboard feed"))
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()

	updates := make(chan Snapshot, 1)
	viewer := disclosure.Viewer{ID: s.UserID, Role: s.Role}
	dash, initial, err := Open(ctx, f.store, f.hub, viewer, f.log, latest(updates))
	if err != nil {
		f.log.Error("dashboard load failed", zap.String("worker_id", s.UserID), zap.Error(err))
		return apperr.Respond(c, err)
	}
	defer func() {
		cancel()
		dash.Close()
	}()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already answered the request.
		f.log.Warn("websocket upgrade failed", zap.Error(err))
		return nil
	}
	defer ws.Close()

	// Read loop (discard client messages; the feed is server push only)
	go func() {
		defer cancel()
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(snap Snapshot) error {
		_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
		return ws.WriteJSON(wsEvent{Type: "snapshot", Data: snap})
	}
	if err := send(initial); err != nil {
		return nil
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case snap := <-updates:
			if err := send(snap); err != nil {
				f.log.Debug("websocket write failed", zap.String("worker_id", s.UserID), zap.Error(err))
				return nil
			}
		}
	}
}
