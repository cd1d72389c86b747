package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/heimdex/heimdex-editor/internal/editor"
	"github.com/heimdex/heimdex-editor/internal/logging"
)

const (
	eventBuffer  = 64
	pingInterval = 30 * time.Second
	writeTimeout = 5 * time.Second
)

// sessionEventsHandler streams the events of one session over a websocket.
// The current segments and playhead are sent first so a late subscriber
// starts from the same state as everyone else.
func sessionEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := sessionFromRequest(cfg, w, r)
		if !ok {
			return
		}
		logger := logging.WithSessionID(cfg.Logger, s.ID())

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: []string{"localhost:*", "127.0.0.1:*"},
		})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		events, unsubscribe := s.Bus().Subscribe(eventBuffer)
		defer unsubscribe()

		// nothing is read from clients; CloseRead handles control frames
		ctx := conn.CloseRead(r.Context())
		logger.Info("event stream opened")

		l := s.Segments()
		snapshot := []editor.Event{
			{Kind: editor.SegmentsChanged, Segments: &l},
			{Kind: editor.TimeUpdated, Time: s.Position()},
		}
		for _, ev := range snapshot {
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		}

		ping := time.NewTicker(pingInterval)
		defer ping.Stop()

		for {
			select {
			case <-ctx.Done():
				logger.Info("event stream closed by client")
				return
			case <-ping.C:
				pctx, cancel := context.WithTimeout(ctx, writeTimeout)
				err := conn.Ping(pctx)
				cancel()
				if err != nil {
					return
				}
			case ev, ok := <-events:
				if !ok {
					conn.Close(websocket.StatusGoingAway, "session closed")
					return
				}
				if err := writeEvent(ctx, conn, ev); err != nil {
					if !errors.Is(err, context.Canceled) {
						logger.Debug("event write failed", "error", err)
					}
					return
				}
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, ev editor.Event) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, ev)
}
