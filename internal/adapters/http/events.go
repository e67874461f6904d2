package http

import (
	"net/http"
	"time"

	"github.com/dkeye/meetcore/internal/core"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const eventBuffer = 64

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

type eventFrame struct {
	Type  string         `json:"type"`
	Event core.RoomEvent `json:"event"`
}

// events streams room events to one WebSocket client for as long as it stays connected.
// The listener is registered before the upgrade so no event after the handshake is missed.
func (ctl *Control) events(c *gin.Context) {
	out := make(chan eventFrame, eventBuffer)
	id := ctl.sess.RegisterRoomListener(core.ListenerFunc(func(ev core.RoomEvent) {
		select {
		case out <- eventFrame{Type: core.EventName(ev), Event: ev}:
		default:
			log.Warn().Str("module", "adapters.http").Str("event", core.EventName(ev)).Msg("events client slow, dropped")
		}
	}))

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.sess.UnregisterRoomListener(id)
		log.Error().Err(err).Str("module", "adapters.http").Msg("events upgrade")
		return
	}
	log.Info().Str("module", "adapters.http").Uint64("listener", uint64(id)).Msg("events client connected")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}()

	defer func() {
		ctl.sess.UnregisterRoomListener(id)
		_ = ws.Close()
		log.Info().Str("module", "adapters.http").Uint64("listener", uint64(id)).Msg("events client gone")
	}()
	for {
		select {
		case <-done:
			return
		case f := <-out:
			_ = ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := ws.WriteJSON(f); err != nil {
				return
			}
		}
	}
}
