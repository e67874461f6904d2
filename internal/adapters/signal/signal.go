package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/meetcore/internal/adapters/rtc"
	"github.com/dkeye/meetcore/internal/adapters/sfu"
	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Options struct {
	ReadLimit  int64
	PingPeriod time.Duration
	// Media enables SDP answering; nil disables it.
	Media *webrtc.Configuration
}

// SignalWSController serves the backend signaling socket on top of a Hub.
type SignalWSController struct {
	Hub    *backend.Hub
	opts   Options
	relays *sfu.RelayManager
}

func NewSignalWSController(hub *backend.Hub, opts Options) *SignalWSController {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = 54 * time.Second
	}
	ctl := &SignalWSController{Hub: hub, opts: opts}
	if opts.Media != nil {
		ctl.relays = sfu.NewRelayManager()
	}
	return ctl
}

// WsSignalConn is one client socket. It implements core.SignalConnection and backend.Peer.
type WsSignalConn struct {
	id   string
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool

	relays    *sfu.RelayManager
	mediaMu   sync.Mutex
	media     *rtc.Answerer
	mediaUser domain.UserID
}

var (
	_ core.SignalConnection = (*WsSignalConn)(nil)
	_ backend.Peer          = (*WsSignalConn)(nil)
)

func (c *WsSignalConn) ID() string { return c.id }

func (c *WsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

// Notify implements backend.Peer.
func (c *WsSignalConn) Notify(ev backend.Event) {
	b, err := json.Marshal(EventEnvelope(ev))
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("notify marshal")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("peer", c.id).Str("event", ev.Type.String()).Msg("notify dropped")
	}
}

func (c *WsSignalConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	c.dropMedia()
}

// setMedia installs the media session user publishes through, replacing any previous one.
func (c *WsSignalConn) setMedia(a *rtc.Answerer, user domain.UserID) {
	c.mediaMu.Lock()
	prev, prevUser := c.media, c.mediaUser
	c.media, c.mediaUser = a, user
	c.mediaMu.Unlock()
	if prev != nil {
		if c.relays != nil && prevUser != "" {
			c.relays.Stop(prevUser)
		}
		prev.Close()
	}
}

func (c *WsSignalConn) dropMedia() { c.setMedia(nil, "") }

func (c *WsSignalConn) currentMedia() *rtc.Answerer {
	c.mediaMu.Lock()
	defer c.mediaMu.Unlock()
	return c.media
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	if ctl.opts.ReadLimit > 0 {
		ws.SetReadLimit(ctl.opts.ReadLimit)
	}

	conn := &WsSignalConn{
		id:     ulid.Make().String(),
		conn:   ws,
		send:   make(chan core.Frame, 64),
		relays: ctl.relays,
	}
	log.Info().Str("module", "signal").Str("peer", conn.id).Str("client", c.GetString("client_token")).Msg("new WS connection")

	ctl.Hub.Connect(conn)
	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go func() {
		defer cancel()
		ctl.readPump(ctx, conn)
	}()
}
