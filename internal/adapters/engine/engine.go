package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/meetcore/internal/adapters/rtc"
	"github.com/dkeye/meetcore/internal/adapters/signal"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotConnected = errors.New("engine not connected")
	ErrBackpressure = errors.New("engine send queue full")
)

type Options struct {
	URL         string
	DialTimeout time.Duration
	SendBuffer  int
	// Media, when set, opens a publisher for every room entered.
	Media *webrtc.Configuration
}

// Engine is a core.MediaEngine speaking the signaling protocol over one WebSocket.
type Engine struct {
	opts Options
	conn *websocket.Conn
	send chan []byte

	mu     sync.Mutex
	sink   core.EventSink
	closed bool
	// request type by id, for the requests whose result the engine itself reacts to
	rooms map[core.RequestID]string
	pub   *rtc.Publisher
	// gen changes whenever media is released; a publisher started for an
	// older generation is discarded.
	gen uint64

	lostOnce sync.Once
	done     chan struct{}
}

// Dial connects to the signaling endpoint and starts the pumps.
func Dial(ctx context.Context, opts Options) (*Engine, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	dialCtx, cancel := context.WithTimeout(ctx, opts.DialTimeout)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, opts.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", opts.URL, err)
	}
	e := &Engine{
		opts:  opts,
		conn:  conn,
		send:  make(chan []byte, opts.SendBuffer),
		rooms: make(map[core.RequestID]string),
		done:  make(chan struct{}),
	}
	go e.writePump()
	go e.readPump()
	log.Info().Str("module", "engine").Str("url", opts.URL).Msg("engine connected")
	return e, nil
}

func (e *Engine) Subscribe(sink core.EventSink) {
	e.mu.Lock()
	e.sink = sink
	e.mu.Unlock()
}

func (e *Engine) Authenticate(cred domain.Credential) (core.RequestID, error) {
	return e.request(signal.Envelope{
		Type:    signal.TypeLogin,
		AppID:   cred.AppID,
		UserID:  string(cred.UserID),
		UserSig: cred.UserSig,
	})
}

func (e *Engine) Logout() (core.RequestID, error) {
	e.releaseMedia()
	return e.request(signal.Envelope{Type: signal.TypeLogout})
}

func (e *Engine) CreateRoom(id domain.RoomID) (core.RequestID, error) {
	return e.roomRequest(signal.TypeCreateRoom, id)
}

func (e *Engine) JoinRoom(id domain.RoomID) (core.RequestID, error) {
	return e.roomRequest(signal.TypeJoinRoom, id)
}

func (e *Engine) DestroyRoom(id domain.RoomID) (core.RequestID, error) {
	e.releaseMedia()
	return e.request(signal.Envelope{Type: signal.TypeDestroyRoom, RoomID: string(id)})
}

func (e *Engine) KickUser(id domain.UserID) (core.RequestID, error) {
	return e.request(signal.Envelope{Type: signal.TypeKick, Target: string(id)})
}

func (e *Engine) TransferOwner(id domain.UserID) (core.RequestID, error) {
	return e.request(signal.Envelope{Type: signal.TypeTransferOwner, Target: string(id)})
}

// LeaveRoom tells the backend and releases the publisher. No result follows.
func (e *Engine) LeaveRoom() error {
	e.releaseMedia()
	return e.enqueue(signal.Envelope{Type: signal.TypeLeaveRoom})
}

// SetMedia publishes the local audio/video flags; nil leaves a flag unchanged.
func (e *Engine) SetMedia(audio, video *bool) error {
	return e.enqueue(signal.Envelope{Type: signal.TypeMediaState, Audio: audio, Video: video})
}

// ReportQuality publishes the local uplink quality.
func (e *Engine) ReportQuality(q domain.NetworkQuality) error {
	return e.enqueue(signal.Envelope{Type: signal.TypeQuality, Quality: int(q)})
}

// roomRequest records the request before sending it so its result cannot
// overtake the bookkeeping.
func (e *Engine) roomRequest(typ string, id domain.RoomID) (core.RequestID, error) {
	reqID := core.RequestID(uuid.NewString())
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rooms[reqID] = typ
	if err := e.enqueueLocked(signal.Envelope{Type: typ, ReqID: string(reqID), RoomID: string(id)}); err != nil {
		delete(e.rooms, reqID)
		return "", err
	}
	return reqID, nil
}

func (e *Engine) request(env signal.Envelope) (core.RequestID, error) {
	env.ReqID = uuid.NewString()
	if err := e.enqueue(env); err != nil {
		return "", err
	}
	return core.RequestID(env.ReqID), nil
}

func (e *Engine) enqueue(env signal.Envelope) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.enqueueLocked(env)
}

func (e *Engine) enqueueLocked(env signal.Envelope) error {
	b, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if e.closed {
		return ErrNotConnected
	}
	select {
	case e.send <- b:
		return nil
	default:
		return ErrBackpressure
	}
}

// Close drops the connection. The sink sees one ConnectionLost.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.send)
	e.mu.Unlock()
	_ = e.conn.Close()
	e.releaseMedia()
	<-e.done
}

func (e *Engine) emit(ev core.EngineEvent) {
	e.mu.Lock()
	sink := e.sink
	e.mu.Unlock()
	if sink == nil {
		log.Debug().Str("module", "engine").Str("event", ev.Type.String()).Msg("no sink, event dropped")
		return
	}
	sink.OnEngineEvent(ev)
}

func (e *Engine) lost(reason string) {
	e.lostOnce.Do(func() {
		log.Warn().Str("module", "engine").Str("reason", reason).Msg("connection lost")
		e.emit(core.EngineEvent{Type: core.EngineConnectionLost, Reason: reason})
	})
}
