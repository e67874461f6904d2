package engine

import (
	"encoding/json"
	"time"

	"github.com/dkeye/meetcore/internal/adapters/signal"
	"github.com/dkeye/meetcore/internal/backend"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (e *Engine) writePump() {
	for data := range e.send {
		if err := e.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			log.Error().Err(err).Str("module", "engine").Msg("writePump set deadline")
			break
		}
		if err := e.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Error().Err(err).Str("module", "engine").Msg("writePump write error")
			break
		}
	}
	_ = e.conn.Close()
}

// readPump is the only goroutine that emits events, so the sink sees them in receive order.
func (e *Engine) readPump() {
	defer close(e.done)
	for {
		_, data, err := e.conn.ReadMessage()
		if err != nil {
			e.markClosed()
			e.lost(err.Error())
			return
		}
		var env signal.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			log.Error().Err(err).Str("module", "engine").Msg("bad json")
			continue
		}
		e.dispatch(env)
	}
}

func (e *Engine) markClosed() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.closed {
		e.closed = true
		close(e.send)
	}
}

func (e *Engine) dispatch(env signal.Envelope) {
	switch env.Type {
	case signal.TypeResult:
		e.onResult(env)
	case signal.TypeAnswer:
		e.onAnswer(env)
	case signal.TypeCandidate:
		e.onCandidate(env)
	case signal.TypePong:
	case signal.TypeError:
		log.Warn().Str("module", "engine").Int("code", env.Code).Str("message", env.Message).Msg("backend error")
	default:
		ev, ok := roomEvent(env)
		if !ok {
			log.Warn().Str("module", "engine").Str("type", env.Type).Msg("unknown frame")
			return
		}
		e.emit(ev)
	}
}

func (e *Engine) onResult(env signal.Envelope) {
	id := core.RequestID(env.ReqID)
	e.mu.Lock()
	typ, isRoom := e.rooms[id]
	delete(e.rooms, id)
	gen := e.gen
	e.mu.Unlock()

	e.emit(core.EngineEvent{
		Type:      core.EngineCompletion,
		RequestID: id,
		Code:      env.Code,
		Message:   env.Message,
		Kind:      signal.Classify(env.Code),
		RoomID:    domain.RoomID(env.RoomID),
		OwnerID:   domain.UserID(env.OwnerID),
		Seq:       env.Seq,
		Roster:    env.Members,
	})
	if isRoom && env.Code == signal.CodeOK && e.opts.Media != nil {
		log.Debug().Str("module", "engine").Str("request", typ).Msg("room entered, publishing")
		go e.publish(gen)
	}
}

var roomEvents = map[string]core.EngineEventType{
	backend.EventMemberJoined.String():   core.EngineParticipantJoined,
	backend.EventMemberLeft.String():     core.EngineParticipantLeft,
	backend.EventAudioChanged.String():   core.EngineAudioAvailable,
	backend.EventVideoChanged.String():   core.EngineVideoAvailable,
	backend.EventQualityChanged.String(): core.EngineNetworkQuality,
	backend.EventOwnerChanged.String():   core.EngineOwnerChanged,
	backend.EventRoomClosed.String():     core.EngineRoomClosed,
	backend.EventKicked.String():         core.EngineKicked,
}

func roomEvent(env signal.Envelope) (core.EngineEvent, bool) {
	typ, ok := roomEvents[env.Type]
	if !ok {
		return core.EngineEvent{}, false
	}
	return core.EngineEvent{
		Type:      typ,
		RoomID:    domain.RoomID(env.RoomID),
		UserID:    domain.UserID(env.UserID),
		OwnerID:   domain.UserID(env.OwnerID),
		Seq:       env.Seq,
		Available: env.Available,
		Quality:   domain.NetworkQuality(env.Quality),
		Reason:    env.Reason,
	}, true
}
