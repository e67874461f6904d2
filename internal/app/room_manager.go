package app

import (
	"sync"
	"sync/atomic"

	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

// RoomManager holds the single room a session may have. Mutations come from
// the session owner goroutine only; reads are safe from anywhere.
type RoomManager struct {
	mu     sync.RWMutex
	room   *domain.Room
	roster *core.Roster

	reqID   core.RequestID
	reqKind RequestKind

	// roster events seen while joining, replayed on top of the snapshot
	buffered []core.EngineEvent
	lastSeq  uint64

	epoch atomic.Uint64
}

func NewRoomManager() *RoomManager {
	return &RoomManager{}
}

// Begin reserves the room slot for an in-flight create or join.
func (m *RoomManager) Begin(id domain.RoomID, reqID core.RequestID, kind RequestKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room != nil {
		return domain.ErrRoomAlreadyActive
	}
	m.room = &domain.Room{ID: id, State: domain.RoomJoining}
	m.roster = core.NewRoster(id)
	m.reqID = reqID
	m.reqKind = kind
	m.buffered = nil
	m.lastSeq = 0
	log.Info().Str("module", "app.rooms").Str("room", string(id)).Str("kind", kind.String()).Msg("room joining")
	return nil
}

// Busy reports whether a room is joining or active.
func (m *RoomManager) Busy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.room != nil
}

// Pending returns the request currently joining the room, if any.
func (m *RoomManager) Pending() (core.RequestID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil || m.room.State != domain.RoomJoining {
		return "", false
	}
	return m.reqID, true
}

// Activate installs the snapshot for reqID and replays every buffered roster
// event newer than seq. It returns the room events the replay produced.
func (m *RoomManager) Activate(reqID core.RequestID, owner domain.UserID, snapshot []domain.Participant, seq uint64) ([]core.RoomEvent, bool) {
	m.mu.Lock()
	if m.room == nil || m.room.State != domain.RoomJoining || m.reqID != reqID {
		m.mu.Unlock()
		return nil, false
	}
	m.room.OwnerID = owner
	m.room.State = domain.RoomActive
	m.reqID = ""
	m.roster.Reset(snapshot)
	m.lastSeq = seq
	buffered := m.buffered
	m.buffered = nil
	id, roster := m.room.ID, m.roster
	m.mu.Unlock()

	log.Info().Str("module", "app.rooms").Str("room", string(id)).Int("participants", roster.Len()).
		Uint64("seq", seq).Int("buffered", len(buffered)).Msg("room active")

	var out []core.RoomEvent
	for _, ev := range buffered {
		if re, ok := m.Apply(ev); ok {
			out = append(out, re)
		}
	}
	return out, true
}

// Abort drops a joining room whose request failed.
func (m *RoomManager) Abort(reqID core.RequestID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil || m.room.State != domain.RoomJoining || m.reqID != reqID {
		return false
	}
	log.Info().Str("module", "app.rooms").Str("room", string(m.room.ID)).Msg("room join aborted")
	m.reset()
	return true
}

// Apply runs one roster event through the idempotent roster rules.
// Events for another room, stale sequence numbers and no-op membership
// changes produce nothing. While joining, events are buffered.
func (m *RoomManager) Apply(ev core.EngineEvent) (core.RoomEvent, bool) {
	m.mu.Lock()
	if m.room == nil {
		m.mu.Unlock()
		return nil, false
	}
	if ev.RoomID != "" && ev.RoomID != m.room.ID {
		m.mu.Unlock()
		log.Debug().Str("module", "app.rooms").Str("room", string(ev.RoomID)).Msg("event for foreign room dropped")
		return nil, false
	}
	if m.room.State == domain.RoomJoining {
		m.buffered = append(m.buffered, ev)
		m.mu.Unlock()
		return nil, false
	}
	if ev.Seq != 0 {
		if ev.Seq <= m.lastSeq {
			m.mu.Unlock()
			log.Debug().Str("module", "app.rooms").Uint64("seq", ev.Seq).Uint64("last", m.lastSeq).Msg("stale roster event dropped")
			return nil, false
		}
		m.lastSeq = ev.Seq
	}
	id := m.room.ID
	roster := m.roster
	m.mu.Unlock()

	switch ev.Type {
	case core.EngineParticipantJoined:
		if !roster.Add(domain.NewParticipant(ev.UserID)) {
			return nil, false
		}
		p, _ := roster.Get(ev.UserID)
		return core.ParticipantJoined{RoomID: id, Participant: p}, true
	case core.EngineParticipantLeft:
		if !roster.Remove(ev.UserID) {
			return nil, false
		}
		return core.ParticipantLeft{RoomID: id, UserID: ev.UserID, Reason: ev.Reason}, true
	case core.EngineAudioAvailable:
		if !roster.Has(ev.UserID) {
			return nil, false
		}
		roster.Update(ev.UserID, func(p *domain.Participant) { p.AudioEnabled = ev.Available })
		return core.AudioAvailabilityChanged{RoomID: id, UserID: ev.UserID, Available: ev.Available}, true
	case core.EngineVideoAvailable:
		if !roster.Has(ev.UserID) {
			return nil, false
		}
		roster.Update(ev.UserID, func(p *domain.Participant) { p.VideoEnabled = ev.Available })
		return core.VideoAvailabilityChanged{RoomID: id, UserID: ev.UserID, Available: ev.Available}, true
	case core.EngineNetworkQuality:
		if !roster.Has(ev.UserID) || !ev.Quality.Valid() {
			return nil, false
		}
		roster.Update(ev.UserID, func(p *domain.Participant) { p.Quality = ev.Quality })
		return core.NetworkQualityChanged{RoomID: id, UserID: ev.UserID, Quality: ev.Quality}, true
	}
	return nil, false
}

// Teardown empties the roster, forgets the room and bumps the epoch so that
// deliveries queued for it are discarded. It returns the room that was held.
func (m *RoomManager) Teardown() (domain.Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room == nil {
		return domain.Room{}, false
	}
	room := *m.room
	room.State = domain.RoomClosed
	m.reset()
	log.Info().Str("module", "app.rooms").Str("room", string(room.ID)).Msg("room torn down")
	return room, true
}

func (m *RoomManager) reset() {
	if m.roster != nil {
		m.roster.Clear()
	}
	m.room = nil
	m.roster = nil
	m.reqID = ""
	m.buffered = nil
	m.lastSeq = 0
	m.epoch.Add(1)
}

// SetOwner records an ownership change that does not end the room.
func (m *RoomManager) SetOwner(owner domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.room != nil {
		m.room.OwnerID = owner
	}
}

// Epoch changes every time a room is torn down.
func (m *RoomManager) Epoch() uint64 { return m.epoch.Load() }

// Room returns a copy of the current room meta.
func (m *RoomManager) Room() (domain.Room, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.room == nil {
		return domain.Room{}, false
	}
	return *m.room, true
}

// Participants is a sorted snapshot; empty unless a room is active.
func (m *RoomManager) Participants() []domain.Participant {
	m.mu.RLock()
	roster := m.roster
	active := m.room != nil && m.room.State == domain.RoomActive
	m.mu.RUnlock()
	if !active {
		return []domain.Participant{}
	}
	return roster.Snapshot()
}

func (m *RoomManager) Participant(id domain.UserID) (domain.Participant, bool) {
	m.mu.RLock()
	roster := m.roster
	active := m.room != nil && m.room.State == domain.RoomActive
	m.mu.RUnlock()
	if !active {
		return domain.Participant{}, false
	}
	return roster.Get(id)
}
