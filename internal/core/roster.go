package core

import (
	"sort"
	"sync"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

// Roster is a threadsafe participant set for one room.
// Writes are idempotent so replayed events never duplicate a member.
type Roster struct {
	room   domain.RoomID
	mu     sync.RWMutex
	byUser map[domain.UserID]*domain.Participant
}

func NewRoster(room domain.RoomID) *Roster {
	return &Roster{
		room:   room,
		byUser: make(map[domain.UserID]*domain.Participant),
	}
}

func (r *Roster) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser)
}

// Reset replaces the whole roster with a snapshot.
func (r *Roster) Reset(snapshot []domain.Participant) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[domain.UserID]*domain.Participant, len(snapshot))
	for _, p := range snapshot {
		r.byUser[p.UserID] = &p
	}
	log.Debug().Str("module", "core.roster").Str("room", string(r.room)).Int("count", len(snapshot)).Msg("roster reset")
}

// Add inserts p and reports whether membership changed.
func (r *Roster) Add(p domain.Participant) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[p.UserID]; ok {
		return false
	}
	r.byUser[p.UserID] = &p
	log.Debug().Str("module", "core.roster").Str("room", string(r.room)).Str("user", string(p.UserID)).Msg("participant added")
	return true
}

// Remove deletes id and reports whether membership changed.
func (r *Roster) Remove(id domain.UserID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byUser[id]; !ok {
		return false
	}
	delete(r.byUser, id)
	log.Debug().Str("module", "core.roster").Str("room", string(r.room)).Str("user", string(id)).Msg("participant removed")
	return true
}

// Update applies fn to an existing participant. Absent ids are left alone.
// It reports whether fn changed anything.
func (r *Roster) Update(id domain.UserID, fn func(*domain.Participant)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.byUser[id]
	if !ok {
		return false
	}
	before := *p
	fn(p)
	return before != *p
}

func (r *Roster) Get(id domain.UserID) (domain.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byUser[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (r *Roster) Has(id domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.byUser[id]
	return ok
}

// Snapshot returns a copy ordered by user id.
func (r *Roster) Snapshot() []domain.Participant {
	r.mu.RLock()
	out := make([]domain.Participant, 0, len(r.byUser))
	for _, p := range r.byUser {
		out = append(out, *p)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out
}

// Clear empties the roster.
func (r *Roster) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser = make(map[domain.UserID]*domain.Participant)
}
