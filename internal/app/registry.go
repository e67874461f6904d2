package app

import (
	"sort"
	"sync"

	"github.com/dkeye/meetcore/internal/core"
	"github.com/rs/zerolog/log"
)

type listenerEntry struct {
	ID       core.ListenerID
	Listener core.RoomListener
}

// Registry holds room listeners. IDs come from a monotonic counter and act as
// the registration generation: a delivery captured for an old ID is refused
// once that ID is gone, even if the same listener registers again.
type Registry struct {
	mu        sync.RWMutex
	next      core.ListenerID
	listeners map[core.ListenerID]core.RoomListener
}

func NewRegistry() *Registry {
	return &Registry{
		listeners: make(map[core.ListenerID]core.RoomListener),
	}
}

func (r *Registry) Register(l core.RoomListener) core.ListenerID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	id := r.next
	r.listeners[id] = l
	log.Info().Str("module", "app.registry").Uint64("listener", uint64(id)).Msg("listener registered")
	return id
}

// Unregister reports whether id was registered.
func (r *Registry) Unregister(id core.ListenerID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[id]; !ok {
		return false
	}
	delete(r.listeners, id)
	log.Info().Str("module", "app.registry").Uint64("listener", uint64(id)).Msg("listener unregistered")
	return true
}

// Lookup returns the listener only while id is still registered.
func (r *Registry) Lookup(id core.ListenerID) (core.RoomListener, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.listeners[id]
	return l, ok
}

// Snapshot returns current registrations in registration order.
func (r *Registry) Snapshot() []listenerEntry {
	r.mu.RLock()
	out := make([]listenerEntry, 0, len(r.listeners))
	for id, l := range r.listeners {
		out = append(out, listenerEntry{ID: id, Listener: l})
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
