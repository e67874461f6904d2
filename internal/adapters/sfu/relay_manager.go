package sfu

import (
	"context"
	"sync"

	"github.com/dkeye/meetcore/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type key struct {
	user domain.UserID
	kind webrtc.RTPCodecType
}

// RelayManager routes published tracks inside each room. Every subscriber track
// of a kind is fed by the newest other publisher of that kind in the same room.
type RelayManager struct {
	mu     sync.Mutex
	seq    uint64
	relays map[key]*Relay
	subs   map[key]*OutTrack
	feeds  map[key]*Relay // subscriber -> relay currently feeding it
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[key]*Relay),
		subs:   make(map[key]*OutTrack),
		feeds:  make(map[key]*Relay),
	}
}

// StartRelay registers user's published track and starts forwarding it.
func (m *RelayManager) StartRelay(ctx context.Context, room domain.RoomID, user domain.UserID, kind webrtc.RTPCodecType, read ReadFunc) {
	logger := log.With().
		Str("module", "sfu").
		Str("room", string(room)).
		Str("user", string(user)).
		Str("kind", kind.String()).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(room, user, kind, read, cancel)
	k := key{user, kind}

	m.mu.Lock()
	if old, ok := m.relays[k]; ok {
		logger.Info().Msg("replacing existing relay")
		m.removeRelayLocked(old)
	}
	m.seq++
	relay.seq = m.seq
	m.relays[k] = relay
	for sk, ot := range m.subs {
		if ot.Room == room && sk.kind == kind && sk.user != user {
			m.feedLocked(sk, ot, relay)
		}
	}
	m.mu.Unlock()

	logger.Info().Msg("starting relay loop")
	go relay.loop(relayCtx, &logger, func() { m.relayEnded(relay) })
}

// AddSubscriber registers user's local track and connects it to a publisher if one exists.
func (m *RelayManager) AddSubscriber(room domain.RoomID, user domain.UserID, track *webrtc.TrackLocalStaticRTP) {
	ot := NewOutTrack(room, user, track)
	k := key{user, ot.Kind()}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.unfeedLocked(k)
	m.subs[k] = ot
	if src := m.newestLocked(room, k.kind, user); src != nil {
		m.feedLocked(k, ot, src)
	}
}

// SetMuted stops or resumes forwarding of user's track of kind.
func (m *RelayManager) SetMuted(user domain.UserID, kind webrtc.RTPCodecType, muted bool) {
	m.mu.Lock()
	relay, ok := m.relays[key{user, kind}]
	m.mu.Unlock()
	if ok {
		relay.muted.Store(muted)
	}
}

// Stop removes everything user publishes or subscribes to.
func (m *RelayManager) Stop(user domain.UserID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeAudio, webrtc.RTPCodecTypeVideo} {
		k := key{user, kind}
		if relay, ok := m.relays[k]; ok {
			m.removeRelayLocked(relay)
		}
		if ot, ok := m.subs[k]; ok {
			ot.MarkDelete()
			m.unfeedLocked(k)
			delete(m.subs, k)
		}
	}
}

// Source reports who currently feeds user's track of kind.
func (m *RelayManager) Source(user domain.UserID, kind webrtc.RTPCodecType) (domain.UserID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	relay, ok := m.feeds[key{user, kind}]
	if !ok {
		return "", false
	}
	return relay.User, true
}

func (m *RelayManager) HasRelay(user domain.UserID, kind webrtc.RTPCodecType) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.relays[key{user, kind}]
	return ok
}

func (m *RelayManager) relayEnded(relay *Relay) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.relays[key{relay.User, relay.Kind}]; ok && cur == relay {
		m.removeRelayLocked(relay)
	}
}

// removeRelayLocked drops relay and moves its subscribers to the next newest publisher.
func (m *RelayManager) removeRelayLocked(relay *Relay) {
	relay.cancel()
	delete(m.relays, key{relay.User, relay.Kind})
	for sk, feed := range m.feeds {
		if feed != relay {
			continue
		}
		delete(m.feeds, sk)
		relay.detach(sk.user)
		if src := m.newestLocked(relay.Room, relay.Kind, sk.user); src != nil {
			m.feedLocked(sk, m.subs[sk], src)
		}
	}
}

func (m *RelayManager) newestLocked(room domain.RoomID, kind webrtc.RTPCodecType, except domain.UserID) *Relay {
	var best *Relay
	for k, r := range m.relays {
		if r.Room != room || k.kind != kind || k.user == except {
			continue
		}
		if best == nil || r.seq > best.seq {
			best = r
		}
	}
	return best
}

func (m *RelayManager) feedLocked(k key, ot *OutTrack, relay *Relay) {
	m.unfeedLocked(k)
	relay.attach(ot)
	m.feeds[k] = relay
}

func (m *RelayManager) unfeedLocked(k key) {
	if prev, ok := m.feeds[k]; ok {
		prev.detach(k.user)
		delete(m.feeds, k)
	}
}
