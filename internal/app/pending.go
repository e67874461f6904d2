package app

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

var (
	ErrDuplicateRequest = errors.New("pending request already exists")
	ErrEmptyRequestID   = errors.New("empty request id")
)

type RequestKind int

const (
	RequestLogin RequestKind = iota
	RequestLogout
	RequestCreateRoom
	RequestJoinRoom
	RequestDestroyRoom
	RequestKick
	RequestTransferOwner
)

func (k RequestKind) String() string {
	switch k {
	case RequestLogin:
		return "login"
	case RequestLogout:
		return "logout"
	case RequestCreateRoom:
		return "create_room"
	case RequestJoinRoom:
		return "join_room"
	case RequestDestroyRoom:
		return "destroy_room"
	case RequestKick:
		return "kick"
	case RequestTransferOwner:
		return "transfer_owner"
	default:
		return "unknown"
	}
}

// PendingRequest lives from issuance until its one completion.
type PendingRequest struct {
	ID       core.RequestID
	Kind     RequestKind
	Callback core.Callback
	IssuedAt time.Time
	// Target is the participant a kick or ownership transfer acts on.
	Target domain.UserID

	timer *time.Timer
}

// PendingStats counts completions seen against completions handed to callers.
type PendingStats struct {
	Issued    uint64
	Received  uint64
	Delivered uint64
	Timeouts  uint64
	Canceled  uint64
	Anomalies uint64
	InFlight  int
}

// PendingTable tracks in-flight correlated requests. Each entry is removed
// exactly once, by Take, Expire or Cancel, whichever comes first.
type PendingTable struct {
	mu       sync.Mutex
	entries  map[core.RequestID]*PendingRequest
	timeout  time.Duration
	onExpire func(core.RequestID)

	issued    atomic.Uint64
	received  atomic.Uint64
	delivered atomic.Uint64
	timeouts  atomic.Uint64
	canceled  atomic.Uint64
	anomalies atomic.Uint64
}

// NewPendingTable arms a timer per request; onExpire is called from the timer
// goroutine and is expected to hand the id back to the owner, which then calls Expire.
func NewPendingTable(timeout time.Duration, onExpire func(core.RequestID)) *PendingTable {
	return &PendingTable{
		entries:  make(map[core.RequestID]*PendingRequest),
		timeout:  timeout,
		onExpire: onExpire,
	}
}

func (t *PendingTable) Add(id core.RequestID, kind RequestKind, cb core.Callback) error {
	return t.AddFor(id, kind, "", cb)
}

// AddFor is Add for a request acting on another participant.
func (t *PendingTable) AddFor(id core.RequestID, kind RequestKind, target domain.UserID, cb core.Callback) error {
	if id == "" {
		return ErrEmptyRequestID
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.entries[id]; ok {
		return ErrDuplicateRequest
	}
	req := &PendingRequest{ID: id, Kind: kind, Callback: cb, IssuedAt: time.Now(), Target: target}
	if t.timeout > 0 && t.onExpire != nil {
		req.timer = time.AfterFunc(t.timeout, func() { t.onExpire(id) })
	}
	t.entries[id] = req
	t.issued.Add(1)
	log.Debug().Str("module", "app.pending").Str("req", string(id)).Str("kind", kind.String()).Msg("request issued")
	return nil
}

func (t *PendingTable) remove(id core.RequestID) (*PendingRequest, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	req, ok := t.entries[id]
	if !ok {
		return nil, false
	}
	delete(t.entries, id)
	if req.timer != nil {
		req.timer.Stop()
	}
	return req, true
}

// Take resolves id with a backend completion. A completion for an unknown or
// already resolved id is a protocol anomaly: counted, logged, never surfaced.
func (t *PendingTable) Take(id core.RequestID) (*PendingRequest, bool) {
	t.received.Add(1)
	req, ok := t.remove(id)
	if !ok {
		t.anomalies.Add(1)
		log.Warn().Str("module", "app.pending").Str("req", string(id)).Msg("protocol anomaly: completion without pending request")
		return nil, false
	}
	t.delivered.Add(1)
	return req, true
}

// Expire resolves id as timed out if it is still pending.
func (t *PendingTable) Expire(id core.RequestID) (*PendingRequest, bool) {
	req, ok := t.remove(id)
	if !ok {
		return nil, false
	}
	t.timeouts.Add(1)
	t.delivered.Add(1)
	log.Warn().Str("module", "app.pending").Str("req", string(id)).Str("kind", req.Kind.String()).Msg("request timed out")
	return req, true
}

// Cancel resolves id locally; any later backend completion becomes an anomaly.
func (t *PendingTable) Cancel(id core.RequestID) (*PendingRequest, bool) {
	req, ok := t.remove(id)
	if !ok {
		return nil, false
	}
	t.canceled.Add(1)
	t.delivered.Add(1)
	log.Info().Str("module", "app.pending").Str("req", string(id)).Str("kind", req.Kind.String()).Msg("request canceled")
	return req, true
}

// CancelKinds cancels every pending request of the given kinds, oldest first.
func (t *PendingTable) CancelKinds(kinds ...RequestKind) []*PendingRequest {
	t.mu.Lock()
	var ids []core.RequestID
	for id, req := range t.entries {
		for _, k := range kinds {
			if req.Kind == k {
				ids = append(ids, id)
				break
			}
		}
	}
	t.mu.Unlock()

	out := make([]*PendingRequest, 0, len(ids))
	for _, id := range ids {
		if req, ok := t.Cancel(id); ok {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].IssuedAt.Before(out[j].IssuedAt) })
	return out
}

func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

func (t *PendingTable) Stats() PendingStats {
	return PendingStats{
		Issued:    t.issued.Load(),
		Received:  t.received.Load(),
		Delivered: t.delivered.Load(),
		Timeouts:  t.timeouts.Load(),
		Canceled:  t.canceled.Load(),
		Anomalies: t.anomalies.Load(),
		InFlight:  t.Len(),
	}
}
