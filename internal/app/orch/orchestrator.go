package orch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/meetcore/internal/app"
	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRequestTimeout = 10 * time.Second
	DefaultInboxSize      = 256
)

type Options struct {
	// RequestTimeout bounds every correlated engine request.
	RequestTimeout time.Duration
	// InboxSize bounds the queue between callers/engine and the state owner.
	InboxSize int
	// Executor runs callbacks and room events. Nil means a private serial dispatcher.
	Executor core.Executor
	Policy   app.ErrorPolicy
}

// Orchestrator is the meeting session. One goroutine owns the session state,
// the room and the pending requests; everything else talks to it through the inbox.
type Orchestrator struct {
	engine    core.MediaEngine
	exec      core.Executor
	ownExec   *app.Dispatcher
	policy    app.ErrorPolicy
	pending   *app.PendingTable
	rooms     *app.RoomManager
	listeners *app.Registry

	inbox     chan func()
	done      chan struct{}
	stopOnce  sync.Once
	closeOnce sync.Once
	wg        sync.WaitGroup

	state  atomic.Int32
	credMu sync.RWMutex
	cred   domain.Credential
}

func New(engine core.MediaEngine, opts Options) *Orchestrator {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = DefaultRequestTimeout
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = DefaultInboxSize
	}
	if opts.Policy == nil {
		opts.Policy = app.SimplePolicy{}
	}
	o := &Orchestrator{
		engine:    engine,
		exec:      opts.Executor,
		policy:    opts.Policy,
		rooms:     app.NewRoomManager(),
		listeners: app.NewRegistry(),
		inbox:     make(chan func(), opts.InboxSize),
		done:      make(chan struct{}),
	}
	if o.exec == nil {
		o.ownExec = app.NewDispatcher()
		o.exec = o.ownExec
	}
	o.pending = app.NewPendingTable(opts.RequestTimeout, func(id core.RequestID) {
		o.post(func() { o.expire(id) })
	})
	o.state.Store(int32(domain.LoggedOut))
	engine.Subscribe(o)
	return o
}

// Start runs the state owner until ctx ends or Close is called.
func (o *Orchestrator) Start(ctx context.Context) {
	o.wg.Add(1)
	go o.loop(ctx)
}

func (o *Orchestrator) loop(ctx context.Context) {
	defer o.wg.Done()
	log.Info().Str("module", "app.orch").Msg("session loop started")
	for {
		select {
		case fn := <-o.inbox:
			fn()
		case <-ctx.Done():
			o.stop()
			return
		case <-o.done:
			return
		}
	}
}

func (o *Orchestrator) stop() {
	o.stopOnce.Do(func() { close(o.done) })
}

// Close stops the loop, cancels every pending request and flushes callbacks.
// It must not be called from a callback.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		o.stop()
		o.wg.Wait()
		for _, req := range o.pending.CancelKinds(allRequests...) {
			o.deliver(req.Callback, core.ResultOf(domain.ErrCanceled))
		}
		if o.ownExec != nil {
			o.ownExec.Close()
		}
		log.Info().Str("module", "app.orch").Msg("session closed")
	})
}

var allRequests = []app.RequestKind{
	app.RequestLogin, app.RequestLogout, app.RequestCreateRoom, app.RequestJoinRoom, app.RequestDestroyRoom,
	app.RequestKick, app.RequestTransferOwner,
}

// post hands fn to the state owner. It blocks only while the inbox is full
// and reports false once the session is closed.
func (o *Orchestrator) post(fn func()) bool {
	select {
	case <-o.done:
		return false
	default:
	}
	select {
	case o.inbox <- fn:
		return true
	case <-o.done:
		return false
	}
}

// submit posts an operation; if the session is already closed cb gets Canceled.
func (o *Orchestrator) submit(cb core.Callback, fn func()) {
	if !o.post(fn) {
		o.deliver(cb, core.ResultOf(domain.ErrCanceled))
	}
}

// OnEngineEvent implements core.EventSink. Safe from any goroutine.
func (o *Orchestrator) OnEngineEvent(ev core.EngineEvent) {
	if !o.post(func() { o.handle(ev) }) {
		log.Debug().Str("module", "app.orch").Str("event", ev.Type.String()).Msg("engine event after close dropped")
	}
}

func (o *Orchestrator) deliver(cb core.Callback, res core.Result) {
	if cb == nil {
		return
	}
	o.exec.Post(func() { cb(res) })
}

func (o *Orchestrator) fail(cb core.Callback, err *domain.Error) {
	log.Info().Str("module", "app.orch").Str("kind", err.Kind.String()).Int("code", err.Code).Msg(err.Message)
	o.deliver(cb, core.ResultOf(err))
}

// emit queues ev for every listener registered now. Each delivery re-checks
// the registration and, except for RoomClosed, the room epoch.
func (o *Orchestrator) emit(ev core.RoomEvent) {
	epoch := o.rooms.Epoch()
	_, terminal := ev.(core.RoomClosed)
	for _, entry := range o.listeners.Snapshot() {
		id, l := entry.ID, entry.Listener
		o.exec.Post(func() {
			if _, ok := o.listeners.Lookup(id); !ok {
				return
			}
			if !terminal && o.rooms.Epoch() != epoch {
				return
			}
			l.OnRoomEvent(ev)
		})
	}
	log.Debug().Str("module", "app.orch").Str("room", string(ev.Room())).Str("event", core.EventName(ev)).Msg("room event")
}

// engineError turns a synchronous engine failure into a surfaced error.
func engineError(err error) *domain.Error {
	var de *domain.Error
	if errors.As(err, &de) {
		return de
	}
	return domain.NewError(domain.KindNetwork, domain.CodeNetwork, err.Error())
}

func (o *Orchestrator) setState(s domain.SessionState) {
	prev := domain.SessionState(o.state.Swap(int32(s)))
	if prev != s {
		log.Info().Str("module", "app.orch").Str("from", prev.String()).Str("to", s.String()).Msg("session state")
	}
}

// State is the current session state.
func (o *Orchestrator) State() domain.SessionState {
	return domain.SessionState(o.state.Load())
}

// UserID is the logged in (or logging in) user, empty when logged out.
func (o *Orchestrator) UserID() domain.UserID {
	o.credMu.RLock()
	defer o.credMu.RUnlock()
	return o.cred.UserID
}

func (o *Orchestrator) setCredential(c domain.Credential) {
	o.credMu.Lock()
	o.cred = c
	o.credMu.Unlock()
}

// Room returns the joining or active room.
func (o *Orchestrator) Room() (domain.Room, bool) { return o.rooms.Room() }

// Participants is a sorted roster snapshot of the active room.
func (o *Orchestrator) Participants() []domain.Participant { return o.rooms.Participants() }

func (o *Orchestrator) Participant(id domain.UserID) (domain.Participant, bool) {
	return o.rooms.Participant(id)
}

// Stats exposes the pending request counters.
func (o *Orchestrator) Stats() app.PendingStats { return o.pending.Stats() }

// RegisterRoomListener adds l; it receives room events posted after this call.
func (o *Orchestrator) RegisterRoomListener(l core.RoomListener) core.ListenerID {
	return o.listeners.Register(l)
}

// UnregisterRoomListener removes id. Events already queued for it are dropped.
func (o *Orchestrator) UnregisterRoomListener(id core.ListenerID) bool {
	return o.listeners.Unregister(id)
}
