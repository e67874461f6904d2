package orch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/dkeye/meetcore/internal/core"
	"github.com/dkeye/meetcore/internal/domain"
)

type fakeEngine struct {
	mu     sync.Mutex
	sink   core.EventSink
	next   int
	calls  []string
	leaves int
}

func (f *fakeEngine) issue(call string) core.RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.next++
	f.calls = append(f.calls, call)
	return core.RequestID(fmt.Sprintf("req-%d", f.next))
}

func (f *fakeEngine) Authenticate(cred domain.Credential) (core.RequestID, error) {
	return f.issue("auth:" + string(cred.UserID)), nil
}
func (f *fakeEngine) Logout() (core.RequestID, error) { return f.issue("logout"), nil }
func (f *fakeEngine) CreateRoom(id domain.RoomID) (core.RequestID, error) {
	return f.issue("create:" + string(id)), nil
}
func (f *fakeEngine) JoinRoom(id domain.RoomID) (core.RequestID, error) {
	return f.issue("join:" + string(id)), nil
}
func (f *fakeEngine) DestroyRoom(id domain.RoomID) (core.RequestID, error) {
	return f.issue("destroy:" + string(id)), nil
}

func (f *fakeEngine) KickUser(id domain.UserID) (core.RequestID, error) {
	return f.issue("kick:" + string(id)), nil
}
func (f *fakeEngine) TransferOwner(id domain.UserID) (core.RequestID, error) {
	return f.issue("transfer:" + string(id)), nil
}

func (f *fakeEngine) LeaveRoom() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.leaves++
	return nil
}

func (f *fakeEngine) Subscribe(sink core.EventSink) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sink = sink
}

func (f *fakeEngine) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeEngine) Leaves() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.leaves
}

func (f *fakeEngine) last() core.RequestID {
	f.mu.Lock()
	defer f.mu.Unlock()
	return core.RequestID(fmt.Sprintf("req-%d", f.next))
}

func (f *fakeEngine) push(ev core.EngineEvent) {
	f.mu.Lock()
	sink := f.sink
	f.mu.Unlock()
	sink.OnEngineEvent(ev)
}

func (f *fakeEngine) complete(id core.RequestID, code int) {
	f.push(core.EngineEvent{Type: core.EngineCompletion, RequestID: id, Code: code})
}

type results struct{ ch chan core.Result }

func newResults() *results { return &results{ch: make(chan core.Result, 16)} }

func (r *results) cb(res core.Result) { r.ch <- res }

func (r *results) wait(t *testing.T) core.Result {
	t.Helper()
	select {
	case res := <-r.ch:
		return res
	case <-time.After(2 * time.Second):
		t.Fatal("no callback")
		return core.Result{}
	}
}

func (r *results) none(t *testing.T) {
	t.Helper()
	if n := len(r.ch); n != 0 {
		t.Fatalf("unexpected callbacks: %d", n)
	}
}

type recorder struct {
	mu     sync.Mutex
	events []core.RoomEvent
}

func (r *recorder) OnRoomEvent(ev core.RoomEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) Events() []core.RoomEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]core.RoomEvent(nil), r.events...)
}

func newTestSession(t *testing.T, timeout time.Duration) (*Orchestrator, *fakeEngine) {
	t.Helper()
	eng := &fakeEngine{}
	o := New(eng, Options{RequestTimeout: timeout})
	o.Start(context.Background())
	t.Cleanup(o.Close)
	return o, eng
}

// flush waits until everything posted so far has been handled and its callbacks have run.
func flush(t *testing.T, o *Orchestrator) {
	t.Helper()
	done := make(chan struct{})
	if !o.post(func() { o.exec.Post(func() { close(done) }) }) {
		t.Fatal("session closed")
	}
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("flush timed out")
	}
}

func login(t *testing.T, o *Orchestrator, eng *fakeEngine, user string) {
	t.Helper()
	r := newResults()
	o.Login(1, user, "sig", r.cb)
	flush(t, o)
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("login: %+v", res)
	}
}

func createRoom(t *testing.T, o *Orchestrator, eng *fakeEngine, room string) {
	t.Helper()
	r := newResults()
	o.CreateRoom(room, r.cb)
	flush(t, o)
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("create: %+v", res)
	}
}

func userIDs(ps []domain.Participant) []domain.UserID {
	out := make([]domain.UserID, 0, len(ps))
	for _, p := range ps {
		out = append(out, p.UserID)
	}
	return out
}

func sameIDs(got []domain.UserID, want ...domain.UserID) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestCreateRoomRosterLeaveScenario(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	rec := &recorder{}
	o.RegisterRoomListener(rec)

	login(t, o, eng, "u1")
	if o.State() != domain.Authenticated {
		t.Fatalf("state = %s", o.State())
	}
	createRoom(t, o, eng, "room42")
	if got := userIDs(o.Participants()); !sameIDs(got, "u1") {
		t.Fatalf("roster = %v", got)
	}
	room, _ := o.Room()
	if !room.IsOwner("u1") {
		t.Fatalf("owner = %q", room.OwnerID)
	}

	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u2"})
	flush(t, o)
	if got := userIDs(o.Participants()); !sameIDs(got, "u1", "u2") {
		t.Fatalf("roster = %v", got)
	}

	o.LeaveRoom()
	flush(t, o)
	if n := len(o.Participants()); n != 0 {
		t.Fatalf("roster after leave has %d entries", n)
	}
	if _, ok := o.Room(); ok {
		t.Fatal("room still present after leave")
	}

	o.LeaveRoom()
	flush(t, o)
	if n := eng.Leaves(); n != 1 {
		t.Fatalf("engine leaves = %d, want 1", n)
	}

	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u3"})
	flush(t, o)
	evs := rec.Events()
	if len(evs) != 1 {
		t.Fatalf("listener got %d events, want 1", len(evs))
	}
	if j, ok := evs[0].(core.ParticipantJoined); !ok || j.Participant.UserID != "u2" {
		t.Fatalf("event = %#v", evs[0])
	}
}

func TestRoomOpsRequireAuthentication(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	for name, op := range map[string]func(core.Callback){
		"create":  func(cb core.Callback) { o.CreateRoom("room42", cb) },
		"join":    func(cb core.Callback) { o.JoinRoom("room42", cb) },
		"destroy": func(cb core.Callback) { o.DestroyRoom(cb) },
	} {
		r := newResults()
		op(r.cb)
		res := r.wait(t)
		if !errors.Is(res.Err(), domain.ErrNotAuthenticated) {
			t.Fatalf("%s: result = %+v", name, res)
		}
	}
	if calls := eng.Calls(); len(calls) != 0 {
		t.Fatalf("backend calls = %v", calls)
	}
}

func TestLoginTimeoutDiscardsLateResponse(t *testing.T) {
	o, eng := newTestSession(t, 30*time.Millisecond)
	r := newResults()
	o.Login(1, "u1", "sig", r.cb)

	res := r.wait(t)
	if res.Kind != domain.KindNetworkTimeout || !res.Retryable() {
		t.Fatalf("result = %+v", res)
	}
	if o.State() != domain.LoggedOut {
		t.Fatalf("state = %s", o.State())
	}

	eng.complete(eng.last(), 0)
	flush(t, o)
	r.none(t)
	if o.State() != domain.LoggedOut {
		t.Fatalf("late completion changed state to %s", o.State())
	}
	st := o.Stats()
	if st.Timeouts != 1 || st.Anomalies != 1 || st.Delivered != 1 || st.Received != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDuplicateCompletionIsNotSurfaced(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	r := newResults()
	o.Login(1, "u1", "sig", r.cb)
	flush(t, o)
	id := eng.last()
	eng.complete(id, 0)
	eng.complete(id, 0)
	r.wait(t)
	flush(t, o)
	r.none(t)

	st := o.Stats()
	if st.Received != 2 || st.Delivered != 1 || st.Anomalies != 1 || st.InFlight != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLoginRules(t *testing.T) {
	o, eng := newTestSession(t, time.Second)

	bad := newResults()
	o.Login(1, "u1", "", bad.cb)
	if res := bad.wait(t); res.Kind != domain.KindInvalidCredential || res.Retryable() {
		t.Fatalf("empty sig: %+v", res)
	}

	first := newResults()
	o.Login(1, "u1", "sig", first.cb)
	second := newResults()
	o.Login(1, "u1", "sig", second.cb)
	if res := second.wait(t); !errors.Is(res.Err(), domain.ErrAlreadyInProgress) {
		t.Fatalf("second login: %+v", res)
	}
	eng.complete(eng.last(), 0)
	first.wait(t)

	again := newResults()
	o.Login(1, "u1", "sig", again.cb)
	if res := again.wait(t); !res.OK() {
		t.Fatalf("same user relogin: %+v", res)
	}
	other := newResults()
	o.Login(1, "u2", "sig", other.cb)
	if res := other.wait(t); !errors.Is(res.Err(), domain.ErrAlreadyLoggedIn) {
		t.Fatalf("other user: %+v", res)
	}
	if calls := eng.Calls(); len(calls) != 1 {
		t.Fatalf("backend calls = %v", calls)
	}
}

func TestLoginRejectedByBackend(t *testing.T) {
	tests := []struct {
		name      string
		code      int
		hint      domain.ErrorKind
		want      domain.ErrorKind
		retryable bool
	}{
		{"bad sig", 4001, domain.KindInvalidCredential, domain.KindInvalidCredential, false},
		{"unclassified", 4999, domain.KindNone, domain.KindInvalidCredential, false},
		{"network", 5000, domain.KindNetwork, domain.KindNetwork, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, eng := newTestSession(t, time.Second)
			r := newResults()
			o.Login(1, "u1", "sig", r.cb)
			flush(t, o)
			eng.push(core.EngineEvent{Type: core.EngineCompletion, RequestID: eng.last(), Code: tt.code, Message: "nope", Kind: tt.hint})
			res := r.wait(t)
			if res.Code != tt.code || res.Kind != tt.want || res.Retryable() != tt.retryable {
				t.Fatalf("result = %+v", res)
			}
			if o.State() != domain.LoggedOut || o.UserID() != "" {
				t.Fatalf("state = %s user = %q", o.State(), o.UserID())
			}
		})
	}
}

func TestLogoutCancelsLogin(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	lr := newResults()
	o.Login(1, "u1", "sig", lr.cb)
	flush(t, o)
	id := eng.last()

	out := newResults()
	o.Logout(out.cb)
	if res := lr.wait(t); !errors.Is(res.Err(), domain.ErrCanceled) {
		t.Fatalf("login result = %+v", res)
	}
	if res := out.wait(t); !res.OK() {
		t.Fatalf("logout result = %+v", res)
	}

	eng.complete(id, 0)
	flush(t, o)
	lr.none(t)
	if o.State() != domain.LoggedOut {
		t.Fatalf("state = %s", o.State())
	}
	if st := o.Stats(); st.Anomalies != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestLogoutForcesLeave(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	login(t, o, eng, "u1")
	createRoom(t, o, eng, "room42")

	r := newResults()
	o.Logout(r.cb)
	flush(t, o)
	if o.State() != domain.LoggingOut {
		t.Fatalf("state = %s", o.State())
	}
	if eng.Leaves() != 1 || len(o.Participants()) != 0 {
		t.Fatal("logout did not leave the room")
	}
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("logout = %+v", res)
	}
	if o.State() != domain.LoggedOut {
		t.Fatalf("state = %s", o.State())
	}

	idle := newResults()
	o.Logout(idle.cb)
	if res := idle.wait(t); !res.OK() {
		t.Fatalf("idle logout = %+v", res)
	}
}

func TestLeaveCancelsJoin(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	login(t, o, eng, "u1")

	r := newResults()
	o.JoinRoom("room42", r.cb)
	flush(t, o)
	id := eng.last()
	o.LeaveRoom()
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrCanceled) {
		t.Fatalf("join result = %+v", res)
	}
	if _, ok := o.Room(); ok {
		t.Fatal("half joined room left behind")
	}

	eng.push(core.EngineEvent{Type: core.EngineCompletion, RequestID: id, Roster: []domain.Participant{{UserID: "u2"}}})
	flush(t, o)
	r.none(t)
	if _, ok := o.Room(); ok {
		t.Fatal("late join completion revived the room")
	}
}

func TestRoomAlreadyActive(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	login(t, o, eng, "u1")
	createRoom(t, o, eng, "room42")

	r := newResults()
	o.JoinRoom("room43", r.cb)
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrRoomAlreadyActive) {
		t.Fatalf("result = %+v", res)
	}
}

func TestJoinReplaysEventsNewerThanSnapshot(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	rec := &recorder{}
	o.RegisterRoomListener(rec)
	login(t, o, eng, "u1")

	r := newResults()
	o.JoinRoom("room42", r.cb)
	flush(t, o)
	id := eng.last()

	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u3", Seq: 5})
	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u4", Seq: 7})
	eng.push(core.EngineEvent{
		Type:      core.EngineCompletion,
		RequestID: id,
		RoomID:    "room42",
		OwnerID:   "u2",
		Seq:       6,
		Roster:    []domain.Participant{{UserID: "u1"}, {UserID: "u2"}, {UserID: "u3"}},
	})
	if res := r.wait(t); !res.OK() {
		t.Fatalf("join = %+v", res)
	}
	flush(t, o)
	if got := userIDs(o.Participants()); !sameIDs(got, "u1", "u2", "u3", "u4") {
		t.Fatalf("roster = %v", got)
	}

	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u4", Seq: 7})
	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u2", Seq: 8})
	eng.push(core.EngineEvent{Type: core.EngineNetworkQuality, RoomID: "room42", UserID: "u2", Quality: domain.QualityPoor, Seq: 9})
	flush(t, o)

	evs := rec.Events()
	if len(evs) != 2 {
		t.Fatalf("events = %#v", evs)
	}
	if j, ok := evs[0].(core.ParticipantJoined); !ok || j.Participant.UserID != "u4" {
		t.Fatalf("first event = %#v", evs[0])
	}
	if q, ok := evs[1].(core.NetworkQualityChanged); !ok || q.Quality != domain.QualityPoor {
		t.Fatalf("second event = %#v", evs[1])
	}
	if p, _ := o.Participant("u2"); p.Quality != domain.QualityPoor {
		t.Fatalf("u2 = %+v", p)
	}
	room, _ := o.Room()
	if room.OwnerID != "u2" {
		t.Fatalf("owner = %q", room.OwnerID)
	}
}

func TestTerminalRoomEvents(t *testing.T) {
	tests := []struct {
		typ    core.EngineEventType
		reason string
		want   domain.CloseReason
	}{
		{core.EngineRoomClosed, "owner_left", domain.CloseByBackend},
		{core.EngineRoomClosed, "destroyed", domain.CloseDestroyed},
		{core.EngineOwnerChanged, "", domain.CloseOwnershipTransferred},
		{core.EngineKicked, "kicked", domain.CloseKicked},
	}
	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			o, eng := newTestSession(t, time.Second)
			rec := &recorder{}
			o.RegisterRoomListener(rec)
			login(t, o, eng, "u1")
			createRoom(t, o, eng, "room42")

			eng.push(core.EngineEvent{Type: tt.typ, RoomID: "room42", Reason: tt.reason})
			flush(t, o)

			evs := rec.Events()
			if len(evs) != 1 {
				t.Fatalf("events = %#v", evs)
			}
			closed, ok := evs[0].(core.RoomClosed)
			if !ok || closed.Reason != tt.want || closed.RoomID != "room42" {
				t.Fatalf("event = %#v", evs[0])
			}
			if _, ok := o.Room(); ok {
				t.Fatal("room not torn down")
			}
			if o.State() != domain.Authenticated {
				t.Fatalf("state = %s", o.State())
			}
		})
	}
}

func TestConnectionLostFailsPending(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	rec := &recorder{}
	o.RegisterRoomListener(rec)
	login(t, o, eng, "u1")
	createRoom(t, o, eng, "room42")

	r := newResults()
	o.DestroyRoom(r.cb)
	flush(t, o)
	eng.push(core.EngineEvent{Type: core.EngineConnectionLost, Reason: "eof"})

	res := r.wait(t)
	if res.Kind != domain.KindNetwork || !res.Retryable() {
		t.Fatalf("destroy = %+v", res)
	}
	flush(t, o)
	if o.State() != domain.LoggedOut {
		t.Fatalf("state = %s", o.State())
	}
	evs := rec.Events()
	if len(evs) != 1 {
		t.Fatalf("events = %#v", evs)
	}
	if c, ok := evs[0].(core.RoomClosed); !ok || c.Reason != domain.CloseDisconnected {
		t.Fatalf("event = %#v", evs[0])
	}
}

func TestDestroyRoomOwnerOnly(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	rec := &recorder{}
	o.RegisterRoomListener(rec)
	login(t, o, eng, "u1")

	jr := newResults()
	o.JoinRoom("room7", jr.cb)
	flush(t, o)
	eng.push(core.EngineEvent{Type: core.EngineCompletion, RequestID: eng.last(), OwnerID: "u2",
		Roster: []domain.Participant{{UserID: "u2"}}})
	jr.wait(t)

	denied := newResults()
	o.DestroyRoom(denied.cb)
	if res := denied.wait(t); !errors.Is(res.Err(), domain.ErrNoPrivilege) {
		t.Fatalf("destroy = %+v", res)
	}
	o.LeaveRoom()

	createRoom(t, o, eng, "room42")
	r := newResults()
	o.DestroyRoom(r.cb)
	flush(t, o)
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("destroy = %+v", res)
	}
	if _, ok := o.Room(); ok {
		t.Fatal("room survived destroy")
	}
	if eng.Leaves() != 2 {
		t.Fatalf("engine leaves = %d", eng.Leaves())
	}
	flush(t, o)
	if n := len(rec.Events()); n != 0 {
		t.Fatalf("caller initiated teardown emitted %d events", n)
	}
}

type manualExecutor struct {
	mu  sync.Mutex
	fns []func()
}

func (m *manualExecutor) Post(fn func()) {
	m.mu.Lock()
	m.fns = append(m.fns, fn)
	m.mu.Unlock()
}

func (m *manualExecutor) run() {
	m.mu.Lock()
	fns := m.fns
	m.fns = nil
	m.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func settle(t *testing.T, o *Orchestrator) {
	t.Helper()
	done := make(chan struct{})
	if !o.post(func() { close(done) }) {
		t.Fatal("session closed")
	}
	<-done
}

func TestUnregisteredListenerMissesQueuedEvents(t *testing.T) {
	exec := &manualExecutor{}
	eng := &fakeEngine{}
	o := New(eng, Options{RequestTimeout: time.Second, Executor: exec})
	o.Start(context.Background())
	defer o.Close()

	o.Login(1, "u1", "sig", nil)
	settle(t, o)
	eng.complete(eng.last(), 0)
	o.CreateRoom("room42", nil)
	settle(t, o)
	eng.complete(eng.last(), 0)
	settle(t, o)
	exec.run()

	gone, kept := &recorder{}, &recorder{}
	goneID := o.RegisterRoomListener(gone)
	o.RegisterRoomListener(kept)

	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u2"})
	settle(t, o)
	if !o.UnregisterRoomListener(goneID) {
		t.Fatal("unregister failed")
	}
	if o.UnregisterRoomListener(goneID) {
		t.Fatal("second unregister should report false")
	}
	exec.run()

	if n := len(gone.Events()); n != 0 {
		t.Fatalf("unregistered listener got %d events", n)
	}
	if n := len(kept.Events()); n != 1 {
		t.Fatalf("registered listener got %d events", n)
	}

	// A leave bumps the epoch, so deliveries queued before it are dropped.
	eng.push(core.EngineEvent{Type: core.EngineParticipantLeft, RoomID: "room42", UserID: "u2"})
	o.LeaveRoom()
	settle(t, o)
	exec.run()
	if n := len(kept.Events()); n != 1 {
		t.Fatalf("event delivered after leave, total %d", n)
	}
}

func TestRoomRequestTimeoutLeavesBackend(t *testing.T) {
	for name, op := range map[string]func(o *Orchestrator, cb core.Callback){
		"create": func(o *Orchestrator, cb core.Callback) { o.CreateRoom("room42", cb) },
		"join":   func(o *Orchestrator, cb core.Callback) { o.JoinRoom("room42", cb) },
	} {
		t.Run(name, func(t *testing.T) {
			o, eng := newTestSession(t, 50*time.Millisecond)
			login(t, o, eng, "u1")

			r := newResults()
			op(o, r.cb)
			res := r.wait(t)
			if res.Kind != domain.KindNetworkTimeout || res.Code != domain.CodeTimeout {
				t.Fatalf("result = %+v", res)
			}
			flush(t, o)
			if _, ok := o.Room(); ok {
				t.Fatal("room left behind after timeout")
			}
			if n := eng.Leaves(); n != 1 {
				t.Fatalf("engine leaves = %d, want 1", n)
			}

			eng.push(core.EngineEvent{Type: core.EngineCompletion, RequestID: eng.last(), RoomID: "room42",
				Roster: []domain.Participant{{UserID: "u1"}}})
			flush(t, o)
			r.none(t)
			if _, ok := o.Room(); ok {
				t.Fatal("late completion revived the room")
			}
			if st := o.Stats(); st.Timeouts != 1 || st.Anomalies != 1 || st.InFlight != 0 {
				t.Fatalf("stats = %+v", st)
			}

			again := newResults()
			o.CreateRoom("room43", again.cb)
			flush(t, o)
			eng.complete(eng.last(), 0)
			if res := again.wait(t); !res.OK() {
				t.Fatalf("create after timeout = %+v", res)
			}
		})
	}
}

func TestRoomIDCheckedAfterAuthentication(t *testing.T) {
	o, eng := newTestSession(t, time.Second)

	r := newResults()
	o.CreateRoom("", r.cb)
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrNotAuthenticated) {
		t.Fatalf("logged out = %+v", res)
	}

	login(t, o, eng, "u1")
	o.JoinRoom("", r.cb)
	if res := r.wait(t); res.Kind != domain.KindRoomNotFound {
		t.Fatalf("logged in = %+v", res)
	}
	if calls := eng.Calls(); len(calls) != 1 {
		t.Fatalf("backend calls = %v", calls)
	}
}

func TestKickAndTransferAreOwnerOnly(t *testing.T) {
	o, eng := newTestSession(t, time.Second)

	r := newResults()
	o.KickUser("u2", r.cb)
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrNotAuthenticated) {
		t.Fatalf("logged out kick = %+v", res)
	}
	login(t, o, eng, "u1")
	o.TransferOwner("u2", r.cb)
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrRoomNotFound) {
		t.Fatalf("transfer without room = %+v", res)
	}

	createRoom(t, o, eng, "room42")
	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u2"})
	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u3"})
	flush(t, o)

	for _, target := range []string{"u1", "u9"} {
		o.KickUser(target, r.cb)
		if res := r.wait(t); !errors.Is(res.Err(), domain.ErrParticipantNotFound) {
			t.Fatalf("kick %s = %+v", target, res)
		}
	}

	o.KickUser("u3", r.cb)
	flush(t, o)
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("kick = %+v", res)
	}

	o.TransferOwner("u2", r.cb)
	flush(t, o)
	eng.complete(eng.last(), 0)
	if res := r.wait(t); !res.OK() {
		t.Fatalf("transfer = %+v", res)
	}
	room, ok := o.Room()
	if !ok || room.OwnerID != "u2" || room.State != domain.RoomActive {
		t.Fatalf("room after transfer = %+v %v", room, ok)
	}

	o.KickUser("u2", r.cb)
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrNoPrivilege) {
		t.Fatalf("kick by former owner = %+v", res)
	}
	calls := eng.Calls()
	if got := calls[len(calls)-2:]; got[0] != "kick:u3" || got[1] != "transfer:u2" {
		t.Fatalf("backend calls = %v", calls)
	}
}

func TestLeaveCancelsOwnerRequests(t *testing.T) {
	o, eng := newTestSession(t, time.Second)
	login(t, o, eng, "u1")
	createRoom(t, o, eng, "room42")
	eng.push(core.EngineEvent{Type: core.EngineParticipantJoined, RoomID: "room42", UserID: "u2"})
	flush(t, o)

	r := newResults()
	o.KickUser("u2", r.cb)
	flush(t, o)
	o.LeaveRoom()
	if res := r.wait(t); !errors.Is(res.Err(), domain.ErrCanceled) {
		t.Fatalf("kick = %+v", res)
	}
}
