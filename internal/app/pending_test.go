package app

import (
	"errors"
	"testing"
	"time"

	"github.com/dkeye/meetcore/internal/core"
)

func TestPendingTakeExactlyOnce(t *testing.T) {
	pt := NewPendingTable(0, nil)
	if err := pt.Add("r1", RequestLogin, nil); err != nil {
		t.Fatal(err)
	}
	if err := pt.Add("r1", RequestLogin, nil); !errors.Is(err, ErrDuplicateRequest) {
		t.Fatalf("duplicate add err = %v", err)
	}
	if err := pt.Add("", RequestLogin, nil); !errors.Is(err, ErrEmptyRequestID) {
		t.Fatalf("empty id err = %v", err)
	}

	if req, ok := pt.Take("r1"); !ok || req.Kind != RequestLogin {
		t.Fatalf("take = %+v %v", req, ok)
	}
	if _, ok := pt.Take("r1"); ok {
		t.Fatal("second take must fail")
	}
	if _, ok := pt.Cancel("r1"); ok {
		t.Fatal("cancel after take must fail")
	}

	st := pt.Stats()
	if st.Issued != 1 || st.Received != 2 || st.Delivered != 1 || st.Anomalies != 1 || st.InFlight != 0 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPendingExpiry(t *testing.T) {
	expired := make(chan core.RequestID, 1)
	pt := NewPendingTable(20*time.Millisecond, func(id core.RequestID) { expired <- id })
	if err := pt.Add("r1", RequestJoinRoom, nil); err != nil {
		t.Fatal(err)
	}

	var id core.RequestID
	select {
	case id = <-expired:
	case <-time.After(time.Second):
		t.Fatal("timer never fired")
	}
	if _, ok := pt.Expire(id); !ok {
		t.Fatal("expire of a pending id must succeed")
	}
	if _, ok := pt.Take(id); ok {
		t.Fatal("late completion must not resolve")
	}
	st := pt.Stats()
	if st.Timeouts != 1 || st.Anomalies != 1 || st.Delivered != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestPendingTakeStopsTimer(t *testing.T) {
	fired := make(chan core.RequestID, 1)
	pt := NewPendingTable(20*time.Millisecond, func(id core.RequestID) { fired <- id })
	_ = pt.Add("r1", RequestLogin, nil)
	pt.Take("r1")

	select {
	case <-fired:
		t.Fatal("timer fired after take")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestPendingCancelKinds(t *testing.T) {
	pt := NewPendingTable(0, nil)
	_ = pt.Add("login", RequestLogin, nil)
	_ = pt.Add("join", RequestJoinRoom, nil)
	_ = pt.Add("destroy", RequestDestroyRoom, nil)

	got := pt.CancelKinds(RequestJoinRoom, RequestDestroyRoom)
	if len(got) != 2 || got[0].ID != "join" || got[1].ID != "destroy" {
		t.Fatalf("canceled = %+v", got)
	}
	if req, ok := pt.Take("login"); !ok || req.Kind != RequestLogin {
		t.Fatal("login must still be pending")
	}
	if st := pt.Stats(); st.Canceled != 2 || st.InFlight != 0 {
		t.Fatalf("stats = %+v", st)
	}
}
