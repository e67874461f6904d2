package core

import (
	"testing"

	"github.com/dkeye/meetcore/internal/domain"
)

func TestRosterIdempotentMembership(t *testing.T) {
	r := NewRoster("room42")

	if !r.Add(domain.NewParticipant("u1")) {
		t.Fatal("first add should change membership")
	}
	if r.Add(domain.Participant{UserID: "u1", AudioEnabled: true}) {
		t.Fatal("duplicate add must be a no-op")
	}
	if p, _ := r.Get("u1"); p.AudioEnabled {
		t.Fatal("duplicate add must not overwrite fields")
	}
	if r.Remove("ghost") {
		t.Fatal("removing an absent id must be a no-op")
	}
	if !r.Remove("u1") || r.Len() != 0 {
		t.Fatalf("remove failed, len = %d", r.Len())
	}
}

func TestRosterUpdateInPlace(t *testing.T) {
	r := NewRoster("room42")
	r.Add(domain.NewParticipant("u1"))

	changed := r.Update("u1", func(p *domain.Participant) { p.Quality = domain.QualityPoor })
	if !changed {
		t.Fatal("quality change should report a change")
	}
	if r.Update("u1", func(p *domain.Participant) { p.Quality = domain.QualityPoor }) {
		t.Fatal("same value should not report a change")
	}
	if r.Update("ghost", func(p *domain.Participant) { p.AudioEnabled = true }) {
		t.Fatal("update of absent id must be a no-op")
	}
	if r.Len() != 1 {
		t.Fatalf("updates must not alter membership, len = %d", r.Len())
	}
}

func TestRosterSnapshotSortedCopy(t *testing.T) {
	r := NewRoster("room42")
	r.Reset([]domain.Participant{{UserID: "u3"}, {UserID: "u1"}, {UserID: "u2"}})

	snap := r.Snapshot()
	want := []domain.UserID{"u1", "u2", "u3"}
	if len(snap) != len(want) {
		t.Fatalf("len = %d, want %d", len(snap), len(want))
	}
	for i, id := range want {
		if snap[i].UserID != id {
			t.Fatalf("snap[%d] = %s, want %s", i, snap[i].UserID, id)
		}
	}

	snap[0].AudioEnabled = true
	if p, _ := r.Get("u1"); p.AudioEnabled {
		t.Fatal("snapshot must be a copy")
	}
}
