package app

import (
	"sync"
	"testing"
	"time"
)

func TestDispatcherRunsInOrder(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 100; i++ {
		d.Post(func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	d.Post(func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher stalled")
	}
	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("got[%d] = %d", i, v)
		}
	}
}

func TestDispatcherReentrantPost(t *testing.T) {
	d := NewDispatcher()
	defer d.Close()

	done := make(chan struct{})
	d.Post(func() {
		// posting from a callback must not block
		d.Post(func() { close(done) })
	})
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("nested post never ran")
	}
}

func TestDispatcherSurvivesPanicAndDrainsOnClose(t *testing.T) {
	d := NewDispatcher()
	ran := 0
	d.Post(func() { panic("boom") })
	d.Post(func() { ran++ })
	d.Close()
	if ran != 1 {
		t.Fatalf("ran = %d", ran)
	}

	d.Post(func() { ran++ })
	d.Close()
	if ran != 1 {
		t.Fatal("post after close must be dropped")
	}
}
