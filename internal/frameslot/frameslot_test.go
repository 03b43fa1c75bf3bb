package frameslot

import (
	"testing"
	"time"
)

func TestPushPopRoundTrip(t *testing.T) {
	s := New(nil)
	s.Push(Frame{PoolIndex: 0, Timestamp: 100})

	f, ok := s.TryPop()
	if !ok {
		t.Fatal("expected a frame to be ready")
	}
	if f.Timestamp != 100 {
		t.Fatalf("got timestamp %d, want 100", f.Timestamp)
	}

	if _, ok := s.TryPop(); ok {
		t.Fatal("expected no frame ready after claim")
	}
}

func TestPushOverwriteCountsDrop(t *testing.T) {
	var released []int
	s := New(func(i int) { released = append(released, i) })

	s.Push(Frame{PoolIndex: 0})
	s.Push(Frame{PoolIndex: 1}) // overwrites the unread frame from PoolIndex 0

	if got := s.Drops(); got != 1 {
		t.Fatalf("drops = %d, want 1", got)
	}

	f, ok := s.TryPop()
	if !ok || f.PoolIndex != 1 {
		t.Fatalf("expected to read PoolIndex 1, got %+v ok=%v", f, ok)
	}

	found := false
	for _, i := range released {
		if i == 0 {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected pool index 0 to be released, got %v", released)
	}
}

func TestAtMostOneUnreadFrame(t *testing.T) {
	s := New(nil)
	for i := 0; i < 10; i++ {
		s.Push(Frame{PoolIndex: i})
	}
	if got := s.Drops(); got != 9 {
		t.Fatalf("drops = %d, want 9 (9 of 10 pushes overwrote an unread frame)", got)
	}
	f, ok := s.TryPop()
	if !ok || f.PoolIndex != 9 {
		t.Fatalf("expected last pushed frame (9), got %+v ok=%v", f, ok)
	}
}

func TestAtMostThreeCellsOccupied(t *testing.T) {
	s := New(nil)
	for i := 0; i < 20; i++ {
		s.Push(Frame{PoolIndex: i})
		if held := s.HeldPoolIndices(); len(held) > numCells {
			t.Fatalf("held %d pool indices, want at most %d", len(held), numCells)
		}
	}
}

func TestResetReleasesAllCells(t *testing.T) {
	released := make(map[int]bool)
	s := New(func(i int) { released[i] = true })

	s.Push(Frame{PoolIndex: 0})
	s.Push(Frame{PoolIndex: 1})
	s.Reset()

	if _, ok := s.TryPop(); ok {
		t.Fatal("expected no frame ready after Reset")
	}
	// Index 1 was the live cell; index 0 was already released by the
	// overwrite in the second Push. Reset must release whatever remains.
	if !released[1] {
		t.Fatalf("expected pool index 1 to be released by Reset, got %v", released)
	}
}

func TestPopWakesOnPush(t *testing.T) {
	s := New(nil)
	shutdown := make(chan struct{})

	done := make(chan Frame, 1)
	go func() {
		f, ok := s.Pop(shutdown)
		if ok {
			done <- f
		}
	}()

	time.Sleep(10 * time.Millisecond)
	s.Push(Frame{PoolIndex: 3, Timestamp: 42})

	select {
	case f := <-done:
		if f.Timestamp != 42 {
			t.Fatalf("got timestamp %d, want 42", f.Timestamp)
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on Push")
	}
}

func TestPopWakesOnShutdownSignal(t *testing.T) {
	s := New(nil)
	shutdown := make(chan struct{})

	done := make(chan bool, 1)
	go func() {
		_, ok := s.Pop(shutdown)
		done <- ok
	}()

	time.Sleep(10 * time.Millisecond)
	close(shutdown)

	select {
	case ok := <-done:
		if ok {
			t.Fatal("expected no frame to be ready on shutdown wake")
		}
	case <-time.After(time.Second):
		t.Fatal("Pop did not wake on shutdown signal")
	}
}
