package audio

import "testing"

func TestQueueOverflowDropsNewestPush(t *testing.T) {
	q := NewQueue()
	for i := 0; i < MaxQueueDepth; i++ {
		q.Push(Packet{Timestamp: int64(i)})
	}
	if q.Len() != MaxQueueDepth {
		t.Fatalf("len = %d, want %d", q.Len(), MaxQueueDepth)
	}

	// One more push should be dropped, not evict an existing entry.
	q.Push(Packet{Timestamp: 999})
	if q.Len() != MaxQueueDepth {
		t.Fatalf("len after overflow push = %d, want %d", q.Len(), MaxQueueDepth)
	}
	if q.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", q.Dropped())
	}

	first, ok := q.Pop()
	if !ok || first.Timestamp != 0 {
		t.Fatalf("expected oldest packet (ts=0) still present, got %+v ok=%v", first, ok)
	}
}

func TestQueueFIFOOrder(t *testing.T) {
	q := NewQueue()
	q.Push(Packet{Timestamp: 1})
	q.Push(Packet{Timestamp: 2})
	q.Push(Packet{Timestamp: 3})

	for _, want := range []int64{1, 2, 3} {
		p, ok := q.Pop()
		if !ok || p.Timestamp != want {
			t.Fatalf("got %+v ok=%v, want ts=%d", p, ok, want)
		}
	}
	if _, ok := q.Pop(); ok {
		t.Fatal("expected empty queue")
	}
}
