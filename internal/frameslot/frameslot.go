// Package frameslot implements the triple-buffer mailbox between the
// capture engine and the encode thread: a lossy single-producer/single-
// consumer handoff of at most one unread frame, with drop accounting and
// pool-index bookkeeping.
package frameslot

import (
	"sync"
	"sync/atomic"
)

// Frame is a captured frame as handed off through the slot. Texture is the
// opaque GPU surface reference; PoolIndex identifies which texturepool slot
// backs it so the pool bit can be released exactly once.
type Frame struct {
	Texture   interface{}
	Timestamp int64 // capture time, microseconds
	Fence     uint64
	PoolIndex int
}

const numCells = 3

type cell struct {
	frame     Frame
	occupied  bool
	readReady bool
}

// Slot is a three-cell mailbox with one read-ready index and a rotating
// write index. Push is non-blocking; Pop waits on a signal channel for a
// bounded duration.
type Slot struct {
	mu    sync.Mutex
	cells [numCells]cell

	readIdx  int // index of the current read-ready cell, -1 if none
	writeIdx int // rotating write cursor

	signal chan struct{}

	drops        int64
	released     func(poolIndex int)
}

// New creates an empty Slot. released, if non-nil, is invoked whenever a
// cell's contents are discarded (overwritten or reset) so callers can clear
// the corresponding texturepool bit; it must not take any lock the caller
// holds (see orchestrator design notes on closures).
func New(released func(poolIndex int)) *Slot {
	s := &Slot{
		signal:   make(chan struct{}, 1),
		readIdx:  -1,
		released: released,
	}
	for i := range s.cells {
		s.cells[i].frame.PoolIndex = -1
	}
	return s
}

// Push selects a write cell distinct from the current read cell, releases
// its prior contents, stores the new frame, and marks it read-ready. If a
// previous read-ready cell existed and is now being overwritten's sibling
// (i.e. was never popped), that counts as a dropped frame.
func (s *Slot) Push(f Frame) {
	s.mu.Lock()

	// Pick a cell distinct from the current read-ready cell.
	w := s.writeIdx
	if w == s.readIdx {
		w = (w + 1) % numCells
	}
	s.writeIdx = (w + 1) % numCells

	prevReadIdx := s.readIdx
	var releasedIdx []int

	// Release whatever this cell held before, if anything.
	if s.cells[w].occupied {
		releasedIdx = append(releasedIdx, s.cells[w].frame.PoolIndex)
	}

	s.cells[w].frame = f
	s.cells[w].occupied = true
	s.cells[w].readReady = true

	// If there was already an unread frame, it is now superseded: the slot
	// holds at most one read-ready cell at a time.
	if prevReadIdx >= 0 && prevReadIdx != w && s.cells[prevReadIdx].readReady {
		s.cells[prevReadIdx].readReady = false
		s.cells[prevReadIdx].occupied = false
		releasedIdx = append(releasedIdx, s.cells[prevReadIdx].frame.PoolIndex)
		atomic.AddInt64(&s.drops, 1)
	}

	s.readIdx = w
	s.mu.Unlock()

	for _, idx := range releasedIdx {
		if s.released != nil && idx >= 0 {
			s.released(idx)
		}
	}

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Pop blocks until the slot is signalled or wake fires, then atomically
// claims the read-ready cell if one exists. There is no timeout. Returns
// ok=false if nothing was ready when it woke (e.g. a shutdown wake).
func (s *Slot) Pop(wake <-chan struct{}) (Frame, bool) {
	select {
	case <-s.signal:
	case <-wake:
	}
	return s.claim()
}

func (s *Slot) claim() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readIdx < 0 || !s.cells[s.readIdx].readReady {
		return Frame{}, false
	}
	f := s.cells[s.readIdx].frame
	s.cells[s.readIdx].readReady = false
	s.readIdx = -1
	return f, true
}

// TryPop is a non-blocking claim, used by tests and by callers that already
// know a signal fired.
func (s *Slot) TryPop() (Frame, bool) {
	return s.claim()
}

// Wait exposes the wake channel so Pop can be composed with an explicit
// shutdown signal (see package docs on cancellation): callers select on
// Slot.Wait() and a shutdown channel.
func (s *Slot) Wait() <-chan struct{} {
	return s.signal
}

// Drops returns the cumulative number of frames that were overwritten
// before being read.
func (s *Slot) Drops() int64 {
	return atomic.LoadInt64(&s.drops)
}

// Reset clears all cells, releasing any held pool indices, and resets
// indices and the drop counter's cell state (the cumulative Drops()
// counter itself is left intact; callers that want a fresh counter should
// construct a new Slot).
func (s *Slot) Reset() {
	s.mu.Lock()
	var releasedIdx []int
	for i := range s.cells {
		if s.cells[i].occupied {
			releasedIdx = append(releasedIdx, s.cells[i].frame.PoolIndex)
		}
		s.cells[i] = cell{frame: Frame{PoolIndex: -1}}
	}
	s.readIdx = -1
	s.writeIdx = 0
	s.mu.Unlock()

	for _, idx := range releasedIdx {
		if s.released != nil && idx >= 0 {
			s.released(idx)
		}
	}

	select {
	case <-s.signal:
	default:
	}
}

// HeldPoolIndices returns the pool indices currently occupying a cell, for
// tests asserting "at most 3 bits set at any instant".
func (s *Slot) HeldPoolIndices() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for i := range s.cells {
		if s.cells[i].occupied {
			out = append(out, s.cells[i].frame.PoolIndex)
		}
	}
	return out
}
