// Package texturepool tracks a fixed array of reusable GPU textures and the
// in-flight bitmask that keeps capture from overwriting a texture still
// owned by the Frame Slot or the encoder.
package texturepool

import "sync"

// DefaultSize covers maximum in-flight frames (capture buffered + slot +
// encoder) for 240 Hz worst case.
const DefaultSize = 8

// Texture is an opaque reference to a GPU-backed surface. The real surface
// object is supplied by the capture backend; this package only tracks which
// pool slot it lives in and whether it is currently borrowed.
type Texture interface{}

// Pool is a fixed-size array of reusable textures with an in-flight bitmask.
// A texture is written by capture only when its bit is clear; the bit is
// set on handoff to the Frame Slot and cleared when the encoder (or a
// dropped-frame path) releases it.
type Pool struct {
	mu       sync.Mutex
	textures []Texture
	inFlight uint64 // bit i set => pool[i] is borrowed
	cursor   int
	width    int
	height   int
}

// New creates a pool of size n (clamped to [1,64] since the in-flight mask
// is a uint64) sized for width x height.
func New(n, width, height int) *Pool {
	if n <= 0 {
		n = DefaultSize
	}
	if n > 64 {
		n = 64
	}
	return &Pool{
		textures: make([]Texture, n),
		width:    width,
		height:   height,
	}
}

func (p *Pool) Size() int { return len(p.textures) }

func (p *Pool) Dims() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// Set installs the backing texture object for pool index i (called once by
// the capture backend after allocating it).
func (p *Pool) Set(i int, t Texture) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.textures) {
		return
	}
	p.textures[i] = t
}

func (p *Pool) Get(i int) Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i < 0 || i >= len(p.textures) {
		return nil
	}
	return p.textures[i]
}

// IsInFlight reports whether pool index i is currently borrowed.
func (p *Pool) IsInFlight(i int) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isInFlightLocked(i)
}

func (p *Pool) isInFlightLocked(i int) bool {
	if i < 0 || i >= len(p.textures) {
		return false
	}
	return p.inFlight&(1<<uint(i)) != 0
}

// Reserve selects the first pool index whose bit is clear, starting from a
// rotating cursor, and marks it in-flight. If every index is in flight, it
// returns the rotating index anyway with conflict=true; the pool keeps no
// conflict count of its own, so counting is left to the caller.
func (p *Pool) Reserve() (idx int, conflict bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.textures)
	for step := 0; step < n; step++ {
		i := (p.cursor + step) % n
		if !p.isInFlightLocked(i) {
			p.inFlight |= 1 << uint(i)
			p.cursor = (i + 1) % n
			return i, false
		}
	}
	i := p.cursor
	p.cursor = (p.cursor + 1) % n
	p.inFlight |= 1 << uint(i)
	return i, true
}

// MarkReleased clears the in-flight bit for i. Idempotent, and a no-op on
// -1 (used as a "no texture held" sentinel by callers).
func (p *Pool) MarkReleased(i int) {
	if i < 0 {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= len(p.textures) {
		return
	}
	p.inFlight &^= 1 << uint(i)
}

// InFlightCount returns the number of in-flight bits currently set: the
// bits held by the frame slot plus whatever the encoder additionally holds.
func (p *Pool) InFlightCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for i := 0; i < len(p.textures); i++ {
		if p.inFlight&(1<<uint(i)) != 0 {
			n++
		}
	}
	return n
}

// Resize discards the current textures and in-flight state and re-sizes the
// pool for a new monitor resolution. Used on monitor switch.
func (p *Pool) Resize(n, width, height int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if n <= 0 {
		n = len(p.textures)
	}
	if n > 64 {
		n = 64
	}
	p.textures = make([]Texture, n)
	p.inFlight = 0
	p.cursor = 0
	p.width = width
	p.height = height
}
