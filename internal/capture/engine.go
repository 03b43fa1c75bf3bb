package capture

import (
	"fmt"
	"sync"
	"sync/atomic"

	"rdhost/internal/clock"
	"rdhost/internal/frameslot"
	"rdhost/internal/gpufence"
	"rdhost/internal/texturepool"
)

// Engine owns the capture surface, the texture pool, the target frame
// rate, and the monitor binding; it produces frames into the Frame Slot at
// the target rate.
type Engine struct {
	source MonitorSource
	fence  *gpufence.Fence
	slot   *frameslot.Slot

	// OnResolutionChange is fired (under no locks) after a successful
	// SwitchMonitor so the encoder can be rebuilt for the new dimensions.
	OnResolutionChange func(width, height int)

	captureMu sync.Mutex // guards surface/session lifecycle; held across switches
	monListMu sync.Mutex // guards the monitor list cache

	surface      Surface
	pool         *texturepool.Pool
	monitorIdx   int
	monitors     []MonitorDescriptor
	targetFPS    int64 // atomic
	capturing    int32 // atomic bool
	firstFrame   int32 // atomic bool

	nextFrameTime int64 // microseconds, owned by the arrival callback goroutine

	textureConflicts int64
	framesProduced   int64
	framesDropped    int64
}

// New creates an Engine bound to no monitor yet; call SwitchMonitor to bind
// one before StartCapture.
func New(source MonitorSource, fps int) (*Engine, error) {
	if fps < minFPS || fps > maxFPS {
		fps = 30
	}
	e := &Engine{
		source:     source,
		fence:      gpufence.New(gpufence.NewValueFenceBackend()),
		monitorIdx: -1,
	}
	e.targetFPS = int64(fps)
	e.slot = frameslot.New(func(idx int) {
		if e.pool != nil {
			e.pool.MarkReleased(idx)
		}
	})
	monitors, err := source.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("capture: enumerate monitors: %w", err)
	}
	e.monitors = monitors
	return e, nil
}

func (e *Engine) Slot() *frameslot.Slot { return e.slot }

func (e *Engine) Pool() *texturepool.Pool { return e.pool }

func (e *Engine) Fence() *gpufence.Fence { return e.fence }

// SetFPS accepts 1 <= n <= 240; the next produced frame uses the new
// interval. Returns false on out-of-range without changing state.
func (e *Engine) SetFPS(n int) bool {
	if n < minFPS || n > maxFPS {
		return false
	}
	atomic.StoreInt64(&e.targetFPS, int64(n))
	return true
}

func (e *Engine) GetCurrentFPS() int {
	return int(atomic.LoadInt64(&e.targetFPS))
}

// RefreshHostFPS re-queries the active monitor's current refresh rate.
func (e *Engine) RefreshHostFPS() (int, error) {
	e.monListMu.Lock()
	idx := e.monitorIdx
	e.monListMu.Unlock()
	if idx < 0 {
		return 0, fmt.Errorf("capture: no monitor bound")
	}
	return e.source.CurrentRefreshHz(idx)
}

func (e *Engine) GetCurrentMonitorIndex() int {
	e.monListMu.Lock()
	defer e.monListMu.Unlock()
	return e.monitorIdx
}

func (e *Engine) Monitors() []MonitorDescriptor {
	e.monListMu.Lock()
	defer e.monListMu.Unlock()
	out := make([]MonitorDescriptor, len(e.monitors))
	copy(out, e.monitors)
	return out
}

// SwitchMonitor atomically tears down the capture session, resizes the
// texture pool to the new monitor's dimensions, rebinds, and resumes if
// previously capturing. On failure, the previous session is left intact or
// fully stopped — never partially bound.
func (e *Engine) SwitchMonitor(idx int) error {
	e.captureMu.Lock()
	e.monListMu.Lock()

	if idx < 0 || idx >= len(e.monitors) {
		e.monListMu.Unlock()
		e.captureMu.Unlock()
		return fmt.Errorf("capture: invalid monitor index %d", idx)
	}

	if idx == e.monitorIdx && e.surface != nil {
		// Already on the target: short-circuit.
		e.monListMu.Unlock()
		e.captureMu.Unlock()
		return nil
	}

	wasCapturing := atomic.LoadInt32(&e.capturing) != 0
	atomic.StoreInt32(&e.capturing, 0)

	if e.surface != nil {
		e.surface.Stop()
		e.surface.Close()
		e.surface = nil
	}
	e.slot.Reset()

	mon := e.monitors[idx]
	newSurface, err := e.source.CreateForMonitor(idx)
	if err != nil {
		// Leave fully stopped: no partially-bound state.
		e.monListMu.Unlock()
		e.captureMu.Unlock()
		return fmt.Errorf("capture: create surface for monitor %d: %w", idx, err)
	}

	if e.pool == nil {
		e.pool = texturepool.New(texturepool.DefaultSize, mon.Width, mon.Height)
	} else {
		e.pool.Resize(e.pool.Size(), mon.Width, mon.Height)
	}
	for i := 0; i < e.pool.Size(); i++ {
		e.pool.Set(i, newSurface.NewTexture())
	}

	e.surface = newSurface
	e.monitorIdx = idx
	atomic.StoreInt32(&e.firstFrame, 1)

	if wasCapturing {
		if err := e.startLocked(); err != nil {
			e.monListMu.Unlock()
			e.captureMu.Unlock()
			return fmt.Errorf("capture: resume after switch: %w", err)
		}
	}

	e.monListMu.Unlock()
	e.captureMu.Unlock()

	if e.OnResolutionChange != nil {
		e.OnResolutionChange(mon.Width, mon.Height)
	}
	return nil
}

// StartCapture is idempotent and forces the next produced frame to act as
// a rate-sync anchor.
func (e *Engine) StartCapture() error {
	e.captureMu.Lock()
	defer e.captureMu.Unlock()
	atomic.StoreInt32(&e.firstFrame, 1)
	if atomic.LoadInt32(&e.capturing) != 0 {
		return nil
	}
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	if e.surface == nil {
		return fmt.Errorf("capture: no monitor bound")
	}
	atomic.StoreInt32(&e.capturing, 1)
	return e.surface.Start(e.onArrival)
}

// PauseCapture is idempotent.
func (e *Engine) PauseCapture() {
	e.captureMu.Lock()
	defer e.captureMu.Unlock()
	if atomic.LoadInt32(&e.capturing) == 0 {
		return
	}
	atomic.StoreInt32(&e.capturing, 0)
	if e.surface != nil {
		e.surface.Stop()
	}
}

// onArrival implements the frame production rule of spec §4.3: rate limit
// against the target FPS, reserve a pool texture, copy, fence, and push.
func (e *Engine) onArrival(src interface{}, t int64) {
	if atomic.LoadInt32(&e.capturing) == 0 {
		return
	}
	if src == nil {
		return // silent drop: surface arrival with no backing texture
	}

	iv := int64(1_000_000) / atomic.LoadInt64(&e.targetFPS)

	if atomic.CompareAndSwapInt32(&e.firstFrame, 1, 0) {
		e.nextFrameTime = t + iv
	} else if t < e.nextFrameTime {
		atomic.AddInt64(&e.framesDropped, 1)
		return // rate limiting
	}
	for e.nextFrameTime <= t {
		e.nextFrameTime += iv
	}

	idx, conflict := e.pool.Reserve()
	if conflict {
		atomic.AddInt64(&e.textureConflicts, 1)
	}

	dst := e.pool.Get(idx)
	if err := e.surface.CopyInto(dst, src); err != nil {
		e.pool.MarkReleased(idx)
		atomic.AddInt64(&e.framesDropped, 1)
		return
	}

	ticket := e.fence.Signal()
	e.slot.Push(frameslot.Frame{
		Texture:   dst,
		Timestamp: t,
		Fence:     ticket,
		PoolIndex: idx,
	})
	atomic.AddInt64(&e.framesProduced, 1)
}

// Now is exposed for callers that want a consistent timestamp source
// without importing clock directly.
func Now() int64 { return clock.NowMicros() }

func (e *Engine) TextureConflicts() int64 { return atomic.LoadInt64(&e.textureConflicts) }
func (e *Engine) FramesProduced() int64   { return atomic.LoadInt64(&e.framesProduced) }
func (e *Engine) FramesDropped() int64    { return atomic.LoadInt64(&e.framesDropped) }

// Close tears down the engine entirely: stops the surface, closes it, and
// resets the slot.
func (e *Engine) Close() {
	e.captureMu.Lock()
	defer e.captureMu.Unlock()
	atomic.StoreInt32(&e.capturing, 0)
	if e.surface != nil {
		e.surface.Stop()
		e.surface.Close()
		e.surface = nil
	}
	e.slot.Reset()
}
