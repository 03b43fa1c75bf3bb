// Package capture owns the capture surface, the texture pool, the target
// frame rate, and the monitor binding for the Capture Engine (spec §4.3).
// The actual GPU capture mechanism — the "capture surface" — is treated as
// an abstract, host-supplied backend; this package implements only the
// orchestration logic: rate limiting, pool reservation, monitor-switch
// ordering, and resolution-change notification.
package capture

import (
	"time"

	"rdhost/internal/texturepool"
)

// MonitorDescriptor is a stable index within the current enumeration, with
// the metadata the client needs to render a picker.
type MonitorDescriptor struct {
	Index      int
	Width      int
	Height     int
	RefreshHz  int
	Primary    bool
	DeviceName string
}

// Surface is the host-supplied capture backend contract: "for this
// monitor, deliver frame-arrived callbacks with a source texture; let me
// signal/wait for copy completion." One Surface is bound to exactly one
// monitor at a time.
type Surface interface {
	// Start begins delivering arrival callbacks; onArrival is called on the
	// backend's own capture-callback thread with the source texture
	// reference and the arrival timestamp (microseconds).
	Start(onArrival func(src interface{}, tsMicros int64)) error
	// Stop halts delivery; safe to call even if Start was never called.
	Stop()
	Width() int
	Height() int
	// CopyInto copies the source texture into the given destination pool
	// texture under the backend's own multithread lock, flushing the
	// context so the GPU command stream reflects the copy before the fence
	// is signaled. Returns an error if the source has no backing texture
	// (which the caller must treat as a silent drop, not a fatal error).
	CopyInto(dst interface{}, src interface{}) error
	// NewTexture allocates one fresh destination texture sized for this
	// surface's monitor. The engine calls this once per pool slot whenever
	// the pool is (re)sized, so CopyInto always receives an already-
	// allocated destination.
	NewTexture() interface{}
	Close()
}

// MonitorSource enumerates monitors and creates surfaces bound to one of
// them; a single instance is shared by the capture engine across switches.
type MonitorSource interface {
	Enumerate() ([]MonitorDescriptor, error)
	// CreateForMonitor opens a new Surface bound to the monitor at idx.
	CreateForMonitor(idx int) (Surface, error)
	// CurrentRefreshHz re-queries the live refresh rate of monitor idx.
	CurrentRefreshHz(idx int) (int, error)
}

// FenceBackend is the minimal fence contract the capture engine needs: a
// way to signal a ticket after a copy, independent of how the encoder later
// waits on it.
type FenceBackend interface {
	Signal() uint64
}

// TexturePool is the subset of texturepool.Pool the capture engine needs,
// kept as an interface so tests can substitute a fake.
type TexturePool interface {
	Reserve() (idx int, conflict bool)
	MarkReleased(idx int)
	IsInFlight(idx int) bool
	Set(idx int, t texturepool.Texture)
	Get(idx int) texturepool.Texture
	Size() int
	Resize(n, width, height int)
}

const minFPS = 1
const maxFPS = 240

// defaultFrameWait bounds the rate-sync arithmetic; unused directly but
// documents the 8ms Pop budget this engine feeds (spec §5).
const defaultFrameWait = 8 * time.Millisecond
