// Package input implements the Input Injector of spec §4.6: translating
// normalized client events into host input primitives, re-bindable to
// whichever monitor the Capture Engine is currently bound to.
package input

import (
	"log"
	"sync"
	"sync/atomic"
)

// virtualMax is the top of the absolute virtual-screen coordinate space
// (spec §4.6: "0..65535").
const virtualMax = 65535

// Bounds is the pixel size of the monitor input events are currently
// mapped against.
type Bounds struct {
	Width  int
	Height int
}

// Backend is the host-specific half of the injector: it receives already
//-resolved virtual-screen coordinates and host key codes and fires the
// actual OS input events. The backends in this tree are xtest_linux.go and
// quartz_darwin.go.
type Backend interface {
	MoveAbsolute(vx, vy int)
	Button(code uint8, pressed bool)
	Wheel(dx, dy float32)
	Key(keysym uint, pressed bool, extended bool)
	Close()
}

// Engine holds the coordinate-transform and enable/disable state common to
// every platform; Backend does only the OS call.
type Engine struct {
	backend Backend

	mu     sync.Mutex
	bounds Bounds

	enabled int32 // atomic bool, default on
}

func NewEngine(backend Backend) *Engine {
	e := &Engine{backend: backend}
	atomic.StoreInt32(&e.enabled, 1)
	return e
}

func (e *Engine) SetEnabled(on bool) {
	var v int32
	if on {
		v = 1
	}
	atomic.StoreInt32(&e.enabled, v)
}

func (e *Engine) Enabled() bool { return atomic.LoadInt32(&e.enabled) != 0 }

func (e *Engine) SetBounds(b Bounds) {
	e.mu.Lock()
	e.bounds = b
	e.mu.Unlock()
}

func (e *Engine) boundsSnapshot() Bounds {
	e.mu.Lock()
	defer e.mu.Unlock()
	b := e.bounds
	if b.Width <= 0 {
		b.Width = 1
	}
	if b.Height <= 0 {
		b.Height = 1
	}
	return b
}

func clamp01(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// pixelToVirtual maps a pixel offset within [0, dim-1] onto [0, 65535].
func pixelToVirtual(px, dim int) int {
	if dim <= 1 {
		return 0
	}
	return px * virtualMax / (dim - 1)
}

// MouseMove converts a normalized (x,y) in [0,1]x[0,1] to a pixel position
// on the bound monitor, then to an absolute virtual-screen coordinate.
func (e *Engine) MouseMove(xNorm, yNorm float32) {
	if !e.Enabled() {
		return
	}
	b := e.boundsSnapshot()
	px := int(clamp01(xNorm) * float32(b.Width-1))
	py := int(clamp01(yNorm) * float32(b.Height-1))
	e.backend.MoveAbsolute(pixelToVirtual(px, b.Width), pixelToVirtual(py, b.Height))
}

func (e *Engine) MouseButton(button uint8, pressed bool) {
	if !e.Enabled() {
		return
	}
	e.backend.Button(button, pressed)
}

func (e *Engine) MouseWheel(dx, dy float32) {
	if !e.Enabled() {
		return
	}
	e.backend.Wheel(dx, dy)
}

// Key maps a JavaScript-style key code to the host's virtual-key convention
// and dispatches it. Unknown codes are logged and dropped (spec §4.6).
func (e *Engine) Key(keycode uint16, pressed bool, modifiers uint8) {
	if !e.Enabled() {
		return
	}
	keysym, ok := lookupKeysym(keycode)
	if !ok {
		log.Printf("input: unmapped key code %d", keycode)
		return
	}
	e.backend.Key(keysym, pressed, isExtendedKey(keycode, modifiers))
}

// CenterWiggle sends three consecutive mouse-moves (center, +1px, back) to
// elicit a fresh keyframe after authentication or a monitor switch.
func (e *Engine) CenterWiggle() {
	if !e.Enabled() {
		return
	}
	b := e.boundsSnapshot()
	cx, cy := b.Width/2, b.Height/2
	vcy := pixelToVirtual(cy, b.Height)
	vcx := pixelToVirtual(cx, b.Width)
	vcx1 := pixelToVirtual(minInt(cx+1, b.Width-1), b.Width)
	e.backend.MoveAbsolute(vcx, vcy)
	e.backend.MoveAbsolute(vcx1, vcy)
	e.backend.MoveAbsolute(vcx, vcy)
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (e *Engine) Close() {
	if e.backend != nil {
		e.backend.Close()
	}
}
