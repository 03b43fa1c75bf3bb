//go:build linux

package input

/*
#cgo pkg-config: x11 xtst
#include <X11/Xlib.h>
#include <X11/keysym.h>
#include <X11/extensions/XTest.h>
#include <X11/XKBlib.h>
#include <stdlib.h>
#include <string.h>

static Display* input_display = NULL;

static int input_init(const char *display_name) {
	input_display = XOpenDisplay(display_name);
	if (!input_display) return -1;
	return 0;
}

static void input_mouse_move_abs(int x, int y) {
	if (!input_display) return;
	XTestFakeMotionEvent(input_display, DefaultScreen(input_display), x, y, 0);
	XFlush(input_display);
}

static void input_mouse_button(int button, int press) {
	if (!input_display) return;
	XTestFakeButtonEvent(input_display, button, press, 0);
	XFlush(input_display);
}

// Accumulate sub-step scroll deltas
static double scroll_accum_x = 0, scroll_accum_y = 0;

static void input_mouse_scroll(double dx, double dy) {
	if (!input_display) return;

	scroll_accum_y += dy;
	scroll_accum_x += dx;

	// Fire scroll events for each 40px of accumulated delta
	while (scroll_accum_y <= -40) {
		XTestFakeButtonEvent(input_display, 4, True, 0);
		XTestFakeButtonEvent(input_display, 4, False, 0);
		scroll_accum_y += 40;
	}
	while (scroll_accum_y >= 40) {
		XTestFakeButtonEvent(input_display, 5, True, 0);
		XTestFakeButtonEvent(input_display, 5, False, 0);
		scroll_accum_y -= 40;
	}
	while (scroll_accum_x <= -40) {
		XTestFakeButtonEvent(input_display, 6, True, 0);
		XTestFakeButtonEvent(input_display, 6, False, 0);
		scroll_accum_x += 40;
	}
	while (scroll_accum_x >= 40) {
		XTestFakeButtonEvent(input_display, 7, True, 0);
		XTestFakeButtonEvent(input_display, 7, False, 0);
		scroll_accum_x -= 40;
	}
	XFlush(input_display);
}

static void input_key(unsigned int keysym, int press) {
	if (!input_display) return;
	KeyCode kc = XKeysymToKeycode(input_display, keysym);
	if (kc == 0) return;
	XTestFakeKeyEvent(input_display, kc, press, 0);
	XFlush(input_display);
}

static void input_destroy() {
	if (input_display) {
		XCloseDisplay(input_display);
		input_display = NULL;
	}
}
*/
import "C"
import (
	"fmt"
	"unsafe"
)

// xtestBackend drives X11's XTEST extension. XTestFakeMotionEvent takes
// absolute pixel coordinates on the default screen, so MoveAbsolute converts
// the virtual-screen coordinate resolved by Engine back to a pixel position
// with virtualToPixel, using the bounds the backend was created with.
type xtestBackend struct {
	bounds Bounds
}

func NewXTestBackend(displayName string, bounds Bounds) (Backend, error) {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	if C.input_init(cDisplay) != 0 {
		return nil, fmt.Errorf("input: failed to open display %q", displayName)
	}
	return &xtestBackend{bounds: bounds}, nil
}

func (x *xtestBackend) virtualToPixel(v, dim int) int {
	if dim <= 1 {
		return 0
	}
	return v * (dim - 1) / virtualMax
}

func (x *xtestBackend) MoveAbsolute(vx, vy int) {
	px := x.virtualToPixel(vx, x.bounds.Width)
	py := x.virtualToPixel(vy, x.bounds.Height)
	C.input_mouse_move_abs(C.int(px), C.int(py))
}

func (x *xtestBackend) Button(code uint8, pressed bool) {
	press := C.int(0)
	if pressed {
		press = 1
	}
	C.input_mouse_button(C.int(jsButtonToX11(code)), press)
}

func (x *xtestBackend) Wheel(dx, dy float32) {
	C.input_mouse_scroll(C.double(dx), C.double(dy))
}

func (x *xtestBackend) Key(keysym uint, pressed bool, extended bool) {
	press := C.int(0)
	if pressed {
		press = 1
	}
	C.input_key(C.uint(keysym), press)
}

func (x *xtestBackend) Close() {
	C.input_destroy()
}

// SetBounds lets the orchestrator update the backend's pixel frame when the
// capture engine switches monitors, matching Engine.SetBounds.
func (x *xtestBackend) SetBounds(b Bounds) { x.bounds = b }

func jsButtonToX11(button uint8) int {
	switch button {
	case 0:
		return 1 // Left
	case 1:
		return 2 // Middle
	case 2:
		return 3 // Right
	default:
		return 1
	}
}
