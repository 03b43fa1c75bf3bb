//go:build linux

package capture

/*
#cgo pkg-config: x11 xext xfixes xinerama
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <X11/extensions/XShm.h>
#include <X11/extensions/Xfixes.h>
#include <X11/extensions/Xinerama.h>
#include <sys/ipc.h>
#include <sys/shm.h>
#include <stdlib.h>
#include <string.h>

// ---------------------------------------------------------------------------
// XShm capturer: grabs the whole display into shared memory; per-monitor
// crops are taken out of that buffer in Go (see xshmGrabber.grab below).
// ---------------------------------------------------------------------------

typedef struct {
	Display *display;
	Window root;
	XShmSegmentInfo shminfo;
	XImage *image;
	int width;
	int height;
} XShmCapturer;

static XShmCapturer* xshm_init(const char *display_name) {
	XShmCapturer *c = (XShmCapturer*)calloc(1, sizeof(XShmCapturer));
	if (!c) return NULL;

	c->display = XOpenDisplay(display_name);
	if (!c->display) { free(c); return NULL; }

	int screen = DefaultScreen(c->display);
	c->root = RootWindow(c->display, screen);
	c->width = DisplayWidth(c->display, screen);
	c->height = DisplayHeight(c->display, screen);

	c->image = XShmCreateImage(c->display,
		DefaultVisual(c->display, screen),
		DefaultDepth(c->display, screen),
		ZPixmap, NULL, &c->shminfo,
		c->width, c->height);
	if (!c->image) {
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	c->shminfo.shmid = shmget(IPC_PRIVATE,
		c->image->bytes_per_line * c->image->height,
		IPC_CREAT | 0600);
	if (c->shminfo.shmid < 0) {
		XDestroyImage(c->image);
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	c->shminfo.shmaddr = c->image->data = (char*)shmat(c->shminfo.shmid, NULL, 0);
	c->shminfo.readOnly = False;

	if (!XShmAttach(c->display, &c->shminfo)) {
		shmdt(c->shminfo.shmaddr);
		shmctl(c->shminfo.shmid, IPC_RMID, NULL);
		XDestroyImage(c->image);
		XCloseDisplay(c->display);
		free(c);
		return NULL;
	}

	// Mark for removal so it's cleaned up when we detach
	shmctl(c->shminfo.shmid, IPC_RMID, NULL);

	return c;
}

static int xshm_grab(XShmCapturer *c) {
	if (!XShmGetImage(c->display, c->root, c->image, 0, 0, AllPlanes)) {
		return -1;
	}
	XSync(c->display, False);
	return 0;
}

static void xshm_composite_cursor(XShmCapturer *c) {
	XFixesCursorImage *cursor = XFixesGetCursorImage(c->display);
	if (!cursor) return;

	int cx = cursor->x - cursor->xhot;
	int cy = cursor->y - cursor->yhot;

	for (int y = 0; y < (int)cursor->height; y++) {
		int dy = cy + y;
		if (dy < 0 || dy >= c->height) continue;
		for (int x = 0; x < (int)cursor->width; x++) {
			int dx = cx + x;
			if (dx < 0 || dx >= c->width) continue;

			unsigned long pixel = cursor->pixels[y * cursor->width + x];
			unsigned char a = (pixel >> 24) & 0xFF;
			if (a == 0) continue;

			unsigned char cr = (pixel >> 0) & 0xFF;
			unsigned char cg = (pixel >> 8) & 0xFF;
			unsigned char cb = (pixel >> 16) & 0xFF;

			int offset = dy * c->image->bytes_per_line + dx * 4;
			unsigned char *dst = (unsigned char*)c->image->data + offset;

			if (a == 255) {
				dst[0] = cb;
				dst[1] = cg;
				dst[2] = cr;
			} else {
				dst[0] = (cb * a + dst[0] * (255 - a)) / 255;
				dst[1] = (cg * a + dst[1] * (255 - a)) / 255;
				dst[2] = (cr * a + dst[2] * (255 - a)) / 255;
			}
		}
	}
	XFree(cursor);
}

static void xshm_destroy(XShmCapturer *c) {
	if (!c) return;
	XShmDetach(c->display, &c->shminfo);
	shmdt(c->shminfo.shmaddr);
	XDestroyImage(c->image);
	XCloseDisplay(c->display);
	free(c);
}

// xinerama_screen mirrors XineramaScreenInfo's fields without exposing the
// Xinerama header types to cgo call sites in Go.
typedef struct {
	int x, y, width, height;
} xinerama_screen;

// xinerama_enumerate queries the Xinerama screens for display_name into out
// (caller-allocated, max capacity cap) and returns the count, or -1 if
// Xinerama is unavailable (single-head X server, or extension missing).
static int xinerama_enumerate(const char *display_name, xinerama_screen *out, int cap) {
	Display *d = XOpenDisplay(display_name);
	if (!d) return -1;

	int event_base, error_base;
	if (!XineramaQueryExtension(d, &event_base, &error_base) || !XineramaIsActive(d)) {
		XCloseDisplay(d);
		return -1;
	}

	int n = 0;
	XineramaScreenInfo *screens = XineramaQueryScreens(d, &n);
	if (!screens) {
		XCloseDisplay(d);
		return -1;
	}
	if (n > cap) n = cap;
	for (int i = 0; i < n; i++) {
		out[i].x = screens[i].x_org;
		out[i].y = screens[i].y_org;
		out[i].width = screens[i].width;
		out[i].height = screens[i].height;
	}
	XFree(screens);
	XCloseDisplay(d);
	return n;
}
*/
import "C"
import (
	"fmt"
	"sync"
	"unsafe"
)

const maxXineramaScreens = 32

// xineramaRect is a monitor rectangle within the full X display, in display
// pixel coordinates.
type xineramaRect struct {
	x, y, w, h int
}

// enumerateXineramaRects queries Xinerama for the physical monitor layout,
// falling back to one rect covering the whole display when Xinerama is
// unavailable (common on single-head VMs and some window managers).
func enumerateXineramaRects(displayName string, fullW, fullH int) []xineramaRect {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	var screens [maxXineramaScreens]C.xinerama_screen
	n := C.xinerama_enumerate(cDisplay, &screens[0], C.int(maxXineramaScreens))
	if n <= 0 {
		return []xineramaRect{{x: 0, y: 0, w: fullW, h: fullH}}
	}
	rects := make([]xineramaRect, 0, int(n))
	for i := 0; i < int(n); i++ {
		s := screens[i]
		rects = append(rects, xineramaRect{x: int(s.x), y: int(s.y), w: int(s.width), h: int(s.height)})
	}
	return rects
}

// xshmDisplay owns the single shared-memory full-display capture used by
// every monitor's grabber; each xshmGrabber crops its own rectangle out of
// the shared buffer rather than grabbing the display once per monitor.
type xshmDisplay struct {
	mu sync.Mutex
	c  *C.XShmCapturer
}

func openXshmDisplay(displayName string) (*xshmDisplay, error) {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	c := C.xshm_init(cDisplay)
	if c == nil {
		return nil, fmt.Errorf("capture: XShm init failed on display %q", displayName)
	}
	return &xshmDisplay{c: c}, nil
}

func (d *xshmDisplay) dims() (int, int) {
	return int(d.c.width), int(d.c.height)
}

// grabFull refreshes the shared full-display image and composites the
// cursor into it, returning the raw BGRA buffer and stride.
func (d *xshmDisplay) grabFull() ([]byte, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if C.xshm_grab(d.c) != 0 {
		return nil, 0, fmt.Errorf("capture: XShmGetImage failed")
	}
	C.xshm_composite_cursor(d.c)
	stride := int(d.c.image.bytes_per_line)
	size := stride * int(d.c.height)
	return C.GoBytes(unsafe.Pointer(d.c.image.data), C.int(size)), stride, nil
}

func (d *xshmDisplay) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	C.xshm_destroy(d.c)
}

// xshmGrabber implements grabber for one monitor rect, cropping it out of
// the shared full-display XShm buffer on every grab.
type xshmGrabber struct {
	display *xshmDisplay
	rect    xineramaRect
	crop    []byte // reused scratch buffer, BGRA
	release func() // decrements the display's refcount
}

func (g *xshmGrabber) grab() (data []byte, stride int, err error) {
	full, fullStride, err := g.display.grabFull()
	if err != nil {
		return nil, 0, err
	}
	outStride := g.rect.w * 4
	if cap(g.crop) < outStride*g.rect.h {
		g.crop = make([]byte, outStride*g.rect.h)
	} else {
		g.crop = g.crop[:outStride*g.rect.h]
	}
	for row := 0; row < g.rect.h; row++ {
		srcOff := (g.rect.y+row)*fullStride + g.rect.x*4
		dstOff := row * outStride
		copy(g.crop[dstOff:dstOff+outStride], full[srcOff:srcOff+outStride])
	}
	return g.crop, outStride, nil
}

func (g *xshmGrabber) width() int  { return g.rect.w }
func (g *xshmGrabber) height() int { return g.rect.h }
func (g *xshmGrabber) close() {
	if g.release != nil {
		g.release()
	}
}

// xshmSource is the Linux software-capture MonitorSource: one shared XShm
// display grab, cropped per monitor via Xinerama-reported rectangles.
type xshmSource struct {
	displayName string

	mu       sync.Mutex
	rects    []xineramaRect
	refCount int
	display  *xshmDisplay
}

// NewXshmSource opens the named X display once just to learn its dimensions
// and Xinerama layout; the real capture display handle is opened lazily on
// the first CreateForMonitor and shared across all bound monitors.
func NewXshmSource(displayName string) (MonitorSource, error) {
	d, err := openXshmDisplay(displayName)
	if err != nil {
		return nil, err
	}
	fullW, fullH := d.dims()
	d.close()

	return &xshmSource{
		displayName: displayName,
		rects:       enumerateXineramaRects(displayName, fullW, fullH),
	}, nil
}

func (s *xshmSource) Enumerate() ([]MonitorDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]MonitorDescriptor, len(s.rects))
	for i, r := range s.rects {
		out[i] = MonitorDescriptor{
			Index:      i,
			Width:      r.w,
			Height:     r.h,
			RefreshHz:  60,
			Primary:    i == 0,
			DeviceName: fmt.Sprintf("xshm-%d", i),
		}
	}
	return out, nil
}

func (s *xshmSource) CreateForMonitor(idx int) (Surface, error) {
	s.mu.Lock()
	if idx < 0 || idx >= len(s.rects) {
		s.mu.Unlock()
		return nil, fmt.Errorf("capture: invalid monitor index %d", idx)
	}
	rect := s.rects[idx]
	if s.display == nil {
		d, err := openXshmDisplay(s.displayName)
		if err != nil {
			s.mu.Unlock()
			return nil, err
		}
		s.display = d
	}
	s.refCount++
	display := s.display
	s.mu.Unlock()

	g := &xshmGrabber{
		display: display,
		rect:    rect,
		release: func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			s.refCount--
			if s.refCount <= 0 && s.display != nil {
				s.display.close()
				s.display = nil
			}
		},
	}
	return newPollingSurface(g), nil
}

func (s *xshmSource) CurrentRefreshHz(idx int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if idx < 0 || idx >= len(s.rects) {
		return 0, fmt.Errorf("capture: invalid monitor index %d", idx)
	}
	return 60, nil
}
