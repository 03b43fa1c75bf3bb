//go:build linux

package clipboard

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/Xatom.h>
#include <stdlib.h>
#include <string.h>

static Display *clip_display = NULL;
static Window clip_window;
static Atom CLIPBOARD;
static Atom UTF8_STRING;
static Atom TARGETS;
static Atom RDHOST_SEL;
static char *owned_text = NULL;
static int own_len = 0;

static int clip_init(const char *display_name) {
	clip_display = XOpenDisplay(display_name);
	if (!clip_display) return -1;

	CLIPBOARD = XInternAtom(clip_display, "CLIPBOARD", False);
	UTF8_STRING = XInternAtom(clip_display, "UTF8_STRING", False);
	TARGETS = XInternAtom(clip_display, "TARGETS", False);
	RDHOST_SEL = XInternAtom(clip_display, "RDHOST_SEL", False);

	clip_window = XCreateSimpleWindow(clip_display,
		DefaultRootWindow(clip_display),
		0, 0, 1, 1, 0, 0, 0);

	return 0;
}

static void clip_set(const char *text, int len) {
	if (!clip_display) return;

	if (owned_text) free(owned_text);
	owned_text = (char*)malloc(len + 1);
	memcpy(owned_text, text, len);
	owned_text[len] = 0;
	own_len = len;

	XSetSelectionOwner(clip_display, CLIPBOARD, clip_window, CurrentTime);
	XFlush(clip_display);
}

static void clip_request() {
	if (!clip_display) return;
	XConvertSelection(clip_display, CLIPBOARD, UTF8_STRING, RDHOST_SEL,
		clip_window, CurrentTime);
	XFlush(clip_display);
}

// Returns 1 = got clipboard text (out_text/out_len), 2 = served a
// selection request, 0 = other/no event.
static int clip_process_event(char **out_text, int *out_len) {
	XEvent ev;
	if (!XPending(clip_display)) return 0;

	XNextEvent(clip_display, &ev);

	if (ev.type == SelectionNotify) {
		if (ev.xselection.property == None) return 0;

		Atom type;
		int format;
		unsigned long nitems, bytes_after;
		unsigned char *data = NULL;

		XGetWindowProperty(clip_display, clip_window, RDHOST_SEL,
			0, 1024*1024, True, AnyPropertyType,
			&type, &format, &nitems, &bytes_after, &data);

		if (data && nitems > 0) {
			*out_text = (char*)malloc(nitems + 1);
			memcpy(*out_text, data, nitems);
			(*out_text)[nitems] = 0;
			*out_len = (int)nitems;
			XFree(data);
			return 1;
		}
		if (data) XFree(data);
		return 0;
	}

	if (ev.type == SelectionRequest) {
		XSelectionRequestEvent *req = &ev.xselectionrequest;
		XSelectionEvent resp;
		memset(&resp, 0, sizeof(resp));
		resp.type = SelectionNotify;
		resp.requestor = req->requestor;
		resp.selection = req->selection;
		resp.target = req->target;
		resp.time = req->time;
		resp.property = None;

		if (req->target == TARGETS) {
			Atom targets[] = { TARGETS, UTF8_STRING, XA_STRING };
			XChangeProperty(clip_display, req->requestor, req->property,
				XA_ATOM, 32, PropModeReplace,
				(unsigned char*)targets, 3);
			resp.property = req->property;
		} else if ((req->target == UTF8_STRING || req->target == XA_STRING) && owned_text) {
			XChangeProperty(clip_display, req->requestor, req->property,
				req->target, 8, PropModeReplace,
				(unsigned char*)owned_text, own_len);
			resp.property = req->property;
		}

		XSendEvent(clip_display, req->requestor, False, 0, (XEvent*)&resp);
		XFlush(clip_display);
		return 2;
	}

	if (ev.type == SelectionClear) {
		if (owned_text) {
			free(owned_text);
			owned_text = NULL;
			own_len = 0;
		}
	}

	return 0;
}

static int clip_we_own() {
	if (!clip_display) return 0;
	return XGetSelectionOwner(clip_display, CLIPBOARD) == clip_window ? 1 : 0;
}

static void clip_destroy() {
	if (!clip_display) return;
	if (owned_text) free(owned_text);
	XDestroyWindow(clip_display, clip_window);
	XCloseDisplay(clip_display);
	clip_display = NULL;
}
*/
import "C"
import (
	"fmt"
	"time"
	"unsafe"
)

// X11ClipboardBackend implements LocalClipboard by owning the CLIPBOARD
// selection window and polling for changes, the same pattern the teacher's
// flat main package used before ownership of this logic moved here.
type X11ClipboardBackend struct {
	lastContent string
	onChange    func(text string)
}

func NewX11ClipboardBackend(displayName string, onChange func(text string)) (*X11ClipboardBackend, error) {
	cDisplay := C.CString(displayName)
	defer C.free(unsafe.Pointer(cDisplay))

	if C.clip_init(cDisplay) != 0 {
		return nil, fmt.Errorf("clipboard: failed to open display %q", displayName)
	}
	return &X11ClipboardBackend{onChange: onChange}, nil
}

func (c *X11ClipboardBackend) SetFromClient(text string) {
	c.lastContent = text
	cText := C.CString(text)
	defer C.free(unsafe.Pointer(cText))
	C.clip_set(cText, C.int(len(text)))
}

func (c *X11ClipboardBackend) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			for {
				var outText *C.char
				var outLen C.int
				result := C.clip_process_event(&outText, &outLen)
				if result == 0 {
					break
				}
				if result == 1 && outText != nil {
					text := C.GoStringN(outText, outLen)
					C.free(unsafe.Pointer(outText))
					if text != c.lastContent {
						c.lastContent = text
						if c.onChange != nil {
							c.onChange(text)
						}
					}
				}
			}

			if C.clip_we_own() == 0 {
				C.clip_request()
			}
		}
	}
}

func (c *X11ClipboardBackend) Close() {
	C.clip_destroy()
}
