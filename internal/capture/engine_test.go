package capture

import (
	"fmt"
	"sync"
	"testing"
	"time"
)

// fakeSurface is an in-memory Surface used to exercise the engine's rate
// limiting and monitor-switch ordering without any real GPU backend.
type fakeSurface struct {
	mu      sync.Mutex
	w, h    int
	onArr   func(src interface{}, ts int64)
	started bool
	stopped bool
	closed  bool
}

func (f *fakeSurface) Start(onArrival func(src interface{}, tsMicros int64)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onArr = onArrival
	f.started = true
	return nil
}

func (f *fakeSurface) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeSurface) Width() int  { return f.w }
func (f *fakeSurface) Height() int { return f.h }

func (f *fakeSurface) CopyInto(dst, src interface{}) error {
	if src == nil {
		return fmt.Errorf("no backing texture")
	}
	return nil
}

func (f *fakeSurface) NewTexture() interface{} { return "tex" }

func (f *fakeSurface) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeSurface) fire(ts int64) {
	f.mu.Lock()
	cb := f.onArr
	f.mu.Unlock()
	if cb != nil {
		cb("tex", ts)
	}
}

type fakeMonitorSource struct {
	mu        sync.Mutex
	monitors  []MonitorDescriptor
	failIndex int // CreateForMonitor fails for this index, -1 to disable
	created   []*fakeSurface
}

func (m *fakeMonitorSource) Enumerate() ([]MonitorDescriptor, error) {
	return m.monitors, nil
}

func (m *fakeMonitorSource) CreateForMonitor(idx int) (Surface, error) {
	if idx == m.failIndex {
		return nil, fmt.Errorf("synthetic failure for monitor %d", idx)
	}
	mon := m.monitors[idx]
	s := &fakeSurface{w: mon.Width, h: mon.Height}
	m.mu.Lock()
	m.created = append(m.created, s)
	m.mu.Unlock()
	return s, nil
}

func (m *fakeMonitorSource) CurrentRefreshHz(idx int) (int, error) {
	return m.monitors[idx].RefreshHz, nil
}

func newTestSource() *fakeMonitorSource {
	return &fakeMonitorSource{
		failIndex: -1,
		monitors: []MonitorDescriptor{
			{Index: 0, Width: 1920, Height: 1080, RefreshHz: 60, Primary: true, DeviceName: "mon0"},
			{Index: 1, Width: 2560, Height: 1440, RefreshHz: 60, DeviceName: "mon1"},
		},
	}
}

func TestSetFPSBoundaries(t *testing.T) {
	src := newTestSource()
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	if e.SetFPS(0) {
		t.Fatal("SetFPS(0) should fail")
	}
	if e.SetFPS(241) {
		t.Fatal("SetFPS(241) should fail")
	}
	if e.GetCurrentFPS() != 30 {
		t.Fatalf("fps changed after rejected SetFPS calls: %d", e.GetCurrentFPS())
	}
	if !e.SetFPS(60) {
		t.Fatal("SetFPS(60) should succeed")
	}
	if e.GetCurrentFPS() != 60 {
		t.Fatalf("fps = %d, want 60", e.GetCurrentFPS())
	}
}

func TestSwitchMonitorInvalidIndex(t *testing.T) {
	src := newTestSource()
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(0); err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(5); err == nil {
		t.Fatal("expected error for out-of-range monitor index")
	}
	if got := e.GetCurrentMonitorIndex(); got != 0 {
		t.Fatalf("monitor index changed on failed switch: %d", got)
	}
}

func TestSwitchMonitorFailureKeepsPreviousIndex(t *testing.T) {
	src := newTestSource()
	src.failIndex = 1
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(0); err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(1); err == nil {
		t.Fatal("expected failure switching to monitor 1")
	}
	if got := e.GetCurrentMonitorIndex(); got != 0 {
		t.Fatalf("monitor index = %d, want 0 (unchanged after failed switch)", got)
	}
}

func TestSwitchMonitorFiresResolutionCallback(t *testing.T) {
	src := newTestSource()
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	var gotW, gotH int
	called := make(chan struct{}, 1)
	e.OnResolutionChange = func(w, h int) {
		gotW, gotH = w, h
		called <- struct{}{}
	}
	if err := e.SwitchMonitor(1); err != nil {
		t.Fatal(err)
	}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("resolution callback not fired")
	}
	if gotW != 2560 || gotH != 1440 {
		t.Fatalf("got %dx%d, want 2560x1440", gotW, gotH)
	}
}

func TestRateLimitingDropsFastArrivals(t *testing.T) {
	src := newTestSource()
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(0); err != nil {
		t.Fatal(err)
	}
	if err := e.StartCapture(); err != nil {
		t.Fatal(err)
	}

	surf := src.created[0]

	// First arrival anchors the rate.
	surf.fire(0)
	// Immediate second arrival at the same timestamp should be dropped.
	surf.fire(0)

	if got := e.FramesProduced(); got != 1 {
		t.Fatalf("framesProduced = %d, want 1", got)
	}
	if got := e.FramesDropped(); got != 1 {
		t.Fatalf("framesDropped = %d, want 1", got)
	}

	// An arrival a full interval later should be accepted.
	surf.fire(1_000_000 / 30)
	if got := e.FramesProduced(); got != 2 {
		t.Fatalf("framesProduced = %d, want 2", got)
	}
}

func TestStartCapturePauseIdempotent(t *testing.T) {
	src := newTestSource()
	e, err := New(src, 30)
	if err != nil {
		t.Fatal(err)
	}
	if err := e.SwitchMonitor(0); err != nil {
		t.Fatal(err)
	}
	if err := e.StartCapture(); err != nil {
		t.Fatal(err)
	}
	if err := e.StartCapture(); err != nil {
		t.Fatal(err)
	}
	e.PauseCapture()
	e.PauseCapture()
}
