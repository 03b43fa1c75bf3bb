package capture

import (
	"errors"
	"sync"
	"time"
)

var errNoTexture = errors.New("capture: source has no backing texture")

// grabber is the minimal pull-based capture primitive a platform backend
// implements: "grab me the current frame." pollingSurface turns any grabber
// into a push-based Surface by polling it on its own goroutine.
type grabber interface {
	grab() (data []byte, stride int, err error)
	width() int
	height() int
	close()
}

// rawFrame is the arrival-callback payload pollingSurface delivers: a raw
// pixel buffer plus the stride the backend captured it at. Short-lived; the
// engine's onArrival hands it straight to CopyInto before the next poll
// reuses the grabber's internal buffer.
type rawFrame struct {
	data   []byte
	stride int
}

// rgbaTexture is the pool-backed destination CopyInto copies into. It
// implements encoder.RawProvider so software encode backends can read the
// pixels directly.
type rgbaTexture struct {
	mu     sync.Mutex
	data   []byte
	stride int
}

func (t *rgbaTexture) Raw() (data []byte, stride int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.data, t.stride
}

func (t *rgbaTexture) set(data []byte, stride int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if cap(t.data) < len(data) {
		t.data = make([]byte, len(data))
	} else {
		t.data = t.data[:len(data)]
	}
	copy(t.data, data)
	t.stride = stride
}

// pollPeriod is the internal grab rate; the engine's own onArrival rate
// limiting does the real FPS downsampling, so this only needs to be fast
// enough that the highest supported target FPS never waits on it.
const pollPeriod = time.Millisecond * (1000 / 250)

// pollingSurface adapts a pull-based grabber into the push-based Surface
// contract by polling it on an internal goroutine and forwarding each
// successful grab as an arrival callback.
type pollingSurface struct {
	g    grabber
	stop chan struct{}
	wg   sync.WaitGroup

	mu      sync.Mutex
	onArr   func(src interface{}, tsMicros int64)
	running bool
}

func newPollingSurface(g grabber) *pollingSurface {
	return &pollingSurface{g: g}
}

func (s *pollingSurface) Start(onArrival func(src interface{}, tsMicros int64)) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.onArr = onArrival
	s.running = true
	s.stop = make(chan struct{})
	s.mu.Unlock()

	s.wg.Add(1)
	go s.pollLoop()
	return nil
}

func (s *pollingSurface) pollLoop() {
	defer s.wg.Done()
	ticker := time.NewTicker(pollPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			data, stride, err := s.g.grab()
			if err != nil {
				continue
			}
			s.onArr(&rawFrame{data: data, stride: stride}, Now())
		}
	}
}

func (s *pollingSurface) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop := s.stop
	s.mu.Unlock()
	close(stop)
	s.wg.Wait()
}

func (s *pollingSurface) Width() int  { return s.g.width() }
func (s *pollingSurface) Height() int { return s.g.height() }

func (s *pollingSurface) CopyInto(dst, src interface{}) error {
	rf, ok := src.(*rawFrame)
	if !ok || rf == nil {
		return errNoTexture
	}
	tex, ok := dst.(*rgbaTexture)
	if !ok || tex == nil {
		return errNoTexture
	}
	tex.set(rf.data, rf.stride)
	return nil
}

func (s *pollingSurface) NewTexture() interface{} {
	return &rgbaTexture{}
}

func (s *pollingSurface) Close() {
	s.Stop()
	s.g.close()
}
