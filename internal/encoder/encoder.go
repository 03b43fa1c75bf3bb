package encoder

import (
	"fmt"
	"sync/atomic"
	"time"
)

// DefaultBackendOrder is the try-order of spec §4.4: hardware vendors
// first, then software, cheapest-to-open first.
var DefaultBackendOrder = []string{"hw-nvidia", "hw-intel", "hw-amd", "sw-fast", "sw-reference"}

// Encoder transforms pool textures into compressed frame units. It owns the
// key-cadence timer and the forced-keyframe flag; the chosen Backend does
// the actual compression.
type Encoder struct {
	backend     Backend
	backendName string
	params      Params

	lastKeyTime   time.Time
	needsKeyframe int32 // atomic bool
	nextFrameID   uint32
}

// Open tries each factory in order and keeps the first that opens
// successfully.
func Open(params Params, factories map[string]BackendFactory, order []string) (*Encoder, error) {
	if order == nil {
		order = DefaultBackendOrder
	}
	var lastErr error
	for _, name := range order {
		f, ok := factories[name]
		if !ok {
			continue
		}
		b := f()
		if err := b.Open(params); err != nil {
			lastErr = fmt.Errorf("%s: %w", name, err)
			continue
		}
		return &Encoder{
			backend:     b,
			backendName: name,
			params:      params,
			lastKeyTime: time.Now(),
		}, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no backend available")
	}
	return nil, fmt.Errorf("encoder: open failed: %w", lastErr)
}

func (e *Encoder) BackendName() string { return e.backendName }

// RequestKeyframe sets the needs-keyframe flag; the next Encode call forces
// an I-frame.
func (e *Encoder) RequestKeyframe() {
	atomic.StoreInt32(&e.needsKeyframe, 1)
}

// Encode submits one texture. Picture type is I when force_key is true
// (either by explicit request or because the key cadence elapsed). Every
// stream's first frame is a keyframe: callers should call RequestKeyframe
// once right after Open (or rely on the cadence timer, whichever is
// simpler for the call site) — the orchestrator does the former.
func (e *Encoder) Encode(texture interface{}, tsMicros int64) (*Unit, error) {
	force := atomic.CompareAndSwapInt32(&e.needsKeyframe, 1, 0)
	if !force && time.Since(e.lastKeyTime) >= KeyInterval {
		force = true
	}

	start := time.Now()
	packets, isKey, err := e.backend.Encode(texture, tsMicros, force)
	encodeUs := time.Since(start).Microseconds()
	if err != nil {
		return nil, fmt.Errorf("encoder: encode failed: %w", err)
	}
	if len(packets) == 0 {
		return nil, nil // drained with no output is not an error
	}

	var payload []byte
	for _, p := range packets {
		payload = append(payload, p...)
	}

	if isKey {
		e.lastKeyTime = time.Now()
	}

	id := e.nextFrameID
	e.nextFrameID++

	return &Unit{
		Data:      payload,
		Timestamp: tsMicros,
		EncodeUs:  encodeUs,
		FrameID:   id,
		IsKey:     isKey,
	}, nil
}

// Flush drains the encoder and resets the keyframe timer so the first
// post-reconnect frame is forced to an IDR via the cadence reset combined
// with an explicit RequestKeyframe from the caller.
func (e *Encoder) Flush() {
	e.backend.Flush()
	e.lastKeyTime = time.Time{} // force next Encode to see an elapsed cadence
}

func (e *Encoder) Close() {
	e.backend.Close()
}
