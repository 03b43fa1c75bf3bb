// Package encoder implements the Video Encoder component (spec §4.4): AV1
// encoding with forced-keyframe support and a periodic key cadence, wrapping
// a chosen backend (hardware preferred). The codec library and the AV1
// encoder options per backend are treated as an abstract, tunable backend
// selection (spec §1) — this package implements the orchestration policy
// only: backend try-order, GOP/keyframe cadence, packet concatenation, and
// latency measurement.
package encoder

import "time"

// KeyInterval forces an I-frame if none has been emitted within this
// window, regardless of GOP position.
const KeyInterval = 2 * time.Second

// Params are the common output parameters applied across every backend.
type Params struct {
	Width       int
	Height      int
	FPS         int
	BitrateKbps int // 20_000 default
	PeakKbps    int // 40_000 default
	GOP         int // 2 * fps
	Threads     int // 1 for hardware, min(4, cores/2) for software
}

// DefaultParams fills in the spec's common output parameters for the given
// geometry: bitrate 20Mbps (peak 40), GOP = 2*fps, zero B-frames (encoded
// implicitly — the Backend contract has no B-frame knob). Params carries no
// preset setting, and DefaultParams leaves Threads at zero.
func DefaultParams(width, height, fps int) Params {
	return Params{
		Width:       width,
		Height:      height,
		FPS:         fps,
		BitrateKbps: 20_000,
		PeakKbps:    40_000,
		GOP:         2 * fps,
	}
}

// Unit is the Encoded Frame Unit of spec §3: an opaque compressed payload,
// its source timestamp, an encode-latency measurement, a monotonic
// frame-id, and a key/non-key flag. frame-id is assigned by Encoder, not
// the backend.
type Unit struct {
	Data       []byte
	Timestamp  int64 // source capture timestamp, microseconds
	EncodeUs   int64
	FrameID    uint32
	IsKey      bool
}

// Backend is the host-supplied encoder contract (spec §6): "given a
// texture reference and a timestamp, produce one or more compressed units
// tagged key/non-key; honor a forced-keyframe request." Packets is a slice
// of independently emitted compressed chunks (a real hardware encoder may
// emit more than one NAL/OBU per submitted picture); the caller concatenates
// them into one Unit's payload.
type Backend interface {
	Name() string
	// Open configures the backend for the given geometry; it is the
	// "try to open" step the selection order relies on.
	Open(p Params) error
	// Encode submits one texture for encoding and returns zero or more
	// emitted packets plus whether any of them carry the key flag. A nil
	// packet slice with no error means no output is ready yet (common right
	// after a resolution/backend reset).
	Encode(texture interface{}, tsMicros int64, forceKey bool) (packets [][]byte, isKey bool, err error)
	// Flush drains any buffered output; used after a reconnect so the
	// caller can discard it and start clean.
	Flush()
	Close()
}

// BackendFactory opens a named backend, returning an error if that backend
// is unavailable on this host (e.g. no matching hardware).
type BackendFactory func() Backend
