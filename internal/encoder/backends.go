package encoder

import "fmt"

// RawProvider is optionally implemented by a texture reference so a
// software backend can read pixels directly instead of going through a
// GPU-specific copy path. Real hardware textures will not implement this;
// hardware backends are expected to pull pixels via their own API instead.
type RawProvider interface {
	Raw() (data []byte, stride int)
}

// unavailableBackend models a hardware backend whose vendor SDK is not
// present on this host. Open always fails, which is exactly what drives
// the fallthrough in Open()'s try-order — the GPU API and vendor SDK are
// treated as abstract per spec §1, so there is nothing to open in this
// reference tree.
type unavailableBackend struct {
	vendor string
}

func NewUnavailableHWBackend(vendor string) Backend { return &unavailableBackend{vendor: vendor} }

func (u *unavailableBackend) Name() string { return "hw-" + u.vendor }
func (u *unavailableBackend) Open(Params) error {
	return fmt.Errorf("hw-%s: vendor SDK not available on this host", u.vendor)
}
func (u *unavailableBackend) Encode(interface{}, int64, bool) ([][]byte, bool, error) {
	return nil, false, fmt.Errorf("hw-%s: not open", u.vendor)
}
func (u *unavailableBackend) Flush() {}
func (u *unavailableBackend) Close() {}

// referenceBackend is a pure-Go software fallback. It does not produce a
// real AV1 bitstream (the codec library is abstract per spec §1); it
// implements the orchestration contract faithfully — one packet per
// picture, the key flag set exactly when asked — using a minimal
// placeholder payload so callers exercising fragmentation, chunk counts,
// and key cadence have real bytes to work with.
type referenceBackend struct {
	params  Params
	frameNo uint32
}

func NewReferenceBackend() Backend { return &referenceBackend{} }

func (r *referenceBackend) Name() string { return "sw-reference" }

func (r *referenceBackend) Open(p Params) error {
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("sw-reference: invalid geometry %dx%d", p.Width, p.Height)
	}
	r.params = p
	r.frameNo = 0
	return nil
}

func (r *referenceBackend) Encode(texture interface{}, tsMicros int64, forceKey bool) ([][]byte, bool, error) {
	if texture == nil {
		return nil, false, fmt.Errorf("sw-reference: nil texture")
	}

	var src []byte
	if rp, ok := texture.(RawProvider); ok {
		src, _ = rp.Raw()
	}

	header := make([]byte, 1)
	if forceKey {
		header[0] = 1
	}
	payload := append(header, src...)
	r.frameNo++

	return [][]byte{payload}, forceKey, nil
}

func (r *referenceBackend) Flush() { r.frameNo = 0 }
func (r *referenceBackend) Close() {}

// fastSWBackend is the "sw-fast" entry: same contract as the reference
// backend, distinguished by name so the try-order and logging reflect a
// real deployment's two-tier software fallback (fast/low-quality first,
// reference/safe last).
type fastSWBackend struct {
	referenceBackend
}

func NewFastSWBackend() Backend { return &fastSWBackend{} }
func (f *fastSWBackend) Name() string { return "sw-fast" }

// DefaultFactories wires the standard backend names to their
// implementations for Open()'s try-order. Hardware vendors are wired to the
// unavailable stub in this reference tree since the vendor SDKs are
// abstract per spec §1; a host with real NVENC/QSV/AMF bindings would
// replace these three entries only.
func DefaultFactories() map[string]BackendFactory {
	return map[string]BackendFactory{
		"hw-nvidia":    func() Backend { return NewUnavailableHWBackend("nvidia") },
		"hw-intel":     func() Backend { return NewUnavailableHWBackend("intel") },
		"hw-amd":       func() Backend { return NewUnavailableHWBackend("amd") },
		"sw-fast":      func() Backend { return NewFastSWBackend() },
		"sw-reference": func() Backend { return NewReferenceBackend() },
	}
}
