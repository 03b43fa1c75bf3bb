//go:build linux

package capture

import "fmt"

// experimentalNvFBC gates whether a Linux capture factory even attempts the
// nvfbc path ahead of xshm in its try-order, mirroring the hw-then-sw
// fallback shape of encoder.DefaultFactories. NVIDIA's Frame Buffer Capture
// SDK is a proprietary, non-redistributable vendor library; nothing in this
// tree can legally vendor its headers, so this backend always fails to
// open, exactly like encoder.NewUnavailableHWBackend does for the hardware
// encode backends.
var experimentalNvFBC int32

// SetExperimentalNvFBC flips whether the capture factory attempts the
// nvfbc path before falling back to xshm. Off by default since the backend
// can never succeed in this tree.
func SetExperimentalNvFBC(enabled bool) {
	if enabled {
		experimentalNvFBC = 1
	} else {
		experimentalNvFBC = 0
	}
}

// nvfbcSource is a stub MonitorSource for NVIDIA's Frame Buffer Capture
// API: always fails, so a Linux capture factory falls through to xshm. It
// occupies the "try hardware capture first" slot in the Linux factory's
// try-order; see the unavailableBackend precedent in
// internal/encoder/backends.go.
type nvfbcSource struct{}

// NewNvFBCSource always returns a nil MonitorSource and an error.
func NewNvFBCSource() (MonitorSource, error) {
	return nil, fmt.Errorf("nvfbc: vendor SDK not available on this host")
}

func (nvfbcSource) Enumerate() ([]MonitorDescriptor, error) {
	return nil, fmt.Errorf("nvfbc: vendor SDK not available on this host")
}

func (nvfbcSource) CreateForMonitor(idx int) (Surface, error) {
	return nil, fmt.Errorf("nvfbc: vendor SDK not available on this host")
}

func (nvfbcSource) CurrentRefreshHz(idx int) (int, error) {
	return 0, fmt.Errorf("nvfbc: vendor SDK not available on this host")
}
