//go:build linux

package capture

import "fmt"

// OpenDefaultSource tries the NvFBC hardware capture path first only when
// experimentalNvFBC is set, then falls back to the XShm software path,
// mirroring encoder.Open's hw-then-sw try-order. Without that flag, XShm is
// the only path tried.
func OpenDefaultSource(displayName string) (MonitorSource, error) {
	if experimentalNvFBC != 0 {
		if src, err := NewNvFBCSource(); err == nil {
			return src, nil
		}
	}
	src, err := NewXshmSource(displayName)
	if err != nil {
		return nil, fmt.Errorf("capture: no capture backend available: %w", err)
	}
	return src, nil
}
