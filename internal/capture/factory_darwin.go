//go:build darwin

package capture

// OpenDefaultSource opens the ScreenCaptureKit MonitorSource, the only
// macOS capture backend this tree implements.
func OpenDefaultSource(displayName string) (MonitorSource, error) {
	return NewSckSource()
}
