//go:build darwin

package platform

// Init on macOS has nothing to start: ScreenCaptureKit captures the running
// host's primary display directly, so the only job here is giving Display a
// non-empty placeholder value for log lines.
func Init(cfg *Config) (func(), error) {
	if cfg.Display == "" {
		cfg.Display = "main"
	}
	return func() {}, nil
}

func SaveTermState()    {}
func RestoreTermState() {}
