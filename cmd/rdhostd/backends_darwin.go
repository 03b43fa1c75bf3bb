//go:build darwin

package main

import (
	"fmt"

	"rdhost/internal/audio"
	"rdhost/internal/capture"
	"rdhost/internal/clipboard"
	"rdhost/internal/encoder"
	"rdhost/internal/input"
	"rdhost/internal/platform"
)

type platformBackends struct {
	monitorSource    capture.MonitorSource
	inputBackend     input.Backend
	clipboardBackend clipboard.LocalClipboard
	audioCapture     *audio.AudioCapture
	encoderFactories map[string]encoder.BackendFactory
	encoderOrder     []string
	clipForwarder    *clipboardForwarder
}

// experimentalNvFBC is accepted for flag-surface parity with Linux but has
// no effect here: there is no NVFBC backend on macOS.
func newPlatformBackends(cfg *platform.Config, experimentalNvFBC bool) (*platformBackends, error) {
	src, err := capture.OpenDefaultSource(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("capture source: %w", err)
	}

	inputBackend, err := input.NewQuartzBackend(input.Bounds{Width: 1920, Height: 1080})
	if err != nil {
		return nil, fmt.Errorf("input backend: %w", err)
	}

	forwarder := &clipboardForwarder{}
	clip, err := clipboard.NewNSClipboardBackend(forwarder.notify)
	if err != nil {
		return nil, fmt.Errorf("clipboard backend: %w", err)
	}

	ac, err := audio.NewAudioCapture()
	if err != nil {
		ac = nil
	}

	return &platformBackends{
		monitorSource:    src,
		inputBackend:     inputBackend,
		clipboardBackend: clip,
		audioCapture:     ac,
		encoderFactories: encoder.DefaultFactories(),
		encoderOrder:     encoder.DefaultBackendOrder,
		clipForwarder:    forwarder,
	}, nil
}
