//go:build linux

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

// platformBackends collects the concrete OS backends the orchestrator needs.
// AudioCapture is nil if no audio device is available — the orchestrator
// treats that as "video only", per spec §7.
type platformBackends struct {
	monitorSource    capture.MonitorSource
	inputBackend     input.Backend
	clipboardBackend clipboard.LocalClipboard
	audioCapture     *audio.AudioCapture
	encoderFactories map[string]encoder.BackendFactory
	encoderOrder     []string
	clipForwarder    *clipboardForwarder
}

func newPlatformBackends(cfg *platform.Config, experimentalNvFBC bool) (*platformBackends, error) {
	capture.SetExperimentalNvFBC(experimentalNvFBC)

	src, err := capture.OpenDefaultSource(cfg.Display)
	if err != nil {
		return nil, fmt.Errorf("capture source: %w", err)
	}

	monitors, err := src.Enumerate()
	if err != nil {
		return nil, fmt.Errorf("enumerate monitors: %w", err)
	}
	bounds := input.Bounds{Width: 1920, Height: 1080}
	if len(monitors) > 0 {
		bounds = input.Bounds{Width: monitors[0].Width, Height: monitors[0].Height}
	}

	inputBackend, err := input.NewXTestBackend(cfg.Display, bounds)
	if err != nil {
		return nil, fmt.Errorf("input backend: %w", err)
	}

	forwarder := &clipboardForwarder{}
	clip, err := clipboard.NewX11ClipboardBackend(cfg.Display, forwarder.notify)
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
