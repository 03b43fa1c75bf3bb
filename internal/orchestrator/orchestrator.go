// Package orchestrator wires the capture engine, encoder, audio capture,
// input injector, and clipboard bridge to the transport layer, and runs the
// encode/audio/stats threads described in spec §5.
package orchestrator

import (
	crypto_tls "crypto/tls"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/webrtc/v4"

	"rdhost/internal/audio"
	"rdhost/internal/capture"
	"rdhost/internal/clipboard"
	"rdhost/internal/credential"
	"rdhost/internal/encoder"
	"rdhost/internal/input"
	"rdhost/internal/transport"
)

// fenceWaitTimeout bounds the encoder-side wait for a capture-side copy to
// retire (spec §5: "≤16 ms for encoder-side copy").
const fenceWaitTimeout = 16 * time.Millisecond

// statsPeriod is the stats thread's 1 Hz sample rate (spec §5).
const statsPeriod = time.Second

// Config collects every host-supplied backend the orchestrator wires
// together. Exactly one of each is expected per process; platform factory
// files (cmd/rdhostd) construct these from real OS backends.
type Config struct {
	Addr           string
	ChunkSize      int
	TurnConfigPath string
	ICEServers     []webrtc.ICEServer
	TLSConfig      *crypto_tls.Config
	InitialFPS     int

	MonitorSource    capture.MonitorSource
	InputBackend     input.Backend
	ClipboardBackend clipboard.LocalClipboard
	AudioCapture     *audio.AudioCapture // nil if unavailable on this host
	Credentials      *credential.Store

	EncoderFactories map[string]encoder.BackendFactory
	EncoderOrder     []string
}

// Orchestrator owns every long-lived component and thread described in
// spec §5 except the HTTP accept loop itself, which transport.Server runs.
type Orchestrator struct {
	cfg Config

	transportSrv *transport.Server
	captureEng   *capture.Engine
	inputEng     *input.Engine
	clipBridge   *clipboard.Bridge
	audioQueue   *audio.Queue

	stop chan struct{}

	mu      sync.Mutex
	session *transport.Session
	enc     *encoder.Encoder

	framesDropped   int64
	bufferOverflows int64
	sendFailures    int64
}

// New builds every component but starts nothing; call Run to start serving.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.InitialFPS <= 0 {
		cfg.InitialFPS = 30
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = transport.ChunkSizeWAN
	}

	captureEng, err := capture.New(cfg.MonitorSource, cfg.InitialFPS)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: capture engine: %w", err)
	}

	o := &Orchestrator{
		cfg:        cfg,
		captureEng: captureEng,
		inputEng:   input.NewEngine(cfg.InputBackend),
		audioQueue: audio.NewQueue(),
		stop:       make(chan struct{}),
	}
	o.clipBridge = clipboard.NewBridge(cfg.ClipboardBackend, clipboard.Sender{
		SendText:  o.sendClipboardText,
		SendImage: o.sendClipboardImage,
	})
	captureEng.OnResolutionChange = o.onResolutionChange

	// Bind monitor 0 immediately (paused) so HostInfo/MonitorList are
	// meaningful as soon as a client authenticates, and so the encoder
	// exists before the first frame arrives.
	if monitors := captureEng.Monitors(); len(monitors) > 0 {
		if err := captureEng.SwitchMonitor(0); err != nil {
			return nil, fmt.Errorf("orchestrator: initial monitor bind: %w", err)
		}
	}

	srv, err := transport.NewServer(transport.Config{
		Addr:           cfg.Addr,
		ChunkSize:      cfg.ChunkSize,
		ICEServers:     cfg.ICEServers,
		TurnConfigPath: cfg.TurnConfigPath,
		TLSConfig:      cfg.TLSConfig,
		NewHooks:       o.newHooks,
		OnSession:      o.onSession,
	})
	if err != nil {
		return nil, fmt.Errorf("orchestrator: transport server: %w", err)
	}
	o.transportSrv = srv

	return o, nil
}

func (o *Orchestrator) newHooks() transport.SessionHooks {
	return transport.SessionHooks{
		Authenticator: o.cfg.Credentials,
		HostFPS:       func() uint16 { return uint16(o.captureEng.GetCurrentFPS()) },
		MonitorList:   o.monitorList,
		Callbacks: transport.Callbacks{
			OnAuthenticated:    o.onAuthenticated,
			OnDisconnect:       o.onDisconnect,
			OnMonitorSet:       o.onMonitorSet,
			OnFPSSet:           o.onFPSSet,
			OnRequestKey:       o.onRequestKey,
			OnClipboardText:    o.clipBridge.ReceiveText,
			OnClipboardImage:   o.onClipboardImage,
			OnClipboardRequest: o.clipBridge.ResetEchoSuppression,
			OnMouseMove:        o.inputEng.MouseMove,
			OnMouseButton:      o.inputEng.MouseButton,
			OnMouseWheel:       o.inputEng.MouseWheel,
			OnKey:              o.inputEng.Key,
		},
	}
}

// OnLocalClipboardChanged is the callback a platform clipboard backend
// should invoke whenever it observes a new local clipboard value; wiring it
// up is the caller's job since the backend must exist before the
// orchestrator that owns the bridge does.
func (o *Orchestrator) OnLocalClipboardChanged(text string) {
	o.clipBridge.OnLocalTextChanged(text)
}

func (o *Orchestrator) onSession(sess *transport.Session) {
	o.mu.Lock()
	o.session = sess
	o.mu.Unlock()
}

func (o *Orchestrator) currentSession() *transport.Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

func (o *Orchestrator) monitorList() (uint8, []transport.MonitorEntry) {
	mons := o.captureEng.Monitors()
	entries := make([]transport.MonitorEntry, len(mons))
	for i, m := range mons {
		entries[i] = transport.MonitorEntry{
			Index:     uint8(m.Index),
			Width:     uint16(m.Width),
			Height:    uint16(m.Height),
			RefreshHz: uint16(m.RefreshHz),
			Primary:   m.Primary,
			Name:      m.DeviceName,
		}
	}
	return uint8(o.captureEng.GetCurrentMonitorIndex()), entries
}

// onAuthenticated starts capture and dispatches the first "center wiggle"
// keyframe nudge, per spec §4.6.
func (o *Orchestrator) onAuthenticated() {
	if err := o.captureEng.StartCapture(); err != nil {
		log.Printf("orchestrator: start capture: %v", err)
		return
	}
	o.inputEng.SetEnabled(true)
	o.inputEng.CenterWiggle()
	o.clipBridge.ResetEchoSuppression()
}

// onDisconnect pauses capture; PauseCapture is idempotent so this is safe
// to call even if capture was never started (spec §5's ordering guarantee).
func (o *Orchestrator) onDisconnect(reason string) {
	log.Printf("orchestrator: session disconnected: %s", reason)
	o.captureEng.PauseCapture()
	o.mu.Lock()
	o.session = nil
	o.mu.Unlock()
}

func (o *Orchestrator) onMonitorSet(idx uint8) {
	if err := o.captureEng.SwitchMonitor(int(idx)); err != nil {
		log.Printf("orchestrator: switch monitor %d: %v", idx, err)
		return
	}
	if sess := o.currentSession(); sess != nil {
		sess.NotifyMonitorSwitched()
	}
	o.inputEng.CenterWiggle()
}

func (o *Orchestrator) onFPSSet(fps uint16, mode uint8) uint16 {
	effective := fps
	if mode == transport.FPSModeMatchHost {
		if hz, err := o.captureEng.RefreshHostFPS(); err == nil && hz > 0 {
			effective = uint16(hz)
		}
	}
	o.captureEng.SetFPS(int(effective))
	return effective
}

func (o *Orchestrator) onRequestKey() {
	o.mu.Lock()
	enc := o.enc
	o.mu.Unlock()
	if enc != nil {
		enc.RequestKeyframe()
	}
}

// onClipboardImage exists to satisfy transport.Callbacks; the Clipboard
// Bridge's image path is host-to-client only (see clipboard.Bridge.SendImage
// doc comment), so an inbound image is logged and dropped rather than
// written back to the OS clipboard.
func (o *Orchestrator) onClipboardImage(width, height uint32, png []byte) {
	log.Printf("orchestrator: ignoring inbound clipboard image (%dx%d, %d bytes): image sync is host-to-client only", width, height, len(png))
}

func (o *Orchestrator) sendClipboardText(text []byte) {
	if sess := o.currentSession(); sess != nil {
		if err := sess.SendClipboardText(text); err != nil {
			log.Printf("orchestrator: send clipboard text: %v", err)
		}
	}
}

func (o *Orchestrator) sendClipboardImage(width, height uint32, png []byte) {
	if sess := o.currentSession(); sess != nil {
		if err := sess.SendClipboardImage(width, height, png); err != nil {
			log.Printf("orchestrator: send clipboard image: %v", err)
		}
	}
}

// onResolutionChange rebuilds the encoder for the new geometry and requests
// an immediate keyframe, per the open/rebuild contract documented on
// encoder.Open and encoder.Encoder.RequestKeyframe.
func (o *Orchestrator) onResolutionChange(width, height int) {
	params := encoder.DefaultParams(width, height, o.captureEng.GetCurrentFPS())
	enc, err := encoder.Open(params, o.cfg.EncoderFactories, o.cfg.EncoderOrder)
	if err != nil {
		log.Printf("orchestrator: open encoder for %dx%d: %v", width, height, err)
		return
	}
	enc.RequestKeyframe()

	o.mu.Lock()
	prev := o.enc
	o.enc = enc
	o.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	o.inputEng.SetBounds(input.Bounds{Width: width, Height: height})
}

// Run starts every background thread and blocks on the HTTP accept loop.
func (o *Orchestrator) Run() error {
	go o.encodeLoop()
	go o.audioCaptureLoop()
	go o.audioDispatchLoop()
	go o.statsLoop()
	go o.clipBridge.Run(o.stop)

	return o.transportSrv.ListenAndServe()
}

// Shutdown stops every background thread and tears down the active session.
func (o *Orchestrator) Shutdown() {
	close(o.stop)
	o.transportSrv.Shutdown()
	o.captureEng.Close()
	o.inputEng.Close()
	o.clipBridge.Close()
	if o.cfg.AudioCapture != nil {
		o.cfg.AudioCapture.Close()
	}
	o.mu.Lock()
	if o.enc != nil {
		o.enc.Close()
	}
	o.mu.Unlock()
}

// encodeLoop is the time-critical encode thread: it blocks on the Frame
// Slot, waits for the GPU fence, encodes, and hands the unit to the
// transport session (spec §5).
func (o *Orchestrator) encodeLoop() {
	slot := o.captureEng.Slot()
	pool := o.captureEng.Pool()
	fence := o.captureEng.Fence()

	for {
		frame, ok := slot.Pop(o.stop)
		select {
		case <-o.stop:
			return
		default:
		}
		if !ok {
			continue
		}

		if err := fence.Wait(frame.Fence, fenceWaitTimeout); err != nil {
			pool.MarkReleased(frame.PoolIndex)
			atomic.AddInt64(&o.framesDropped, 1)
			continue
		}

		o.mu.Lock()
		enc := o.enc
		sess := o.session
		o.mu.Unlock()

		if enc == nil || sess == nil {
			pool.MarkReleased(frame.PoolIndex)
			continue
		}

		unit, err := enc.Encode(frame.Texture, frame.Timestamp)
		pool.MarkReleased(frame.PoolIndex)
		if err != nil {
			atomic.AddInt64(&o.framesDropped, 1)
			continue
		}
		if unit == nil {
			continue
		}

		err = sess.SendVideoFrame(unit.FrameID, unit.Timestamp, uint32(unit.EncodeUs), unit.IsKey, unit.Data, o.cfg.ChunkSize)
		if err != nil {
			if errors.Is(err, transport.ErrBackpressureDrop) {
				atomic.AddInt64(&o.bufferOverflows, 1)
			} else {
				atomic.AddInt64(&o.sendFailures, 1)
			}
		}
	}
}

// audioCaptureLoop runs the audio backend's capture/encode loop, if one was
// configured; a missing audio device is non-fatal (spec §7: "the
// orchestrator may continue without audio but not without video").
func (o *Orchestrator) audioCaptureLoop() {
	if o.cfg.AudioCapture == nil {
		return
	}
	o.cfg.AudioCapture.Run(o.audioQueue, o.stop)
}

// audioDispatchLoop drains the audio queue and forwards packets to the
// active session; SendAudioPacket is itself a no-op pre-authentication and
// under backpressure, so this loop never needs to check session state.
func (o *Orchestrator) audioDispatchLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			pkt, ok := o.audioQueue.Pop()
			if !ok {
				continue
			}
			sess := o.currentSession()
			if sess == nil {
				continue
			}
			sess.SendAudioPacket(pkt.Timestamp, pkt.Samples, pkt.Data)
		}
	}
}

// statsLoop is the 1 Hz sampler of spec §5/§7: it prints [WAIT]/[AUTH]/
// [LIVE] plus the dropped-frame/buffer-overflow/send-failure counters.
func (o *Orchestrator) statsLoop() {
	ticker := time.NewTicker(statsPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-o.stop:
			return
		case <-ticker.C:
			sess := o.currentSession()
			state := "[WAIT]"
			if sess != nil {
				switch {
				case sess.IsStreaming():
					state = "[LIVE]"
				case sess.IsAuthenticated():
					state = "[AUTH]"
				case sess.State() >= transport.StateConnected:
					state = "[AUTH]"
				}
			}
			log.Printf("%s dropped=%d overflow=%d sendFail=%d produced=%d conflicts=%d",
				state,
				atomic.LoadInt64(&o.framesDropped)+o.captureEng.FramesDropped(),
				atomic.LoadInt64(&o.bufferOverflows),
				atomic.LoadInt64(&o.sendFailures),
				o.captureEng.FramesProduced(),
				o.captureEng.TextureConflicts())
		}
	}
}

// CheckLiveness runs the session's ping-timeout liveness check; the caller
// (cmd/rdhostd) ticks this periodically.
func (o *Orchestrator) CheckLiveness() {
	if sess := o.currentSession(); sess != nil {
		sess.CheckLiveness()
	}
}
