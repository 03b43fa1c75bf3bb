package transport

import (
	"errors"
	"sync/atomic"
	"time"
)

// Tunables from spec §4.5 ("Backpressure and liveness").
const (
	BufferThreshold           = 32 * 1024
	MaxOverflowBeforeDisconnect = 10
	AudioOverflowCeiling      = 5
	PingTimeout               = 3000 * time.Millisecond
	AuthFailCloseDelay        = 100 * time.Millisecond
	MaxAuthFailures           = 3
	ChunkRecheckInterval      = 16
)

// ErrBackpressureDrop is returned by SendVideoFrame when the channel is
// backed up past BufferThreshold and the frame was dropped rather than sent.
// It is not a failure of the send path; callers should count it and move on.
var ErrBackpressureDrop = errors.New("transport: frame dropped under backpressure")

// ErrTooManyChunks is returned when an encoded frame would fragment into
// more than 65535 chunks (TotalChunks is a u16 on the wire).
var ErrTooManyChunks = errors.New("transport: frame exceeds maximum chunk count")

// State is a Transport Session state per spec §4.5 ("State machine").
type State int32

const (
	StateIdle State = iota
	StateOffered
	StateGatheringDone
	StateNegotiated
	StateConnected
	StateAuthenticated
	StateStreaming
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateOffered:
		return "Offered"
	case StateGatheringDone:
		return "GatheringDone"
	case StateNegotiated:
		return "Negotiated"
	case StateConnected:
		return "Connected"
	case StateAuthenticated:
		return "Authenticated"
	case StateStreaming:
		return "Streaming"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Channel is the minimal surface a Session needs from the underlying data
// channel. A real session wraps *webrtc.DataChannel; tests use a fake.
type Channel interface {
	Send(data []byte) error
	BufferedAmount() uint64
	Close() error
}

// Authenticator checks a username/PIN pair. Implemented by
// internal/credential.
type Authenticator interface {
	Check(username, pin string) bool
}

// Callbacks are the Session's only contact with the rest of the host. Per
// spec §9's cyclic-callback rule, every one of these must be cheap: touch an
// atomic, enqueue on a bounded channel, or return — never take a lock the
// caller (the Session) might already hold, and never block.
type Callbacks struct {
	OnAuthenticated    func()
	OnDisconnect       func(reason string)
	OnMonitorSet       func(idx uint8)
	OnFPSSet           func(fps uint16, mode uint8) (effectiveFPS uint16)
	OnRequestKey       func()
	OnClipboardText    func(data []byte)
	OnClipboardImage   func(width, height uint32, png []byte)
	OnClipboardRequest func()
	OnMouseMove        func(x, y float32)
	OnMouseButton      func(button uint8, pressed bool)
	OnMouseWheel       func(dx, dy float32)
	OnKey              func(keycode uint16, pressed bool, modifiers uint8)
}

// Session is one peer's Transport Session: the state machine, backpressure
// accounting and liveness tracking layered over a single reliable ordered
// binary channel (spec §4.5).
type Session struct {
	ID   string
	ch   Channel
	auth Authenticator
	cb   Callbacks

	// HostInfo/MonitorList getters: the Session does not own capture state,
	// it only needs to emit a snapshot of it right after authentication and
	// after a monitor switch.
	hostFPS      func() uint16
	monitorList  func() (current uint8, entries []MonitorEntry)

	state         int32 // State, atomic
	closed        int32 // atomic bool
	authenticated int32 // atomic bool
	fpsReceived   int32 // atomic bool
	overflow      int32 // atomic
	authFailures  int32 // atomic
	lastPingAt    int64 // atomic, unix micros

	now func() int64 // injectable clock, defaults to time.Now().UnixMicro()
}

// NewSession constructs a Session bound to ch. hostFPS/monitorList may be
// nil if not yet known; they are only consulted after authentication.
func NewSession(id string, ch Channel, auth Authenticator, cb Callbacks, hostFPS func() uint16, monitorList func() (uint8, []MonitorEntry)) *Session {
	s := &Session{
		ID:          id,
		ch:          ch,
		auth:        auth,
		cb:          cb,
		hostFPS:     hostFPS,
		monitorList: monitorList,
		now:         func() int64 { return time.Now().UnixMicro() },
	}
	atomic.StoreInt32(&s.state, int32(StateIdle))
	atomic.StoreInt64(&s.lastPingAt, s.now())
	return s
}

func (s *Session) State() State { return State(atomic.LoadInt32(&s.state)) }

func (s *Session) setState(st State) {
	atomic.StoreInt32(&s.state, int32(st))
}

// The offer/answer helper drives these three directly; they never regress a
// session already past Negotiated.
func (s *Session) MarkOffered()       { s.advanceState(StateOffered) }
func (s *Session) MarkGatheringDone() { s.advanceState(StateGatheringDone) }
func (s *Session) MarkNegotiated()    { s.advanceState(StateNegotiated) }

// advanceState moves the session to st only if it is currently at an
// earlier state.
func (s *Session) advanceState(st State) {
	for {
		cur := atomic.LoadInt32(&s.state)
		if State(cur) >= st || atomic.CompareAndSwapInt32(&s.state, cur, int32(st)) {
			return
		}
	}
}

// MarkConnected is called once the data channel opens.
func (s *Session) MarkConnected() {
	atomic.StoreInt64(&s.lastPingAt, s.now())
	s.setState(StateConnected)
}

func (s *Session) IsAuthenticated() bool { return atomic.LoadInt32(&s.authenticated) != 0 }
func (s *Session) IsStreaming() bool {
	return atomic.LoadInt32(&s.authenticated) != 0 && atomic.LoadInt32(&s.fpsReceived) != 0
}

// HandleMessage dispatches one channel message by its leading magic. Unknown
// magics are silently ignored per spec §4.5.
func (s *Session) HandleMessage(b []byte) {
	if s.State() == StateClosed {
		return
	}
	switch ReadMagic(b) {
	case MsgAuthRequest:
		s.handleAuthRequest(b)
	case MsgPing:
		s.handlePing(b)
	case MsgFPSSet:
		s.handleFPSSet(b)
	case MsgRequestKey:
		if s.IsAuthenticated() && s.cb.OnRequestKey != nil {
			s.cb.OnRequestKey()
		}
	case MsgMonitorSet:
		s.handleMonitorSet(b)
	case MsgClipboardText:
		if s.IsAuthenticated() && s.cb.OnClipboardText != nil {
			if text, err := DecodeClipboardText(b); err == nil {
				s.cb.OnClipboardText(text)
			}
		}
	case MsgClipboardImage:
		if s.IsAuthenticated() && s.cb.OnClipboardImage != nil {
			if w, h, png, err := DecodeClipboardImage(b); err == nil {
				s.cb.OnClipboardImage(w, h, png)
			}
		}
	case MsgClipboardReq:
		if s.IsAuthenticated() && s.cb.OnClipboardRequest != nil {
			s.cb.OnClipboardRequest()
		}
	case MsgMouseMove:
		if s.IsAuthenticated() && s.cb.OnMouseMove != nil {
			if x, y, err := DecodeMouseMove(b); err == nil {
				s.cb.OnMouseMove(x, y)
			}
		}
	case MsgMouseButton:
		if s.IsAuthenticated() && s.cb.OnMouseButton != nil {
			if btn, pressed, err := DecodeMouseButton(b); err == nil {
				s.cb.OnMouseButton(btn, pressed)
			}
		}
	case MsgMouseWheel:
		if s.IsAuthenticated() && s.cb.OnMouseWheel != nil {
			if dx, dy, err := DecodeMouseWheel(b); err == nil {
				s.cb.OnMouseWheel(dx, dy)
			}
		}
	case MsgKey:
		if s.IsAuthenticated() && s.cb.OnKey != nil {
			if kc, pressed, mods, err := DecodeKey(b); err == nil {
				s.cb.OnKey(kc, pressed, mods)
			}
		}
	}
}

func (s *Session) handleAuthRequest(b []byte) {
	username, pin, err := DecodeAuthRequest(b)
	if err != nil {
		return
	}
	if s.auth != nil && s.auth.Check(username, pin) {
		atomic.StoreInt32(&s.authenticated, 1)
		atomic.StoreInt32(&s.authFailures, 0)
		s.setState(StateAuthenticated)
		s.ch.Send(EncodeAuthResponse(true, ""))

		var fps uint16
		if s.hostFPS != nil {
			fps = s.hostFPS()
		}
		s.ch.Send(EncodeHostInfo(fps))
		if s.monitorList != nil {
			current, entries := s.monitorList()
			s.ch.Send(EncodeMonitorList(current, entries))
		}
		if s.cb.OnAuthenticated != nil {
			s.cb.OnAuthenticated()
		}
		return
	}

	failures := atomic.AddInt32(&s.authFailures, 1)
	s.ch.Send(EncodeAuthResponse(false, "invalid credentials"))
	if failures >= MaxAuthFailures {
		s.Close("too many authentication failures")
		return
	}
	time.AfterFunc(AuthFailCloseDelay, func() {
		if !s.IsAuthenticated() {
			s.Close("authentication failed")
		}
	})
}

func (s *Session) handlePing(b []byte) {
	atomic.StoreInt64(&s.lastPingAt, s.now())
	if len(b) < 16 {
		return
	}
	var orig [16]byte
	copy(orig[:], b[:16])
	s.ch.Send(EncodePong(orig, uint64(s.now())))
}

func (s *Session) handleFPSSet(b []byte) {
	if !s.IsAuthenticated() {
		return
	}
	fps, mode, err := decodeFPSMessage(b)
	if err != nil {
		return
	}
	if fps < 1 {
		fps = 1
	}
	if fps > 240 {
		fps = 240
	}
	if mode > FPSModeFixed {
		mode = FPSModeFixed
	}
	effective := fps
	if s.cb.OnFPSSet != nil {
		effective = s.cb.OnFPSSet(fps, mode)
	}
	atomic.StoreInt32(&s.fpsReceived, 1)
	s.setState(StateStreaming)
	s.ch.Send(EncodeFPSAck(effective, mode))
}

func (s *Session) handleMonitorSet(b []byte) {
	if !s.IsAuthenticated() {
		return
	}
	idx, err := DecodeMonitorSet(b)
	if err != nil {
		return
	}
	if s.cb.OnMonitorSet != nil {
		s.cb.OnMonitorSet(idx)
	}
}

// NotifyMonitorSwitched resends the monitor list/host info and forces a
// keyframe, per spec §4.5's MSG_MONITOR_SET success path. The orchestrator
// calls this once it has actually switched the capture engine's monitor.
func (s *Session) NotifyMonitorSwitched() {
	if !s.IsAuthenticated() {
		return
	}
	var fps uint16
	if s.hostFPS != nil {
		fps = s.hostFPS()
	}
	s.ch.Send(EncodeHostInfo(fps))
	if s.monitorList != nil {
		current, entries := s.monitorList()
		s.ch.Send(EncodeMonitorList(current, entries))
	}
	if s.cb.OnRequestKey != nil {
		s.cb.OnRequestKey()
	}
}

// SendClipboardText pushes a host-observed clipboard text change to the
// peer. A no-op before authentication, matching spec §4.5's
// authentication-precedes-everything rule.
func (s *Session) SendClipboardText(text []byte) error {
	if !s.IsAuthenticated() {
		return nil
	}
	buf, err := EncodeClipboardText(text)
	if err != nil {
		return err
	}
	return s.ch.Send(buf)
}

// SendClipboardImage pushes a host-observed clipboard image to the peer.
func (s *Session) SendClipboardImage(width, height uint32, png []byte) error {
	if !s.IsAuthenticated() {
		return nil
	}
	buf, err := EncodeClipboardImage(width, height, png)
	if err != nil {
		return err
	}
	return s.ch.Send(buf)
}

func (s *Session) bufferedBytes() uint64 {
	if s.ch == nil {
		return 0
	}
	return s.ch.BufferedAmount()
}

func (s *Session) noteOverflow() int32 {
	return atomic.AddInt32(&s.overflow, 1)
}

func (s *Session) resetOverflow() {
	atomic.StoreInt32(&s.overflow, 0)
}

// SendVideoFrame fragments payload into chunkSize-sized chunks prefixed with
// a PacketHeader and sends them, applying the backpressure rules of spec
// §4.5 verbatim: pre-flight drop above BufferThreshold, mid-frame abort
// above 2*BufferThreshold checked every 16 chunks, overflow-counter-driven
// force-disconnect, and overflow reset on a clean send.
func (s *Session) SendVideoFrame(frameID uint32, tsMicros int64, encodeUs uint32, isKey bool, payload []byte, chunkSize int) error {
	if !s.IsStreaming() {
		return nil
	}

	if s.bufferedBytes() > BufferThreshold {
		if s.noteOverflow() >= MaxOverflowBeforeDisconnect {
			s.Close("buffer overflow")
		} else if s.cb.OnRequestKey != nil {
			s.cb.OnRequestKey()
		}
		return ErrBackpressureDrop
	}

	dataChunkSize := chunkSize - PacketHeaderSize
	if dataChunkSize <= 0 {
		dataChunkSize = ChunkSizeWAN - PacketHeaderSize
	}
	total := (len(payload) + dataChunkSize - 1) / dataChunkSize
	if total == 0 {
		total = 1
	}
	if total > 65535 {
		return ErrTooManyChunks
	}

	frameType := uint8(FrameTypeNonKey)
	if isKey {
		frameType = FrameTypeKey
	}

	for i := 0; i < total; i++ {
		if i > 0 && i%ChunkRecheckInterval == 0 {
			if s.bufferedBytes() > 2*BufferThreshold {
				s.noteOverflow()
				if s.cb.OnRequestKey != nil {
					s.cb.OnRequestKey()
				}
				return ErrBackpressureDrop
			}
		}
		start := i * dataChunkSize
		end := start + dataChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		hdr := EncodePacketHeader(PacketHeader{
			Magic:       MsgVideoData,
			TS:          tsMicros,
			EncodeUs:    encodeUs,
			FrameID:     frameID,
			ChunkIndex:  uint16(i),
			TotalChunks: uint16(total),
			FrameType:   frameType,
		})
		buf := append(hdr, payload[start:end]...)
		if err := s.ch.Send(buf); err != nil {
			return err
		}
	}

	s.resetOverflow()
	return nil
}

// SendAudioPacket silently drops the packet when the channel is backed up or
// overflowing, per spec §4.5 ("audio is latency-biased, not
// reliability-biased"). It never forces a disconnect and never resets the
// overflow counter.
func (s *Session) SendAudioPacket(tsMicros int64, samples uint16, payload []byte) error {
	if !s.IsAuthenticated() {
		return nil
	}
	if s.bufferedBytes() >= BufferThreshold/2 || atomic.LoadInt32(&s.overflow) >= AudioOverflowCeiling {
		return nil
	}
	buf, err := EncodeAudioPacket(AudioPacketHeader{TS: tsMicros, Samples: samples}, payload)
	if err != nil {
		return err
	}
	return s.ch.Send(buf)
}

// CheckLiveness force-disconnects a Connected-or-later session that has not
// pinged within PingTimeout. The orchestrator calls this from a periodic
// ticker; it is a no-op before Connected or after Closed.
func (s *Session) CheckLiveness() {
	st := s.State()
	if st < StateConnected || st == StateClosed {
		return
	}
	last := atomic.LoadInt64(&s.lastPingAt)
	if time.Duration(s.now()-last)*time.Microsecond > PingTimeout {
		s.Close("ping timeout")
	}
}

// Close force-disconnects the session. Idempotent: only the first call
// clears state and invokes the disconnect callback, satisfying spec §6's
// "exactly once per transition from Connected to Closed" property.
func (s *Session) Close(reason string) {
	if !atomic.CompareAndSwapInt32(&s.closed, 0, 1) {
		return
	}
	s.setState(StateClosed)
	atomic.StoreInt32(&s.authenticated, 0)
	atomic.StoreInt32(&s.fpsReceived, 0)
	atomic.StoreInt32(&s.overflow, 0)

	if s.ch != nil {
		s.ch.Close()
	}
	if s.cb.OnDisconnect != nil {
		s.cb.OnDisconnect(reason)
	}
}

func (s *Session) IsClosed() bool { return atomic.LoadInt32(&s.closed) != 0 }
