package transport

import (
	"sync"
	"testing"
	"time"
)

type fakeAuth struct {
	user, pin string
}

func (f fakeAuth) Check(user, pin string) bool { return user == f.user && pin == f.pin }

type fakeChannel struct {
	mu      sync.Mutex
	sent    [][]byte
	buffered uint64
	closed  bool
	failNext bool
}

func (f *fakeChannel) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failNext {
		f.failNext = false
		return errClosedChannel
	}
	cp := make([]byte, len(b))
	copy(cp, b)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeChannel) BufferedAmount() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buffered
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeChannel) setBuffered(n uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.buffered = n
}

func (f *fakeChannel) count(magic string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, m := range f.sent {
		if ReadMagic(m) == magic {
			n++
		}
	}
	return n
}

type stubErr string

func (e stubErr) Error() string { return string(e) }

const errClosedChannel = stubErr("channel closed")

func newTestSession(ch *fakeChannel) *Session {
	return NewSession("sess-1", ch, fakeAuth{"alice", "123456"}, Callbacks{}, func() uint16 { return 60 }, func() (uint8, []MonitorEntry) {
		return 0, []MonitorEntry{{Index: 0, Width: 1920, Height: 1080, RefreshHz: 60, Primary: true, Name: "mon0"}}
	})
}

func TestAuthenticationSuccessSendsHostInfoAndMonitorList(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	var authed bool
	s.cb.OnAuthenticated = func() { authed = true }

	s.HandleMessage(EncodeAuthRequest("alice", "123456"))

	if !s.IsAuthenticated() {
		t.Fatal("expected session to be authenticated")
	}
	if !authed {
		t.Fatal("expected OnAuthenticated callback to fire")
	}
	if ch.count(MsgAuthResponse) != 1 || ch.count(MsgHostInfo) != 1 || ch.count(MsgMonitorList) != 1 {
		t.Fatalf("unexpected sent messages: %v", ch.sent)
	}
}

func TestAuthenticationFailureClosesAfterDelay(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	var disconnectReason string
	s.cb.OnDisconnect = func(reason string) { disconnectReason = reason }

	s.HandleMessage(EncodeAuthRequest("alice", "wrong"))
	if s.IsAuthenticated() {
		t.Fatal("should not authenticate with wrong pin")
	}

	time.Sleep(AuthFailCloseDelay + 50*time.Millisecond)
	if !s.IsClosed() {
		t.Fatal("expected session closed after auth-fail delay")
	}
	if disconnectReason == "" {
		t.Fatal("expected a disconnect reason")
	}
}

func TestThreeAuthFailuresCloseImmediately(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	s.HandleMessage(EncodeAuthRequest("alice", "bad1"))
	s.HandleMessage(EncodeAuthRequest("alice", "bad2"))
	if s.IsClosed() {
		t.Fatal("should not close before the third failure")
	}
	s.HandleMessage(EncodeAuthRequest("alice", "bad3"))
	if !s.IsClosed() {
		t.Fatal("expected immediate close on third consecutive failure")
	}
}

func TestNoHostDataBeforeAuthResponse(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	s.HandleMessage(EncodeMouseMove(0.5, 0.5))
	s.HandleMessage(EncodeClipboardRequest())
	if len(ch.sent) != 0 {
		t.Fatalf("expected no outbound messages before authentication, got %d", len(ch.sent))
	}
}

func TestFPSSetGatesStreamingAndClamps(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()
	s.HandleMessage(EncodeAuthRequest("alice", "123456"))

	if s.IsStreaming() {
		t.Fatal("should not be streaming before fps-set")
	}

	var gotFPS uint16
	var gotMode uint8
	s.cb.OnFPSSet = func(fps uint16, mode uint8) uint16 {
		gotFPS, gotMode = fps, mode
		return fps
	}

	s.HandleMessage(EncodeFPSSet(9999, 9)) // out of range on both axes
	if gotFPS != 240 || gotMode != FPSModeFixed {
		t.Fatalf("expected clamp to 240/Fixed, got fps=%d mode=%d", gotFPS, gotMode)
	}
	if !s.IsStreaming() {
		t.Fatal("expected streaming after fps-set")
	}
	if ch.count(MsgFPSAck) != 1 {
		t.Fatal("expected an fps-ack")
	}
}

func authenticatedStreamingSession(ch *fakeChannel) *Session {
	s := newTestSession(ch)
	s.MarkConnected()
	s.HandleMessage(EncodeAuthRequest("alice", "123456"))
	s.HandleMessage(EncodeFPSSet(30, FPSModeExplicit))
	return s
}

func TestVideoFrameFragmentsIntoOrderedChunks(t *testing.T) {
	ch := &fakeChannel{}
	s := authenticatedStreamingSession(ch)
	ch.sent = nil // drop the auth/fps-ack traffic from the count

	payload := make([]byte, 3000)
	if err := s.SendVideoFrame(1, 100, 500, true, payload, ChunkSizeWAN); err != nil {
		t.Fatal(err)
	}
	if len(ch.sent) < 2 {
		t.Fatalf("expected fragmentation into multiple chunks, got %d", len(ch.sent))
	}
	for i, m := range ch.sent {
		h, err := DecodePacketHeader(m)
		if err != nil {
			t.Fatal(err)
		}
		if int(h.ChunkIndex) != i {
			t.Fatalf("chunk %d has ChunkIndex %d", i, h.ChunkIndex)
		}
		if int(h.TotalChunks) != len(ch.sent) {
			t.Fatalf("chunk %d has TotalChunks %d, want %d", i, h.TotalChunks, len(ch.sent))
		}
	}
}

func TestVideoFrameDroppedUnderBackpressure(t *testing.T) {
	ch := &fakeChannel{}
	s := authenticatedStreamingSession(ch)
	ch.setBuffered(BufferThreshold + 1)

	keyReq := false
	s.cb.OnRequestKey = func() { keyReq = true }

	err := s.SendVideoFrame(1, 0, 0, false, []byte{1, 2, 3}, ChunkSizeWAN)
	if err != ErrBackpressureDrop {
		t.Fatalf("expected ErrBackpressureDrop, got %v", err)
	}
	if !keyReq {
		t.Fatal("expected keyframe-needed to be set on drop")
	}
}

func TestOverflowForcesDisconnectAtTen(t *testing.T) {
	ch := &fakeChannel{}
	s := authenticatedStreamingSession(ch)
	ch.setBuffered(BufferThreshold + 1)

	for i := 0; i < MaxOverflowBeforeDisconnect; i++ {
		s.SendVideoFrame(uint32(i), 0, 0, false, []byte{1}, ChunkSizeWAN)
	}
	if !s.IsClosed() {
		t.Fatal("expected force-disconnect after 10 overflow observations")
	}
}

func TestSuccessfulSendResetsOverflow(t *testing.T) {
	ch := &fakeChannel{}
	s := authenticatedStreamingSession(ch)

	ch.setBuffered(BufferThreshold + 1)
	s.SendVideoFrame(1, 0, 0, false, []byte{1}, ChunkSizeWAN)
	if s.overflow == 0 {
		t.Fatal("expected overflow counter to have incremented")
	}

	ch.setBuffered(0)
	if err := s.SendVideoFrame(2, 0, 0, false, []byte{1}, ChunkSizeWAN); err != nil {
		t.Fatal(err)
	}
	if s.overflow != 0 {
		t.Fatal("expected overflow counter reset after a clean send")
	}
}

func TestAudioDroppedSilentlyUnderHalfThreshold(t *testing.T) {
	ch := &fakeChannel{}
	s := authenticatedStreamingSession(ch)
	ch.setBuffered(BufferThreshold / 2)

	if err := s.SendAudioPacket(0, 480, []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}
	if ch.count(MsgAudioData) != 0 {
		t.Fatal("expected audio packet to be silently dropped")
	}
}

func TestLivenessTimeoutForcesDisconnect(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.now = func() int64 { return 0 }
	s.MarkConnected()

	s.CheckLiveness()
	if s.IsClosed() {
		t.Fatal("should not time out immediately")
	}

	s.now = func() int64 { return (PingTimeout + time.Second).Microseconds() }
	s.CheckLiveness()
	if !s.IsClosed() {
		t.Fatal("expected ping-timeout disconnect")
	}
}

func TestPingUpdatesLastPingAndRepliesWithPong(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	var payload [12]byte
	copy(payload[:], "123456789012")
	s.HandleMessage(EncodePing(payload))

	if len(ch.sent) != 1 {
		t.Fatalf("expected exactly one reply to ping, got %d", len(ch.sent))
	}
	if len(ch.sent[0]) != 24 {
		t.Fatalf("expected a 24-byte pong, got %d bytes", len(ch.sent[0]))
	}
}

func TestCloseIsIdempotentAndCallsDisconnectOnce(t *testing.T) {
	ch := &fakeChannel{}
	s := newTestSession(ch)
	s.MarkConnected()

	calls := 0
	s.cb.OnDisconnect = func(string) { calls++ }

	s.Close("first")
	s.Close("second")
	s.Close("third")

	if calls != 1 {
		t.Fatalf("expected disconnect callback exactly once, got %d", calls)
	}
	if !ch.closed {
		t.Fatal("expected underlying channel closed")
	}
}
