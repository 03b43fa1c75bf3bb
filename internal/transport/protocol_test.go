package transport

import (
	"bytes"
	"testing"
)

func TestAuthRequestRoundTrip(t *testing.T) {
	b := EncodeAuthRequest("alice", "123456")
	u, p, err := DecodeAuthRequest(b)
	if err != nil {
		t.Fatal(err)
	}
	if u != "alice" || p != "123456" {
		t.Fatalf("got u=%q p=%q", u, p)
	}
}

func TestAuthResponseRoundTrip(t *testing.T) {
	b := EncodeAuthResponse(false, "Invalid credentials")
	ok, reason, err := DecodeAuthResponse(b)
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Fatal("expected success=false")
	}
	if reason != "Invalid credentials" {
		t.Fatalf("got reason %q", reason)
	}
}

func TestPingPongShape(t *testing.T) {
	var payload [12]byte
	copy(payload[:], "hello-client")
	ping := EncodePing(payload)
	if len(ping) != 16 {
		t.Fatalf("ping length = %d, want 16", len(ping))
	}
	var orig [16]byte
	copy(orig[:], ping)
	pong := EncodePong(orig, 999)
	if len(pong) != 24 {
		t.Fatalf("pong length = %d, want 24", len(pong))
	}
	if !bytes.Equal(pong[:16], ping) {
		t.Fatal("pong must echo the original 16 bytes")
	}
}

func TestFPSSetRoundTrip(t *testing.T) {
	b := EncodeFPSSet(60, FPSModeExplicit)
	if len(b) != 7 {
		t.Fatalf("fps-set length = %d, want 7", len(b))
	}
	fps, mode, err := DecodeFPSSet(b)
	if err != nil {
		t.Fatal(err)
	}
	if fps != 60 || mode != FPSModeExplicit {
		t.Fatalf("got fps=%d mode=%d", fps, mode)
	}
}

func TestMonitorListRoundTrip(t *testing.T) {
	entries := []MonitorEntry{
		{Index: 0, Width: 1920, Height: 1080, RefreshHz: 60, Primary: true, Name: "eDP-1"},
		{Index: 1, Width: 2560, Height: 1440, RefreshHz: 144, Primary: false, Name: "HDMI-1"},
	}
	b := EncodeMonitorList(1, entries)
	current, got, err := DecodeMonitorList(b)
	if err != nil {
		t.Fatal(err)
	}
	if current != 1 {
		t.Fatalf("current = %d, want 1", current)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[1].Name != "HDMI-1" || got[1].Width != 2560 {
		t.Fatalf("entry 1 mismatch: %+v", got[1])
	}
}

func TestClipboardTextCapBoundary(t *testing.T) {
	exact := make([]byte, MaxClipboardText)
	if _, err := EncodeClipboardText(exact); err != nil {
		t.Fatalf("text exactly at cap should be transmitted: %v", err)
	}
	over := make([]byte, MaxClipboardText+1)
	if _, err := EncodeClipboardText(over); err == nil {
		t.Fatal("text one byte over cap should be dropped")
	}
}

func TestPacketHeaderRoundTrip(t *testing.T) {
	h := PacketHeader{
		Magic:       MsgVideoData,
		TS:          1234567,
		EncodeUs:    4200,
		FrameID:     7,
		ChunkIndex:  3,
		TotalChunks: 10,
		FrameType:   FrameTypeKey,
	}
	b := EncodePacketHeader(h)
	if len(b) != PacketHeaderSize {
		t.Fatalf("header length = %d, want %d", len(b), PacketHeaderSize)
	}
	got, err := DecodePacketHeader(b)
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, h)
	}
}

func TestUnknownMagicIsIgnorable(t *testing.T) {
	if ReadMagic([]byte("ZZZZ-rest")) == MsgPing {
		t.Fatal("unrelated magic should not match MsgPing")
	}
	if ReadMagic([]byte{0x01}) != "" {
		t.Fatal("short message should yield empty magic, never panic")
	}
}
