// Package transport implements the channel protocol of spec §4.5: a single
// reliable ordered binary sub-channel carrying fragmented video, audio,
// control, clipboard, and input messages, all little-endian and packed
// without padding. Unknown magics are ignored.
package transport

import (
	"encoding/binary"
	"fmt"
)

// Magic values, 4-byte ASCII read little-endian as a u32 (i.e. the byte
// order on the wire is the ASCII order: 'P','N','G','P' for MsgPing, etc).
const (
	MsgPing            = "PNGP"
	MsgFPSSet          = "FPSC"
	MsgHostInfo        = "HOST"
	MsgFPSAck          = "FPSA"
	MsgRequestKey      = "KEYR"
	MsgMonitorList     = "MONL"
	MsgMonitorSet      = "MONS"
	MsgAudioData       = "AUDI"
	MsgMouseMove       = "MOVE"
	MsgMouseButton     = "MBTN"
	MsgMouseWheel      = "MWHL"
	MsgKey             = "KEY "
	MsgAuthRequest     = "AUTH"
	MsgAuthResponse    = "AUTR"
	MsgClipboardText   = "CLPT"
	MsgClipboardImage  = "CLPI"
	MsgClipboardReq    = "CLPR"
	MsgClipboardAck    = "CLPA"
	// MsgVideoData is not in the spec's magic cheat sheet (which enumerates
	// only the control/audio/clipboard/input magics) but every message on
	// the channel starts with a magic per spec §4.5, and the receiver must
	// be able to tell a video chunk apart from the others before reading
	// PacketHeader.
	MsgVideoData = "VIDO"
)

// CHUNK_SIZE is the tunable MTU-safe constant. 1200 is the WAN-safe
// default spec §9's Open Question recommends; a LAN deployment may raise
// this to 1400.
const ChunkSizeWAN = 1200
const ChunkSizeLAN = 1400

// PacketHeaderSize is sizeof(magic + PacketHeader) as laid out on the wire.
const PacketHeaderSize = 4 + 8 + 4 + 4 + 2 + 2 + 1 // = 25

// Frame type tags carried in PacketHeader.FrameType.
const (
	FrameTypeNonKey = 0
	FrameTypeKey    = 1
)

func magicBytes(m string) [4]byte {
	var b [4]byte
	copy(b[:], m)
	return b
}

func magicString(b []byte) string {
	return string(b[:4])
}

// PacketHeader precedes each video chunk.
type PacketHeader struct {
	Magic       string
	TS          int64
	EncodeUs    uint32
	FrameID     uint32
	ChunkIndex  uint16
	TotalChunks uint16
	FrameType   uint8
}

func EncodePacketHeader(h PacketHeader) []byte {
	buf := make([]byte, PacketHeaderSize)
	mb := magicBytes(h.Magic)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.TS))
	binary.LittleEndian.PutUint32(buf[12:16], h.EncodeUs)
	binary.LittleEndian.PutUint32(buf[16:20], h.FrameID)
	binary.LittleEndian.PutUint16(buf[20:22], h.ChunkIndex)
	binary.LittleEndian.PutUint16(buf[22:24], h.TotalChunks)
	buf[24] = h.FrameType
	return buf
}

func DecodePacketHeader(b []byte) (PacketHeader, error) {
	if len(b) < PacketHeaderSize {
		return PacketHeader{}, fmt.Errorf("transport: short packet header (%d bytes)", len(b))
	}
	return PacketHeader{
		Magic:       magicString(b[0:4]),
		TS:          int64(binary.LittleEndian.Uint64(b[4:12])),
		EncodeUs:    binary.LittleEndian.Uint32(b[12:16]),
		FrameID:     binary.LittleEndian.Uint32(b[16:20]),
		ChunkIndex:  binary.LittleEndian.Uint16(b[20:22]),
		TotalChunks: binary.LittleEndian.Uint16(b[22:24]),
		FrameType:   b[24],
	}, nil
}

// AudioPacketHeader precedes the Opus payload of an audio message. Maximum
// 4000 bytes of payload.
const AudioPacketHeaderSize = 4 + 8 + 2 + 2 // = 16
const MaxAudioPayload = 4000

type AudioPacketHeader struct {
	TS      int64
	Samples uint16
	DataLen uint16
}

func EncodeAudioPacket(h AudioPacketHeader, payload []byte) ([]byte, error) {
	if len(payload) > MaxAudioPayload {
		return nil, fmt.Errorf("transport: audio payload too large (%d > %d)", len(payload), MaxAudioPayload)
	}
	buf := make([]byte, AudioPacketHeaderSize+len(payload))
	mb := magicBytes(MsgAudioData)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint64(buf[4:12], uint64(h.TS))
	binary.LittleEndian.PutUint16(buf[12:14], h.Samples)
	binary.LittleEndian.PutUint16(buf[14:16], uint16(len(payload)))
	copy(buf[16:], payload)
	return buf, nil
}

func DecodeAudioPacket(b []byte) (AudioPacketHeader, []byte, error) {
	if len(b) < AudioPacketHeaderSize {
		return AudioPacketHeader{}, nil, fmt.Errorf("transport: short audio header")
	}
	h := AudioPacketHeader{
		TS:      int64(binary.LittleEndian.Uint64(b[4:12])),
		Samples: binary.LittleEndian.Uint16(b[12:14]),
		DataLen: binary.LittleEndian.Uint16(b[14:16]),
	}
	if len(b) < AudioPacketHeaderSize+int(h.DataLen) {
		return h, nil, fmt.Errorf("transport: audio payload truncated")
	}
	return h, b[AudioPacketHeaderSize : AudioPacketHeaderSize+int(h.DataLen)], nil
}

// EncodeAuthRequest lays out {magic, u_len, p_len, username bytes, pin bytes}.
func EncodeAuthRequest(username, pin string) []byte {
	buf := make([]byte, 4+1+1+len(username)+len(pin))
	mb := magicBytes(MsgAuthRequest)
	copy(buf[0:4], mb[:])
	buf[4] = byte(len(username))
	buf[5] = byte(len(pin))
	copy(buf[6:], username)
	copy(buf[6+len(username):], pin)
	return buf
}

func DecodeAuthRequest(b []byte) (username, pin string, err error) {
	if len(b) < 6 {
		return "", "", fmt.Errorf("transport: short auth request")
	}
	uLen := int(b[4])
	pLen := int(b[5])
	if len(b) < 6+uLen+pLen {
		return "", "", fmt.Errorf("transport: truncated auth request")
	}
	username = string(b[6 : 6+uLen])
	pin = string(b[6+uLen : 6+uLen+pLen])
	return username, pin, nil
}

func EncodeAuthResponse(success bool, reason string) []byte {
	buf := make([]byte, 4+1+1+len(reason))
	mb := magicBytes(MsgAuthResponse)
	copy(buf[0:4], mb[:])
	if success {
		buf[4] = 1
	}
	buf[5] = byte(len(reason))
	copy(buf[6:], reason)
	return buf
}

func DecodeAuthResponse(b []byte) (success bool, reason string, err error) {
	if len(b) < 6 {
		return false, "", fmt.Errorf("transport: short auth response")
	}
	success = b[4] != 0
	n := int(b[5])
	if len(b) < 6+n {
		return false, "", fmt.Errorf("transport: truncated auth response")
	}
	return success, string(b[6 : 6+n]), nil
}

// EncodePing builds the 16-byte client ping: magic + 12 opaque bytes.
func EncodePing(payload [12]byte) []byte {
	buf := make([]byte, 16)
	mb := magicBytes(MsgPing)
	copy(buf[0:4], mb[:])
	copy(buf[4:16], payload[:])
	return buf
}

// EncodePong builds the 24-byte server reply: the original 16 bytes plus an
// 8-byte server timestamp.
func EncodePong(original [16]byte, serverTS uint64) []byte {
	buf := make([]byte, 24)
	copy(buf[0:16], original[:])
	binary.LittleEndian.PutUint64(buf[16:24], serverTS)
	return buf
}

const (
	FPSModeExplicit   = 0
	FPSModeMatchHost  = 1
	FPSModeFixed      = 2
)

// EncodeFPSSet/EncodeFPSAck share the 7-byte layout: magic + u16 fps + u8 mode.
func encodeFPSMessage(magic string, fps uint16, mode uint8) []byte {
	buf := make([]byte, 7)
	mb := magicBytes(magic)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint16(buf[4:6], fps)
	buf[6] = mode
	return buf
}

func EncodeFPSSet(fps uint16, mode uint8) []byte { return encodeFPSMessage(MsgFPSSet, fps, mode) }
func EncodeFPSAck(fps uint16, mode uint8) []byte { return encodeFPSMessage(MsgFPSAck, fps, mode) }

func decodeFPSMessage(b []byte) (fps uint16, mode uint8, err error) {
	if len(b) < 7 {
		return 0, 0, fmt.Errorf("transport: short fps message")
	}
	return binary.LittleEndian.Uint16(b[4:6]), b[6], nil
}

func DecodeFPSSet(b []byte) (uint16, uint8, error) { return decodeFPSMessage(b) }
func DecodeFPSAck(b []byte) (uint16, uint8, error) { return decodeFPSMessage(b) }

// EncodeMonitorSet builds the 5-byte {magic, index} message.
func EncodeMonitorSet(index uint8) []byte {
	buf := make([]byte, 5)
	mb := magicBytes(MsgMonitorSet)
	copy(buf[0:4], mb[:])
	buf[4] = index
	return buf
}

func DecodeMonitorSet(b []byte) (uint8, error) {
	if len(b) < 5 {
		return 0, fmt.Errorf("transport: short monitor-set message")
	}
	return b[4], nil
}

// EncodeHostInfo builds the 6-byte {magic, fps} message.
func EncodeHostInfo(fps uint16) []byte {
	buf := make([]byte, 6)
	mb := magicBytes(MsgHostInfo)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint16(buf[4:6], fps)
	return buf
}

func DecodeHostInfo(b []byte) (uint16, error) {
	if len(b) < 6 {
		return 0, fmt.Errorf("transport: short host-info message")
	}
	return binary.LittleEndian.Uint16(b[4:6]), nil
}

// MonitorEntry is one {idx, w, h, refresh, primary, name} record inside
// MSG_MONITOR_LIST.
type MonitorEntry struct {
	Index     uint8
	Width     uint16
	Height    uint16
	RefreshHz uint16
	Primary   bool
	Name      string // truncated to 63 bytes on encode
}

func EncodeMonitorList(current uint8, entries []MonitorEntry) []byte {
	buf := make([]byte, 0, 6+len(entries)*72)
	mb := magicBytes(MsgMonitorList)
	buf = append(buf, mb[:]...)
	buf = append(buf, byte(len(entries)), current)
	for _, e := range entries {
		name := e.Name
		if len(name) > 63 {
			name = name[:63]
		}
		rec := make([]byte, 9+len(name))
		rec[0] = e.Index
		binary.LittleEndian.PutUint16(rec[1:3], e.Width)
		binary.LittleEndian.PutUint16(rec[3:5], e.Height)
		binary.LittleEndian.PutUint16(rec[5:7], e.RefreshHz)
		if e.Primary {
			rec[7] = 1
		}
		rec[8] = byte(len(name))
		copy(rec[9:], name)
		buf = append(buf, rec...)
	}
	return buf
}

func DecodeMonitorList(b []byte) (current uint8, entries []MonitorEntry, err error) {
	if len(b) < 6 {
		return 0, nil, fmt.Errorf("transport: short monitor-list message")
	}
	count := int(b[4])
	current = b[5]
	off := 6
	for i := 0; i < count; i++ {
		if off+9 > len(b) {
			return 0, nil, fmt.Errorf("transport: truncated monitor-list entry %d", i)
		}
		nameLen := int(b[off+8])
		if off+9+nameLen > len(b) {
			return 0, nil, fmt.Errorf("transport: truncated monitor-list name %d", i)
		}
		e := MonitorEntry{
			Index:     b[off],
			Width:     binary.LittleEndian.Uint16(b[off+1 : off+3]),
			Height:    binary.LittleEndian.Uint16(b[off+3 : off+5]),
			RefreshHz: binary.LittleEndian.Uint16(b[off+5 : off+7]),
			Primary:   b[off+7] != 0,
			Name:      string(b[off+9 : off+9+nameLen]),
		}
		entries = append(entries, e)
		off += 9 + nameLen
	}
	return current, entries, nil
}

// EncodeRequestKey/EncodeClipboardRequest/EncodeClipboardAck are bare,
// magic-only messages.
func encodeBare(magic string) []byte {
	buf := make([]byte, 4)
	mb := magicBytes(magic)
	copy(buf, mb[:])
	return buf
}

func EncodeRequestKey() []byte       { return encodeBare(MsgRequestKey) }
func EncodeClipboardRequest() []byte { return encodeBare(MsgClipboardReq) }
func EncodeClipboardAck() []byte     { return encodeBare(MsgClipboardAck) }

// ReadMagic extracts the 4-byte magic from a message, returning "" (which
// never matches any constant) if the message is too short — the caller's
// switch then silently ignores it, per spec §4.5 ("unknown magics are
// ignored").
func ReadMagic(b []byte) string {
	if len(b) < 4 {
		return ""
	}
	return magicString(b)
}
