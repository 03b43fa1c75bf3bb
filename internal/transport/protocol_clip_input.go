package transport

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MaxClipboardText / MaxClipboardImage are the Clipboard Bridge's own size
// caps, enforced here since the transport only parses the 4-byte magic for
// these messages (spec §4.5) and routes the rest to the bridge.
const (
	MaxClipboardText  = 1 << 20  // 1 MiB
	MaxClipboardImage = 10 << 20 // 10 MiB
)

// EncodeClipboardText lays out {magic, len_u32, utf8 bytes}.
func EncodeClipboardText(text []byte) ([]byte, error) {
	if len(text) > MaxClipboardText {
		return nil, fmt.Errorf("transport: clipboard text too large (%d > %d)", len(text), MaxClipboardText)
	}
	buf := make([]byte, 8+len(text))
	mb := magicBytes(MsgClipboardText)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint32(buf[4:8], uint32(len(text)))
	copy(buf[8:], text)
	return buf, nil
}

func DecodeClipboardText(b []byte) ([]byte, error) {
	if len(b) < 8 {
		return nil, fmt.Errorf("transport: short clipboard-text message")
	}
	n := binary.LittleEndian.Uint32(b[4:8])
	if uint64(8)+uint64(n) > uint64(len(b)) {
		return nil, fmt.Errorf("transport: truncated clipboard-text message")
	}
	if n > MaxClipboardText {
		return nil, fmt.Errorf("transport: clipboard text over cap (%d)", n)
	}
	return b[8 : 8+n], nil
}

// EncodeClipboardImage lays out {magic, w_u32, h_u32, data_len_u32, PNG bytes}.
func EncodeClipboardImage(width, height uint32, png []byte) ([]byte, error) {
	if len(png) > MaxClipboardImage {
		return nil, fmt.Errorf("transport: clipboard image too large (%d > %d)", len(png), MaxClipboardImage)
	}
	buf := make([]byte, 16+len(png))
	mb := magicBytes(MsgClipboardImage)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint32(buf[4:8], width)
	binary.LittleEndian.PutUint32(buf[8:12], height)
	binary.LittleEndian.PutUint32(buf[12:16], uint32(len(png)))
	copy(buf[16:], png)
	return buf, nil
}

func DecodeClipboardImage(b []byte) (width, height uint32, png []byte, err error) {
	if len(b) < 16 {
		return 0, 0, nil, fmt.Errorf("transport: short clipboard-image message")
	}
	width = binary.LittleEndian.Uint32(b[4:8])
	height = binary.LittleEndian.Uint32(b[8:12])
	n := binary.LittleEndian.Uint32(b[12:16])
	if uint64(16)+uint64(n) > uint64(len(b)) {
		return 0, 0, nil, fmt.Errorf("transport: truncated clipboard-image message")
	}
	if n > MaxClipboardImage {
		return 0, 0, nil, fmt.Errorf("transport: clipboard image over cap (%d)", n)
	}
	return width, height, b[16 : 16+n], nil
}

// Input wire formats. The spec leaves these unspecified beyond "routed to
// the Input Injector"; the layouts below are this implementation's
// resolution of that, following the teacher's normalized-event model
// (InputEvent with x/y in [0,1]) but packed as fixed binary records to fit
// the rest of the wire protocol's style. A trailing modifiers byte is
// carried on MSG_KEY but never consulted host-side, per spec §9's
// documented Open Question.

// MouseMove: magic + x:f32 + y:f32, x/y normalized to [0,1].
func EncodeMouseMove(x, y float32) []byte {
	buf := make([]byte, 12)
	mb := magicBytes(MsgMouseMove)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint32(buf[4:8], float32bits(x))
	binary.LittleEndian.PutUint32(buf[8:12], float32bits(y))
	return buf
}

func DecodeMouseMove(b []byte) (x, y float32, err error) {
	if len(b) < 12 {
		return 0, 0, fmt.Errorf("transport: short mouse-move message")
	}
	return float32frombits(binary.LittleEndian.Uint32(b[4:8])), float32frombits(binary.LittleEndian.Uint32(b[8:12])), nil
}

// MouseButton: magic + button:u8 + pressed:u8.
func EncodeMouseButton(button uint8, pressed bool) []byte {
	buf := make([]byte, 6)
	mb := magicBytes(MsgMouseButton)
	copy(buf[0:4], mb[:])
	buf[4] = button
	if pressed {
		buf[5] = 1
	}
	return buf
}

func DecodeMouseButton(b []byte) (button uint8, pressed bool, err error) {
	if len(b) < 6 {
		return 0, false, fmt.Errorf("transport: short mouse-button message")
	}
	return b[4], b[5] != 0, nil
}

// MouseWheel: magic + dx:f32 + dy:f32.
func EncodeMouseWheel(dx, dy float32) []byte {
	buf := make([]byte, 12)
	mb := magicBytes(MsgMouseWheel)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint32(buf[4:8], float32bits(dx))
	binary.LittleEndian.PutUint32(buf[8:12], float32bits(dy))
	return buf
}

func DecodeMouseWheel(b []byte) (dx, dy float32, err error) {
	if len(b) < 12 {
		return 0, 0, fmt.Errorf("transport: short mouse-wheel message")
	}
	return float32frombits(binary.LittleEndian.Uint32(b[4:8])), float32frombits(binary.LittleEndian.Uint32(b[8:12])), nil
}

// Key: magic + keycode:u16 + pressed:u8 + modifiers:u8 (unused host-side).
func EncodeKey(keycode uint16, pressed bool, modifiers uint8) []byte {
	buf := make([]byte, 8)
	mb := magicBytes(MsgKey)
	copy(buf[0:4], mb[:])
	binary.LittleEndian.PutUint16(buf[4:6], keycode)
	if pressed {
		buf[6] = 1
	}
	buf[7] = modifiers
	return buf
}

func DecodeKey(b []byte) (keycode uint16, pressed bool, modifiers uint8, err error) {
	if len(b) < 8 {
		return 0, false, 0, fmt.Errorf("transport: short key message")
	}
	return binary.LittleEndian.Uint16(b[4:6]), b[6] != 0, b[7], nil
}

func float32bits(f float32) uint32 {
	return math.Float32bits(f)
}

func float32frombits(u uint32) float32 {
	return math.Float32frombits(u)
}
