package clipboard

import (
	"sync/atomic"
)

// Caps match spec §4.7: clipboard text is bounded at 1 MiB, image payloads
// (PNG-encoded) at 10 MiB. Anything larger is silently dropped rather than
// fragmented — clipboard sync is best-effort, not a file transfer.
const (
	MaxText  = 1 << 20
	MaxImage = 10 << 20
)

// LocalClipboard is the host-OS half of clipboard sync: observing the local
// selection and writing one back when a remote blob arrives. Platform
// backends (xclip_linux.go, ns_darwin.go) implement this by wrapping their
// own cgo clipboard watcher; onChange is invoked with each newly observed
// local text change.
type LocalClipboard interface {
	SetFromClient(text string)
	Run(stop <-chan struct{})
	Close()
}

// Sender pushes a framed clipboard message out over the active session.
// The orchestrator wires these to transport.Session's clipboard senders;
// this package never imports transport, to avoid a dependency cycle.
type Sender struct {
	SendText  func(text []byte)
	SendImage func(width, height uint32, png []byte)
}

// Bridge sits between the local OS clipboard and the remote session. It
// owns the echo-suppression hash and the "ignore-next" flag described in
// spec §4.7: a write this bridge makes to the local clipboard must not
// bounce straight back out as an outbound change notification, and an
// outbound send must not be repeated if the local content hasn't actually
// changed since the last one.
type Bridge struct {
	local LocalClipboard
	send  Sender

	lastSentHash uint64
	ignoreNext   int32 // atomic bool
}

func NewBridge(local LocalClipboard, send Sender) *Bridge {
	return &Bridge{local: local, send: send}
}

// Run starts the local clipboard watcher. It blocks until stop is closed.
func (b *Bridge) Run(stop <-chan struct{}) {
	if b.local != nil {
		b.local.Run(stop)
	}
}

// OnLocalTextChanged is the callback platform backends invoke whenever they
// observe a new local clipboard value. It is also the echo-suppression
// choke point: a change this bridge itself just wrote is dropped via the
// ignore-next flag, and a change identical to the last thing we sent is
// dropped via the hash, even if the flag was already consumed by something
// else (e.g. the client wrote to the clipboard and the OS no-ops the set).
func (b *Bridge) OnLocalTextChanged(text string) {
	if atomic.CompareAndSwapInt32(&b.ignoreNext, 1, 0) {
		return
	}
	if len(text) > MaxText {
		return
	}
	h := rollingHash([]byte(text))
	if h == b.lastSentHash {
		return
	}
	b.lastSentHash = h
	if b.send.SendText != nil {
		b.send.SendText([]byte(text))
	}
}

// SendImage pushes a locally-captured image (e.g. a screenshot helper) out
// to the client. There is no corresponding inbound image path: writing an
// arbitrary image back into the host OS clipboard is platform-specific
// enough that spec §4.7 only requires it host-to-client.
func (b *Bridge) SendImage(width, height int, rgba []byte) {
	png, err := EncodePNG(width, height, rgba)
	if err != nil || len(png) > MaxImage {
		return
	}
	h := rollingHash(png)
	if h == b.lastSentHash {
		return
	}
	b.lastSentHash = h
	if b.send.SendImage != nil {
		b.send.SendImage(uint32(width), uint32(height), png)
	}
}

// ReceiveText writes an incoming remote text blob to the local clipboard.
// It arms the ignore-next flag first: the SetFromClient call below will
// itself be observed by the platform watcher as a local change, and that
// echo must not be forwarded back out as if it were new content.
func (b *Bridge) ReceiveText(text []byte) {
	if len(text) > MaxText {
		return
	}
	b.lastSentHash = rollingHash(text)
	atomic.StoreInt32(&b.ignoreNext, 1)
	if b.local != nil {
		b.local.SetFromClient(string(text))
	}
}

// ResetEchoSuppression clears lastSentHash so that the next local change
// reported through OnLocalTextChanged is sent even if it equals the content
// last sent. It does not re-push the current clipboard content itself: the
// Bridge keeps only a hash of what it sent, so nothing reaches the client
// until the local watcher next reports a change.
func (b *Bridge) ResetEchoSuppression() {
	b.lastSentHash = 0
}

func (b *Bridge) Close() {
	if b.local != nil {
		b.local.Close()
	}
}
