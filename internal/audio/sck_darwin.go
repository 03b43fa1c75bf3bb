//go:build darwin

package audio

/*
#cgo CFLAGS: -mmacosx-version-min=14.0 -fobjc-arc
#cgo LDFLAGS: -framework ScreenCaptureKit -framework CoreMedia -framework CoreAudio -framework Cocoa

#include <stdint.h>

typedef struct {
	void *stream;
	void *delegate;
	void *filter;
	void *buffer;
} SCKAudioCaptureHandle;

int  sck_audio_start_display(SCKAudioCaptureHandle *out);
int  sck_audio_read_frame(SCKAudioCaptureHandle *h, int16_t *dst, int samples_per_channel);
void sck_audio_stop(SCKAudioCaptureHandle *h);
*/
import "C"
import (
	"fmt"
	"log"
	"time"
	"unsafe"

	"github.com/hraban/opus"
)

const (
	sampleRate    = 48000
	channels      = 2
	frameDuration = 20                                // ms
	frameSize     = sampleRate * frameDuration / 1000 // 960 samples/channel
)

// AudioCapture captures the host's display audio via ScreenCaptureKit and
// encodes it to Opus. The VM-window capture path the vendor SDK also
// supports is out of scope: this host streams its own physical display,
// never a guest's.
type AudioCapture struct {
	handle  C.SCKAudioCaptureHandle
	encoder *opus.Encoder
}

func NewAudioCapture() (*AudioCapture, error) {
	enc, err := opus.NewEncoder(sampleRate, channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}

	ac := &AudioCapture{encoder: enc}
	if ret := C.sck_audio_start_display(&ac.handle); ret != 0 {
		return nil, fmt.Errorf("macOS audio init failed (display stream init failed)")
	}
	return ac, nil
}

// Run reads 20ms PCM frames from ScreenCaptureKit, encodes each to Opus,
// and pushes it onto q until stop closes.
func (ac *AudioCapture) Run(q *Queue, stop <-chan struct{}) {
	opusBuf := make([]byte, 4000)
	pcmBuf := make([]int16, frameSize*channels)
	ticker := time.NewTicker(time.Duration(frameDuration) * time.Millisecond)
	defer ticker.Stop()

	seenFrame := false
	var tsMicros int64

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ret := C.sck_audio_read_frame(
				&ac.handle,
				(*C.int16_t)(unsafe.Pointer(&pcmBuf[0])),
				C.int(frameSize),
			)
			if ret != 0 {
				continue
			}
			if !seenFrame {
				seenFrame = true
				log.Printf("audio: first frame source=display")
			}

			encoded, err := ac.encoder.Encode(pcmBuf, opusBuf)
			if err != nil {
				log.Printf("audio: opus encode: %v", err)
				continue
			}

			tsMicros += int64(frameDuration) * 1000
			q.Push(Packet{
				Data:      append([]byte(nil), opusBuf[:encoded]...),
				Timestamp: tsMicros,
				Samples:   uint16(frameSize),
			})
		}
	}
}

func (ac *AudioCapture) Close() {
	C.sck_audio_stop(&ac.handle)
}
