// Package clock provides the monotonic microsecond timestamp source shared
// by every component on the capture-to-transport path, plus the single-peer
// session identifier.
package clock

import (
	"time"

	"github.com/google/uuid"
)

var epoch = time.Now()

// NowMicros returns a monotonic microsecond timestamp relative to process
// start. It never regresses within a process lifetime, which is all the
// frame/packet ordering logic in this repo relies on.
func NowMicros() int64 {
	return time.Since(epoch).Microseconds()
}

// NewSessionID returns a fresh identifier for a single-peer session.
func NewSessionID() string {
	return uuid.New().String()
}
