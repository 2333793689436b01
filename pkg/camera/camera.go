// Package camera provides camera access and latest-wins frame delivery.
// A Device produces encoded frames from a capture source; a Stream owns
// the acquisition goroutine and a single-slot buffer where each new
// frame replaces any unread previous one.
package camera

import (
	"errors"
	"time"
)

// Frame represents a single captured camera frame.
// Data holds the JPEG-encoded frame at capture resolution. When the
// device is configured with a downscale factor below 1, Small holds a
// JPEG of the downscaled frame for cheaper detection and Scale records
// the factor so detections can be mapped back to full resolution.
// Frame data must not be modified after capture; it is shared by
// reference between the acquisition goroutine and consumers.
type Frame struct {
	Data      []byte
	Small     []byte
	Scale     float64
	Width     int
	Height    int
	Timestamp time.Time
	Seq       uint64
}

// DetectData returns the bytes detection should run on and the scale
// factor that was applied to them.
func (f *Frame) DetectData() ([]byte, float64) {
	if f.Small != nil {
		return f.Small, f.Scale
	}
	return f.Data, 1
}

// Device is a camera capture source. Implementations are not required
// to be safe for concurrent use; a Stream is the single owner of its
// device.
type Device interface {
	Open() error
	Capture() (*Frame, error)
	Close() error
}

// ErrDeviceNotOpen is returned when capturing from a closed device.
var ErrDeviceNotOpen = errors.New("camera device not open")

// ErrOpenFailed is returned when the capture source cannot be opened.
var ErrOpenFailed = errors.New("failed to open camera device")

// ErrNoFrame is returned when no frame could be captured.
var ErrNoFrame = errors.New("failed to capture frame")
