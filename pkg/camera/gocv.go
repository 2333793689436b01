package camera

import (
	"fmt"
	"image"
	"strconv"
	"time"

	"gocv.io/x/gocv"
)

// GocvDevice captures frames from a webcam or stream URI via OpenCV.
type GocvDevice struct {
	source    string
	width     int
	height    int
	fps       int
	downscale float64
	cap       *gocv.VideoCapture
	seq       uint64
}

// NewGocvDevice creates a capture device for the given source. The
// source is a device index ("0") or a capture URI. downscale below 1
// additionally produces a shrunk copy of each frame for detection.
func NewGocvDevice(source string, width, height, fps int, downscale float64) *GocvDevice {
	return &GocvDevice{
		source:    source,
		width:     width,
		height:    height,
		fps:       fps,
		downscale: downscale,
	}
}

// Open opens the capture source and applies the configured resolution.
func (d *GocvDevice) Open() error {
	var (
		cap *gocv.VideoCapture
		err error
	)
	if idx, convErr := strconv.Atoi(d.source); convErr == nil {
		cap, err = gocv.OpenVideoCapture(idx)
	} else {
		cap, err = gocv.OpenVideoCapture(d.source)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrOpenFailed, d.source, err)
	}
	if !cap.IsOpened() {
		cap.Close()
		return fmt.Errorf("%w: %s", ErrOpenFailed, d.source)
	}

	cap.Set(gocv.VideoCaptureFrameWidth, float64(d.width))
	cap.Set(gocv.VideoCaptureFrameHeight, float64(d.height))
	cap.Set(gocv.VideoCaptureFPS, float64(d.fps))
	cap.Set(gocv.VideoCaptureBufferSize, 1)

	d.cap = cap
	return nil
}

// Capture grabs one frame and returns it JPEG-encoded, together with a
// downscaled copy when a downscale factor is configured.
func (d *GocvDevice) Capture() (*Frame, error) {
	if d.cap == nil {
		return nil, ErrDeviceNotOpen
	}

	mat := gocv.NewMat()
	defer mat.Close()

	if ok := d.cap.Read(&mat); !ok {
		return nil, ErrNoFrame
	}
	if mat.Empty() {
		return nil, ErrNoFrame
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("frame encode failed: %w", err)
	}
	data := make([]byte, len(buf.GetBytes()))
	copy(data, buf.GetBytes())
	buf.Close()

	d.seq++
	frame := &Frame{
		Data:      data,
		Scale:     1,
		Width:     mat.Cols(),
		Height:    mat.Rows(),
		Timestamp: time.Now(),
		Seq:       d.seq,
	}

	if d.downscale > 0 && d.downscale < 1 {
		small := gocv.NewMat()
		gocv.Resize(mat, &small, image.Point{}, d.downscale, d.downscale, gocv.InterpolationLinear)
		smallBuf, err := gocv.IMEncode(gocv.JPEGFileExt, small)
		small.Close()
		if err != nil {
			return nil, fmt.Errorf("frame encode failed: %w", err)
		}
		frame.Small = make([]byte, len(smallBuf.GetBytes()))
		copy(frame.Small, smallBuf.GetBytes())
		smallBuf.Close()
		frame.Scale = d.downscale
	}

	return frame, nil
}

// Close releases the capture source.
func (d *GocvDevice) Close() error {
	if d.cap == nil {
		return nil
	}
	err := d.cap.Close()
	d.cap = nil
	return err
}
