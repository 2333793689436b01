package enroll

import (
	"time"

	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/recognition"
)

type fakeFrames struct {
	frame *camera.Frame
}

func (f *fakeFrames) WaitFrame(timeout time.Duration) (*camera.Frame, bool) {
	if f.frame == nil {
		return nil, false
	}
	return f.frame, true
}

type fakeDetector struct {
	det *recognition.Detection
	err error
}

func (d *fakeDetector) DetectSingleFace(imageData []byte) (*recognition.Detection, error) {
	if d.err != nil {
		return nil, d.err
	}
	return d.det, nil
}
