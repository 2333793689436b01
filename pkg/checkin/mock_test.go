package checkin

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

type fakeVerifier struct {
	det *recognition.Detection
	err error
}

func (v *fakeVerifier) DetectSingleFace(imageData []byte) (*recognition.Detection, error) {
	if v.err != nil {
		return nil, v.err
	}
	return v.det, nil
}
