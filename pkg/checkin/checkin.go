// Package checkin implements the explicit one-shot check-in flow:
// a student presents their id, the camera captures their face, and the
// face is verified 1:1 against that student's stored encoding.
package checkin

import (
	"errors"
	"fmt"
	"time"

	"github.com/attendwatch/attendwatch/pkg/attendance"
	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

// ErrNoFrame is returned when the camera produced no frame in time.
var ErrNoFrame = errors.New("no camera frame available")

// ErrVerificationFailed is returned when the captured face does not
// match the claimed student's stored encoding.
var ErrVerificationFailed = errors.New("face does not match registered student")

// FrameGrabber supplies a frame for verification. Implemented by
// camera.Stream, so check-in shares the device with monitoring instead
// of opening its own handle.
type FrameGrabber interface {
	WaitFrame(timeout time.Duration) (*camera.Frame, bool)
}

// Verifier detects a single face for 1:1 verification. Implemented by
// recognition.DlibDetector.
type Verifier interface {
	DetectSingleFace(imageData []byte) (*recognition.Detection, error)
}

// System performs explicit check-ins against the ledger.
type System struct {
	frames FrameGrabber
	rec    Verifier
	reg    *registry.Registry
	faces  *facestore.Store
	ledger *attendance.Ledger
	// tolerance is the 1:1 verification distance cutoff, stricter than
	// the gallery match threshold used during monitoring.
	tolerance float64
	frameWait time.Duration
}

// New builds a check-in system.
func New(frames FrameGrabber, rec Verifier, reg *registry.Registry, faces *facestore.Store, ledger *attendance.Ledger, tolerance float64) *System {
	return &System{
		frames:    frames,
		rec:       rec,
		reg:       reg,
		faces:     faces,
		ledger:    ledger,
		tolerance: tolerance,
		frameWait: 2 * time.Second,
	}
}

// CheckIn verifies the student in front of the camera against the
// specific encoding registered for studentID and, on success, creates
// or overwrites their ledger record with check-in and last-seen set to
// now. This is 1:1 verification: a face that would match some other
// gallery entry still fails here.
func (s *System) CheckIn(studentID string) error {
	student, err := s.reg.Get(studentID)
	if err != nil {
		return err
	}

	reference, err := s.faces.Load(studentID)
	if err != nil {
		return fmt.Errorf("student %s: %w", studentID, err)
	}

	frame, ok := s.frames.WaitFrame(s.frameWait)
	if !ok {
		return ErrNoFrame
	}

	// Verification always runs on the full-resolution frame.
	det, err := s.rec.DetectSingleFace(frame.Data)
	if err != nil {
		return err
	}

	if !recognition.Verify(det.Descriptor, reference.Descriptor, s.tolerance) {
		logging.Component("checkin").Warnf("verification failed for student %s", studentID)
		return ErrVerificationFailed
	}

	s.ledger.ExplicitCheckIn(student.ID, student.Name, time.Now())
	logging.Component("checkin").Infof("checked in %s (%s)", student.Name, student.ID)
	return nil
}
