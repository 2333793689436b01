// Package enroll manages student registration: capturing a reference
// face from the camera, persisting its encoding, and keeping the
// registry and gallery in sync.
package enroll

import (
	"errors"
	"time"

	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/gallery"
	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

// ErrMissingFields is returned when id or name is empty.
var ErrMissingFields = errors.New("student id and name are required")

// ErrNoFrame is returned when the camera produced no frame in time.
var ErrNoFrame = errors.New("no camera frame available")

// FrameGrabber supplies a frame for the reference capture.
type FrameGrabber interface {
	WaitFrame(timeout time.Duration) (*camera.Frame, bool)
}

// Detector detects the single reference face in a capture.
type Detector interface {
	DetectSingleFace(imageData []byte) (*recognition.Detection, error)
}

// Enroller registers, edits, and removes students, triggering a gallery
// rebuild after every change to the identity-to-encoding association.
type Enroller struct {
	frames    FrameGrabber
	rec       Detector
	reg       *registry.Registry
	faces     *facestore.Store
	gallery   *gallery.Gallery
	frameWait time.Duration
}

// New builds an enroller.
func New(frames FrameGrabber, rec Detector, reg *registry.Registry, faces *facestore.Store, g *gallery.Gallery) *Enroller {
	return &Enroller{
		frames:    frames,
		rec:       rec,
		reg:       reg,
		faces:     faces,
		gallery:   g,
		frameWait: 2 * time.Second,
	}
}

// Register captures a reference face for a new student, stores its
// encoding keyed by student id (a newer capture overwrites), appends
// the student to the registry, and rebuilds the gallery. The capture
// must contain exactly one face.
func (e *Enroller) Register(studentID, name string) error {
	if studentID == "" || name == "" {
		return ErrMissingFields
	}
	if e.reg.Exists(studentID) {
		return registry.ErrStudentExists
	}

	frame, ok := e.frames.WaitFrame(e.frameWait)
	if !ok {
		return ErrNoFrame
	}

	det, err := e.rec.DetectSingleFace(frame.Data)
	if err != nil {
		return err
	}

	if err := e.faces.Save(facestore.FaceData{
		StudentID:  studentID,
		Descriptor: det.Descriptor,
		CapturedAt: time.Now(),
	}); err != nil {
		return err
	}

	if err := e.reg.Append(registry.Student{ID: studentID, Name: name}); err != nil {
		// Roll the encoding back so no orphan file remains.
		if delErr := e.faces.Delete(studentID); delErr != nil {
			logging.Component("enroll").WithError(delErr).Warn("could not remove orphaned encoding")
		}
		return err
	}

	return e.gallery.Rebuild(e.reg, e.faces)
}

// Recapture replaces an existing student's reference encoding with a
// fresh capture.
func (e *Enroller) Recapture(studentID string) error {
	if _, err := e.reg.Get(studentID); err != nil {
		return err
	}

	frame, ok := e.frames.WaitFrame(e.frameWait)
	if !ok {
		return ErrNoFrame
	}

	det, err := e.rec.DetectSingleFace(frame.Data)
	if err != nil {
		return err
	}

	if err := e.faces.Save(facestore.FaceData{
		StudentID:  studentID,
		Descriptor: det.Descriptor,
		CapturedAt: time.Now(),
	}); err != nil {
		return err
	}
	return e.gallery.Rebuild(e.reg, e.faces)
}

// Update renames a student or changes their id, moving the stored
// encoding when the id changes, then rebuilds the gallery.
func (e *Enroller) Update(oldID string, s registry.Student) error {
	if s.ID == "" || s.Name == "" {
		return ErrMissingFields
	}

	if err := e.reg.Update(oldID, s); err != nil {
		return err
	}

	if s.ID != oldID && e.faces.Exists(oldID) {
		data, err := e.faces.Load(oldID)
		if err != nil {
			return err
		}
		data.StudentID = s.ID
		if err := e.faces.Save(*data); err != nil {
			return err
		}
		if err := e.faces.Delete(oldID); err != nil {
			return err
		}
	}

	return e.gallery.Rebuild(e.reg, e.faces)
}

// Remove deletes a student from the registry along with their stored
// encoding, then rebuilds the gallery.
func (e *Enroller) Remove(studentID string) error {
	if err := e.reg.Delete(studentID); err != nil {
		return err
	}
	if e.faces.Exists(studentID) {
		if err := e.faces.Delete(studentID); err != nil {
			return err
		}
	}
	return e.gallery.Rebuild(e.reg, e.faces)
}
