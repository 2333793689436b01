// Package recognition provides face detection and matching.
// It uses dlib/go-face for face detection and 128-dimensional descriptors,
// and implements confidence-based gallery matching on top.
package recognition

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Kagami/go-face"

	"github.com/attendwatch/attendwatch/pkg/logging"
)

// Descriptor is a 128-dimensional face descriptor from dlib.
type Descriptor = face.Descriptor

// Rectangle is a face bounding box in frame coordinates.
type Rectangle struct {
	X, Y          int
	Width, Height int
}

// Rescale maps a box detected on a downscaled frame back to the
// original resolution. factor is the downscale factor that was applied
// (e.g. 0.5), so coordinates are divided by it.
func (r Rectangle) Rescale(factor float64) Rectangle {
	if factor <= 0 || factor == 1 {
		return r
	}
	return Rectangle{
		X:      int(float64(r.X) / factor),
		Y:      int(float64(r.Y) / factor),
		Width:  int(float64(r.Width) / factor),
		Height: int(float64(r.Height) / factor),
	}
}

// Detection is one face found in a frame.
type Detection struct {
	Box        Rectangle
	Descriptor Descriptor
}

// ErrNoFaceDetected is returned when no face is found in the image.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrMultipleFaces is returned when multiple faces are detected.
var ErrMultipleFaces = errors.New("multiple faces detected")

// ErrModelNotLoaded is returned when models are not loaded.
var ErrModelNotLoaded = errors.New("recognition models not loaded")

// Detector detects faces and computes their descriptors from JPEG data.
type Detector interface {
	DetectFaces(imageData []byte) ([]Detection, error)
	DetectSingleFace(imageData []byte) (*Detection, error)
}

// DlibDetector implements Detector using dlib via go-face.
type DlibDetector struct {
	rec       *face.Recognizer
	modelPath string
	loaded    bool
	mu        sync.RWMutex
}

// NewDetector creates a new DlibDetector instance. Models must be
// loaded with LoadModels before detection.
func NewDetector() *DlibDetector {
	return &DlibDetector{}
}

// LoadModels loads the dlib face recognition models from the specified path.
// The path should contain:
// - shape_predictor_5_face_landmarks.dat
// - dlib_face_recognition_resnet_model_v1.dat
func (d *DlibDetector) LoadModels(modelPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.loaded {
		return nil
	}

	logging.Infof("Loading face recognition models from: %s", modelPath)

	rec, err := face.NewRecognizer(modelPath)
	if err != nil {
		return fmt.Errorf("failed to load models: %w", err)
	}

	d.rec = rec
	d.modelPath = modelPath
	d.loaded = true

	logging.Info("Face recognition models loaded")
	return nil
}

// IsLoaded returns true if models are loaded.
func (d *DlibDetector) IsLoaded() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Close releases the recognizer resources.
func (d *DlibDetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.rec != nil {
		d.rec.Close()
		d.rec = nil
	}
	d.loaded = false
	return nil
}

// DetectFaces detects all faces in a JPEG image and computes their
// descriptors. A frame with no faces is an expected outcome, not an
// error: it yields an empty slice.
func (d *DlibDetector) DetectFaces(imageData []byte) ([]Detection, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.loaded {
		return nil, ErrModelNotLoaded
	}

	faces, err := d.rec.Recognize(imageData)
	if err != nil {
		return nil, fmt.Errorf("face detection failed: %w", err)
	}

	result := make([]Detection, len(faces))
	for i, f := range faces {
		rect := f.Rectangle
		result[i] = Detection{
			Box: Rectangle{
				X:      rect.Min.X,
				Y:      rect.Min.Y,
				Width:  rect.Dx(),
				Height: rect.Dy(),
			},
			Descriptor: f.Descriptor,
		}
	}

	logging.Debugf("Detected %d face(s) in image", len(result))
	return result, nil
}

// DetectSingleFace detects exactly one face in the image.
// Returns ErrNoFaceDetected or ErrMultipleFaces otherwise. Used by the
// registration and explicit check-in flows, which require an
// unambiguous subject.
func (d *DlibDetector) DetectSingleFace(imageData []byte) (*Detection, error) {
	faces, err := d.DetectFaces(imageData)
	if err != nil {
		return nil, err
	}

	if len(faces) == 0 {
		return nil, ErrNoFaceDetected
	}

	if len(faces) > 1 {
		return nil, ErrMultipleFaces
	}

	return &faces[0], nil
}

// EuclideanDistance calculates the Euclidean distance between two descriptors.
func EuclideanDistance(d1, d2 Descriptor) float64 {
	if len(d1) != len(d2) {
		return math.MaxFloat64
	}

	var sum float64
	for i := range d1 {
		diff := float64(d1[i] - d2[i])
		sum += diff * diff
	}
	return math.Sqrt(sum)
}
