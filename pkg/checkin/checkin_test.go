package checkin

import (
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/attendwatch/attendwatch/pkg/attendance"
	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

type memStore struct {
	mu      sync.Mutex
	records []attendance.Record
}

func (m *memStore) Load() ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]attendance.Record(nil), m.records...), nil
}

func (m *memStore) Save(records []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]attendance.Record(nil), records...)
	return nil
}

func testDescriptor(seed float32) recognition.Descriptor {
	var d recognition.Descriptor
	d[0] = seed
	return d
}

type fixture struct {
	system   *System
	frames   *fakeFrames
	verifier *fakeVerifier
	ledger   *attendance.Ledger
}

// newFixture enrolls Alice (s1) with a reference at 0.1 on the first
// descriptor axis and builds a check-in system with tolerance 0.4.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()

	faces, err := facestore.New(filepath.Join(dir, "faces"), false)
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "students.csv"))
	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}

	window := attendance.ParseEventWindow("2025-03-10", "09:00", "17:00", 15, 600)
	ledger := attendance.NewLedger(&memStore{}, window, 0)

	f := &fixture{
		frames:   &fakeFrames{frame: &camera.Frame{Data: []byte("jpeg"), Scale: 1}},
		verifier: &fakeVerifier{det: &recognition.Detection{Descriptor: testDescriptor(0.1)}},
		ledger:   ledger,
	}
	f.system = New(f.frames, f.verifier, reg, faces, ledger, 0.4)
	return f
}

func TestCheckIn(t *testing.T) {
	f := newFixture(t)

	if err := f.system.CheckIn("s1"); err != nil {
		t.Fatalf("CheckIn failed: %v", err)
	}

	rec, err := f.ledger.Get("s1")
	if err != nil {
		t.Fatalf("no ledger record after check-in: %v", err)
	}
	if rec.Name != "Alice" {
		t.Errorf("name = %q, want Alice", rec.Name)
	}
	if rec.CheckIn.IsZero() {
		t.Error("check-in time not set")
	}
	if !rec.CheckIn.Equal(rec.LastSeen) {
		t.Errorf("check-in %v != last seen %v", rec.CheckIn, rec.LastSeen)
	}
}

func TestCheckInOverwritesPrevious(t *testing.T) {
	f := newFixture(t)

	if err := f.system.CheckIn("s1"); err != nil {
		t.Fatal(err)
	}
	first, _ := f.ledger.Get("s1")

	if err := f.system.CheckIn("s1"); err != nil {
		t.Fatalf("second CheckIn failed: %v", err)
	}
	second, _ := f.ledger.Get("s1")

	if second.CheckIn.Before(first.CheckIn) {
		t.Error("second check-in must move the check-in time forward")
	}
	if second.TotalPresent != 0 {
		t.Errorf("total present = %v, want reset to 0", second.TotalPresent)
	}
}

func TestCheckInUnknownStudent(t *testing.T) {
	f := newFixture(t)
	if err := f.system.CheckIn("ghost"); !errors.Is(err, registry.ErrStudentNotFound) {
		t.Errorf("CheckIn error = %v, want ErrStudentNotFound", err)
	}
}

func TestCheckInNotEnrolled(t *testing.T) {
	dir := t.TempDir()
	faces, err := facestore.New(filepath.Join(dir, "faces"), false)
	if err != nil {
		t.Fatal(err)
	}
	reg := registry.New(filepath.Join(dir, "students.csv"))
	if err := reg.Append(registry.Student{ID: "s2", Name: "Bob"}); err != nil {
		t.Fatal(err)
	}

	window := attendance.ParseEventWindow("2025-03-10", "09:00", "17:00", 15, 600)
	ledger := attendance.NewLedger(&memStore{}, window, 0)
	sys := New(&fakeFrames{}, &fakeVerifier{}, reg, faces, ledger, 0.4)

	if err := sys.CheckIn("s2"); !errors.Is(err, facestore.ErrNotEnrolled) {
		t.Errorf("CheckIn error = %v, want ErrNotEnrolled", err)
	}
}

func TestCheckInNoFrame(t *testing.T) {
	f := newFixture(t)
	f.frames.frame = nil

	if err := f.system.CheckIn("s1"); !errors.Is(err, ErrNoFrame) {
		t.Errorf("CheckIn error = %v, want ErrNoFrame", err)
	}
}

func TestCheckInNoFaceDetected(t *testing.T) {
	f := newFixture(t)
	f.verifier.err = recognition.ErrNoFaceDetected

	if err := f.system.CheckIn("s1"); !errors.Is(err, recognition.ErrNoFaceDetected) {
		t.Errorf("CheckIn error = %v, want ErrNoFaceDetected", err)
	}
}

func TestCheckInWrongFace(t *testing.T) {
	f := newFixture(t)
	// Distance 0.6 from the reference, beyond the 0.4 tolerance.
	f.verifier.det = &recognition.Detection{Descriptor: testDescriptor(0.7)}

	if err := f.system.CheckIn("s1"); !errors.Is(err, ErrVerificationFailed) {
		t.Errorf("CheckIn error = %v, want ErrVerificationFailed", err)
	}
	if _, err := f.ledger.Get("s1"); !errors.Is(err, attendance.ErrRecordNotFound) {
		t.Error("failed verification must not create a ledger record")
	}
}
