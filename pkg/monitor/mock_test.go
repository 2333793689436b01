package monitor

import (
	"sync"
	"time"

	"github.com/attendwatch/attendwatch/pkg/attendance"
	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/recognition"
)

// fakeFrames is a scripted FrameSource.
type fakeFrames struct {
	mu       sync.Mutex
	active   bool
	startErr error
	starts   int
	frames   chan *camera.Frame
}

func newFakeFrames() *fakeFrames {
	return &fakeFrames{frames: make(chan *camera.Frame, 32)}
}

func (f *fakeFrames) Start() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	if f.startErr != nil {
		return f.startErr
	}
	f.active = true
	return nil
}

func (f *fakeFrames) Active() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active
}

func (f *fakeFrames) WaitFrame(timeout time.Duration) (*camera.Frame, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case frame := <-f.frames:
		return frame, true
	case <-timer.C:
		return nil, false
	}
}

func (f *fakeFrames) startCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *fakeFrames) push(frame *camera.Frame) {
	f.frames <- frame
}

// fakeDetector scripts DetectFaces results.
type fakeDetector struct {
	mu    sync.Mutex
	calls int
	fn    func(call int, imageData []byte) ([]recognition.Detection, error)
}

func (d *fakeDetector) DetectFaces(imageData []byte) ([]recognition.Detection, error) {
	d.mu.Lock()
	d.calls++
	call := d.calls
	fn := d.fn
	d.mu.Unlock()
	if fn == nil {
		return nil, nil
	}
	return fn(call, imageData)
}

func (d *fakeDetector) callCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// memStore is an in-memory attendance.Store.
type memStore struct {
	mu      sync.Mutex
	records []attendance.Record
	saves   int
}

func (m *memStore) Load() ([]attendance.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]attendance.Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) Save(records []attendance.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	m.records = make([]attendance.Record, len(records))
	copy(m.records, records)
	return nil
}

func (m *memStore) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}
