package camera

import (
	"sync"
	"time"

	"github.com/attendwatch/attendwatch/pkg/logging"
)

// joinTimeout bounds how long Stop waits for the acquisition goroutine
// before releasing the device anyway.
const joinTimeout = 2 * time.Second

// Stream owns a Device and continuously acquires frames on a background
// goroutine into a single-slot buffer. Each new frame replaces any
// unread previous one, so consumers always see the most recent frame
// and memory stays bounded. Staleness up to one acquisition interval is
// expected.
type Stream struct {
	name string
	dev  Device

	// slot is the single-slot buffer. The acquisition goroutine is the
	// only writer; it drains any unread frame before writing.
	slot chan *Frame

	mu     sync.Mutex
	active bool
	quit   chan struct{}
	done   chan struct{}
}

// NewStream creates a stream over the given device. The device is
// opened by Start, not here.
func NewStream(name string, dev Device) *Stream {
	return &Stream{
		name: name,
		dev:  dev,
		slot: make(chan *Frame, 1),
	}
}

// Start opens the device and begins continuous acquisition. If the
// device cannot be opened the error is returned and no goroutine is
// started. Calling Start on an active stream is a no-op.
func (s *Stream) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active {
		return nil
	}

	if err := s.dev.Open(); err != nil {
		return err
	}

	// Drop any frame left over from a previous session.
	select {
	case <-s.slot:
	default:
	}

	s.quit = make(chan struct{})
	s.done = make(chan struct{})
	s.active = true

	go s.acquire(s.quit, s.done)

	logging.Component("camera").Infof("stream %q started", s.name)
	return nil
}

func (s *Stream) acquire(quit, done chan struct{}) {
	defer close(done)
	log := logging.Component("camera").WithField("stream", s.name)

	for {
		select {
		case <-quit:
			return
		default:
		}

		frame, err := s.dev.Capture()
		if err != nil {
			// A mid-stream read failure stops acquisition cleanly;
			// consumers simply stop receiving frames.
			log.WithError(err).Warn("acquisition stopped")
			s.deactivate()
			return
		}

		select {
		case <-s.slot:
		default:
		}
		s.slot <- frame
	}
}

// deactivate is the failure path out of the acquisition goroutine.
func (s *Stream) deactivate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.active = false
	if err := s.dev.Close(); err != nil {
		logging.Component("camera").WithError(err).Warnf("closing device for stream %q", s.name)
	}
}

// Read returns the most recently acquired frame, or nil if none is
// available. The frame is consumed: a second Read before the next
// acquisition returns nil.
func (s *Stream) Read() *Frame {
	select {
	case frame := <-s.slot:
		return frame
	default:
		return nil
	}
}

// WaitFrame blocks until a fresh frame is available or the timeout
// elapses. Returns false on timeout or when the stream is stopped.
func (s *Stream) WaitFrame(timeout time.Duration) (*Frame, bool) {
	s.mu.Lock()
	quit := s.quit
	s.mu.Unlock()

	if quit == nil {
		return nil, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case frame := <-s.slot:
		return frame, true
	case <-timer.C:
		return nil, false
	case <-quit:
		return nil, false
	}
}

// Active reports whether acquisition is running.
func (s *Stream) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stop halts acquisition and releases the device. The join with the
// acquisition goroutine is bounded: if it does not exit in time the
// device is released regardless.
func (s *Stream) Stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	close(s.quit)
	done := s.done
	s.mu.Unlock()

	select {
	case <-done:
	case <-time.After(joinTimeout):
		logging.Component("camera").Warnf("stream %q did not stop in time, releasing device", s.name)
	}

	if err := s.dev.Close(); err != nil {
		logging.Component("camera").WithError(err).Warnf("closing device for stream %q", s.name)
	}
	logging.Component("camera").Infof("stream %q stopped", s.name)
}
