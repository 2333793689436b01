// Package monitor runs the real-time monitoring loop: it pulls frames
// from a camera stream, matches detected faces against the gallery,
// updates the attendance ledger, and periodically reconciles the
// live-presence set.
package monitor

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/attendwatch/attendwatch/pkg/attendance"
	"github.com/attendwatch/attendwatch/pkg/camera"
	"github.com/attendwatch/attendwatch/pkg/gallery"
	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/recognition"
)

// State is the monitoring lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ErrAlreadyRunning is returned when starting a loop that is not idle.
var ErrAlreadyRunning = errors.New("monitoring already running")

// FrameSource supplies frames to the loop. Implemented by camera.Stream.
type FrameSource interface {
	Start() error
	Active() bool
	WaitFrame(timeout time.Duration) (*camera.Frame, bool)
}

// Detector finds faces in JPEG frame data. Implemented by
// recognition.DlibDetector.
type Detector interface {
	DetectFaces(imageData []byte) ([]recognition.Detection, error)
}

// Config holds the loop's tunables.
type Config struct {
	// SkipFrames processes every Nth received frame. Skipping never
	// corrupts match results, it only reduces their frequency.
	SkipFrames int
	// RecognitionThreshold is the minimum match confidence in percent.
	RecognitionThreshold float64
	// ReconcileInterval is the period of the reconciliation sweep.
	ReconcileInterval time.Duration
	// UnseenTimeout evicts students not sighted for this long.
	UnseenTimeout time.Duration
	// FrameWait bounds each wait for a fresh frame.
	FrameWait time.Duration
	// StopTimeout bounds the join with the detection goroutine on stop.
	StopTimeout time.Duration
}

// DefaultConfig returns conservative loop settings.
func DefaultConfig() Config {
	return Config{
		SkipFrames:           3,
		RecognitionThreshold: 60,
		ReconcileInterval:    30 * time.Second,
		UnseenTimeout:        30 * time.Minute,
		FrameWait:            time.Second,
		StopTimeout:          2 * time.Second,
	}
}

// Sighting is a single recognized face in a frame, reported to the
// optional OnSighting callback for front-ends that draw overlays.
type Sighting struct {
	Match recognition.Match
	// Box is the face bounding box mapped back to the full frame
	// resolution, regardless of any detection downscaling.
	Box recognition.Rectangle
}

// Loop is one monitoring session over a single camera stream. Its
// lifecycle is Idle -> Starting -> Running -> Stopping -> Idle;
// cancellation is cooperative and Stop never blocks unbounded.
type Loop struct {
	sessionID string
	frames    FrameSource
	detector  Detector
	gallery   *gallery.Gallery
	ledger    *attendance.Ledger
	live      *attendance.PresenceSet
	cfg       Config

	// OnSighting, when set, is invoked from the detection goroutine for
	// every accepted match. It must not block.
	OnSighting func(Sighting)

	state atomic.Int32
	quit  chan struct{}
	done  chan struct{}
	log   *logrus.Entry
}

// New builds a loop. The frame source is started by Start if it is not
// already active; stopping the source when the session ends is the
// caller's decision, since a check-in flow may still need the camera.
func New(frames FrameSource, detector Detector, g *gallery.Gallery, ledger *attendance.Ledger, cfg Config) *Loop {
	if cfg.SkipFrames <= 0 {
		cfg.SkipFrames = 1
	}
	if cfg.FrameWait <= 0 {
		cfg.FrameWait = time.Second
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = 2 * time.Second
	}
	return &Loop{
		frames:   frames,
		detector: detector,
		gallery:  g,
		ledger:   ledger,
		cfg:      cfg,
	}
}

// State returns the current lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Presence returns the live-presence set of the current session, or nil
// when no session has started.
func (l *Loop) Presence() *attendance.PresenceSet {
	return l.live
}

// SessionID identifies the current or most recent session in logs.
func (l *Loop) SessionID() string {
	return l.sessionID
}

// Start transitions Idle -> Starting -> Running: it ensures the frame
// source is acquiring, creates a fresh live-presence set for this
// session, and spawns the detection goroutine.
func (l *Loop) Start() error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return ErrAlreadyRunning
	}

	l.sessionID = uuid.NewString()
	l.log = logging.Component("monitor").WithField("session", l.sessionID)

	if !l.frames.Active() {
		if err := l.frames.Start(); err != nil {
			l.state.Store(int32(StateIdle))
			return fmt.Errorf("failed to start frame source: %w", err)
		}
	}

	l.live = attendance.NewPresenceSet()
	l.quit = make(chan struct{})
	l.done = make(chan struct{})

	go l.run()

	l.state.Store(int32(StateRunning))
	l.log.Info("monitoring started")
	return nil
}

// Stop transitions Running -> Stopping -> Idle. The join with the
// detection goroutine is bounded by StopTimeout; on timeout the loop
// proceeds to flush and clean up anyway. An in-flight detect call is
// waited for, never preempted.
func (l *Loop) Stop() {
	if !l.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}

	close(l.quit)
	select {
	case <-l.done:
	case <-time.After(l.cfg.StopTimeout):
		l.log.Warn("detection goroutine did not exit in time, proceeding with shutdown")
	}

	if err := l.ledger.Flush(); err != nil {
		l.log.WithError(err).Error("final ledger flush failed")
	}
	l.live.Clear()

	l.state.Store(int32(StateIdle))
	l.log.Info("monitoring stopped")
}

// run is the detection loop body. Every iteration is isolated: a panic
// or error from detection or the ledger is logged and the next frame is
// processed, keeping the loop alive until an explicit stop.
func (l *Loop) run() {
	defer close(l.done)

	reconcile := time.NewTicker(l.cfg.ReconcileInterval)
	defer reconcile.Stop()

	frameCount := 0
	for {
		select {
		case <-l.quit:
			return
		case <-reconcile.C:
			l.reconcile(time.Now())
			continue
		default:
		}

		frame, ok := l.frames.WaitFrame(l.cfg.FrameWait)
		if !ok {
			continue
		}

		frameCount++
		if frameCount%l.cfg.SkipFrames != 0 {
			continue
		}

		l.processFrame(frame)
	}
}

func (l *Loop) processFrame(frame *camera.Frame) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("recovered from panic while processing frame %d: %v", frame.Seq, r)
		}
	}()

	data, scale := frame.DetectData()
	detections, err := l.detector.DetectFaces(data)
	if err != nil {
		// A bad frame must not kill the loop; log and move on.
		l.log.WithError(err).Debug("face detection failed, skipping frame")
		return
	}
	if len(detections) == 0 {
		return
	}

	candidates := l.gallery.Candidates()
	now := time.Now()
	for _, det := range detections {
		match, ok := recognition.MatchBest(det.Descriptor, candidates, l.cfg.RecognitionThreshold)
		if !ok {
			continue
		}

		l.live.Mark(match.ID, now)
		l.ledger.UpsertOnDetection(match.ID, match.Name, now)
		l.log.Debugf("sighted %s (%s) at %.1f%% confidence", match.Name, match.ID, match.Confidence)

		if l.OnSighting != nil {
			l.OnSighting(Sighting{Match: match, Box: det.Box.Rescale(scale)})
		}
	}
}

func (l *Loop) reconcile(now time.Time) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Errorf("recovered from panic during reconciliation: %v", r)
		}
	}()
	l.ledger.Reconcile(l.live, now, l.cfg.UnseenTimeout)
}
