package camera

import (
	"sync"
	"time"
)

// fakeDevice is a scripted Device for stream tests. Capture blocks on
// the frames channel so tests control exactly when frames arrive;
// interrupt unblocks a pending Capture the way closing a real capture
// handle interrupts a read.
type fakeDevice struct {
	mu        sync.Mutex
	openErr   error
	opens     int
	closes    int
	frames    chan *Frame
	halt      chan struct{}
	halted    bool
	captureFn func() (*Frame, error)
}

func newFakeDevice() *fakeDevice {
	return &fakeDevice{frames: make(chan *Frame, 16)}
}

func (d *fakeDevice) Open() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.opens++
	if d.openErr != nil {
		return d.openErr
	}
	d.halt = make(chan struct{})
	d.halted = false
	return nil
}

func (d *fakeDevice) Capture() (*Frame, error) {
	if d.captureFn != nil {
		return d.captureFn()
	}
	d.mu.Lock()
	halt := d.halt
	d.mu.Unlock()

	select {
	case frame := <-d.frames:
		return frame, nil
	case <-halt:
		return nil, ErrNoFrame
	}
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closes++
	return nil
}

// interrupt fails the current session's pending Capture.
func (d *fakeDevice) interrupt() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.halt != nil && !d.halted {
		close(d.halt)
		d.halted = true
	}
}

func (d *fakeDevice) openCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

func (d *fakeDevice) closeCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes
}

func (d *fakeDevice) push(seq uint64) {
	d.frames <- &Frame{Data: []byte("jpeg"), Scale: 1, Timestamp: time.Now(), Seq: seq}
}
