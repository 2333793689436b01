package attendance

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/attendwatch/attendwatch/pkg/logging"
)

// Record is one student's attendance row. There is at most one record
// per student id: all writes are upserts, never appends.
type Record struct {
	StudentID    string
	Name         string
	CheckIn      time.Time
	LastSeen     time.Time
	Status       Status
	TotalPresent time.Duration
}

// Store persists the full ledger table. Load returns all records;
// Save replaces them. Implementations do not need incremental writes.
type Store interface {
	Load() ([]Record, error)
	Save([]Record) error
}

// ErrRecordNotFound is returned when a student has no ledger record.
var ErrRecordNotFound = errors.New("attendance record not found")

// Ledger is the in-memory attendance table with persistence behind a
// Store. Mutations flush in one batch write; a failed write is logged
// and retried on the next flush instead of aborting the caller.
type Ledger struct {
	mu             sync.Mutex
	store          Store
	records        map[string]*Record
	window         EventWindow
	updateInterval time.Duration
	lastUpdate     time.Time
	dirty          bool
	log            *logrus.Entry
}

// NewLedger builds a ledger over the given store. A load failure is
// logged and the ledger starts empty; it keeps serving reads and
// writes until the next successful flush.
func NewLedger(store Store, window EventWindow, updateInterval time.Duration) *Ledger {
	l := &Ledger{
		store:          store,
		records:        make(map[string]*Record),
		window:         window,
		updateInterval: updateInterval,
		log:            logging.Component("ledger"),
	}

	recs, err := store.Load()
	if err != nil {
		l.log.WithError(err).Warn("could not load attendance store, starting empty")
		return l
	}
	for i := range recs {
		rec := recs[i]
		l.records[rec.StudentID] = &rec
	}
	l.log.Infof("loaded %d attendance record(s)", len(recs))
	return l
}

// Window returns the event window statuses are computed against.
func (l *Ledger) Window() EventWindow {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.window
}

// UpsertOnDetection records a sighting of a student. Updates are
// throttled globally: within updateInterval of the previous accepted
// update the call is a no-op, so repeated detections of the same
// student collapse to a single effective write. On first sighting the
// record is created with check-in = now; on later sightings only
// last-seen, status, and total time update. Check-in time and name are
// immutable once set.
func (l *Ledger) UpsertOnDetection(studentID, name string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.lastUpdate.IsZero() && now.Sub(l.lastUpdate) < l.updateInterval {
		return
	}
	l.lastUpdate = now

	rec, ok := l.records[studentID]
	if !ok {
		rec = &Record{
			StudentID: studentID,
			Name:      name,
			CheckIn:   now,
		}
		l.records[studentID] = rec
	}
	rec.LastSeen = now
	rec.Status = ComputeStatus(rec.CheckIn, rec.LastSeen, l.window)
	rec.TotalPresent = rec.LastSeen.Sub(rec.CheckIn)

	l.dirty = true
	l.flushLocked()
}

// Reconcile ages out students who have disappeared from view and
// refreshes everyone still present. Students whose last sighting is
// older than unseenTimeout are forced to LEFT_EARLY and evicted from
// the live-presence set; the rest get last-seen, total time, and a
// recomputed status. All changes persist in one batch write.
func (l *Ledger) Reconcile(live *PresenceSet, now time.Time, unseenTimeout time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	changed := false
	for studentID, lastSeen := range live.Snapshot() {
		rec, ok := l.records[studentID]
		if !ok {
			// Seen live but never made it into the ledger (throttled
			// out before monitoring stopped tracking them). Drop.
			live.Remove(studentID)
			continue
		}

		if now.Sub(lastSeen) > unseenTimeout {
			if rec.Status != StatusLeftEarly {
				rec.Status = StatusLeftEarly
				changed = true
			}
			live.Remove(studentID)
			l.log.Infof("student %s unseen for %s, marked LEFT_EARLY", studentID, now.Sub(lastSeen).Round(time.Second))
			continue
		}

		rec.LastSeen = lastSeen
		rec.TotalPresent = rec.LastSeen.Sub(rec.CheckIn)
		rec.Status = ComputeStatus(rec.CheckIn, rec.LastSeen, l.window)
		changed = true
	}

	if changed || l.dirty {
		l.dirty = true
		l.flushLocked()
	}
}

// ExplicitCheckIn creates or overwrites a student's record with
// check-in and last-seen set to now. This is the one sanctioned path
// that may overwrite an existing check-in time; it bypasses the
// detection throttle and flushes immediately.
func (l *Ledger) ExplicitCheckIn(studentID, name string, now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[studentID]
	if !ok {
		rec = &Record{StudentID: studentID, Name: name}
		l.records[studentID] = rec
	}
	rec.CheckIn = now
	rec.LastSeen = now
	rec.Status = ComputeStatus(now, now, l.window)
	rec.TotalPresent = 0

	l.dirty = true
	l.flushLocked()
}

// Correct sets a record's status by explicit manual correction.
func (l *Ledger) Correct(studentID string, status Status) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[studentID]
	if !ok {
		return ErrRecordNotFound
	}
	rec.Status = status
	l.dirty = true
	l.flushLocked()
	return nil
}

// Remove deletes a student's record. Records are never removed
// automatically; this is the administrative path.
func (l *Ledger) Remove(studentID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[studentID]; !ok {
		return ErrRecordNotFound
	}
	delete(l.records, studentID)
	l.dirty = true
	l.flushLocked()
	return nil
}

// Reset replaces the entire ledger with an empty table. Irreversible;
// callers must confirm before invoking.
func (l *Ledger) Reset() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = make(map[string]*Record)
	l.lastUpdate = time.Time{}
	l.dirty = true
	if err := l.store.Save(nil); err != nil {
		return err
	}
	l.dirty = false
	l.log.Info("attendance ledger reset")
	return nil
}

// Get returns a copy of a student's record.
func (l *Ledger) Get(studentID string) (Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[studentID]
	if !ok {
		return Record{}, ErrRecordNotFound
	}
	return *rec, nil
}

// Records returns a copy of all records sorted by student id.
func (l *Ledger) Records() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.recordsLocked()
}

func (l *Ledger) recordsLocked() []Record {
	out := make([]Record, 0, len(l.records))
	for _, rec := range l.records {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out
}

// Report filters records by check-in date ("2006-01-02", empty for all)
// and status (empty for all), and returns per-status counts over the
// date-filtered set.
func (l *Ledger) Report(date string, status Status) ([]Record, map[Status]int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	counts := map[Status]int{
		StatusPresent:   0,
		StatusLate:      0,
		StatusLeftEarly: 0,
		StatusAbsent:    0,
	}

	var out []Record
	for _, rec := range l.recordsLocked() {
		if date != "" && (rec.CheckIn.IsZero() || rec.CheckIn.Format("2006-01-02") != date) {
			continue
		}
		counts[rec.Status]++
		if status != "" && rec.Status != status {
			continue
		}
		out = append(out, rec)
	}
	return out, counts
}

// Flush writes pending changes to the store, if any.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}
	if err := l.store.Save(l.recordsLocked()); err != nil {
		return err
	}
	l.dirty = false
	return nil
}

// flushLocked writes the table, logging instead of propagating a store
// failure: the in-memory ledger keeps serving and the write is retried
// on the next flush.
func (l *Ledger) flushLocked() {
	if err := l.store.Save(l.recordsLocked()); err != nil {
		l.log.WithError(err).Error("attendance store write failed, will retry on next flush")
		return
	}
	l.dirty = false
}
