package attendance

import (
	"sync"
	"time"
)

// PresenceSet tracks which students are currently believed to be in
// view, with their last-seen timestamps. It is scoped to a single
// monitoring session: created fresh when monitoring starts and cleared
// when it stops. The detection goroutine marks sightings while the
// reconciliation sweep reads and evicts, so all access is
// mutex-guarded.
type PresenceSet struct {
	mu   sync.Mutex
	seen map[string]time.Time
}

// NewPresenceSet returns an empty presence set.
func NewPresenceSet() *PresenceSet {
	return &PresenceSet{seen: make(map[string]time.Time)}
}

// Mark records a sighting of a student.
func (p *PresenceSet) Mark(studentID string, t time.Time) {
	p.mu.Lock()
	p.seen[studentID] = t
	p.mu.Unlock()
}

// LastSeen returns the last sighting of a student, if any.
func (p *PresenceSet) LastSeen(studentID string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.seen[studentID]
	return t, ok
}

// Remove evicts a student from the set.
func (p *PresenceSet) Remove(studentID string) {
	p.mu.Lock()
	delete(p.seen, studentID)
	p.mu.Unlock()
}

// Snapshot returns a copy of the current set.
func (p *PresenceSet) Snapshot() map[string]time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]time.Time, len(p.seen))
	for id, t := range p.seen {
		out[id] = t
	}
	return out
}

// Clear empties the set.
func (p *PresenceSet) Clear() {
	p.mu.Lock()
	p.seen = make(map[string]time.Time)
	p.mu.Unlock()
}

// Len returns the number of students currently tracked.
func (p *PresenceSet) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.seen)
}
