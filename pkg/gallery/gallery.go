// Package gallery holds the in-memory set of known face encodings used
// as match candidates during monitoring and look-ups.
package gallery

import (
	"sync"

	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/logging"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

// Gallery maps student ids to their reference encoding and display
// name. It is rebuilt on demand from the student registry and the
// encoding store; a rebuild replaces the whole mapping atomically, so
// readers never observe a partially stale gallery.
type Gallery struct {
	mu         sync.RWMutex
	candidates []recognition.Candidate
	byID       map[string]recognition.Candidate
}

// New returns an empty gallery.
func New() *Gallery {
	return &Gallery{byID: make(map[string]recognition.Candidate)}
}

// Rebuild replaces the gallery contents from the current registry and
// encoding store. Students without a stored encoding are skipped; they
// cannot be matched until enrolled. Must be called after any
// registration, edit, or deletion.
func (g *Gallery) Rebuild(reg *registry.Registry, store *facestore.Store) error {
	students, err := reg.Load()
	if err != nil {
		return err
	}

	candidates := make([]recognition.Candidate, 0, len(students))
	byID := make(map[string]recognition.Candidate, len(students))

	for _, s := range students {
		data, err := store.Load(s.ID)
		if err != nil {
			if err == facestore.ErrNotEnrolled {
				continue
			}
			return err
		}
		c := recognition.Candidate{ID: s.ID, Name: s.Name, Descriptor: data.Descriptor}
		candidates = append(candidates, c)
		byID[s.ID] = c
	}

	g.mu.Lock()
	g.candidates = candidates
	g.byID = byID
	g.mu.Unlock()

	logging.Component("gallery").Infof("gallery rebuilt with %d encoding(s)", len(candidates))
	return nil
}

// Candidates returns a snapshot of all gallery entries.
func (g *Gallery) Candidates() []recognition.Candidate {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]recognition.Candidate, len(g.candidates))
	copy(out, g.candidates)
	return out
}

// Lookup returns the gallery entry for a student id.
func (g *Gallery) Lookup(id string) (recognition.Candidate, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	c, ok := g.byID[id]
	return c, ok
}

// Size returns the number of entries.
func (g *Gallery) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.candidates)
}
