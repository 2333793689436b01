package attendance

import (
	"sync"
)

// memStore is an in-memory Store for ledger tests.
type memStore struct {
	mu        sync.Mutex
	records   []Record
	saveCalls int
	loadErr   error
	saveErr   error
}

func (m *memStore) Load() ([]Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out, nil
}

func (m *memStore) Save(records []Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveCalls++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.records = make([]Record, len(records))
	copy(m.records, records)
	return nil
}

func (m *memStore) saved() []Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Record, len(m.records))
	copy(out, m.records)
	return out
}

func (m *memStore) saves() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saveCalls
}
