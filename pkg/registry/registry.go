// Package registry manages the student registry, a CSV table of
// student_id and name pairs.
package registry

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/attendwatch/attendwatch/pkg/logging"
)

// Student is one registry row.
type Student struct {
	ID   string
	Name string
}

// ErrStudentNotFound is returned when a student id is not registered.
var ErrStudentNotFound = errors.New("student not found")

// ErrStudentExists is returned when registering a duplicate student id.
var ErrStudentExists = errors.New("student already registered")

var header = []string{"student_id", "name"}

// Registry is a CSV-backed student table. Every mutation rewrites the
// whole file; the table is small enough that this is acceptable.
type Registry struct {
	path string
	mu   sync.Mutex
}

// New creates a registry over the given CSV path. The file is created
// lazily on the first write.
func New(path string) *Registry {
	return &Registry{path: path}
}

// Load reads all students. A missing file yields an empty registry.
func (r *Registry) Load() ([]Student, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.load()
}

func (r *Registry) load() ([]Student, error) {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Student{}, nil
		}
		return nil, fmt.Errorf("failed to open student registry: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read student registry: %w", err)
	}

	var students []Student
	for i, row := range rows {
		if i == 0 && len(row) > 0 && row[0] == header[0] {
			continue
		}
		if len(row) < 2 || row[0] == "" {
			continue
		}
		students = append(students, Student{ID: row[0], Name: row[1]})
	}
	return students, nil
}

func (r *Registry) save(students []Student) error {
	f, err := os.Create(r.path)
	if err != nil {
		return fmt.Errorf("failed to write student registry: %w", err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, s := range students {
		if err := writer.Write([]string{s.ID, s.Name}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Get returns the student with the given id.
func (r *Registry) Get(id string) (Student, error) {
	students, err := r.Load()
	if err != nil {
		return Student{}, err
	}
	for _, s := range students {
		if s.ID == id {
			return s, nil
		}
	}
	return Student{}, ErrStudentNotFound
}

// Exists reports whether a student id is registered.
func (r *Registry) Exists(id string) bool {
	_, err := r.Get(id)
	return err == nil
}

// Append registers a new student.
func (r *Registry) Append(s Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := r.load()
	if err != nil {
		return err
	}
	for _, existing := range students {
		if existing.ID == s.ID {
			return ErrStudentExists
		}
	}
	students = append(students, s)
	if err := r.save(students); err != nil {
		return err
	}
	logging.Component("registry").Infof("registered student %s (%s)", s.ID, s.Name)
	return nil
}

// Update renames a student or changes their id. The record keyed by
// oldID is replaced by the given student.
func (r *Registry) Update(oldID string, s Student) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := r.load()
	if err != nil {
		return err
	}
	if s.ID != oldID {
		for _, existing := range students {
			if existing.ID == s.ID {
				return ErrStudentExists
			}
		}
	}
	for i, existing := range students {
		if existing.ID == oldID {
			students[i] = s
			return r.save(students)
		}
	}
	return ErrStudentNotFound
}

// Delete removes a student from the registry.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	students, err := r.load()
	if err != nil {
		return err
	}
	for i, existing := range students {
		if existing.ID == id {
			students = append(students[:i], students[i+1:]...)
			if err := r.save(students); err != nil {
				return err
			}
			logging.Component("registry").Infof("deleted student %s", id)
			return nil
		}
	}
	return ErrStudentNotFound
}
