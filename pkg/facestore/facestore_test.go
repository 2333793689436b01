package facestore

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/attendwatch/attendwatch/pkg/recognition"
)

func testDescriptor(seed float32) recognition.Descriptor {
	var d recognition.Descriptor
	for i := range d {
		d[i] = seed + float32(i)*0.01
	}
	return d
}

func TestStoreSaveAndLoad(t *testing.T) {
	tests := []struct {
		name       string
		encryption bool
	}{
		{"plain", false},
		{"encrypted", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(t.TempDir(), tt.encryption)
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}

			want := FaceData{
				StudentID:  "s1",
				Descriptor: testDescriptor(0.1),
				CapturedAt: time.Now(),
			}
			if err := s.Save(want); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			got, err := s.Load("s1")
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got.StudentID != want.StudentID {
				t.Errorf("student id = %q, want %q", got.StudentID, want.StudentID)
			}
			if got.Descriptor != want.Descriptor {
				t.Error("descriptor not preserved")
			}
		})
	}
}

func TestStoreEncryptedFileIsOpaque(t *testing.T) {
	dir := t.TempDir()
	s, err := New(dir, true)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Save(FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "s1.enc"))
	if err != nil {
		t.Fatalf("reading encrypted file: %v", err)
	}
	if len(raw) == 0 {
		t.Fatal("encrypted file is empty")
	}
	for _, marker := range []string{"student_id", "descriptor"} {
		if bytes.Contains(raw, []byte(marker)) {
			t.Errorf("encrypted file leaks plaintext %q", marker)
		}
	}
}

func TestStoreLoadMissing(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if _, err := s.Load("nobody"); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("Load(missing) error = %v, want ErrNotEnrolled", err)
	}
}

func TestStoreSaveOverwrites(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := s.Save(FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}
	replacement := testDescriptor(0.5)
	if err := s.Save(FaceData{StudentID: "s1", Descriptor: replacement}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Load("s1")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got.Descriptor != replacement {
		t.Error("second save must replace the first encoding")
	}
}

func TestStoreDeleteAndExists(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if s.Exists("s1") {
		t.Error("Exists before save = true, want false")
	}
	if err := s.Save(FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}
	if !s.Exists("s1") {
		t.Error("Exists after save = false, want true")
	}

	if err := s.Delete("s1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if s.Exists("s1") {
		t.Error("Exists after delete = true, want false")
	}
	if err := s.Delete("s1"); !errors.Is(err, ErrNotEnrolled) {
		t.Errorf("Delete(missing) error = %v, want ErrNotEnrolled", err)
	}
}

func TestStoreList(t *testing.T) {
	s, err := New(t.TempDir(), false)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	for _, id := range []string{"s2", "s1", "s3"} {
		if err := s.Save(FaceData{StudentID: id, Descriptor: testDescriptor(0.1)}); err != nil {
			t.Fatal(err)
		}
	}

	ids, err := s.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(ids)
	want := []string{"s1", "s2", "s3"}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("ids = %v, want %v", ids, want)
			break
		}
	}
}
