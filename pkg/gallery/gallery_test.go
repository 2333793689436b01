package gallery

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/attendwatch/attendwatch/pkg/facestore"
	"github.com/attendwatch/attendwatch/pkg/recognition"
	"github.com/attendwatch/attendwatch/pkg/registry"
)

func testDescriptor(seed float32) recognition.Descriptor {
	var d recognition.Descriptor
	d[0] = seed
	return d
}

func newTestBackends(t *testing.T) (*registry.Registry, *facestore.Store) {
	t.Helper()
	dir := t.TempDir()
	faces, err := facestore.New(filepath.Join(dir, "faces"), false)
	if err != nil {
		t.Fatalf("facestore.New failed: %v", err)
	}
	return registry.New(filepath.Join(dir, "students.csv")), faces
}

func TestGalleryRebuild(t *testing.T) {
	reg, faces := newTestBackends(t)

	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Append(registry.Student{ID: "s2", Name: "Bob"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s2", Descriptor: testDescriptor(0.2)}); err != nil {
		t.Fatal(err)
	}

	g := New()
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if g.Size() != 2 {
		t.Errorf("size = %d, want 2", g.Size())
	}

	c, ok := g.Lookup("s1")
	if !ok {
		t.Fatal("Lookup(s1) = false, want true")
	}
	if c.Name != "Alice" {
		t.Errorf("name = %q, want Alice", c.Name)
	}
	if c.Descriptor != testDescriptor(0.1) {
		t.Error("descriptor mismatch")
	}
}

func TestGallerySkipsUnenrolled(t *testing.T) {
	reg, faces := newTestBackends(t)

	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Append(registry.Student{ID: "s2", Name: "Bob"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}

	g := New()
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if g.Size() != 1 {
		t.Errorf("size = %d, want 1 (s2 has no encoding)", g.Size())
	}
	if _, ok := g.Lookup("s2"); ok {
		t.Error("student without encoding must not be matchable")
	}
}

func TestGalleryRebuildReplacesContents(t *testing.T) {
	reg, faces := newTestBackends(t)

	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}

	g := New()
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatal(err)
	}

	if err := reg.Delete("s1"); err != nil {
		t.Fatal(err)
	}
	if err := faces.Delete("s1"); err != nil {
		t.Fatal(err)
	}
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatal(err)
	}

	if g.Size() != 0 {
		t.Errorf("size = %d, want 0 after removal", g.Size())
	}
	if _, ok := g.Lookup("s1"); ok {
		t.Error("removed student still in gallery")
	}
}

func TestGalleryCandidatesSnapshot(t *testing.T) {
	reg, faces := newTestBackends(t)

	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}

	g := New()
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatal(err)
	}

	snap := g.Candidates()
	snap[0].Name = "Mallory"

	c, _ := g.Lookup("s1")
	if c.Name != "Alice" {
		t.Error("mutating the snapshot must not affect the gallery")
	}
}

func TestGalleryConcurrentRebuildAndLookup(t *testing.T) {
	reg, faces := newTestBackends(t)

	if err := reg.Append(registry.Student{ID: "s1", Name: "Alice"}); err != nil {
		t.Fatal(err)
	}
	if err := faces.Save(facestore.FaceData{StudentID: "s1", Descriptor: testDescriptor(0.1)}); err != nil {
		t.Fatal(err)
	}

	g := New()
	if err := g.Rebuild(reg, faces); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if err := g.Rebuild(reg, faces); err != nil {
					t.Errorf("Rebuild failed: %v", err)
					return
				}
			}
		}()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				// A reader must always observe the full gallery, never a
				// partial rebuild.
				if len(g.Candidates()) != 1 {
					t.Error("observed partially rebuilt gallery")
					return
				}
				if _, ok := g.Lookup("s1"); !ok {
					t.Error("observed gallery without s1")
					return
				}
			}
		}()
	}
	wg.Wait()
}
