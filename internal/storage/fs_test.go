package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestFS(t *testing.T) *FS {
	t.Helper()
	f, err := NewFS(t.TempDir())
	if err != nil {
		t.Fatalf("NewFS: %v", err)
	}
	return f
}

func TestPutGetRoundTrip(t *testing.T) {
	f := newTestFS(t)

	data := []byte("costume bytes")
	id, err := f.Put("costume", "png", data)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if len(id) != 32 {
		t.Errorf("id = %q, want 32-char md5", id)
	}

	got, err := f.Get("costume", "png", id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != string(data) {
		t.Errorf("Get = %q, want %q", got, data)
	}
	if !f.Exists("costume", "png", id) {
		t.Error("Exists = false after Put")
	}
}

func TestPutIsIdempotent(t *testing.T) {
	f := newTestFS(t)

	id1, err := f.Put("sound", "wav", []byte("beep"))
	if err != nil {
		t.Fatalf("first Put: %v", err)
	}
	id2, err := f.Put("sound", "wav", []byte("beep"))
	if err != nil {
		t.Fatalf("second Put: %v", err)
	}
	if id1 != id2 {
		t.Errorf("ids differ: %q vs %q", id1, id2)
	}

	infos, err := f.List("sound")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 1 {
		t.Errorf("len(List) = %d, want 1", len(infos))
	}
}

func TestJpegExtensionNormalized(t *testing.T) {
	f := newTestFS(t)

	id, err := f.Put("thumbnail", "jpeg", []byte("jfif"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(f.Root(), "thumbnail", id+".jpg")); err != nil {
		t.Errorf("expected .jpg on disk: %v", err)
	}
	// Read back with either alias.
	if _, err := f.Get("thumbnail", "jpg", id); err != nil {
		t.Errorf("Get jpg: %v", err)
	}
	if _, err := f.Get("thumbnail", "jpeg", id); err != nil {
		t.Errorf("Get jpeg: %v", err)
	}
}

func TestTraversalRejected(t *testing.T) {
	f := newTestFS(t)

	if _, err := f.Put("../escape", "png", []byte("x")); err == nil {
		t.Error("Put with traversal type succeeded")
	}
	if _, err := f.Get("costume", "png", "../../etc/passwd"); err == nil {
		t.Error("Get with traversal id succeeded")
	}
	if _, err := f.List(".."); err == nil {
		t.Error("List with traversal type succeeded")
	}
}

func TestDeleteAndList(t *testing.T) {
	f := newTestFS(t)

	id, err := f.Put("costume", "svg", []byte("<svg/>"))
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := f.Delete("costume", "svg", id); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if f.Exists("costume", "svg", id) {
		t.Error("Exists = true after Delete")
	}
	infos, err := f.List("")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("len(List) = %d, want 0", len(infos))
	}
}
