// internal/memimage/map_unix_test.go

//go:build unix

package memimage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMapFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")
	if err := os.WriteFile(path, []byte("safety-image"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	m, err := Map(path, 0x4000, 0, 0)
	if err != nil {
		t.Fatalf("Map err=%v", err)
	}
	defer m.Close()

	p := make([]byte, 5)
	if _, err := m.ReadAt(p, 0x4007); err != nil || string(p) != "image" {
		t.Fatalf("ReadAt = %v, %q", err, p)
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close err=%v", err)
	}
	if _, err := m.ReadAt(p, 0x4000); err == nil {
		t.Fatalf("expected error after Close")
	}
}
