// internal/memimage/map_unix.go

//go:build unix

package memimage

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// Mapped is a read-only shared mapping of a file or device node placed at
// Base in the address space.
type Mapped struct {
	base uint64

	mu   sync.RWMutex
	data []byte
}

// Map maps size bytes of path starting at file offset off, read-only.
func Map(path string, base uint64, off int64, size int) (*Mapped, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("memimage: open %s: %w", path, err)
	}
	defer f.Close()

	if size <= 0 {
		st, err := f.Stat()
		if err != nil {
			return nil, fmt.Errorf("memimage: stat %s: %w", path, err)
		}
		size = int(st.Size() - off)
	}
	if size <= 0 {
		return nil, fmt.Errorf("memimage: %s: nothing to map at offset %d", path, off)
	}

	data, err := unix.Mmap(int(f.Fd()), off, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memimage: mmap %s: %w", path, err)
	}
	return &Mapped{base: base, data: data}, nil
}

// ReadAt copies from the mapping.
func (m *Mapped) ReadAt(p []byte, addr uint64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return 0, fmt.Errorf("memimage: mapping closed")
	}
	b := Bytes{Base: m.base, Data: m.data}
	return b.ReadAt(p, addr)
}

// Start implements Region.
func (m *Mapped) Start() uint64 { return m.base }

// Len implements Region.
func (m *Mapped) Len() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.data))
}

// Close unmaps the image.
func (m *Mapped) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		return nil
	}
	err := unix.Munmap(m.data)
	m.data = nil
	return err
}
