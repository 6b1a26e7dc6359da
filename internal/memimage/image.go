// internal/memimage/image.go

// Package memimage provides the memory images CRC jobs read from.
package memimage

import (
	"fmt"
	"sort"
	"sync"
)

// Bytes is a memory image backed by a byte slice mapped at Base.
type Bytes struct {
	Base uint64
	Data []byte
}

// ReadAt copies from the image. Reads outside the image fail.
func (b *Bytes) ReadAt(p []byte, addr uint64) (int, error) {
	if addr < b.Base || addr-b.Base >= uint64(len(b.Data)) {
		return 0, fmt.Errorf("memimage: address 0x%x outside [0x%x,0x%x)", addr, b.Base, b.Base+uint64(len(b.Data)))
	}
	off := addr - b.Base
	n := copy(p, b.Data[off:])
	if n < len(p) {
		return n, fmt.Errorf("memimage: short read at 0x%x: %d of %d bytes", addr, n, len(p))
	}
	return n, nil
}

// Region is one piece of a composite address space.
type Region interface {
	ReadAt(p []byte, addr uint64) (int, error)
	Start() uint64
	Len() uint64
}

// Start implements Region.
func (b *Bytes) Start() uint64 { return b.Base }

// Len implements Region.
func (b *Bytes) Len() uint64 { return uint64(len(b.Data)) }

// Space stitches regions into one address space. A read must lie inside a
// single region.
type Space struct {
	mu      sync.RWMutex
	regions []Region
}

// Add registers r. Overlapping regions are rejected.
func (s *Space) Add(r Region) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.regions {
		if r.Start() < o.Start()+o.Len() && o.Start() < r.Start()+r.Len() {
			return fmt.Errorf("memimage: region 0x%x overlaps 0x%x", r.Start(), o.Start())
		}
	}
	s.regions = append(s.regions, r)
	sort.Slice(s.regions, func(i, j int) bool { return s.regions[i].Start() < s.regions[j].Start() })
	return nil
}

// ReadAt dispatches to the region holding addr.
func (s *Space) ReadAt(p []byte, addr uint64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.regions {
		if addr >= r.Start() && addr-r.Start() < r.Len() {
			return r.ReadAt(p, addr)
		}
	}
	return 0, fmt.Errorf("memimage: address 0x%x unmapped", addr)
}
