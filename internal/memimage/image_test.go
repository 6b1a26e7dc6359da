// internal/memimage/image_test.go
package memimage

import "testing"

func TestBytesBounds(t *testing.T) {
	b := &Bytes{Base: 0x100, Data: []byte{1, 2, 3, 4}}

	p := make([]byte, 2)
	if n, err := b.ReadAt(p, 0x102); err != nil || n != 2 || p[0] != 3 || p[1] != 4 {
		t.Fatalf("ReadAt = %d, %v, %v", n, err, p)
	}
	if _, err := b.ReadAt(p, 0x103); err == nil {
		t.Fatalf("expected short read error")
	}
	if _, err := b.ReadAt(p, 0xFF); err == nil {
		t.Fatalf("expected out of range error")
	}
}

func TestSpaceDispatchAndOverlap(t *testing.T) {
	var s Space
	if err := s.Add(&Bytes{Base: 0x1000, Data: []byte{0xAA, 0xBB}}); err != nil {
		t.Fatalf("Add err=%v", err)
	}
	if err := s.Add(&Bytes{Base: 0x2000, Data: []byte{0xCC}}); err != nil {
		t.Fatalf("Add err=%v", err)
	}
	if err := s.Add(&Bytes{Base: 0x1001, Data: []byte{0}}); err == nil {
		t.Fatalf("expected overlap error")
	}

	p := make([]byte, 1)
	if _, err := s.ReadAt(p, 0x2000); err != nil || p[0] != 0xCC {
		t.Fatalf("ReadAt(0x2000) = %v, %x", err, p)
	}
	if _, err := s.ReadAt(p, 0x3000); err == nil {
		t.Fatalf("expected unmapped error")
	}
}
