// internal/crc/crc_test.go
package crc

import (
	"errors"
	"hash/crc32"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/tamzrod/fusa-sm/internal/memimage"
	"github.com/tamzrod/fusa-sm/internal/status"
)

func image(n int) *memimage.Bytes {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i * 7)
	}
	return &memimage.Bytes{Base: 0x8000_0000, Data: data}
}

func TestCalculateRoundTrip(t *testing.T) {
	img := image(3 * chunkSize)
	c := NewChecker(img)

	got, err := c.Calculate(1, 0, PolyIEEE, 0x8000_0010, 9000)
	if err != nil {
		t.Fatalf("Calculate err=%v", err)
	}

	want := Result{
		Ready:    true,
		MemStart: 0x8000_0010,
		MemSize:  9000,
		Config:   PolyIEEE,
		CRC:      crc32.ChecksumIEEE(img.Data[0x10 : 0x10+9000]),
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want, c.Result(1, 0)); diff != "" {
		t.Fatalf("retained result mismatch (-want +got):\n%s", diff)
	}

	again, err := c.Calculate(1, 0, PolyIEEE, 0x8000_0010, 9000)
	if err != nil {
		t.Fatalf("second Calculate err=%v", err)
	}
	if again.CRC != got.CRC {
		t.Fatalf("repeat over unmodified memory changed crc: 0x%08x != 0x%08x", again.CRC, got.CRC)
	}
}

func TestResultNotReady(t *testing.T) {
	c := NewChecker(image(64))
	if r := c.Result(0, 0); r.Ready {
		t.Fatalf("fresh channel reported ready: %+v", r)
	}

	// a failed job on a fresh channel leaves it not ready
	_, err := c.Calculate(0, 0, PolyIEEE, 0, 16)
	if status.CodeOf(err) != status.HardwareError {
		t.Fatalf("expected HardwareError for unmapped read, got %v", err)
	}
	if r := c.Result(0, 0); r.Ready {
		t.Fatalf("failed job reported ready")
	}
}

func TestFailedJobKeepsPreviousResult(t *testing.T) {
	img := image(64)
	c := NewChecker(img)

	done, err := c.Calculate(0, 0, PolyIEEE, img.Base, 32)
	if err != nil {
		t.Fatalf("Calculate err=%v", err)
	}

	// runs past the end of the image
	if _, err := c.Calculate(0, 0, PolyIEEE, img.Base, 4096); status.CodeOf(err) != status.HardwareError {
		t.Fatalf("expected HardwareError for short read, got %v", err)
	}
	if diff := cmp.Diff(done, c.Result(0, 0)); diff != "" {
		t.Fatalf("retained result changed (-want +got):\n%s", diff)
	}
}

func TestPolynomialSelection(t *testing.T) {
	img := image(256)
	c := NewChecker(img)

	ieee, _ := c.Calculate(0, 0, PolyIEEE, img.Base, 256)
	cast, _ := c.Calculate(0, 1, PolyCastagnoli, img.Base, 256)
	if ieee.CRC == cast.CRC {
		t.Fatalf("polynomials should differ")
	}
	if want := crc32.Checksum(img.Data, crc32.MakeTable(crc32.Castagnoli)); cast.CRC != want {
		t.Fatalf("castagnoli crc 0x%08x, want 0x%08x", cast.CRC, want)
	}

	if _, err := c.Calculate(0, 0, 9, img.Base, 1); !errors.Is(err, status.ErrInvalidParameters) {
		t.Fatalf("expected InvalidParameters for unknown selector, got %v", err)
	}
	if _, err := c.Calculate(0, 0, PolyIEEE, img.Base, 0); !errors.Is(err, status.ErrInvalidParameters) {
		t.Fatalf("expected InvalidParameters for zero size, got %v", err)
	}
}

func TestForget(t *testing.T) {
	c := NewChecker(image(32))
	_, _ = c.Calculate(4, 0, PolyIEEE, 0x8000_0000, 32)
	_, _ = c.Calculate(5, 0, PolyIEEE, 0x8000_0000, 32)

	c.Forget(4)
	if c.Result(4, 0).Ready {
		t.Fatalf("forgotten lm still has a result")
	}
	if !c.Result(5, 0).Ready {
		t.Fatalf("other lm lost its result")
	}
}
