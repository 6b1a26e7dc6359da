// internal/crc/crc.go

// Package crc computes integrity checksums over memory ranges on behalf of
// logical machines. Jobs run to completion inside Calculate; there is no
// background worker and no cancellation. A new job for the same
// (LM, channel) replaces the previous result once it completes.
package crc

import (
	"hash"
	"hash/crc32"
	"sync"

	"github.com/tamzrod/fusa-sm/internal/status"
)

// Memory is the address space a job reads from.
type Memory interface {
	ReadAt(p []byte, addr uint64) (int, error)
}

// Polynomial selectors carried in the low byte of the job config.
const (
	PolyIEEE       = 0
	PolyCastagnoli = 1
	PolyKoopman    = 2
)

const chunkSize = 4096

var tables = map[uint32]*crc32.Table{
	PolyIEEE:       crc32.IEEETable,
	PolyCastagnoli: crc32.MakeTable(crc32.Castagnoli),
	PolyKoopman:    crc32.MakeTable(crc32.Koopman),
}

// Table returns the table selected by cfg.
func Table(cfg uint32) (*crc32.Table, bool) {
	t, ok := tables[cfg&0xFF]
	return t, ok
}

// Result is what a finished (or pending) job reports.
type Result struct {
	Ready    bool
	MemStart uint64
	MemSize  uint32
	Config   uint32
	CRC      uint32
}

type key struct {
	lm      uint32
	channel uint32
}

// Checker runs jobs and retains one result per (LM, channel).
type Checker struct {
	mem Memory

	mu   sync.Mutex
	jobs map[key]Result
}

// NewChecker returns a checker reading from mem.
func NewChecker(mem Memory) *Checker {
	return &Checker{mem: mem, jobs: make(map[key]Result)}
}

// Calculate runs one job synchronously and retains its result once it
// completes. A read failure fails with HardwareError and keeps the
// previous result of the channel.
func (c *Checker) Calculate(lm, channel, cfg uint32, start uint64, size uint32) (Result, error) {
	const op = "crc calculate"

	table, ok := Table(cfg)
	if !ok {
		return Result{}, status.Errorf(status.InvalidParameters, op, "unknown polynomial selector %d", cfg&0xFF)
	}
	if size == 0 {
		return Result{}, status.Errorf(status.InvalidParameters, op, "zero size")
	}
	if c.mem == nil {
		return Result{}, status.Errorf(status.HardwareError, op, "no memory attached")
	}

	res := Result{MemStart: start, MemSize: size, Config: cfg}

	sum, err := checksum(c.mem, crc32.New(table), start, size)
	if err != nil {
		return Result{}, status.Wrap(status.HardwareError, op, err)
	}

	res.CRC = sum
	res.Ready = true

	c.mu.Lock()
	c.jobs[key{lm, channel}] = res
	c.mu.Unlock()

	return res, nil
}

// Result returns the retained job of (lm, channel). Ready is false when no
// job completed on that channel.
func (c *Checker) Result(lm, channel uint32) Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.jobs[key{lm, channel}]
}

// Forget drops every job of lm.
func (c *Checker) Forget(lm uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.jobs {
		if k.lm == lm {
			delete(c.jobs, k)
		}
	}
}

func checksum(mem Memory, h hash.Hash32, start uint64, size uint32) (uint32, error) {
	buf := make([]byte, chunkSize)
	addr := start
	left := uint64(size)
	for left > 0 {
		n := uint64(len(buf))
		if left < n {
			n = left
		}
		got, err := mem.ReadAt(buf[:n], addr)
		if err != nil {
			return 0, err
		}
		if got == 0 {
			return 0, status.Errorf(status.HardwareError, "crc read", "no progress at 0x%x", addr)
		}
		h.Write(buf[:got])
		addr += uint64(got)
		left -= uint64(got)
	}
	return h.Sum32(), nil
}

// Sum is a one-shot checksum of data with the selected polynomial.
func Sum(cfg uint32, data []byte) (uint32, bool) {
	t, ok := Table(cfg)
	if !ok {
		return 0, false
	}
	return crc32.Checksum(data, t), true
}
