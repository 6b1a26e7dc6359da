// internal/vfccu/bank.go
package vfccu

import (
	"fmt"
	"sync"
)

// Bank is the register surface of one collection-unit instance.
//
// Groups 0..hwGroups-1 are hardware status groups; group hwGroups is the
// software fault group whose bits are driven by SetSWLine.
type Bank interface {
	// Probe checks that the instance is reachable.
	Probe() error
	// Status reads the latched bits of one group without clearing them.
	Status(group int) (uint32, error)
	// Condition reads the live (unlatched) condition of one group.
	Condition(group int) (uint32, error)
	// Clear acknowledges latched bits (write-1-to-clear).
	Clear(group int, mask uint32) error
	// SetSWLine drives one software fault reaction line.
	SetSWLine(line int, asserted bool) error
}

// SimBank is an in-memory Bank used by tests and by "sim" instances.
// Latches follow the condition: raising a condition latches it, releasing
// it leaves the latch until cleared.
type SimBank struct {
	mu       sync.Mutex
	hwGroups int
	status   []uint32
	cond     []uint32
	probeErr error
	reads    int
}

// NewSimBank returns a bank with hwGroups hardware groups plus the software group.
func NewSimBank(hwGroups int) *SimBank {
	return &SimBank{
		hwGroups: hwGroups,
		status:   make([]uint32, hwGroups+1),
		cond:     make([]uint32, hwGroups+1),
	}
}

// FailProbe makes Probe return err.
func (b *SimBank) FailProbe(err error) {
	b.mu.Lock()
	b.probeErr = err
	b.mu.Unlock()
}

// Raise asserts and latches a hardware condition.
func (b *SimBank) Raise(group, bit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cond[group] |= 1 << bit
	b.status[group] |= 1 << bit
}

// Release de-asserts a hardware condition; the latch stays set.
func (b *SimBank) Release(group, bit int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cond[group] &^= 1 << bit
}

// Reads returns how many Status reads the bank served.
func (b *SimBank) Reads() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reads
}

func (b *SimBank) Probe() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probeErr
}

func (b *SimBank) Status(group int) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(group); err != nil {
		return 0, err
	}
	b.reads++
	return b.status[group], nil
}

func (b *SimBank) Condition(group int) (uint32, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(group); err != nil {
		return 0, err
	}
	return b.cond[group], nil
}

func (b *SimBank) Clear(group int, mask uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.check(group); err != nil {
		return err
	}
	// a live condition re-latches immediately
	b.status[group] &^= mask &^ b.cond[group]
	return nil
}

func (b *SimBank) SetSWLine(line int, asserted bool) error {
	if line < 0 || line >= 32 {
		return fmt.Errorf("sim bank: sw line %d out of range", line)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	sw := b.hwGroups
	if asserted {
		b.cond[sw] |= 1 << line
		b.status[sw] |= 1 << line
	} else {
		b.cond[sw] &^= 1 << line
	}
	return nil
}

func (b *SimBank) check(group int) error {
	if group < 0 || group > b.hwGroups {
		return fmt.Errorf("sim bank: group %d out of range", group)
	}
	return nil
}
