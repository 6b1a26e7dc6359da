// internal/faults/types.go

// Package faults is the Fault Registry: fault bits by ID and the static
// per-fault reaction table. It has no behavior beyond storage.
//
// Group mapping: fault ID f lives in group f/GroupWidth at bit f%GroupWidth.
// Every collection-unit range starts on a group boundary, so a status
// register of one instance maps onto exactly one registry group.
package faults

import (
	"fmt"
	"math/bits"
)

// GroupWidth is the number of faults per status group.
const GroupWidth = 32

// FaultID identifies one fault source across the whole system.
type FaultID uint32

// Group returns the registry group index holding f.
func (f FaultID) Group() int { return int(f / GroupWidth) }

// Mask returns the bit of f within its group.
func (f FaultID) Mask() uint32 { return 1 << (f % GroupWidth) }

// Container is an ordered sequence of status groups.
// Bit b of group g is fault g*GroupWidth+b.
type Container []uint32

// NewContainer returns a zeroed container covering nFaults IDs.
func NewContainer(nFaults uint32) Container {
	return make(Container, (nFaults+GroupWidth-1)/GroupWidth)
}

// Has reports whether f is set.
func (c Container) Has(f FaultID) bool {
	g := f.Group()
	return g < len(c) && c[g]&f.Mask() != 0
}

// IDs lists every set fault in ascending order.
func (c Container) IDs() []FaultID {
	var out []FaultID
	for g, v := range c {
		for v != 0 {
			b := bits.TrailingZeros32(v)
			out = append(out, FaultID(g*GroupWidth+b))
			v &^= 1 << b
		}
	}
	return out
}

// Reset zeroes every group.
func (c Container) Reset() {
	for i := range c {
		c[i] = 0
	}
}

// Accumulator is the OR-reduction of the groups of one instance.
// Non-zero means the instance has at least one pending fault.
type Accumulator uint32

// Pending reports whether any fault is folded in.
func (a Accumulator) Pending() bool { return a != 0 }

// ---- REACTIONS ----

// Reaction is the configured response to a fault, ordered by escalation.
type Reaction uint8

const (
	ReactionContain Reaction = iota
	ReactionDegrade
	ReactionShutdown
	ReactionReset
)

func (r Reaction) String() string {
	switch r {
	case ReactionContain:
		return "contain"
	case ReactionDegrade:
		return "degrade"
	case ReactionShutdown:
		return "shutdown"
	case ReactionReset:
		return "reset"
	default:
		return fmt.Sprintf("reaction(%d)", uint8(r))
	}
}

// ParseReaction maps a configuration keyword to a Reaction.
func ParseReaction(s string) (Reaction, error) {
	switch s {
	case "contain":
		return ReactionContain, nil
	case "degrade":
		return ReactionDegrade, nil
	case "shutdown":
		return ReactionShutdown, nil
	case "reset":
		return ReactionReset, nil
	}
	return 0, fmt.Errorf("faults: unknown reaction %q", s)
}

// Severity grades a fault for logging and prioritization.
type Severity uint8

const (
	SeverityInfo Severity = iota
	SeverityWarning
	SeverityCritical
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityCritical:
		return "critical"
	default:
		return fmt.Sprintf("severity(%d)", uint8(s))
	}
}

// ParseSeverity maps a configuration keyword to a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch s {
	case "info":
		return SeverityInfo, nil
	case "warning", "":
		return SeverityWarning, nil
	case "critical":
		return SeverityCritical, nil
	}
	return 0, fmt.Errorf("faults: unknown severity %q", s)
}

// ReactionEntry maps one fault to its owning LM and reaction.
type ReactionEntry struct {
	Fault    FaultID
	Name     string
	Owner    uint32
	Reaction Reaction
	Severity Severity
}
