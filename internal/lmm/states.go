// internal/lmm/states.go
package lmm

import "fmt"

// FeenvState is the functional-safety environment state of an LM.
type FeenvState uint32

const (
	FeenvPreSafety FeenvState = iota
	FeenvSafetyRuntime
	FeenvSocStandby
	FeenvSocShutdown
	FeenvSocReset
)

func (s FeenvState) String() string {
	switch s {
	case FeenvPreSafety:
		return "pre-safety"
	case FeenvSafetyRuntime:
		return "safety-runtime"
	case FeenvSocStandby:
		return "soc-standby"
	case FeenvSocShutdown:
		return "soc-shutdown"
	case FeenvSocReset:
		return "soc-reset"
	default:
		return fmt.Sprintf("feenv(%d)", uint32(s))
	}
}

func (s FeenvState) valid() bool { return s <= FeenvSocReset }

// teardown reports whether entering s must release the LM's software faults.
func (s FeenvState) teardown() bool {
	return s == FeenvSocShutdown || s == FeenvSocReset
}

// feenvEdges is the legal transition table. Any state may enter SocReset.
var feenvEdges = map[FeenvState][]FeenvState{
	FeenvPreSafety:     {FeenvSafetyRuntime},
	FeenvSafetyRuntime: {FeenvSocStandby, FeenvSocShutdown, FeenvSocReset},
	FeenvSocStandby:    {FeenvSafetyRuntime, FeenvSocShutdown, FeenvSocReset},
}

// FeenvLegal reports whether from -> to is a legal FEENV edge.
func FeenvLegal(from, to FeenvState) bool {
	if !from.valid() || !to.valid() {
		return false
	}
	if to == FeenvSocReset {
		return true
	}
	for _, s := range feenvEdges[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SeenvState is the lifecycle state of an LM's safety monitor.
type SeenvState uint32

const (
	SeenvInit SeenvState = iota
	SeenvSafetyReady
	SeenvSafetyRuntime
	SeenvTerminal
)

func (s SeenvState) String() string {
	switch s {
	case SeenvInit:
		return "init"
	case SeenvSafetyReady:
		return "safety-ready"
	case SeenvSafetyRuntime:
		return "safety-runtime"
	case SeenvTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("seenv(%d)", uint32(s))
	}
}

func (s SeenvState) valid() bool { return s <= SeenvTerminal }

// seenvGuarded reports whether from -> to needs a fresh cookie and a
// matching signature. SafetyRuntime -> SafetyRuntime is the heartbeat.
func seenvGuarded(from, to SeenvState) bool {
	switch {
	case from == SeenvInit && to == SeenvSafetyReady:
		return true
	case from == SeenvSafetyReady && to == SeenvSafetyRuntime:
		return true
	case from == SeenvSafetyRuntime && to == SeenvSafetyRuntime:
		return true
	}
	return false
}

// Transition tells whether a FEENV change was applied or left pending.
type Transition uint8

const (
	Applied Transition = iota
	Pending
)

func (t Transition) String() string {
	if t == Pending {
		return "pending"
	}
	return "applied"
}
