// internal/status/constants.go
package status

// LM Status Block layout constants.
// These values define the protocol and MUST NOT be configurable.

// ---- BLOCK GEOMETRY ----

// SlotsPerLM is the fixed number of logical slots per logical machine.
const SlotsPerLM = 20

// ---- SLOT INDICES ----

const (
	SlotFeenv         = 0
	SlotSeenv         = 1
	SlotMselMode      = 2
	SlotPendingFeenv  = 3 // PendingNone when no graceful transition is pending
	SlotFlags         = 4
	SlotLatchedFaults = 5
	SlotLastFaultHi   = 6
	SlotLastFaultLo   = 7
	SlotLastReaction  = 8
)

// Slots 9–10 are reserved for future use.
const SlotReservedStart = 9
const SlotReservedEnd = 10

// ---- LM NAME ----

// SlotNameStart is the first slot used for the LM name.
// The name is always placed at the END of the status block.
const SlotNameStart = 11

// SlotNameSlots is the number of slots reserved for the LM name.
const SlotNameSlots = 8

// SlotNameEnd is the last slot used for the LM name (inclusive).
const SlotNameEnd = SlotNameStart + SlotNameSlots - 1

// NameMaxChars is the maximum number of ASCII characters stored for the name.
const NameMaxChars = 16

// ---- FLAGS ----

const (
	FlagFusa     uint16 = 1 << 0
	FlagSeenv    uint16 = 1 << 1
	FlagDegraded uint16 = 1 << 2
)

// PendingNone marks the absence of a pending FEENV target.
const PendingNone uint16 = 0xFFFF

// NoFault marks the absence of a last fault.
const NoFault uint32 = 0xFFFFFFFF
