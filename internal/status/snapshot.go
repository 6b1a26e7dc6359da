// internal/status/snapshot.go
package status

// Snapshot represents exactly what the writer is allowed to deliver for one LM.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	LM   uint32
	Name string

	Feenv        uint16
	Seenv        uint16
	MselMode     uint16
	PendingFeenv uint16
	Flags        uint16

	LatchedFaults uint16
	LastFault     uint32
	LastReaction  uint16
}
