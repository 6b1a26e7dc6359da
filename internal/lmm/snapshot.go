// internal/lmm/snapshot.go
package lmm

import (
	"github.com/tamzrod/fusa-sm/internal/status"
)

// Snapshot captures the published view of one LM.
func (f *Fusa) Snapshot(lmID uint32) (status.Snapshot, error) {
	lm, err := f.lm(lmID, "snapshot")
	if err != nil {
		return status.Snapshot{}, err
	}

	var latched uint16
	for _, id := range f.reg.OwnedBy(lmID) {
		if f.reg.Test(id) {
			latched++
		}
	}

	defer lm.cs.enter()()

	s := status.Snapshot{
		LM:           lmID,
		Name:         lm.cfg.Name,
		PendingFeenv: status.PendingNone,
		LastFault:    status.NoFault,

		LatchedFaults: latched,
	}
	if lm.cfg.Fusa {
		s.Flags |= status.FlagFusa
		s.Feenv = uint16(lm.feenv)
		s.MselMode = uint16(lm.msel)
		if lm.pending {
			s.PendingFeenv = uint16(lm.target)
		}
	}
	if lm.cfg.Seenv {
		s.Flags |= status.FlagSeenv
		s.Seenv = uint16(lm.seenv)
	}
	if len(lm.degraded) > 0 {
		s.Flags |= status.FlagDegraded
	}
	if lm.reacted {
		s.LastFault = uint32(lm.lastFault)
		s.LastReaction = uint16(lm.lastReaction)
	}
	return s, nil
}
