// internal/lmm/fault.go
package lmm

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// FaultGet reads the latch of one fault on behalf of lm.
func (f *Fusa) FaultGet(lmID uint32, id faults.FaultID) (bool, error) {
	if _, err := f.lm(lmID, "fault get"); err != nil {
		return false, err
	}
	return f.engine.Latched(id)
}

// FaultSet asserts or releases a software fault owned by lm. Releasing
// drops the reaction line and clears the latch. One LM can neither forge
// nor mask a fault it does not own.
func (f *Fusa) FaultSet(lmID uint32, id faults.FaultID, set bool) error {
	const op = "fault set"

	lm, err := f.lm(lmID, op)
	if err != nil {
		return err
	}
	if !f.reg.Owns(lmID, id) {
		return status.Errorf(status.InvalidParameters, op, "fault %d not owned by lm %d", id, lmID)
	}
	if !f.engine.IsSWFault(id) {
		return status.Errorf(status.InvalidParameters, op, "fault %d is not a software fault", id)
	}

	exit := lm.cs.enter()
	if set {
		err = f.engine.AssertSWFault(id)
		exit()
		return err
	}
	if err = f.engine.DeassertSWFault(id); err == nil {
		err = f.engine.ClearFaults(id)
	}
	exit()
	if err != nil {
		return err
	}
	f.FaultCleared(id)
	return nil
}

// FaultRecover turns a processed fault into its configured (reaction,
// owning LM) pair. A fault without a reaction row fails with NotFound.
func (f *Fusa) FaultRecover(id faults.FaultID) (faults.Reaction, uint32, error) {
	e, ok := f.reg.Lookup(id)
	if !ok {
		return 0, 0, status.Errorf(status.NotFound, "fault recover", "fault %d has no configured reaction", id)
	}
	return e.Reaction, e.Owner, nil
}

// HandleFault applies the configured reaction of a newly identified fault
// to its owning LM and hands it to the reactor.
func (f *Fusa) HandleFault(id faults.FaultID) error {
	e, ok := f.reg.Lookup(id)
	if !ok {
		return status.Errorf(status.NotFound, "handle fault", "fault %d has no configured reaction", id)
	}
	lm, err := f.lm(e.Owner, "handle fault")
	if err != nil {
		return err
	}
	return f.respond(lm, e, false)
}

// respond records and applies one reaction to lm, then notifies the
// reactor outside the critical section. With recheck set, a fault that
// was already acted on is only re-applied: the reactor hears about it
// again only if the LM state moved.
func (f *Fusa) respond(lm *lmState, e faults.ReactionEntry, recheck bool) error {
	exit := lm.cs.enter()
	_, seen := lm.acted[e.Fault]

	from := lm.feenv
	var err error
	if lm.cfg.Fusa {
		err = f.enterFor(lm, e)
	}
	to := lm.feenv

	if recheck && seen && from == to {
		exit()
		return err
	}
	lm.acted[e.Fault] = struct{}{}
	lm.lastFault = e.Fault
	lm.lastReaction = e.Reaction
	lm.reacted = true
	exit()

	fields := logrus.Fields{
		"lm":       e.Owner,
		"fault":    e.Fault,
		"name":     e.Name,
		"reaction": e.Reaction,
		"severity": e.Severity,
	}
	if from != to {
		fields["feenv"] = to
	}
	switch e.Severity {
	case faults.SeverityCritical:
		f.log.WithFields(fields).Error("fault reaction")
	case faults.SeverityWarning:
		f.log.WithFields(fields).Warn("fault reaction")
	default:
		f.log.WithFields(fields).Info("fault reaction")
	}

	f.react(e.Owner, e.Reaction, e.Fault)
	return err
}

// enterFor moves lm according to the reaction of e. Caller holds lm.cs.
// A fault reaction supersedes any pending graceful transition.
func (f *Fusa) enterFor(lm *lmState, e faults.ReactionEntry) error {
	switch e.Reaction {
	case faults.ReactionDegrade:
		lm.degraded[e.Fault] = struct{}{}
		if lm.feenv == FeenvSafetyRuntime {
			if err := f.apply(lm, FeenvSocStandby); err != nil {
				return err
			}
			lm.byFault = true
		}
	case faults.ReactionShutdown:
		switch {
		case lm.feenv == FeenvSocShutdown || lm.feenv == FeenvSocReset:
		case FeenvLegal(lm.feenv, FeenvSocShutdown):
			return f.apply(lm, FeenvSocShutdown)
		default:
			return f.apply(lm, FeenvSocReset)
		}
	case faults.ReactionReset:
		return f.apply(lm, FeenvSocReset)
	}
	return nil
}

// FaultCleared tells the owning LM that a fault's latch was cleared. Once
// no degrading fault is left, a fault-induced standby returns to runtime.
func (f *Fusa) FaultCleared(id faults.FaultID) {
	e, ok := f.reg.Lookup(id)
	if !ok {
		return
	}
	lm, err := f.lm(e.Owner, "fault cleared")
	if err != nil {
		return
	}

	exit := lm.cs.enter()
	delete(lm.degraded, id)
	delete(lm.acted, id)
	restored, err := f.restore(lm)
	exit()

	if err != nil {
		f.log.WithError(err).WithField("lm", e.Owner).Error("restore after clear failed")
	} else if restored {
		f.log.WithFields(logrus.Fields{"lm": e.Owner, "fault": id}).Info("degradation cleared; back to runtime")
	}
}

// restore leaves a fault-induced standby when nothing degrades lm any
// more. Caller holds lm.cs.
func (f *Fusa) restore(lm *lmState) (bool, error) {
	if len(lm.degraded) > 0 || lm.feenv != FeenvSocStandby || !lm.byFault {
		return false, nil
	}
	if err := f.apply(lm, FeenvSafetyRuntime); err != nil {
		return false, err
	}
	return true, nil
}

// ScheckEvntrig re-evaluates lm against the latches of the faults it owns,
// outside the interrupt path. The degraded set is rebuilt from the latches
// and the strongest latched reaction is applied.
func (f *Fusa) ScheckEvntrig(lmID uint32) error {
	const op = "scheck evntrig"

	lm, err := f.lm(lmID, op)
	if err != nil {
		return err
	}

	var (
		errs      []error
		latched   = make(map[faults.FaultID]struct{})
		strongest *faults.ReactionEntry
	)
	for _, id := range f.reg.OwnedBy(lmID) {
		on, err := f.engine.Latched(id)
		if err != nil {
			if status.CodeOf(err) != status.NotOk {
				errs = append(errs, err)
			}
			continue
		}
		if !on {
			continue
		}
		latched[id] = struct{}{}
		e, _ := f.reg.Lookup(id)
		if strongest == nil || e.Reaction > strongest.Reaction {
			strongest = &e
		}
	}

	exit := lm.cs.enter()
	for id := range lm.degraded {
		if _, ok := latched[id]; !ok {
			delete(lm.degraded, id)
		}
	}
	for id := range lm.acted {
		if _, ok := latched[id]; !ok {
			delete(lm.acted, id)
		}
	}
	for id := range latched {
		if e, _ := f.reg.Lookup(id); e.Reaction == faults.ReactionDegrade && lm.cfg.Fusa {
			lm.degraded[id] = struct{}{}
		}
	}
	if strongest == nil || strongest.Reaction == faults.ReactionContain {
		if _, err := f.restore(lm); err != nil {
			errs = append(errs, err)
		}
	}
	exit()

	if strongest != nil {
		if err := f.respond(lm, *strongest, true); err != nil {
			errs = append(errs, err)
		}
	}

	f.log.WithFields(logrus.Fields{"lm": lmID, "latched": len(latched)}).Debug("self-check evaluated")
	if len(errs) > 0 {
		return status.Wrap(status.HardwareError, op, errors.Join(errs...))
	}
	return nil
}
