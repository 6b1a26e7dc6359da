// internal/lmm/feenv.go
package lmm

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/status"
)

// FeenvStateGet returns the FEENV state of lm and the mode selection that
// was in force when the state was entered.
func (f *Fusa) FeenvStateGet(lmID uint32) (FeenvState, uint32, error) {
	lm, err := f.fusaLM(lmID, "feenv get")
	if err != nil {
		return 0, 0, err
	}
	defer lm.cs.enter()()
	return lm.feenv, lm.msel, nil
}

// FeenvPendingGet returns the target of a graceful transition still
// waiting for its acknowledge.
func (f *Fusa) FeenvPendingGet(lmID uint32) (FeenvState, bool, error) {
	lm, err := f.fusaLM(lmID, "feenv pending get")
	if err != nil {
		return 0, false, err
	}
	defer lm.cs.enter()()
	return lm.target, lm.pending, nil
}

// FeenvStateSet validates and performs an FEENV transition. A graceful
// transition is only recorded and handed to the coordinator; FeenvAck
// completes it. Illegal edges fail with InvalidParameters and leave the
// state untouched.
func (f *Fusa) FeenvStateSet(lmID uint32, to FeenvState, graceful bool) (Transition, error) {
	const op = "feenv set"

	lm, err := f.fusaLM(lmID, op)
	if err != nil {
		return Applied, err
	}

	exit := lm.cs.enter()
	from := lm.feenv
	if !FeenvLegal(from, to) {
		exit()
		return Applied, status.Errorf(status.InvalidParameters, op, "lm %d: %s -> %s", lmID, from, to)
	}

	if graceful {
		lm.pending = true
		lm.target = to
		exit()

		f.log.WithFields(logrus.Fields{"lm": lmID, "from": from, "to": to}).Info("feenv transition pending ack")
		if f.coord != nil {
			f.coord.RequestAck(lmID, to)
		}
		return Pending, nil
	}

	err = f.apply(lm, to)
	exit()
	if err != nil {
		return Applied, err
	}
	f.log.WithFields(logrus.Fields{"lm": lmID, "from": from, "to": to}).Info("feenv transition applied")
	return Applied, nil
}

// FeenvAck answers a pending graceful transition. A refused ack drops it.
// An accepted ack is re-validated against the current state, which a
// fault reaction may have moved in the meantime.
func (f *Fusa) FeenvAck(lmID uint32, ok bool) error {
	const op = "feenv ack"

	lm, err := f.fusaLM(lmID, op)
	if err != nil {
		return err
	}
	defer lm.cs.enter()()

	if !lm.pending {
		return status.Errorf(status.NotOk, op, "lm %d has no pending transition", lmID)
	}
	to := lm.target
	lm.pending = false

	if !ok {
		f.log.WithFields(logrus.Fields{"lm": lmID, "to": to}).Warn("feenv transition refused")
		return nil
	}
	if !FeenvLegal(lm.feenv, to) {
		return status.Errorf(status.InvalidParameters, op, "lm %d: %s -> %s no longer legal", lmID, lm.feenv, to)
	}
	return f.apply(lm, to)
}

// apply enters to. Caller holds lm.cs. Entering SocShutdown or SocReset
// first releases the LM's software faults; if that fails the state is
// left as it was.
func (f *Fusa) apply(lm *lmState, to FeenvState) error {
	if to.teardown() {
		if err := f.teardown(lm); err != nil {
			return err
		}
	}

	lm.feenv = to
	lm.msel = f.msel.Load()
	lm.pending = false
	if to != FeenvSocStandby {
		lm.byFault = false
	}
	if to.teardown() {
		clear(lm.degraded)
	}
	return nil
}

// teardown deasserts and clears every software fault lm owns so none of
// them outlives the LM.
func (f *Fusa) teardown(lm *lmState) error {
	var errs []error
	for _, id := range f.reg.OwnedBy(lm.cfg.ID) {
		if !f.engine.IsSWFault(id) {
			continue
		}
		if err := f.engine.DeassertSWFault(id); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := f.engine.ClearFaults(id); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return status.Wrap(status.HardwareError, "feenv teardown", fmt.Errorf("lm %d: %w", lm.cfg.ID, errors.Join(errs...)))
	}
	return nil
}
