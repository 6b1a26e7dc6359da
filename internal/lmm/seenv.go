// internal/lmm/seenv.go
package lmm

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/status"
)

func (f *Fusa) seenvLM(id uint32, op string) (*lmState, error) {
	lm, err := f.lm(id, op)
	if err != nil {
		return nil, err
	}
	if !lm.cfg.Seenv {
		return nil, status.Errorf(status.InvalidParameters, op, "lm %d hosts no safety monitor", id)
	}
	return lm, nil
}

// SeenvStateGet returns the safety monitor state of lm.
func (f *Fusa) SeenvStateGet(lmID uint32) (SeenvState, error) {
	lm, err := f.seenvLM(lmID, "seenv get")
	if err != nil {
		return 0, err
	}
	defer lm.cs.enter()()
	return lm.seenv, nil
}

// SeenvStateSet moves the safety monitor of lm. The Init -> SafetyReady,
// SafetyReady -> SafetyRuntime and SafetyRuntime -> SafetyRuntime edges
// need a cookie newer than the last accepted one and the configuration
// signature. A cookie that passes is consumed even if the signature then
// fails. A wrong signature raises the LM's signature fault. Terminal is
// always accepted and never left.
func (f *Fusa) SeenvStateSet(lmID uint32, to SeenvState, cookie, signature uint32) error {
	const op = "seenv set"

	lm, err := f.seenvLM(lmID, op)
	if err != nil {
		return err
	}
	if !to.valid() {
		return status.Errorf(status.InvalidParameters, op, "unknown state %d", uint32(to))
	}

	exit := lm.cs.enter()
	from := lm.seenv
	fields := logrus.Fields{"lm": lmID, "from": from, "to": to}

	if to == SeenvTerminal {
		lm.seenv = to
		exit()
		f.log.WithFields(fields).Warn("safety monitor terminal")
		return nil
	}
	if !seenvGuarded(from, to) {
		exit()
		return status.Errorf(status.InvalidParameters, op, "lm %d: %s -> %s", lmID, from, to)
	}
	// serial-number comparison so the cookie may wrap
	if lm.cookieSeen && int32(cookie-lm.cookie) <= 0 {
		exit()
		f.log.WithFields(fields).WithField("cookie", cookie).Warn("stale liveness cookie")
		return status.Errorf(status.InvalidParameters, op, "lm %d: stale cookie %d", lmID, cookie)
	}
	lm.cookie = cookie
	lm.cookieSeen = true

	if signature != f.signature {
		exit()
		f.log.WithFields(fields).WithField("signature", signature).Error("safety monitor signature mismatch")
		rejected := status.Errorf(status.InvalidParameters, op, "lm %d: signature 0x%08x mismatch", lmID, signature)
		if err := f.engine.AssertSWFault(*lm.cfg.SignatureFault); err != nil {
			return errors.Join(rejected, err)
		}
		return rejected
	}

	lm.seenv = to
	exit()
	if from != to {
		f.log.WithFields(fields).Info("seenv transition applied")
	}
	return nil
}

// Signature returns the value safety monitors must present.
func (f *Fusa) Signature() uint32 { return f.signature }
