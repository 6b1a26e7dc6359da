// internal/lmm/crc.go
package lmm

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/crc"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// ErrCrcNotReady is returned by CrcResultGet and CrcVerify while no job
// has completed on the channel.
var ErrCrcNotReady = errors.New("crc: result not ready")

// crcJob checks lm, channel and range. CRC jobs block for the size of the
// range and are not run inside the critical section.
func (f *Fusa) crcJob(lmID, channel uint32, start uint64, size uint32, op string) (*lmState, error) {
	lm, err := f.lm(lmID, op)
	if err != nil {
		return nil, err
	}
	if f.checker == nil {
		return nil, status.Errorf(status.NotOk, op, "no crc engine attached")
	}
	if channel >= lm.cfg.CrcChannels {
		return nil, status.Errorf(status.InvalidParameters, op, "lm %d: channel %d >= %d", lmID, channel, lm.cfg.CrcChannels)
	}
	if size == 0 {
		return lm, nil
	}
	end := start + uint64(size)
	for _, r := range lm.cfg.Memory {
		if start >= r.Start && end >= start && end <= r.Start+r.Size {
			return lm, nil
		}
	}
	return nil, status.Errorf(status.InvalidParameters, op, "lm %d: range 0x%x+%d not permitted", lmID, start, size)
}

// CrcCalculate runs an integrity check of [memStart, memStart+memSize) on
// channel and retains the result. The low byte of cfg selects the
// polynomial.
func (f *Fusa) CrcCalculate(lmID, channel, cfg uint32, memStart uint64, memSize uint32) error {
	const op = "crc calculate"

	if _, err := f.crcJob(lmID, channel, memStart, memSize, op); err != nil {
		return err
	}
	res, err := f.checker.Calculate(lmID, channel, cfg, memStart, memSize)
	if err != nil {
		return err
	}
	f.log.WithFields(logrus.Fields{
		"lm":      lmID,
		"channel": channel,
		"start":   memStart,
		"size":    memSize,
		"crc":     res.CRC,
	}).Debug("crc computed")
	return nil
}

// CrcResultGet returns the range and checksum of the last completed job
// on channel, or ErrCrcNotReady.
func (f *Fusa) CrcResultGet(lmID, channel uint32) (uint64, uint32, uint32, error) {
	const op = "crc result get"

	if _, err := f.crcJob(lmID, channel, 0, 0, op); err != nil {
		return 0, 0, 0, err
	}
	res := f.checker.Result(lmID, channel)
	if !res.Ready {
		return 0, 0, 0, status.Wrap(status.NotOk, op, ErrCrcNotReady)
	}
	return res.MemStart, res.MemSize, res.CRC, nil
}

// CrcVerify compares the last result on channel with expected. A
// mismatch raises the LM's CRC fault, if it has one, and fails with NotOk.
func (f *Fusa) CrcVerify(lmID, channel, expected uint32) error {
	const op = "crc verify"

	lm, err := f.crcJob(lmID, channel, 0, 0, op)
	if err != nil {
		return err
	}
	res := f.checker.Result(lmID, channel)
	if !res.Ready {
		return status.Wrap(status.NotOk, op, ErrCrcNotReady)
	}
	if res.CRC == expected {
		return nil
	}

	f.log.WithFields(logrus.Fields{
		"lm":       lmID,
		"channel":  channel,
		"crc":      res.CRC,
		"expected": expected,
	}).Error("crc mismatch")

	mismatch := status.Errorf(status.NotOk, op, "lm %d channel %d: crc 0x%08x, expected 0x%08x", lmID, channel, res.CRC, expected)
	if lm.cfg.CrcFault != nil {
		if err := f.engine.AssertSWFault(*lm.cfg.CrcFault); err != nil {
			return errors.Join(mismatch, err)
		}
	}
	return mismatch
}

// CrcJob exposes the raw retained job, Ready included.
func (f *Fusa) CrcJob(lmID, channel uint32) (crc.Result, error) {
	if _, err := f.crcJob(lmID, channel, 0, 0, "crc job"); err != nil {
		return crc.Result{}, err
	}
	return f.checker.Result(lmID, channel), nil
}
