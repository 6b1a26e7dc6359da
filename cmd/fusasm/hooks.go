// cmd/fusasm/hooks.go
package main

import (
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/lmm"
)

// reactor reports reactions; the platform actions behind them are outside
// this process.
type reactor struct {
	log *logrus.Entry
}

func (r reactor) React(lm uint32, reaction faults.Reaction, fault faults.FaultID) {
	r.log.WithFields(logrus.Fields{
		"lm":       lm,
		"reaction": reaction,
		"fault":    fault,
	}).Warn("fault reaction")
}

// coordinator stands in for the management peer that confirms graceful
// transitions. With auto set it confirms every request.
type coordinator struct {
	log  *logrus.Entry
	auto bool
	fusa *lmm.Fusa
}

func (c *coordinator) RequestAck(lm uint32, target lmm.FeenvState) {
	entry := c.log.WithFields(logrus.Fields{"lm": lm, "target": target})
	if !c.auto || c.fusa == nil {
		entry.Info("graceful transition awaiting acknowledgement")
		return
	}
	// RequestAck runs on the caller's goroutine
	go func() {
		if err := c.fusa.FeenvAck(lm, true); err != nil {
			entry.WithError(err).Warn("acknowledgement rejected")
			return
		}
		entry.Info("graceful transition acknowledged")
	}()
}
