// internal/writer/writer.go
package writer

import (
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/status"
)

// Publisher fans snapshots out to one status writer per LM.
type Publisher struct {
	plan    *StatusPlan
	cli     endpointClient
	writers map[uint32]*lmStatusWriter
	log     *logrus.Entry
}

// NewPublisher builds a publisher writing through cli.
func NewPublisher(plan StatusPlan, cli endpointClient, log *logrus.Entry) *Publisher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Publisher{
		plan:    &plan,
		cli:     cli,
		writers: make(map[uint32]*lmStatusWriter),
		log:     log.WithField("component", "writer"),
	}
}

// Writer returns the status writer of lm, creating it on first use.
func (p *Publisher) Writer(lm uint32) StatusWriter {
	return p.writer(lm)
}

func (p *Publisher) writer(lm uint32) *lmStatusWriter {
	w, ok := p.writers[lm]
	if !ok {
		w = newLMStatusWriter(p.plan, p.cli, lm)
		p.writers[lm] = w
	}
	return w
}

// Publish delivers every snapshot. A failing LM does not stop the others.
func (p *Publisher) Publish(snaps []status.Snapshot) error {
	var errs []error
	for _, s := range snaps {
		if err := p.writer(s.LM).WriteStatus(s); err != nil {
			p.log.WithError(err).WithField("lm", s.LM).Warn("status write failed")
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
