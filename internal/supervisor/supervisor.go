// internal/supervisor/supervisor.go
package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/dispatch"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// Dispatcher is the polled fault entry.
type Dispatcher interface {
	Poll() dispatch.Result
}

// Safety abstracts the state machine operations the supervisor needs.
type Safety interface {
	ScheckEvntrig(lm uint32) error
	Snapshot(lm uint32) (status.Snapshot, error)
}

// Config is the minimal runtime config the supervisor needs.
type Config struct {
	Interval time.Duration
	Check    []uint32 // LMs self-checked every cycle
	Publish  []uint32 // LMs snapshotted every cycle
}

// Supervisor is a clock-driven safety supervision loop.
type Supervisor struct {
	cfg    Config
	disp   Dispatcher
	safety Safety
	log    *logrus.Entry
}

// New creates a supervisor with immutable config.
func New(cfg Config, disp Dispatcher, safety Safety, log *logrus.Entry) (*Supervisor, error) {
	if cfg.Interval <= 0 {
		return nil, errors.New("supervisor: interval must be > 0")
	}
	if disp == nil || safety == nil {
		return nil, errors.New("supervisor: dispatcher and safety required")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Supervisor{
		cfg:    cfg,
		disp:   disp,
		safety: safety,
		log:    log.WithField("component", "supervisor"),
	}, nil
}

// PollOnce performs exactly one supervision cycle: a polled dispatch,
// one self-check per checked LM, then a snapshot per published LM.
// A failing step does not skip the others; failures are joined into Err.
func (s *Supervisor) PollOnce() PollResult {
	res := PollResult{At: time.Now()}

	var errs []error

	res.Dispatch = s.disp.Poll()
	if res.Dispatch.Err != nil {
		errs = append(errs, res.Dispatch.Err)
	}

	for _, lm := range s.cfg.Check {
		if err := s.safety.ScheckEvntrig(lm); err != nil {
			errs = append(errs, fmt.Errorf("lm %d self-check: %w", lm, err))
		}
	}

	for _, lm := range s.cfg.Publish {
		snap, err := s.safety.Snapshot(lm)
		if err != nil {
			errs = append(errs, fmt.Errorf("lm %d snapshot: %w", lm, err))
			continue
		}
		res.Snapshots = append(res.Snapshots, snap)
	}

	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		res.ErrorCode = uint16(status.CodeOf(res.Err))
		s.log.WithError(res.Err).Warn("supervision cycle incomplete")
	}
	return res
}
