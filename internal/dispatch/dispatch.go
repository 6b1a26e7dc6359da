// internal/dispatch/dispatch.go

// Package dispatch is the fault interrupt entry. It asks the engine to
// identify new faults, tries to clear their latches and routes each one to
// the state machine of its owning LM.
package dispatch

import (
	"errors"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/lmm"
	"github.com/tamzrod/fusa-sm/internal/status"
	"github.com/tamzrod/fusa-sm/internal/vfccu"
)

// Result is the outcome of one interrupt or poll.
type Result struct {
	// Originated is false when the interrupt did not come from the cascade.
	Originated bool

	Faults       []faults.FaultID // newly identified, in traversal order
	Unconfigured []faults.FaultID // identified but without a reaction row
	Cleared      []faults.FaultID // latches cleared during this call

	Err error
}

// Stats are running counters since New.
type Stats struct {
	Interrupts   uint64
	Foreign      uint64
	Faults       uint64
	Unconfigured uint64
}

// Dispatcher connects the engine to the state machine.
type Dispatcher struct {
	log  *logrus.Entry
	fusa *lmm.Fusa
	eng  *vfccu.Engine

	mu    sync.Mutex
	batch []faults.FaultID
	held  map[faults.FaultID]struct{} // identified, latch not yet clearable

	interrupts   atomic.Uint64
	foreign      atomic.Uint64
	identified   atomic.Uint64
	unconfigured atomic.Uint64
}

// New installs the dispatcher as the engine's fault sink.
func New(f *lmm.Fusa, log *logrus.Entry) *Dispatcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	d := &Dispatcher{
		log:  log.WithField("component", "dispatch"),
		fusa: f,
		eng:  f.Engine(),
		held: make(map[faults.FaultID]struct{}),
	}
	// only called from ProcessFaults, which runs under d.mu
	d.eng.SetSink(func(id faults.FaultID) { d.batch = append(d.batch, id) })
	return d
}

// HandleInterrupt services one fault interrupt.
func (d *Dispatcher) HandleInterrupt() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(false)
}

// Poll is the polled variant: it services the cascade like an interrupt
// and retries the latches that could not be cleared earlier.
func (d *Dispatcher) Poll() Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.run(true)
}

// Stats returns the running counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Interrupts:   d.interrupts.Load(),
		Foreign:      d.foreign.Load(),
		Faults:       d.identified.Load(),
		Unconfigured: d.unconfigured.Load(),
	}
}

// Held lists the identified faults whose latch is still set, ascending.
func (d *Dispatcher) Held() []faults.FaultID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.heldIDs()
}

func (d *Dispatcher) run(retry bool) Result {
	var (
		res  Result
		errs []error
	)
	d.interrupts.Add(1)
	d.batch = d.batch[:0]

	originated, err := d.eng.ProcessFaults(d.eng.Root())
	if err != nil {
		errs = append(errs, err)
	}
	res.Originated = originated
	res.Faults = append([]faults.FaultID(nil), d.batch...)

	if !originated && err == nil && !retry {
		d.foreign.Add(1)
		d.log.Debug("foreign interrupt")
	}

	// identify and clear
	var cleared []faults.FaultID
	for _, id := range res.Faults {
		d.identified.Add(1)
		if ok, err := d.clear(id); err != nil {
			errs = append(errs, err)
		} else if ok {
			cleared = append(cleared, id)
		}
	}

	// route
	for _, id := range res.Faults {
		err := d.fusa.HandleFault(id)
		switch status.CodeOf(err) {
		case status.Ok:
		case status.NotFound:
			d.unconfigured.Add(1)
			res.Unconfigured = append(res.Unconfigured, id)
			d.log.WithField("fault", id).Warn("fault has no configured reaction; ignored")
		default:
			errs = append(errs, err)
		}
	}

	if retry {
		for _, id := range d.heldIDs() {
			if ok, err := d.clear(id); err != nil {
				errs = append(errs, err)
			} else if ok {
				cleared = append(cleared, id)
			}
		}
	}

	for _, id := range cleared {
		d.fusa.FaultCleared(id)
	}
	res.Cleared = cleared

	if len(errs) > 0 {
		res.Err = errors.Join(errs...)
		d.log.WithError(res.Err).Error("fault dispatch incomplete")
	}
	return res
}

// clear tries to clear one latch. A fault whose condition is still active
// is remembered for a later poll and is not an error.
func (d *Dispatcher) clear(id faults.FaultID) (bool, error) {
	err := d.eng.ClearFaults(id)
	switch status.CodeOf(err) {
	case status.Ok:
		delete(d.held, id)
		return true, nil
	case status.NotOk:
		if _, ok := d.held[id]; !ok {
			d.log.WithField("fault", id).Debug("fault still active; latch held")
		}
		d.held[id] = struct{}{}
		return false, nil
	default:
		return false, err
	}
}

func (d *Dispatcher) heldIDs() []faults.FaultID {
	out := make([]faults.FaultID, 0, len(d.held))
	for id := range d.held {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
