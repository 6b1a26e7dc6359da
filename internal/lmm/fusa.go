// internal/lmm/fusa.go

// Package lmm is the Logical Machine FuSa state machine. It keeps one
// F-EENV record per participating LM and one S-EENV record per LM hosting
// a safety monitor, turns faults into per-LM reactions and runs the CRC
// integrity checks LMs request.
//
// Every validate-then-apply sequence on an LM runs inside that LM's
// critical section, so a fault arriving mid-transition never sees or
// builds on a half-applied state.
package lmm

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/crc"
	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/status"
	"github.com/tamzrod/fusa-sm/internal/vfccu"
)

// Reactor is the System Manager side that executes reactions
// (power and reset actions on the LM).
type Reactor interface {
	React(lm uint32, reaction faults.Reaction, fault faults.FaultID)
}

// Coordinator is told about graceful FEENV requests. It must not block;
// it answers later through FeenvAck.
type Coordinator interface {
	RequestAck(lm uint32, target FeenvState)
}

// Region is a memory range an LM may have checked.
type Region struct {
	Start uint64
	Size  uint64
}

// LMConfig describes one logical machine.
type LMConfig struct {
	ID    uint32
	Name  string
	Fusa  bool
	Seenv bool

	SignatureFault *faults.FaultID
	CrcFault       *faults.FaultID
	CrcChannels    uint32
	Memory         []Region
}

// Config is everything Init needs besides the cascade.
type Config struct {
	LMs            []LMConfig
	ModeSelections uint32
	Signature      *uint32 // nil => derived from the reaction table

	Checker     *crc.Checker
	Reactor     Reactor
	Coordinator Coordinator
}

// critical is the per-LM section masking the fault path for the duration
// of a validate-then-apply sequence. Use as: defer lm.cs.enter()().
type critical struct{ mu sync.Mutex }

func (c *critical) enter() func() {
	c.mu.Lock()
	return c.mu.Unlock
}

type lmState struct {
	cs  critical
	cfg LMConfig

	feenv    FeenvState
	msel     uint32
	pending  bool
	target   FeenvState
	byFault  bool // SocStandby entered by a degrade reaction
	degraded map[faults.FaultID]struct{}
	acted    map[faults.FaultID]struct{} // latched faults already reacted to

	seenv      SeenvState
	cookie     uint32
	cookieSeen bool

	lastFault    faults.FaultID
	lastReaction faults.Reaction
	reacted      bool
}

// Fusa owns the per-LM records. It is created once by Init and never
// reallocated.
type Fusa struct {
	log *logrus.Entry

	engine  *vfccu.Engine
	reg     *faults.Registry
	checker *crc.Checker
	reactor Reactor
	coord   Coordinator

	lms        []*lmState
	modeSels   uint32
	msel       atomic.Uint32
	signature  uint32
	seenvCount uint32
}

// Init brings up the fault engine and allocates the records of every
// configured LM. A fault engine that cannot be brought up fails Init with
// its HardwareError: FuSa cannot run without fault visibility.
func Init(cfg Config, vcfg vfccu.Config, log *logrus.Entry) (*Fusa, error) {
	const op = "fusa init"

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if len(cfg.LMs) == 0 {
		return nil, status.Errorf(status.InvalidParameters, op, "no logical machines")
	}
	if cfg.ModeSelections == 0 {
		return nil, status.Errorf(status.InvalidParameters, op, "mode selections must be > 0")
	}

	eng, err := vfccu.New(vcfg, log)
	if err != nil {
		return nil, err
	}

	f := &Fusa{
		log:      log.WithField("component", "lmm"),
		engine:   eng,
		reg:      vcfg.Registry,
		checker:  cfg.Checker,
		reactor:  cfg.Reactor,
		coord:    cfg.Coordinator,
		lms:      make([]*lmState, len(cfg.LMs)),
		modeSels: cfg.ModeSelections,
	}

	for _, lc := range cfg.LMs {
		if lc.ID >= uint32(len(cfg.LMs)) || f.lms[lc.ID] != nil {
			return nil, status.Errorf(status.InvalidParameters, op, "lm ids must be unique and dense: %d", lc.ID)
		}
		if lc.Seenv && lc.SignatureFault == nil {
			return nil, status.Errorf(status.InvalidParameters, op, "lm %d hosts a safety monitor without a signature fault", lc.ID)
		}
		f.lms[lc.ID] = &lmState{cfg: lc}
		if lc.Seenv {
			f.seenvCount++
		}
	}
	for _, lm := range f.lms {
		lm.reset()
	}

	if cfg.Signature != nil {
		f.signature = *cfg.Signature
	} else {
		f.signature = Signature(f.reg.Entries())
	}

	f.log.WithFields(logrus.Fields{
		"lms":   len(f.lms),
		"seenv": f.seenvCount,
	}).Info("fusa initialized")

	return f, nil
}

func (lm *lmState) reset() {
	lm.feenv = FeenvPreSafety
	lm.msel = 0
	lm.pending = false
	lm.byFault = false
	lm.degraded = make(map[faults.FaultID]struct{})
	lm.acted = make(map[faults.FaultID]struct{})
	lm.seenv = SeenvInit
	lm.cookie = 0
	lm.cookieSeen = false
	lm.lastFault = faults.FaultID(status.NoFault)
	lm.reacted = false
}

// Signature derives the safety-configuration signature a safety monitor
// must present: CRC-32 (IEEE) over the reaction table in fault order,
// each row as fault, owner (little-endian u32), reaction, severity (u8).
func Signature(entries []faults.ReactionEntry) uint32 {
	buf := make([]byte, 0, len(entries)*10)
	for _, e := range entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Fault))
		buf = binary.LittleEndian.AppendUint32(buf, e.Owner)
		buf = append(buf, byte(e.Reaction), byte(e.Severity))
	}
	sum, _ := crc.Sum(crc.PolyIEEE, buf)
	return sum
}

// Engine exposes the fault engine to the dispatcher.
func (f *Fusa) Engine() *vfccu.Engine { return f.engine }

// LMs returns the configured LM ids in order.
func (f *Fusa) LMs() []uint32 {
	out := make([]uint32, len(f.lms))
	for i := range f.lms {
		out[i] = uint32(i)
	}
	return out
}

// SsenvNumGet reports how many LMs host a safety monitor.
func (f *Fusa) SsenvNumGet() uint32 { return f.seenvCount }

// ModeSelSet selects the system mode recorded with later FEENV transitions.
func (f *Fusa) ModeSelSet(msel uint32) error {
	if msel >= f.modeSels {
		return status.Errorf(status.InvalidParameters, "mode sel set", "msel %d >= %d", msel, f.modeSels)
	}
	f.msel.Store(msel)
	f.log.WithField("msel", msel).Info("mode selection changed")
	return nil
}

// Reset returns every record, the registry and the CRC jobs to their
// initial values, as a full system reset does.
func (f *Fusa) Reset() {
	for _, lm := range f.lms {
		exit := lm.cs.enter()
		lm.reset()
		exit()
		if f.checker != nil {
			f.checker.Forget(lm.cfg.ID)
		}
	}
	f.reg.Reset()
	f.msel.Store(0)
	f.log.Info("fusa reset")
}

func (f *Fusa) lm(id uint32, op string) (*lmState, error) {
	if id >= uint32(len(f.lms)) {
		return nil, status.Errorf(status.InvalidParameters, op, "unknown lm %d", id)
	}
	return f.lms[id], nil
}

func (f *Fusa) fusaLM(id uint32, op string) (*lmState, error) {
	lm, err := f.lm(id, op)
	if err != nil {
		return nil, err
	}
	if !lm.cfg.Fusa {
		return nil, status.Errorf(status.InvalidParameters, op, "lm %d has no feenv record", id)
	}
	return lm, nil
}

func (f *Fusa) react(lm uint32, r faults.Reaction, id faults.FaultID) {
	if f.reactor != nil {
		f.reactor.React(lm, r, id)
	}
}
