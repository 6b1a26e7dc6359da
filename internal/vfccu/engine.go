// internal/vfccu/engine.go

// Package vfccu is the fault collection and control engine. It reads the
// status groups of a cascade of collection-unit instances, aggregates them
// into the fault registry, drives software faults and clears latches.
package vfccu

import (
	"fmt"
	"math/bits"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// NoParent marks the root (central) instance.
const NoParent = -1

// Instance describes one node of the cascade.
type Instance struct {
	Index  int
	Name   string
	Parent int
	Access bool

	FirstFault   faults.FaultID
	HWGroups     int
	FirstSWFault faults.FaultID
	SWFaults     int

	Bank Bank
}

// Config is the static topology handed to New.
type Config struct {
	Instances []Instance
	Registry  *faults.Registry
}

// Sink receives every fault newly identified by ProcessFaults.
type Sink func(id faults.FaultID)

type node struct {
	Instance
	children []int
	depth    int

	// per-invocation scratch, guarded by Engine.procMu
	reads   []uint32
	own     faults.Accumulator
	cascade faults.Accumulator
	readErr error
}

// Engine owns the cascade. Instances live in a flat array indexed by
// Instance.Index; parent and child links are indices into it.
type Engine struct {
	log *logrus.Entry
	reg *faults.Registry

	nodes     []node
	root      int
	postOrder []int
	maxDepth  int

	sinkMu sync.RWMutex
	sink   Sink

	procMu    sync.Mutex
	stack     []frame
	traversal []int
}

type frame struct {
	idx  int
	next int
}

// New is the engine Init: it builds the topology, checks the tree
// invariant and probes every reachable instance. An unreachable instance
// fails with HardwareError.
func New(cfg Config, log *logrus.Entry) (*Engine, error) {
	const op = "vfccu init"

	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.Registry == nil {
		return nil, status.Errorf(status.InvalidParameters, op, "registry required")
	}
	n := len(cfg.Instances)
	if n == 0 {
		return nil, status.Errorf(status.InvalidParameters, op, "no instances")
	}

	e := &Engine{
		log:   log.WithField("component", "vfccu"),
		reg:   cfg.Registry,
		nodes: make([]node, n),
		root:  NoParent,
	}

	for _, in := range cfg.Instances {
		if in.Index < 0 || in.Index >= n {
			return nil, status.Errorf(status.InvalidParameters, op, "instance index %d out of range", in.Index)
		}
		if e.nodes[in.Index].Bank != nil {
			return nil, status.Errorf(status.InvalidParameters, op, "duplicate instance %d", in.Index)
		}
		if in.Bank == nil {
			return nil, status.Errorf(status.InvalidParameters, op, "instance %d has no bank", in.Index)
		}
		if in.SWFaults < 0 || in.SWFaults > faults.GroupWidth {
			return nil, status.Errorf(status.InvalidParameters, op, "instance %d: sw faults %d", in.Index, in.SWFaults)
		}
		if (in.HWGroups > 0 && in.FirstFault%faults.GroupWidth != 0) ||
			(in.SWFaults > 0 && in.FirstSWFault%faults.GroupWidth != 0) {
			return nil, status.Errorf(status.InvalidParameters, op, "instance %d: fault range not group aligned", in.Index)
		}
		e.nodes[in.Index] = node{
			Instance: in,
			reads:    make([]uint32, in.HWGroups+1),
		}
	}

	for i := range e.nodes {
		p := e.nodes[i].Parent
		switch {
		case p == NoParent:
			if e.root != NoParent {
				return nil, status.Errorf(status.InvalidParameters, op, "instances %d and %d are both roots", e.root, i)
			}
			e.root = i
		case p < 0 || p >= n:
			return nil, status.Errorf(status.InvalidParameters, op, "instance %d has unknown parent %d", i, p)
		default:
			e.nodes[p].children = append(e.nodes[p].children, i)
		}
	}
	if e.root == NoParent {
		return nil, status.Errorf(status.InvalidParameters, op, "no root instance")
	}

	// children are appended in index order already; postOrder and depths
	// come from one explicit-stack walk. Anything not reached is a cycle.
	if err := e.buildOrder(); err != nil {
		return nil, status.Wrap(status.InvalidParameters, op, err)
	}
	e.stack = make([]frame, 0, e.maxDepth+1)

	for i := range e.nodes {
		nd := &e.nodes[i]
		if !nd.Access {
			e.log.WithField("instance", i).Debug("instance not accessible from this context; probe skipped")
			continue
		}
		if err := nd.Bank.Probe(); err != nil {
			return nil, status.Wrap(status.HardwareError, op, fmt.Errorf("instance %d (%s): %w", i, nd.Name, err))
		}
	}

	e.log.WithFields(logrus.Fields{
		"instances": n,
		"root":      e.root,
		"depth":     e.maxDepth,
	}).Info("cascade initialized")

	return e, nil
}

func (e *Engine) buildOrder() error {
	seen := make([]bool, len(e.nodes))
	stack := []frame{{idx: e.root}}
	seen[e.root] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		nd := &e.nodes[top.idx]
		if top.next < len(nd.children) {
			c := nd.children[top.next]
			top.next++
			if seen[c] {
				return fmt.Errorf("instance %d reached twice", c)
			}
			seen[c] = true
			e.nodes[c].depth = nd.depth + 1
			if e.nodes[c].depth > e.maxDepth {
				e.maxDepth = e.nodes[c].depth
			}
			stack = append(stack, frame{idx: c})
			continue
		}
		e.postOrder = append(e.postOrder, top.idx)
		stack = stack[:len(stack)-1]
	}

	for i, ok := range seen {
		if !ok {
			return fmt.Errorf("instance %d does not reach the root", i)
		}
	}
	return nil
}

// SetSink installs the receiver of newly identified faults.
func (e *Engine) SetSink(s Sink) {
	e.sinkMu.Lock()
	e.sink = s
	e.sinkMu.Unlock()
}

// Root returns the index of the central instance.
func (e *Engine) Root() int { return e.root }

// Registry returns the fault registry the engine folds into.
func (e *Engine) Registry() *faults.Registry { return e.reg }

// AccessToCVfccu reports whether this context may access the central
// instance's global registers.
func (e *Engine) AccessToCVfccu() bool {
	return e.nodes[e.root].Access
}

// ---- reads ----

// GetSWFaults reads the software group of instance idx and folds it into
// c and acc. Software fault line b is reported as fault first+b.
func (e *Engine) GetSWFaults(idx int, c faults.Container, acc *faults.Accumulator, first faults.FaultID) error {
	nd, err := e.accessible(idx, "get sw faults")
	if err != nil {
		return err
	}
	if nd.SWFaults == 0 {
		return nil
	}
	v, err := nd.Bank.Status(nd.HWGroups)
	if err != nil {
		return status.Wrap(status.HardwareError, "get sw faults", err)
	}
	v &= swMask(nd.SWFaults)
	foldBits(c, first, v)
	*acc |= faults.Accumulator(v)
	return nil
}

// GetErrors reads every latched group of instance idx, hardware groups and
// the software group, into c and acc without clearing anything.
func (e *Engine) GetErrors(idx int, c faults.Container, acc *faults.Accumulator) error {
	nd, err := e.accessible(idx, "get errors")
	if err != nil {
		return err
	}
	for g := 0; g < nd.HWGroups; g++ {
		v, err := nd.Bank.Status(g)
		if err != nil {
			return status.Wrap(status.HardwareError, "get errors", fmt.Errorf("instance %d group %d: %w", idx, g, err))
		}
		foldBits(c, nd.FirstFault+faults.FaultID(g*faults.GroupWidth), v)
		*acc |= faults.Accumulator(v)
	}
	return e.GetSWFaults(idx, c, acc, nd.FirstSWFault)
}

// Latched reads the hardware latch of a single fault.
func (e *Engine) Latched(id faults.FaultID) (bool, error) {
	nd, group, mask, err := e.locate(id, "latched")
	if err != nil {
		return false, err
	}
	v, err := nd.Bank.Status(group)
	if err != nil {
		return false, status.Wrap(status.HardwareError, "latched", err)
	}
	return v&mask != 0, nil
}

// ---- writes ----

// ClearFaults clears the latch of one fault. A fault whose condition is
// still asserted is not cleared and fails with NotOk.
func (e *Engine) ClearFaults(id faults.FaultID) error {
	const op = "clear faults"

	nd, group, mask, err := e.locate(id, op)
	if err != nil {
		return err
	}
	cond, err := nd.Bank.Condition(group)
	if err != nil {
		return status.Wrap(status.HardwareError, op, err)
	}
	if cond&mask != 0 {
		return status.Errorf(status.NotOk, op, "fault %d still active", id)
	}
	if err := nd.Bank.Clear(group, mask); err != nil {
		return status.Wrap(status.HardwareError, op, err)
	}
	e.reg.Clear(id)

	e.log.WithFields(logrus.Fields{"fault": id, "instance": nd.Index}).Debug("fault cleared")
	return nil
}

// AssertSWFault raises the reaction line of a software fault.
func (e *Engine) AssertSWFault(id faults.FaultID) error {
	return e.setSW(id, true)
}

// DeassertSWFault drops the reaction line of a software fault. The latch
// stays set until ClearFaults.
func (e *Engine) DeassertSWFault(id faults.FaultID) error {
	return e.setSW(id, false)
}

// IsSWFault reports whether id lies in a software fault range.
func (e *Engine) IsSWFault(id faults.FaultID) bool {
	_, _, ok := e.swLine(id)
	return ok
}

func (e *Engine) setSW(id faults.FaultID, asserted bool) error {
	op := "deassert sw fault"
	if asserted {
		op = "assert sw fault"
	}
	nd, line, ok := e.swLine(id)
	if !ok {
		return status.Errorf(status.InvalidParameters, op, "fault %d is not a software fault", id)
	}
	if !nd.Access {
		return status.Errorf(status.NotOk, op, "instance %d not accessible", nd.Index)
	}
	if err := nd.Bank.SetSWLine(line, asserted); err != nil {
		return status.Wrap(status.HardwareError, op, err)
	}
	e.log.WithFields(logrus.Fields{"fault": id, "asserted": asserted}).Debug("sw fault line driven")
	return nil
}

// ---- helpers ----

func (e *Engine) accessible(idx int, op string) (*node, error) {
	if idx < 0 || idx >= len(e.nodes) {
		return nil, status.Errorf(status.InvalidParameters, op, "instance %d out of range", idx)
	}
	nd := &e.nodes[idx]
	if !nd.Access {
		return nil, status.Errorf(status.NotOk, op, "instance %d not accessible", idx)
	}
	return nd, nil
}

// locate maps a fault to its instance, bank group and bit.
func (e *Engine) locate(id faults.FaultID, op string) (*node, int, uint32, error) {
	for i := range e.nodes {
		nd := &e.nodes[i]
		if nd.HWGroups > 0 && id >= nd.FirstFault && id < nd.FirstFault+faults.FaultID(nd.HWGroups*faults.GroupWidth) {
			if !nd.Access {
				return nil, 0, 0, status.Errorf(status.NotOk, op, "instance %d not accessible", i)
			}
			rel := id - nd.FirstFault
			return nd, int(rel / faults.GroupWidth), rel.Mask(), nil
		}
	}
	if nd, line, ok := e.swLine(id); ok {
		if !nd.Access {
			return nil, 0, 0, status.Errorf(status.NotOk, op, "instance %d not accessible", nd.Index)
		}
		return nd, nd.HWGroups, 1 << line, nil
	}
	return nil, 0, 0, status.Errorf(status.InvalidParameters, op, "fault %d not in any instance", id)
}

func (e *Engine) swLine(id faults.FaultID) (*node, int, bool) {
	for i := range e.nodes {
		nd := &e.nodes[i]
		if nd.SWFaults > 0 && id >= nd.FirstSWFault && id < nd.FirstSWFault+faults.FaultID(nd.SWFaults) {
			return nd, int(id - nd.FirstSWFault), true
		}
	}
	return nil, 0, false
}

func swMask(n int) uint32 {
	if n >= faults.GroupWidth {
		return 0xFFFFFFFF
	}
	return 1<<n - 1
}

// foldBits ORs v into c with bit b standing for fault first+b.
func foldBits(c faults.Container, first faults.FaultID, v uint32) {
	if first%faults.GroupWidth == 0 {
		if g := first.Group(); g < len(c) {
			c[g] |= v
		}
		return
	}
	for v != 0 {
		b := bits.TrailingZeros32(v)
		v &^= 1 << b
		id := first + faults.FaultID(b)
		if g := id.Group(); g < len(c) {
			c[g] |= id.Mask()
		}
	}
}
