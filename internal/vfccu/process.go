// internal/vfccu/process.go
package vfccu

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// ProcessFaults handles a fault interrupt for the subtree rooted at idx
// (the root in practice). It reports whether any fault originated inside
// that subtree; false means the interrupt is foreign to this cascade.
//
// Phase one reads every accessible instance of the subtree once, children
// before parents, and derives the accumulators: an instance's accumulator
// is its own status OR-ed with the accumulators of its children.
//
// Phase two walks the subtree depth-first with an explicit stack, entering
// only children whose accumulator is non-zero, in ascending index order.
// Each instance is folded into the registry after its children, and faults
// not latched before are handed to the sink. The stack never holds more
// than one frame per tree level.
func (e *Engine) ProcessFaults(idx int) (bool, error) {
	const op = "process faults"

	if idx < 0 || idx >= len(e.nodes) {
		return false, status.Errorf(status.InvalidParameters, op, "instance %d out of range", idx)
	}
	if !e.nodes[idx].Access {
		return false, status.Errorf(status.NotOk, op, "instance %d not accessible", idx)
	}

	e.procMu.Lock()
	defer e.procMu.Unlock()

	e.sinkMu.RLock()
	sink := e.sink
	e.sinkMu.RUnlock()

	var errs []error

	// ---- phase one: accumulate ----
	for _, i := range e.postOrder {
		if !e.within(i, idx) {
			continue
		}
		nd := &e.nodes[i]
		nd.own, nd.readErr = 0, nil
		if nd.Access {
			nd.readErr = e.readOwn(nd)
			if nd.readErr != nil {
				errs = append(errs, nd.readErr)
			}
		}
		nd.cascade = nd.own
		for _, c := range nd.children {
			nd.cascade |= e.nodes[c].cascade
		}
	}

	root := &e.nodes[idx]
	e.traversal = e.traversal[:0]

	// ---- phase two: depth-first fold ----
	if root.cascade.Pending() {
		e.stack = append(e.stack[:0], frame{idx: idx})
		for len(e.stack) > 0 {
			top := &e.stack[len(e.stack)-1]
			nd := &e.nodes[top.idx]

			if top.next < len(nd.children) {
				c := nd.children[top.next]
				top.next++
				if e.nodes[c].cascade.Pending() {
					e.stack = append(e.stack, frame{idx: c})
				}
				continue
			}

			e.traversal = append(e.traversal, top.idx)
			if nd.Access && nd.readErr == nil {
				e.fold(nd, sink)
			}
			e.stack = e.stack[:len(e.stack)-1]
		}
	}

	// quiet instances are re-derived as empty
	for _, i := range e.postOrder {
		nd := &e.nodes[i]
		if e.within(i, idx) && nd.Access && nd.readErr == nil && !nd.cascade.Pending() {
			e.fold(nd, nil)
		}
	}

	originated := root.cascade.Pending()
	e.log.WithFields(logrus.Fields{
		"instance":   idx,
		"originated": originated,
		"visited":    len(e.traversal),
	}).Debug("faults processed")

	if len(errs) > 0 {
		return originated, status.Wrap(status.HardwareError, op, errors.Join(errs...))
	}
	return originated, nil
}

// readOwn loads the status groups of one instance into its scratch.
func (e *Engine) readOwn(nd *node) error {
	for g := range nd.reads {
		nd.reads[g] = 0
	}
	for g := 0; g < nd.HWGroups; g++ {
		v, err := nd.Bank.Status(g)
		if err != nil {
			return fmt.Errorf("instance %d group %d: %w", nd.Index, g, err)
		}
		nd.reads[g] = v
		nd.own |= faults.Accumulator(v)
	}
	if nd.SWFaults > 0 {
		v, err := nd.Bank.Status(nd.HWGroups)
		if err != nil {
			return fmt.Errorf("instance %d sw group: %w", nd.Index, err)
		}
		v &= swMask(nd.SWFaults)
		nd.reads[nd.HWGroups] = v
		nd.own |= faults.Accumulator(v)
	}
	return nil
}

// fold stores the scratch of one instance into the registry and emits
// the faults that were not latched before.
func (e *Engine) fold(nd *node, sink Sink) {
	emit := func(first faults.FaultID, fresh uint32) {
		for b := 0; fresh != 0; b++ {
			if fresh&1 != 0 {
				id := first + faults.FaultID(b)
				e.log.WithFields(logrus.Fields{"fault": id, "instance": nd.Index}).Warn("fault identified")
				if sink != nil {
					sink(id)
				}
			}
			fresh >>= 1
		}
	}

	for g := 0; g < nd.HWGroups; g++ {
		first := nd.FirstFault + faults.FaultID(g*faults.GroupWidth)
		emit(first, e.reg.Replace(first.Group(), nd.reads[g]))
	}
	if nd.SWFaults > 0 {
		emit(nd.FirstSWFault, e.reg.Replace(nd.FirstSWFault.Group(), nd.reads[nd.HWGroups]))
	}
}

// within reports whether i is idx or one of its descendants.
func (e *Engine) within(i, idx int) bool {
	for d := 0; d <= e.maxDepth; d++ {
		if i == idx {
			return true
		}
		i = e.nodes[i].Parent
		if i == NoParent {
			return false
		}
	}
	return false
}

// ---- introspection (read-only) ----

// InstanceInfo is the topology view of one instance.
type InstanceInfo struct {
	Index        int
	Name         string
	Parent       int
	Children     []int
	Depth        int
	Access       bool
	FirstFault   faults.FaultID
	HWGroups     int
	FirstSWFault faults.FaultID
	SWFaults     int
}

// Topology lists the cascade in index order.
func (e *Engine) Topology() []InstanceInfo {
	out := make([]InstanceInfo, len(e.nodes))
	for i := range e.nodes {
		nd := &e.nodes[i]
		out[i] = InstanceInfo{
			Index:        i,
			Name:         nd.Name,
			Parent:       nd.Parent,
			Children:     append([]int(nil), nd.children...),
			Depth:        nd.depth,
			Access:       nd.Access,
			FirstFault:   nd.FirstFault,
			HWGroups:     nd.HWGroups,
			FirstSWFault: nd.FirstSWFault,
			SWFaults:     nd.SWFaults,
		}
	}
	return out
}

// Snapshot is a read-only view of the fault state.
type Snapshot struct {
	Registry     faults.Container
	Accumulators []faults.Accumulator
}

// Snapshot returns the registry groups and the accumulators computed by
// the last ProcessFaults.
func (e *Engine) Snapshot() Snapshot {
	e.procMu.Lock()
	acc := make([]faults.Accumulator, len(e.nodes))
	for i := range e.nodes {
		acc[i] = e.nodes[i].cascade
	}
	e.procMu.Unlock()
	return Snapshot{Registry: e.reg.Snapshot(), Accumulators: acc}
}

// LastTraversal returns the instances folded by the last ProcessFaults,
// in fold order.
func (e *Engine) LastTraversal() []int {
	e.procMu.Lock()
	defer e.procMu.Unlock()
	return append([]int(nil), e.traversal...)
}
