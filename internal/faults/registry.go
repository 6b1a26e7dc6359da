// internal/faults/registry.go
package faults

import (
	"sort"
	"sync"
)

// Registry holds the latched fault bits and the reaction table.
// Each group has its own lock: different groups may be updated
// concurrently, a single group is never read-modify-written concurrently.
// The reaction table is immutable after construction.
type Registry struct {
	locks  []sync.Mutex
	groups Container

	table map[FaultID]ReactionEntry
	owned map[uint32][]FaultID
}

// NewRegistry builds a registry covering nFaults IDs with the given table.
func NewRegistry(nFaults uint32, entries []ReactionEntry) *Registry {
	groups := NewContainer(nFaults)
	r := &Registry{
		locks:  make([]sync.Mutex, len(groups)),
		groups: groups,
		table:  make(map[FaultID]ReactionEntry, len(entries)),
		owned:  make(map[uint32][]FaultID),
	}
	for _, e := range entries {
		r.table[e.Fault] = e
		r.owned[e.Owner] = append(r.owned[e.Owner], e.Fault)
	}
	for lm := range r.owned {
		ids := r.owned[lm]
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	}
	return r
}

// Size returns the number of fault IDs covered.
func (r *Registry) Size() uint32 { return uint32(len(r.groups)) * GroupWidth }

// Groups returns the number of status groups.
func (r *Registry) Groups() int { return len(r.groups) }

// Valid reports whether f is inside the registry.
func (r *Registry) Valid(f FaultID) bool { return f.Group() < len(r.groups) }

// Test reports whether f is latched.
func (r *Registry) Test(f FaultID) bool {
	g := f.Group()
	if g >= len(r.groups) {
		return false
	}
	r.locks[g].Lock()
	defer r.locks[g].Unlock()
	return r.groups[g]&f.Mask() != 0
}

// Fold ORs bits into group g and returns the bits that were not set before.
func (r *Registry) Fold(g int, bits uint32) uint32 {
	if g >= len(r.groups) || bits == 0 {
		return 0
	}
	r.locks[g].Lock()
	defer r.locks[g].Unlock()
	fresh := bits &^ r.groups[g]
	r.groups[g] |= bits
	return fresh
}

// Replace stores bits as the whole content of group g.
// It returns the bits newly set by the replacement.
func (r *Registry) Replace(g int, bits uint32) uint32 {
	if g >= len(r.groups) {
		return 0
	}
	r.locks[g].Lock()
	defer r.locks[g].Unlock()
	fresh := bits &^ r.groups[g]
	r.groups[g] = bits
	return fresh
}

// Clear drops the latch for f.
func (r *Registry) Clear(f FaultID) {
	g := f.Group()
	if g >= len(r.groups) {
		return
	}
	r.locks[g].Lock()
	r.groups[g] &^= f.Mask()
	r.locks[g].Unlock()
}

// Snapshot copies the latched groups. Groups are copied one at a time,
// so the result may be torn across groups.
func (r *Registry) Snapshot() Container {
	out := make(Container, len(r.groups))
	for g := range r.groups {
		r.locks[g].Lock()
		out[g] = r.groups[g]
		r.locks[g].Unlock()
	}
	return out
}

// Reset clears every latch. Used on full system reset.
func (r *Registry) Reset() {
	for g := range r.groups {
		r.locks[g].Lock()
		r.groups[g] = 0
		r.locks[g].Unlock()
	}
}

// Lookup returns the reaction entry configured for f.
func (r *Registry) Lookup(f FaultID) (ReactionEntry, bool) {
	e, ok := r.table[f]
	return e, ok
}

// OwnedBy lists the faults whose reaction belongs to lm, ascending. The
// slice is a copy.
func (r *Registry) OwnedBy(lm uint32) []FaultID {
	return append([]FaultID(nil), r.owned[lm]...)
}

// Owns reports whether f is configured as owned by lm.
func (r *Registry) Owns(lm uint32, f FaultID) bool {
	e, ok := r.table[f]
	return ok && e.Owner == lm
}

// Entries returns the reaction table ordered by fault ID.
func (r *Registry) Entries() []ReactionEntry {
	out := make([]ReactionEntry, 0, len(r.table))
	for _, e := range r.table {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Fault < out[j].Fault })
	return out
}
