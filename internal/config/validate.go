// internal/config/validate.go
package config

import (
	"fmt"
)

// GroupWidth is the number of fault bits in one status group.
const GroupWidth = 32

var reactions = map[string]struct{}{
	"contain":  {},
	"degrade":  {},
	"shutdown": {},
	"reset":    {},
}

var severities = map[string]struct{}{
	"info":     {},
	"warning":  {},
	"critical": {},
}

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	s := &cfg.Safety

	if err := validateCascade(s.Cascade); err != nil {
		return err
	}

	// ------------------------------------------------------------
	// FAULT RANGES (32-aligned, pairwise disjoint)
	// ------------------------------------------------------------

	type span struct {
		start, end uint32 // end exclusive
		owner      string
		sw         bool
	}
	var spans []span

	for _, in := range s.Cascade {
		if in.HWGroups < 0 || in.SWFaults < 0 {
			return fmt.Errorf("instance %d: negative group or fault count", in.Index)
		}
		if in.SWFaults > GroupWidth {
			return fmt.Errorf("instance %d: sw_faults=%d exceeds %d", in.Index, in.SWFaults, GroupWidth)
		}
		if err := validateBank(in); err != nil {
			return err
		}
		if in.HWGroups > 0 {
			if in.FirstFault%GroupWidth != 0 {
				return fmt.Errorf("instance %d: first_fault=%d not %d-aligned", in.Index, in.FirstFault, GroupWidth)
			}
			spans = append(spans, span{
				start: in.FirstFault,
				end:   in.FirstFault + uint32(in.HWGroups)*GroupWidth,
				owner: fmt.Sprintf("instance %d hw", in.Index),
			})
		}
		if in.SWFaults > 0 {
			if in.FirstSWFault%GroupWidth != 0 {
				return fmt.Errorf("instance %d: first_sw_fault=%d not %d-aligned", in.Index, in.FirstSWFault, GroupWidth)
			}
			spans = append(spans, span{
				start: in.FirstSWFault,
				end:   in.FirstSWFault + GroupWidth,
				owner: fmt.Sprintf("instance %d sw", in.Index),
				sw:    true,
			})
		}
	}

	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			if a.start < b.end && b.start < a.end {
				return fmt.Errorf(
					"fault range overlap: %s [%d,%d) overlaps %s [%d,%d)",
					a.owner, a.start, a.end, b.owner, b.start, b.end,
				)
			}
		}
	}

	configured := func(id uint32) (sw bool, ok bool) {
		for _, in := range s.Cascade {
			if in.HWGroups > 0 && id >= in.FirstFault && id < in.FirstFault+uint32(in.HWGroups)*GroupWidth {
				return false, true
			}
			if in.SWFaults > 0 && id >= in.FirstSWFault && id < in.FirstSWFault+uint32(in.SWFaults) {
				return true, true
			}
		}
		return false, false
	}

	// ------------------------------------------------------------
	// LOGICAL MACHINES
	// ------------------------------------------------------------

	if len(s.LMs) == 0 {
		return fmt.Errorf("config: at least one lm required")
	}
	seenLM := make(map[uint32]bool, len(s.LMs))
	for _, lm := range s.LMs {
		if seenLM[lm.ID] {
			return fmt.Errorf("lm %d: duplicate id", lm.ID)
		}
		seenLM[lm.ID] = true
	}
	for i := range s.LMs {
		if !seenLM[uint32(i)] {
			return fmt.Errorf("lm ids must be dense from 0: missing %d", i)
		}
	}
	if s.ModeSelections == 0 {
		return fmt.Errorf("config: mode_selections must be > 0")
	}

	// ------------------------------------------------------------
	// REACTION TABLE
	// ------------------------------------------------------------

	owner := make(map[uint32]uint32, len(s.Faults))
	for _, f := range s.Faults {
		if _, dup := owner[f.ID]; dup {
			return fmt.Errorf("fault %d: duplicate reaction row", f.ID)
		}
		if _, ok := configured(f.ID); !ok {
			return fmt.Errorf("fault %d: not inside any instance fault range", f.ID)
		}
		if !seenLM[f.Owner] {
			return fmt.Errorf("fault %d: unknown owner lm %d", f.ID, f.Owner)
		}
		if _, ok := reactions[f.Reaction]; !ok {
			return fmt.Errorf("fault %d: unknown reaction %q", f.ID, f.Reaction)
		}
		if f.Severity != "" {
			if _, ok := severities[f.Severity]; !ok {
				return fmt.Errorf("fault %d: unknown severity %q", f.ID, f.Severity)
			}
		}
		owner[f.ID] = f.Owner
	}

	// signature / crc faults must be software faults owned by the LM
	for _, lm := range s.LMs {
		if lm.Seenv && lm.SignatureFault == nil {
			return fmt.Errorf("lm %d: seenv requires signature_fault", lm.ID)
		}
		for _, ref := range []struct {
			name string
			id   *uint32
		}{
			{"signature_fault", lm.SignatureFault},
			{"crc_fault", lm.CrcFault},
		} {
			if ref.id == nil {
				continue
			}
			sw, ok := configured(*ref.id)
			if !ok || !sw {
				return fmt.Errorf("lm %d: %s=%d is not a software fault", lm.ID, ref.name, *ref.id)
			}
			if o, ok := owner[*ref.id]; !ok || o != lm.ID {
				return fmt.Errorf("lm %d: %s=%d is not owned by this lm", lm.ID, ref.name, *ref.id)
			}
		}
		for _, r := range lm.Memory {
			if r.Size == 0 {
				return fmt.Errorf("lm %d: memory region at 0x%x has zero size", lm.ID, r.Start)
			}
			if r.Start+r.Size < r.Start {
				return fmt.Errorf("lm %d: memory region at 0x%x wraps", lm.ID, r.Start)
			}
		}
	}

	for i, img := range s.Images {
		if img.Path == "" {
			return fmt.Errorf("memory_images[%d]: path required", i)
		}
		if img.Offset < 0 || img.Size < 0 {
			return fmt.Errorf("memory_images[%d]: negative offset or size", i)
		}
	}

	if s.Supervisor.IntervalMs < 0 {
		return fmt.Errorf("supervisor: interval_ms must be >= 0")
	}

	return nil
}

// validateCascade enforces the tree invariant: dense unique indices,
// exactly one root, every parent exists and every leaf reaches the root.
func validateCascade(cascade []InstanceConfig) error {
	n := len(cascade)
	if n == 0 {
		return fmt.Errorf("cascade: at least one instance required")
	}
	if n > 256 {
		return fmt.Errorf("cascade: %d instances exceeds 256", n)
	}

	byIndex := make(map[uint8]*InstanceConfig, n)
	for i := range cascade {
		in := &cascade[i]
		if _, dup := byIndex[in.Index]; dup {
			return fmt.Errorf("cascade: duplicate instance index %d", in.Index)
		}
		byIndex[in.Index] = in
	}
	for i := 0; i < n; i++ {
		if _, ok := byIndex[uint8(i)]; !ok {
			return fmt.Errorf("cascade: instance indices must be dense from 0: missing %d", i)
		}
	}

	roots := 0
	for _, in := range cascade {
		if in.Parent == nil {
			roots++
			continue
		}
		if _, ok := byIndex[*in.Parent]; !ok {
			return fmt.Errorf("cascade: instance %d has unknown parent %d", in.Index, *in.Parent)
		}
	}
	if roots != 1 {
		return fmt.Errorf("cascade: expected exactly one root instance, got %d", roots)
	}

	// every walk up must terminate at the root within n steps
	for _, in := range cascade {
		cur := byIndex[in.Index]
		for steps := 0; cur.Parent != nil; steps++ {
			if steps >= n {
				return fmt.Errorf("cascade: cycle through instance %d", in.Index)
			}
			cur = byIndex[*cur.Parent]
		}
	}

	return nil
}

// Remote banks expose status, condition and clear windows of 0x100
// registers each plus a control area, 0x400 registers from base.
const (
	bankMapSize   = 0x400
	bankMaxGroups = 127
)

func validateBank(in InstanceConfig) error {
	if in.Bank.Endpoint == "" || in.Bank.Endpoint == "sim" {
		return nil
	}
	if in.HWGroups > bankMaxGroups {
		return fmt.Errorf("instance %d: hw_groups=%d exceeds %d for a remote bank", in.Index, in.HWGroups, bankMaxGroups)
	}
	if int(in.Bank.Base)+bankMapSize > 0x10000 {
		return fmt.Errorf("instance %d: bank base 0x%04x leaves no room for the register map", in.Index, in.Bank.Base)
	}
	return nil
}
