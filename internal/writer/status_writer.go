// internal/writer/status_writer.go
package writer

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tamzrod/fusa-sm/internal/status"
)

// StatusWriter is the delivery-only contract for LM status.
// It receives a snapshot and writes it verbatim.
// No logic, no interpretation.
type StatusWriter interface {
	WriteStatus(s status.Snapshot) error
}

// endpointClient is the exact contract the writer uses.
type endpointClient interface {
	WriteRegisters(unitID uint8, addr uint16, regs []uint16) error
}

// StatusPlan places the status memory of all LMs.
type StatusPlan struct {
	Endpoint string
	UnitID   uint8
	BaseSlot uint16 // block index of LM 0
}

// lmStatusWriter delivers the block of one LM.
type lmStatusWriter struct {
	plan *StatusPlan
	cli  endpointClient
	lm   uint32

	needFull bool
	last     []uint16
}

// newLMStatusWriter builds the writer of one LM block.
func newLMStatusWriter(plan *StatusPlan, cli endpointClient, lm uint32) *lmStatusWriter {
	return &lmStatusWriter{
		plan:     plan,
		cli:      cli,
		lm:       lm,
		needFull: true, // full re-assert on first successful write
	}
}

// WriteStatus delivers an LM status snapshot into status memory.
// On any write failure, the next successful call will re-assert the full block.
func (sw *lmStatusWriter) WriteStatus(s status.Snapshot) error {
	if sw == nil || sw.plan == nil {
		return errors.New("status writer: disabled")
	}
	if sw.cli == nil {
		return fmt.Errorf("status writer: missing client for endpoint %s", sw.plan.Endpoint)
	}
	if s.LM != sw.lm {
		return fmt.Errorf("status writer: snapshot of lm %d handed to writer of lm %d", s.LM, sw.lm)
	}

	regs := status.Encode(s)
	baseAddr := sw.baseAddr()

	// ------------------------------------------------------------
	// Full block write (identity re-assert)
	// ------------------------------------------------------------
	if sw.needFull {
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr, regs); err != nil {
			sw.needFull = true
			return fmt.Errorf("status writer: lm %d full block write failed: %w", sw.lm, err)
		}
		sw.needFull = false
		sw.last = regs
		return nil
	}

	// ------------------------------------------------------------
	// Incremental: contiguous runs of changed live slots.
	// The name is only written on a full re-assert.
	// ------------------------------------------------------------
	var errs []string

	for start := 0; start < status.SlotNameStart; {
		if regs[start] == sw.last[start] {
			start++
			continue
		}
		end := start + 1
		for end < status.SlotNameStart && regs[end] != sw.last[end] {
			end++
		}
		if err := sw.cli.WriteRegisters(sw.plan.UnitID, baseAddr+uint16(start), regs[start:end]); err != nil {
			errs = append(errs, fmt.Sprintf("slots %d..%d write failed: %v", start, end-1, err))
		} else {
			copy(sw.last[start:end], regs[start:end])
		}
		start = end
	}

	if len(errs) > 0 {
		// Any partial failure introduces doubt; re-assert on next success.
		sw.needFull = true
		return fmt.Errorf("status writer: lm %d: %s", sw.lm, strings.Join(errs, " | "))
	}

	return nil
}

func (sw *lmStatusWriter) baseAddr() uint16 {
	// Each LM owns a fixed SlotsPerLM block.
	return (sw.plan.BaseSlot + uint16(sw.lm)) * status.SlotsPerLM
}
