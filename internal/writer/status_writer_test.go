// internal/writer/status_writer_test.go
package writer

import (
	"errors"
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/status"
)

// ---- fake endpoint client ----

type writeCall struct {
	unitID uint8
	addr   uint16
	regs   []uint16
}

type fakeEndpointClient struct {
	writes []writeCall
	fail   bool

	lastRegsAddr uint16
	lastRegs     []uint16
}

func (f *fakeEndpointClient) WriteRegisters(unitID uint8, addr uint16, regs []uint16) error {
	if f.fail {
		return errors.New("endpoint down")
	}
	cp := append([]uint16(nil), regs...)
	f.writes = append(f.writes, writeCall{unitID: unitID, addr: addr, regs: cp})
	f.lastRegsAddr = addr
	f.lastRegs = cp
	return nil
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func snap(lm uint32) status.Snapshot {
	return status.Snapshot{
		LM:           lm,
		Name:         "APP-01",
		PendingFeenv: status.PendingNone,
		LastFault:    status.NoFault,
		Flags:        status.FlagFusa,
	}
}

func cfgStatus(endpoint string) cfg.StatusMemoryConfig {
	return cfg.StatusMemoryConfig{Endpoint: endpoint, UnitID: 1, TimeoutMs: 100}
}

// ---- tests ----

func TestLMNameWrittenOnFullAssertOnly(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := &StatusPlan{Endpoint: "status-endpoint", UnitID: 1, BaseSlot: 0}
	sw := newLMStatusWriter(plan, cli, 0)

	// ---- first write: FULL ASSERT ----
	if err := sw.WriteStatus(snap(0)); err != nil {
		t.Fatalf("initial full assert failed: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerLM {
		t.Fatalf("expected full block write (%d regs), got %d", status.SlotsPerLM, len(cli.lastRegs))
	}
	expectedNameRegs := status.EncodeName("APP-01")
	if diff := cmp.Diff(expectedNameRegs, cli.lastRegs[status.SlotNameStart:status.SlotNameEnd+1]); diff != "" {
		t.Fatalf("name slots mismatch (-want +got):\n%s", diff)
	}

	// ---- second write: INCREMENTAL ONLY ----
	second := snap(0)
	second.Feenv = 1
	if err := sw.WriteStatus(second); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}
	if len(cli.lastRegs) == status.SlotsPerLM {
		t.Fatalf("name should not be rewritten on incremental update")
	}
	if cli.lastRegsAddr != status.SlotFeenv || len(cli.lastRegs) != 1 || cli.lastRegs[0] != 1 {
		t.Fatalf("unexpected incremental write addr=%d regs=%v", cli.lastRegsAddr, cli.lastRegs)
	}
}

func TestIncrementalCoalescesContiguousSlots(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := &StatusPlan{Endpoint: "ep", UnitID: 3, BaseSlot: 4}
	sw := newLMStatusWriter(plan, cli, 1)

	if err := sw.WriteStatus(snap(1)); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}
	cli.writes = nil

	next := snap(1)
	next.LatchedFaults = 2
	next.LastFault = 0x00010002
	next.Flags |= status.FlagDegraded

	if err := sw.WriteStatus(next); err != nil {
		t.Fatalf("incremental write failed: %v", err)
	}

	base := uint16((4 + 1) * status.SlotsPerLM)
	want := []writeCall{
		{unitID: 3, addr: base + status.SlotFlags, regs: []uint16{status.FlagFusa | status.FlagDegraded, 2, 0x0001, 0x0002}},
	}
	if diff := cmp.Diff(want, cli.writes, cmp.AllowUnexported(writeCall{})); diff != "" {
		t.Fatalf("writes (-want +got):\n%s", diff)
	}
}

func TestFailureForcesFullReassert(t *testing.T) {
	cli := &fakeEndpointClient{}
	plan := &StatusPlan{Endpoint: "ep", UnitID: 1}
	sw := newLMStatusWriter(plan, cli, 0)

	if err := sw.WriteStatus(snap(0)); err != nil {
		t.Fatalf("full assert failed: %v", err)
	}

	cli.fail = true
	changed := snap(0)
	changed.Seenv = 2
	if err := sw.WriteStatus(changed); err == nil {
		t.Fatalf("expected error while endpoint is down")
	}

	cli.fail = false
	if err := sw.WriteStatus(changed); err != nil {
		t.Fatalf("write after recovery failed: %v", err)
	}
	if len(cli.lastRegs) != status.SlotsPerLM || cli.lastRegsAddr != 0 {
		t.Fatalf("expected full block re-assert after failure, got addr=%d len=%d", cli.lastRegsAddr, len(cli.lastRegs))
	}
}

func TestUnchangedSnapshotWritesNothing(t *testing.T) {
	cli := &fakeEndpointClient{}
	sw := newLMStatusWriter(&StatusPlan{Endpoint: "ep"}, cli, 0)

	_ = sw.WriteStatus(snap(0))
	_ = sw.WriteStatus(snap(0))
	if len(cli.writes) != 1 {
		t.Fatalf("expected only the full assert, got %d writes", len(cli.writes))
	}
}

func TestPublisherRoutesPerLM(t *testing.T) {
	cli := &fakeEndpointClient{}
	p := NewPublisher(StatusPlan{Endpoint: "ep", UnitID: 1, BaseSlot: 2}, cli, quietLog())

	if err := p.Publish([]status.Snapshot{snap(0), snap(1)}); err != nil {
		t.Fatalf("Publish err=%v", err)
	}
	if len(cli.writes) != 2 {
		t.Fatalf("expected 2 block writes, got %d", len(cli.writes))
	}
	if cli.writes[0].addr != 2*status.SlotsPerLM || cli.writes[1].addr != 3*status.SlotsPerLM {
		t.Fatalf("unexpected block addresses %d, %d", cli.writes[0].addr, cli.writes[1].addr)
	}

	if err := p.Writer(0).WriteStatus(snap(1)); err == nil {
		t.Fatalf("expected error for snapshot of another lm")
	}
}

func TestBuildPlanDisabled(t *testing.T) {
	if _, enabled := BuildPlan(cfgStatus("")); enabled {
		t.Fatalf("empty endpoint must disable status")
	}
	plan, enabled := BuildPlan(cfgStatus("127.0.0.1:1502"))
	if !enabled || plan.Endpoint != "127.0.0.1:1502" || plan.UnitID != 1 {
		t.Fatalf("plan = %+v, %v", plan, enabled)
	}

	p, closer, err := BuildPublisher(cfgStatus(""), quietLog())
	if err != nil || p != nil || closer() != nil {
		t.Fatalf("disabled publisher = %v, %v", p, err)
	}
}
