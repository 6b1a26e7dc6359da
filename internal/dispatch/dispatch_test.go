// internal/dispatch/dispatch_test.go
package dispatch

import (
	"io"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/sirupsen/logrus"

	"github.com/tamzrod/fusa-sm/internal/faults"
	"github.com/tamzrod/fusa-sm/internal/lmm"
	"github.com/tamzrod/fusa-sm/internal/vfccu"
)

// hardware faults of the root live at 32..63; software faults at 0..15
const (
	degradeHW faults.FaultID = 40 // lm 0, degrade
	silentHW  faults.FaultID = 50 // no reaction row
	resetSW   faults.FaultID = 3  // lm 0, reset
)

type recorder struct{ got []faults.FaultID }

func (r *recorder) React(_ uint32, _ faults.Reaction, id faults.FaultID) {
	r.got = append(r.got, id)
}

func quietLog() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func setup(t *testing.T) (*Dispatcher, *lmm.Fusa, *vfccu.SimBank, *recorder) {
	t.Helper()

	bank := vfccu.NewSimBank(1)
	rec := &recorder{}
	reg := faults.NewRegistry(64, []faults.ReactionEntry{
		{Fault: resetSW, Owner: 0, Reaction: faults.ReactionReset},
		{Fault: degradeHW, Owner: 0, Reaction: faults.ReactionDegrade},
	})

	f, err := lmm.Init(
		lmm.Config{
			ModeSelections: 1,
			Reactor:        rec,
			LMs:            []lmm.LMConfig{{ID: 0, Name: "app", Fusa: true}},
		},
		vfccu.Config{
			Registry: reg,
			Instances: []vfccu.Instance{{
				Index: 0, Parent: vfccu.NoParent, Access: true,
				FirstFault: 32, HWGroups: 1, FirstSWFault: 0, SWFaults: 16,
				Bank: bank,
			}},
		},
		quietLog(),
	)
	if err != nil {
		t.Fatalf("lmm.Init err=%v", err)
	}
	if _, err := f.FeenvStateSet(0, lmm.FeenvSafetyRuntime, false); err != nil {
		t.Fatalf("enter runtime: %v", err)
	}
	return New(f, quietLog()), f, bank, rec
}

func feenv(t *testing.T, f *lmm.Fusa) lmm.FeenvState {
	t.Helper()
	s, _, err := f.FeenvStateGet(0)
	if err != nil {
		t.Fatalf("FeenvStateGet err=%v", err)
	}
	return s
}

func TestForeignInterrupt(t *testing.T) {
	d, _, _, _ := setup(t)

	res := d.HandleInterrupt()
	if res.Err != nil || res.Originated || len(res.Faults) != 0 {
		t.Fatalf("foreign interrupt result = %+v", res)
	}
	if s := d.Stats(); s.Interrupts != 1 || s.Foreign != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestTransientFaultRoutedAndCleared(t *testing.T) {
	d, f, bank, rec := setup(t)

	bank.Raise(0, int(degradeHW-32))
	bank.Release(0, int(degradeHW-32))

	res := d.HandleInterrupt()
	if res.Err != nil || !res.Originated {
		t.Fatalf("HandleInterrupt = %+v", res)
	}
	if diff := cmp.Diff([]faults.FaultID{degradeHW}, res.Faults); diff != "" {
		t.Fatalf("faults (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]faults.FaultID{degradeHW}, res.Cleared); diff != "" {
		t.Fatalf("cleared (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]faults.FaultID{degradeHW}, rec.got); diff != "" {
		t.Fatalf("reactions (-want +got):\n%s", diff)
	}
	// degraded and restored within the same call
	if got := feenv(t, f); got != lmm.FeenvSafetyRuntime {
		t.Fatalf("state = %s", got)
	}
}

func TestActiveFaultHeldUntilPoll(t *testing.T) {
	d, f, bank, _ := setup(t)

	bank.Raise(0, int(degradeHW-32))
	res := d.HandleInterrupt()
	if len(res.Cleared) != 0 {
		t.Fatalf("active fault cleared: %+v", res)
	}
	if got := feenv(t, f); got != lmm.FeenvSocStandby {
		t.Fatalf("state = %s, want soc-standby", got)
	}
	if diff := cmp.Diff([]faults.FaultID{degradeHW}, d.Held()); diff != "" {
		t.Fatalf("held (-want +got):\n%s", diff)
	}

	// still active: nothing changes
	if res := d.Poll(); len(res.Cleared) != 0 || len(res.Faults) != 0 {
		t.Fatalf("poll while active = %+v", res)
	}

	bank.Release(0, int(degradeHW-32))
	res = d.Poll()
	if diff := cmp.Diff([]faults.FaultID{degradeHW}, res.Cleared); diff != "" {
		t.Fatalf("cleared (-want +got):\n%s", diff)
	}
	if got := feenv(t, f); got != lmm.FeenvSafetyRuntime {
		t.Fatalf("state = %s, want safety-runtime", got)
	}
	if len(d.Held()) != 0 {
		t.Fatalf("held not emptied: %v", d.Held())
	}
}

func TestUnconfiguredFaultIsInert(t *testing.T) {
	d, f, bank, rec := setup(t)

	bank.Raise(0, int(silentHW-32))
	res := d.HandleInterrupt()
	if res.Err != nil {
		t.Fatalf("unconfigured fault surfaced as error: %v", res.Err)
	}
	if diff := cmp.Diff([]faults.FaultID{silentHW}, res.Unconfigured); diff != "" {
		t.Fatalf("unconfigured (-want +got):\n%s", diff)
	}
	if len(rec.got) != 0 {
		t.Fatalf("reactor called for unconfigured fault: %v", rec.got)
	}
	if !f.Engine().Registry().Test(silentHW) {
		t.Fatalf("unconfigured fault missing from the registry")
	}
	if got := feenv(t, f); got != lmm.FeenvSafetyRuntime {
		t.Fatalf("state = %s", got)
	}
	if s := d.Stats(); s.Unconfigured != 1 || s.Faults != 1 {
		t.Fatalf("stats = %+v", s)
	}
}

func TestSoftwareResetFault(t *testing.T) {
	d, f, _, rec := setup(t)

	if err := f.FaultSet(0, resetSW, true); err != nil {
		t.Fatalf("FaultSet err=%v", err)
	}
	res := d.HandleInterrupt()
	if diff := cmp.Diff([]faults.FaultID{resetSW}, res.Faults); diff != "" {
		t.Fatalf("faults (-want +got):\n%s", diff)
	}
	if got := feenv(t, f); got != lmm.FeenvSocReset {
		t.Fatalf("state = %s, want soc-reset", got)
	}
	if diff := cmp.Diff([]faults.FaultID{resetSW}, rec.got); diff != "" {
		t.Fatalf("reactions (-want +got):\n%s", diff)
	}

	// the reset released the line; the held latch goes on the next poll
	res = d.Poll()
	if diff := cmp.Diff([]faults.FaultID{resetSW}, res.Cleared); diff != "" {
		t.Fatalf("cleared (-want +got):\n%s", diff)
	}
	if on, _ := f.FaultGet(0, resetSW); on {
		t.Fatalf("fault still latched")
	}
}
