// internal/vfccu/builder_test.go
package vfccu

import (
	"testing"

	cfg "github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/faults"
)

func TestBuildFromConfig(t *testing.T) {
	root, no := uint8(0), false
	sc := cfg.SafetyConfig{
		Cascade: []cfg.InstanceConfig{
			{Index: 0, Name: "cfccu", FirstFault: 64, HWGroups: 1, SWFaults: 16, Bank: cfg.BankConfig{Endpoint: "sim"}},
			{Index: 1, Name: "pfccu", Parent: &root, Access: &no, FirstFault: 96, HWGroups: 2, Bank: cfg.BankConfig{Endpoint: "tcp://192.0.2.1:502"}},
		},
		Faults: []cfg.FaultConfig{
			{ID: 3, Owner: 0, Reaction: "reset", Severity: "critical"},
			{ID: 100, Owner: 0, Reaction: "degrade", Severity: "warning"},
		},
	}

	c, closer, err := Build(sc)
	if err != nil {
		t.Fatalf("Build err=%v", err)
	}
	defer closer()

	if c.Registry.Size() != 160 {
		t.Fatalf("registry size = %d, want 160", c.Registry.Size())
	}
	if c.Instances[1].Parent != 0 || c.Instances[1].Access {
		t.Fatalf("instance 1 = %+v", c.Instances[1])
	}
	// an inaccessible remote instance is never dialled
	if _, ok := c.Instances[1].Bank.(*SimBank); !ok {
		t.Fatalf("inaccessible instance got bank %T", c.Instances[1].Bank)
	}
	e, ok := c.Registry.Lookup(3)
	if !ok || e.Reaction != faults.ReactionReset || e.Severity != faults.SeverityCritical {
		t.Fatalf("Lookup(3) = %+v, %v", e, ok)
	}

	if _, err := New(c, quietLog()); err != nil {
		t.Fatalf("New on built config err=%v", err)
	}
}
