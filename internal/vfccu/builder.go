// internal/vfccu/builder.go
package vfccu

import (
	"errors"
	"fmt"
	"io"
	"time"

	cfg "github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/faults"
	vmodbus "github.com/tamzrod/fusa-sm/internal/vfccu/modbus"
)

// Build turns a validated, normalized safety configuration into an engine
// Config. Instances with endpoint "sim" get a SimBank; the others are
// dialled over Modbus. The closer releases every dialled link.
func Build(sc cfg.SafetyConfig) (Config, func() error, error) {
	var closers []io.Closer
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c.Close())
		}
		return errors.Join(errs...)
	}

	var size uint32
	instances := make([]Instance, 0, len(sc.Cascade))
	for _, in := range sc.Cascade {
		parent := NoParent
		if in.Parent != nil {
			parent = int(*in.Parent)
		}
		access := in.Access == nil || *in.Access

		var bank Bank
		if in.Bank.Endpoint == "" || in.Bank.Endpoint == "sim" {
			bank = NewSimBank(in.HWGroups)
		} else if access {
			b, err := vmodbus.Dial(vmodbus.Config{
				Endpoint: in.Bank.Endpoint,
				SlaveID:  in.Bank.SlaveID,
				Base:     in.Bank.Base,
				Timeout:  time.Duration(in.Bank.TimeoutMs) * time.Millisecond,
				BaudRate: in.Bank.BaudRate,
				Groups:   in.HWGroups,
			})
			if err != nil {
				_ = closeAll()
				return Config{}, nil, fmt.Errorf("instance %d (%s): %w", in.Index, in.Name, err)
			}
			closers = append(closers, b)
			bank = b
		} else {
			// never touched: the engine skips inaccessible instances
			bank = NewSimBank(in.HWGroups)
		}

		instances = append(instances, Instance{
			Index:        int(in.Index),
			Name:         in.Name,
			Parent:       parent,
			Access:       access,
			FirstFault:   faults.FaultID(in.FirstFault),
			HWGroups:     in.HWGroups,
			FirstSWFault: faults.FaultID(in.FirstSWFault),
			SWFaults:     in.SWFaults,
			Bank:         bank,
		})

		if end := in.FirstFault + uint32(in.HWGroups)*faults.GroupWidth; in.HWGroups > 0 && end > size {
			size = end
		}
		if end := in.FirstSWFault + faults.GroupWidth; in.SWFaults > 0 && end > size {
			size = end
		}
	}

	entries := make([]faults.ReactionEntry, 0, len(sc.Faults))
	for _, f := range sc.Faults {
		re, err := faults.ParseReaction(f.Reaction)
		if err != nil {
			_ = closeAll()
			return Config{}, nil, err
		}
		sev, err := faults.ParseSeverity(f.Severity)
		if err != nil {
			_ = closeAll()
			return Config{}, nil, err
		}
		entries = append(entries, faults.ReactionEntry{
			Fault:    faults.FaultID(f.ID),
			Name:     f.Name,
			Owner:    f.Owner,
			Reaction: re,
			Severity: sev,
		})
	}

	return Config{
		Instances: instances,
		Registry:  faults.NewRegistry(size, entries),
	}, closeAll, nil
}
