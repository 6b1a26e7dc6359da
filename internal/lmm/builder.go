// internal/lmm/builder.go
package lmm

import (
	cfg "github.com/tamzrod/fusa-sm/internal/config"
	"github.com/tamzrod/fusa-sm/internal/faults"
)

// BuildConfig maps the safety configuration onto a Config. The checker,
// reactor and coordinator are left for the caller to attach.
func BuildConfig(sc cfg.SafetyConfig) Config {
	c := Config{
		ModeSelections: sc.ModeSelections,
		Signature:      sc.Signature,
		LMs:            make([]LMConfig, 0, len(sc.LMs)),
	}
	for _, lm := range sc.LMs {
		lc := LMConfig{
			ID:          lm.ID,
			Name:        lm.Name,
			Fusa:        lm.Fusa,
			Seenv:       lm.Seenv,
			CrcChannels: lm.CrcChannels,
		}
		if lm.SignatureFault != nil {
			id := faults.FaultID(*lm.SignatureFault)
			lc.SignatureFault = &id
		}
		if lm.CrcFault != nil {
			id := faults.FaultID(*lm.CrcFault)
			lc.CrcFault = &id
		}
		for _, r := range lm.Memory {
			lc.Memory = append(lc.Memory, Region{Start: r.Start, Size: r.Size})
		}
		c.LMs = append(c.LMs, lc)
	}
	return c
}
