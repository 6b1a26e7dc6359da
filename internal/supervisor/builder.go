// internal/supervisor/builder.go
package supervisor

import (
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/fusa-sm/internal/config"
)

// Build constructs a Supervisor from the normalized safety configuration.
// Every FuSa LM is self-checked; every LM is published.
func Build(sc cfg.SafetyConfig, disp Dispatcher, safety Safety, log *logrus.Entry) (*Supervisor, error) {
	c := Config{
		Interval: time.Duration(sc.Supervisor.IntervalMs) * time.Millisecond,
	}
	for _, lm := range sc.LMs {
		if lm.Fusa {
			c.Check = append(c.Check, lm.ID)
		}
		c.Publish = append(c.Publish, lm.ID)
	}
	return New(c, disp, safety, log)
}
