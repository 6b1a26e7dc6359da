// internal/writer/builder.go
package writer

import (
	"time"

	"github.com/sirupsen/logrus"

	cfg "github.com/tamzrod/fusa-sm/internal/config"
	wmodbus "github.com/tamzrod/fusa-sm/internal/writer/modbus"
)

// BuildPlan converts the status memory config into a StatusPlan.
// An empty endpoint disables status publishing.
func BuildPlan(sm cfg.StatusMemoryConfig) (StatusPlan, bool) {
	if sm.Endpoint == "" {
		return StatusPlan{}, false
	}
	return StatusPlan{
		Endpoint: sm.Endpoint,
		UnitID:   sm.UnitID,
		BaseSlot: sm.BaseSlot,
	}, true
}

// BuildPublisher connects the status endpoint and returns a publisher and
// its closer. With publishing disabled it returns a nil publisher.
func BuildPublisher(sm cfg.StatusMemoryConfig, log *logrus.Entry) (*Publisher, func() error, error) {
	plan, enabled := BuildPlan(sm)
	if !enabled {
		return nil, func() error { return nil }, nil
	}

	c, err := wmodbus.NewEndpointClient(wmodbus.Config{
		Endpoint: plan.Endpoint,
		Timeout:  time.Duration(sm.TimeoutMs) * time.Millisecond,
	})
	if err != nil {
		return nil, nil, err
	}

	return NewPublisher(plan, c, log), c.Close, nil
}
