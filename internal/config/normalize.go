// internal/config/normalize.go
package config

import "sort"

const (
	defaultIntervalMs  = 100
	defaultTimeoutMs   = 1000
	defaultCrcChannels = 1
	defaultBaudRate    = 115200
	defaultSeverity    = "warning"
)

// Normalize applies post-validation normalization.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}
	s := &cfg.Safety

	// Instances are addressed by index from here on.
	sort.Slice(s.Cascade, func(i, j int) bool {
		return s.Cascade[i].Index < s.Cascade[j].Index
	})
	sort.Slice(s.LMs, func(i, j int) bool {
		return s.LMs[i].ID < s.LMs[j].ID
	})

	for i := range s.Cascade {
		in := &s.Cascade[i]
		in.Children = nil
		if in.Access == nil {
			t := true
			in.Access = &t
		}
		if in.Bank.Endpoint == "" {
			in.Bank.Endpoint = "sim"
		}
		if in.Bank.TimeoutMs <= 0 {
			in.Bank.TimeoutMs = defaultTimeoutMs
		}
		if in.Bank.BaudRate <= 0 {
			in.Bank.BaudRate = defaultBaudRate
		}
	}

	// Children in ascending index order (deterministic traversal).
	for i := range s.Cascade {
		in := s.Cascade[i]
		if in.Parent == nil {
			continue
		}
		p := &s.Cascade[*in.Parent]
		p.Children = append(p.Children, in.Index)
	}
	for i := range s.Cascade {
		c := s.Cascade[i].Children
		sort.Slice(c, func(a, b int) bool { return c[a] < c[b] })
	}

	for i := range s.LMs {
		if s.LMs[i].CrcChannels == 0 {
			s.LMs[i].CrcChannels = defaultCrcChannels
		}
	}

	for i := range s.Faults {
		if s.Faults[i].Severity == "" {
			s.Faults[i].Severity = defaultSeverity
		}
	}

	if s.Supervisor.IntervalMs == 0 {
		s.Supervisor.IntervalMs = defaultIntervalMs
	}
	if s.Status.TimeoutMs <= 0 {
		s.Status.TimeoutMs = defaultTimeoutMs
	}
}
