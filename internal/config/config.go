// internal/config/config.go
package config

type Config struct {
	Safety SafetyConfig `yaml:"safety"`
}

type SafetyConfig struct {
	// Number of system mode selections; msel values must be below it.
	ModeSelections uint32 `yaml:"mode_selections"`

	// Signature overrides the S-EENV signature derived from the fault table.
	Signature *uint32 `yaml:"signature"`

	Cascade    []InstanceConfig   `yaml:"cascade"`
	LMs        []LMConfig         `yaml:"lms"`
	Faults     []FaultConfig      `yaml:"faults"`
	Images     []ImageConfig      `yaml:"memory_images"`
	Supervisor SupervisorConfig   `yaml:"supervisor"`
	Status     StatusMemoryConfig `yaml:"status_memory"`
}

// ---- CASCADE ----

type InstanceConfig struct {
	Index  uint8  `yaml:"index"`
	Name   string `yaml:"name"`
	Parent *uint8 `yaml:"parent"` // nil => root (central) instance
	Access *bool  `yaml:"access"` // nil => true

	FirstFault   uint32 `yaml:"first_fault"`
	HWGroups     int    `yaml:"hw_groups"`
	FirstSWFault uint32 `yaml:"first_sw_fault"`
	SWFaults     int    `yaml:"sw_faults"`

	Bank BankConfig `yaml:"bank"`

	// Filled by Normalize.
	Children []uint8 `yaml:"-"`
}

// BankConfig selects the register backend of one instance.
// Endpoint "sim" (or empty) uses the in-memory bank.
type BankConfig struct {
	Endpoint  string `yaml:"endpoint"` // sim | tcp://host:port | rtu:///dev/ttyX
	SlaveID   uint8  `yaml:"slave_id"`
	Base      uint16 `yaml:"base"`
	TimeoutMs int    `yaml:"timeout_ms"`
	BaudRate  int    `yaml:"baud_rate"`
}

// ---- LOGICAL MACHINES ----

type LMConfig struct {
	ID    uint32 `yaml:"id"`
	Name  string `yaml:"name"`
	Fusa  bool   `yaml:"fusa"`
	Seenv bool   `yaml:"seenv"`

	SignatureFault *uint32 `yaml:"signature_fault"`
	CrcFault       *uint32 `yaml:"crc_fault"`
	CrcChannels    uint32  `yaml:"crc_channels"`

	Memory []RegionConfig `yaml:"memory"` // allowed CRC ranges; empty => CRC denied
}

type RegionConfig struct {
	Start uint64 `yaml:"start"`
	Size  uint64 `yaml:"size"`
}

// ImageConfig maps a file or device node into the address space CRC
// jobs read from.
type ImageConfig struct {
	Path   string `yaml:"path"`
	Base   uint64 `yaml:"base"`
	Offset int64  `yaml:"offset"`
	Size   int    `yaml:"size"` // 0 => rest of the file
}

// ---- FAULT REACTIONS ----

type FaultConfig struct {
	ID       uint32 `yaml:"id"`
	Name     string `yaml:"name"`
	Owner    uint32 `yaml:"owner"`
	Reaction string `yaml:"reaction"` // contain | degrade | shutdown | reset
	Severity string `yaml:"severity"` // info | warning | critical
}

// ---- SUPERVISOR ----

type SupervisorConfig struct {
	IntervalMs int `yaml:"interval_ms"`
}

// ---- STATUS MEMORY ----

type StatusMemoryConfig struct {
	Endpoint  string `yaml:"endpoint"` // empty => status publishing disabled
	UnitID    uint8  `yaml:"unit_id"`
	BaseSlot  uint16 `yaml:"base_slot"`
	TimeoutMs int    `yaml:"timeout_ms"`
}
