// internal/vfccu/modbus/bank.go

// Package modbus implements vfccu.Bank for a collection unit reached over
// Modbus (TCP or RTU), as found on hardware-in-the-loop rigs.
//
// Register map, relative to Config.Base, one 32-bit group per two holding
// registers (high word first):
//
//	0x000 + 2g   latched status of group g (read)
//	0x100 + 2g   live condition of group g (read)
//	0x200 + 2g   write-1-to-clear of group g
//	0x300        software line set mask
//	0x302        software line clear mask
//	0x3F0        identification word (probe)
package modbus

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goburrow/modbus"
)

const (
	offStatus    uint16 = 0x000
	offCondition uint16 = 0x100
	offClear     uint16 = 0x200
	offSWSet     uint16 = 0x300
	offSWClear   uint16 = 0x302
	offIdent     uint16 = 0x3F0

	// MapSize is the register span of one instance starting at Base.
	MapSize = 0x400
	// MaxGroups is the most hardware groups a 0x100 window holds next to
	// the software group.
	MaxGroups = 0x100/2 - 1
)

// Config is minimal transport config.
type Config struct {
	Endpoint string // tcp://host:port or rtu:///dev/ttyX
	SlaveID  uint8
	Base     uint16
	Timeout  time.Duration
	BaudRate int
	Groups   int // hardware groups; the software group follows them
}

type handler interface {
	modbus.ClientHandler
	Connect() error
	Close() error
}

// Bank is a single connection to one remote instance.
// It serializes requests; a Modbus link carries one transaction at a time.
type Bank struct {
	mu      sync.Mutex
	handler handler
	client  modbus.Client
	base    uint16
	groups  int
}

// Dial connects to the instance described by cfg.
func Dial(cfg Config) (*Bank, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("vfccu modbus: endpoint required")
	}
	if err := cfg.check(); err != nil {
		return nil, err
	}

	var h handler
	switch {
	case strings.HasPrefix(cfg.Endpoint, "tcp://"):
		th := modbus.NewTCPClientHandler(strings.TrimPrefix(cfg.Endpoint, "tcp://"))
		th.Timeout = cfg.Timeout
		th.SlaveId = cfg.SlaveID
		h = th
	case strings.HasPrefix(cfg.Endpoint, "rtu://"):
		rh := modbus.NewRTUClientHandler(strings.TrimPrefix(cfg.Endpoint, "rtu://"))
		rh.BaudRate = cfg.BaudRate
		rh.DataBits = 8
		rh.Parity = "N"
		rh.StopBits = 1
		rh.Timeout = cfg.Timeout
		rh.SlaveId = cfg.SlaveID
		h = rh
	default:
		return nil, fmt.Errorf("vfccu modbus: unsupported endpoint %q", cfg.Endpoint)
	}

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("vfccu modbus: connect %s: %w", cfg.Endpoint, err)
	}

	return newBank(h, modbus.NewClient(h), cfg), nil
}

// check rejects layouts whose register addresses would wrap.
func (c Config) check() error {
	if c.Groups < 0 || c.Groups > MaxGroups {
		return fmt.Errorf("vfccu modbus: %d groups exceed %d", c.Groups, MaxGroups)
	}
	if int(c.Base)+MapSize > 0x10000 {
		return fmt.Errorf("vfccu modbus: base 0x%04x leaves no room for the 0x%x register map", c.Base, MapSize)
	}
	return nil
}

func newBank(h handler, c modbus.Client, cfg Config) *Bank {
	return &Bank{
		handler: h,
		client:  c,
		base:    cfg.Base,
		groups:  cfg.Groups,
	}
}

// Close closes the underlying link.
func (b *Bank) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handler == nil {
		return nil
	}
	return b.handler.Close()
}

// ---- vfccu.Bank interface ----

func (b *Bank) Probe() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := b.client.ReadHoldingRegisters(b.base+offIdent, 1)
	if err != nil {
		return fmt.Errorf("vfccu modbus: probe: %w", err)
	}
	if len(raw) < 2 || (raw[0] == 0 && raw[1] == 0) {
		return errors.New("vfccu modbus: probe: empty identification word")
	}
	return nil
}

func (b *Bank) Status(group int) (uint32, error) {
	return b.read32(offStatus, group)
}

func (b *Bank) Condition(group int) (uint32, error) {
	return b.read32(offCondition, group)
}

func (b *Bank) Clear(group int, mask uint32) error {
	return b.write32(offClear, group, mask)
}

func (b *Bank) SetSWLine(line int, asserted bool) error {
	if line < 0 || line >= 32 {
		return fmt.Errorf("vfccu modbus: sw line %d out of range", line)
	}
	off := offSWClear
	if asserted {
		off = offSWSet
	}
	return b.writeAt(b.base+off, 1<<line)
}

// ---- helpers ----

func (b *Bank) read32(off uint16, group int) (uint32, error) {
	if group < 0 || group > b.groups {
		return 0, fmt.Errorf("vfccu modbus: group %d out of range", group)
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	addr := b.base + off + uint16(2*group)
	raw, err := b.client.ReadHoldingRegisters(addr, 2)
	if err != nil {
		return 0, fmt.Errorf("vfccu modbus: read 0x%04x: %w", addr, err)
	}
	if len(raw) < 4 {
		return 0, fmt.Errorf("vfccu modbus: short read at 0x%04x: %d bytes", addr, len(raw))
	}
	return unpack32(raw), nil
}

func (b *Bank) write32(off uint16, group int, v uint32) error {
	if group < 0 || group > b.groups {
		return fmt.Errorf("vfccu modbus: group %d out of range", group)
	}
	return b.writeAt(b.base+off+uint16(2*group), v)
}

func (b *Bank) writeAt(addr uint16, v uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := b.client.WriteMultipleRegisters(addr, 2, pack32(v)); err != nil {
		return fmt.Errorf("vfccu modbus: write 0x%04x: %w", addr, err)
	}
	return nil
}

func pack32(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func unpack32(p []byte) uint32 {
	return uint32(p[0])<<24 | uint32(p[1])<<16 | uint32(p[2])<<8 | uint32(p[3])
}
