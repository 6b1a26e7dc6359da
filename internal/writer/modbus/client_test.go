// internal/writer/modbus/client_test.go
package modbus

import (
	"testing"

	"github.com/goburrow/modbus"
	"github.com/google/go-cmp/cmp"
)

// fakeClient is a register file behind the modbus.Client interface.
type fakeClient struct {
	modbus.Client
	regs map[uint16]uint16
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]byte, error) {
	out := make([]byte, 0, 2*qty)
	for i := uint16(0); i < qty; i++ {
		v := f.regs[addr+i]
		out = append(out, byte(v>>8), byte(v))
	}
	return out, nil
}

func (f *fakeClient) WriteMultipleRegisters(addr, qty uint16, value []byte) ([]byte, error) {
	for i := uint16(0); i < qty; i++ {
		f.regs[addr+i] = uint16(value[2*i])<<8 | uint16(value[2*i+1])
	}
	return nil, nil
}

func TestWriteThenReadRegisters(t *testing.T) {
	fake := &fakeClient{regs: map[uint16]uint16{}}
	c := newEndpointClient(nil, fake)

	if err := c.WriteRegisters(1, 40, []uint16{0x0102, 0xFFFF, 0}); err != nil {
		t.Fatalf("WriteRegisters err=%v", err)
	}
	got, err := c.ReadRegisters(1, 40, 3)
	if err != nil {
		t.Fatalf("ReadRegisters err=%v", err)
	}
	if diff := cmp.Diff([]uint16{0x0102, 0xFFFF, 0}, got); diff != "" {
		t.Fatalf("registers (-want +got):\n%s", diff)
	}
}

func TestWriteEmptyIsNoop(t *testing.T) {
	fake := &fakeClient{regs: map[uint16]uint16{}}
	c := newEndpointClient(nil, fake)
	if err := c.WriteRegisters(1, 0, nil); err != nil {
		t.Fatalf("empty write err=%v", err)
	}
	if len(fake.regs) != 0 {
		t.Fatalf("empty write touched registers")
	}
}

func TestPackRegistersBigEndian(t *testing.T) {
	if diff := cmp.Diff([]byte{0x12, 0x34, 0xAB, 0xCD}, packRegisters([]uint16{0x1234, 0xABCD})); diff != "" {
		t.Fatalf("pack (-want +got):\n%s", diff)
	}
}

func TestNewEndpointClientRequiresEndpoint(t *testing.T) {
	if _, err := NewEndpointClient(Config{}); err == nil {
		t.Fatalf("expected error for empty endpoint")
	}
}
