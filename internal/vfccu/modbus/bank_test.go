// internal/vfccu/modbus/bank_test.go
package modbus

import (
	"errors"
	"strings"
	"testing"

	"github.com/goburrow/modbus"
)

// fakeClient is a register file behind the modbus.Client interface.
// Only the calls the bank makes are implemented.
type fakeClient struct {
	modbus.Client
	regs    map[uint16]uint16
	writes  []uint16
	readErr error
}

func newFakeClient() *fakeClient {
	return &fakeClient{regs: map[uint16]uint16{}}
}

func (f *fakeClient) ReadHoldingRegisters(addr, qty uint16) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
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
	f.writes = append(f.writes, addr)
	return nil, nil
}

func TestBankStatusAddressing(t *testing.T) {
	cli := newFakeClient()
	b := newBank(nil, cli, Config{Base: 0x1000, Groups: 2})

	// group 1 status at base+2, high word first
	cli.regs[0x1002] = 0x8000
	cli.regs[0x1003] = 0x0001

	v, err := b.Status(1)
	if err != nil {
		t.Fatalf("Status err=%v", err)
	}
	if v != 0x80000001 {
		t.Fatalf("Status(1) = 0x%08x", v)
	}

	if _, err := b.Status(3); err == nil {
		t.Fatalf("expected error for group beyond sw group")
	}
}

func TestBankClearAndSWLines(t *testing.T) {
	cli := newFakeClient()
	b := newBank(nil, cli, Config{Base: 0, Groups: 1})

	if err := b.Clear(1, 1<<4); err != nil {
		t.Fatalf("Clear err=%v", err)
	}
	if err := b.SetSWLine(3, true); err != nil {
		t.Fatalf("SetSWLine err=%v", err)
	}
	if err := b.SetSWLine(3, false); err != nil {
		t.Fatalf("SetSWLine err=%v", err)
	}

	want := []uint16{offClear + 2, offSWSet, offSWClear}
	if len(cli.writes) != len(want) {
		t.Fatalf("writes=%v want=%v", cli.writes, want)
	}
	for i := range want {
		if cli.writes[i] != want[i] {
			t.Fatalf("write %d at 0x%04x, want 0x%04x", i, cli.writes[i], want[i])
		}
	}
	if cli.regs[offSWSet+1] != 1<<3 {
		t.Fatalf("sw set mask low word = 0x%04x", cli.regs[offSWSet+1])
	}
}

func TestBankProbe(t *testing.T) {
	cli := newFakeClient()
	b := newBank(nil, cli, Config{Base: 0})

	if err := b.Probe(); err == nil {
		t.Fatalf("expected probe failure on empty identification word")
	}

	cli.regs[offIdent] = 0xFCC0
	if err := b.Probe(); err != nil {
		t.Fatalf("Probe err=%v", err)
	}

	cli.readErr = errors.New("timeout")
	if err := b.Probe(); err == nil {
		t.Fatalf("expected probe failure on transport error")
	}
}

func TestDialRejectsUnknownScheme(t *testing.T) {
	if _, err := Dial(Config{Endpoint: "udp://x"}); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestDialRejectsWrappingLayout(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		want string
	}{
		{"base too high", Config{Endpoint: "tcp://127.0.0.1:1", Base: 0xFC01, Groups: 1}, "no room"},
		{"too many groups", Config{Endpoint: "tcp://127.0.0.1:1", Groups: MaxGroups + 1}, "groups exceed"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Dial(tc.cfg); err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("Dial(%+v) err=%v, want layout error", tc.cfg, err)
			}
		})
	}

	ok := Config{Base: 0xFC00, Groups: MaxGroups}
	if err := ok.check(); err != nil {
		t.Fatalf("highest legal layout rejected: %v", err)
	}
}
