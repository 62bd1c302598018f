package ina3221

import (
	"errors"
	"sync"

	"tinygo.org/x/drivers"
)

// Compile-time check.
var _ drivers.I2C = (*simDevice)(nil)

var (
	errNack     = errors.New("sim: nack")
	errProtocol = errors.New("sim: unexpected transfer shape")
)

type txRecord struct {
	addr uint16
	w    []byte
	rn   int
}

// simDevice is a register-file model of an INA3221. Reading MASK/ENABLE
// clears its status bits; writes store whole words (including status bits,
// which real silicon ignores) so preserve semantics can be observed.
type simDevice struct {
	mu   sync.Mutex
	addr uint16
	regs map[uint8]uint16
	log  []txRecord
	err  error // returned from every Tx when set
}

func powerOnRegs() map[uint8]uint16 {
	return map[uint8]uint16{
		regConfig:          configDefault,
		regCriticalLimit1:  0x7FF8,
		regCriticalLimit2:  0x7FF8,
		regCriticalLimit3:  0x7FF8,
		regWarningLimit1:   0x7FF8,
		regWarningLimit2:   0x7FF8,
		regWarningLimit3:   0x7FF8,
		regShuntSumLimit:   0x7FFE,
		regMaskEnable:      0x0002,
		regPowerValidUpper: 0x2710,
		regPowerValidLower: 0x2328,
		regManufacturerID:  ManufacturerIDTI,
		regDieID:           DieIDINA3221,
	}
}

func newSim() *simDevice {
	return &simDevice{addr: AddressDefault, regs: powerOnRegs()}
}

func (s *simDevice) Tx(addr uint16, w, r []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.log = append(s.log, txRecord{addr: addr, w: append([]byte(nil), w...), rn: len(r)})
	if s.err != nil {
		return s.err
	}
	if addr != s.addr {
		return errNack
	}
	switch {
	case len(w) == 3 && len(r) == 0:
		reg, val := w[0], uint16(w[1])<<8|uint16(w[2])
		if reg == regConfig && val&cfgReset != 0 {
			s.regs = powerOnRegs()
			return nil
		}
		s.regs[reg] = val
	case len(w) == 1 && len(r) == 2:
		v := s.regs[w[0]]
		r[0], r[1] = byte(v>>8), byte(v)
		if w[0] == regMaskEnable {
			s.regs[regMaskEnable] = v &^ uint16(FlagsStatus)
		}
	default:
		return errProtocol
	}
	return nil
}

func (s *simDevice) set(reg uint8, v uint16) {
	s.mu.Lock()
	s.regs[reg] = v
	s.mu.Unlock()
}

func (s *simDevice) get(reg uint8) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.regs[reg]
}

func (s *simDevice) reset() {
	s.mu.Lock()
	s.log = nil
	s.mu.Unlock()
}

func (s *simDevice) txs() []txRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]txRecord(nil), s.log...)
}

func newTestDevice() (*Device, *simDevice) {
	sim := newSim()
	return New(sim, DefaultConfig()), sim
}
