// Package periphi2c opens a host I²C bus through periph.io and presents it
// as a tinygo drivers.I2C, so the same drivers run on Linux boards.
package periphi2c

import (
	"fmt"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
	"tinygo.org/x/drivers"
)

var _ drivers.I2C = (*Bus)(nil)

// Bus adapts a periph.io bus to drivers.I2C.
type Bus struct {
	b i2c.BusCloser
}

// Open initialises the host drivers and opens the named bus ("" picks the
// first one, "/dev/i2c-1" or "1" a specific one). A zero speed keeps the
// bus default.
func Open(name string, speed physic.Frequency) (*Bus, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("periphi2c: host init: %w", err)
	}
	b, err := i2creg.Open(name)
	if err != nil {
		return nil, fmt.Errorf("periphi2c: open %q: %w", name, err)
	}
	if speed > 0 {
		if err := b.SetSpeed(speed); err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("periphi2c: set speed %s on %q: %w", speed, name, err)
		}
	}
	return Wrap(b), nil
}

// Wrap adapts an already open bus.
func Wrap(b i2c.BusCloser) *Bus { return &Bus{b: b} }

// Tx performs one write-then-read transaction.
func (b *Bus) Tx(addr uint16, w, r []byte) error {
	return b.b.Tx(addr, w, r)
}

func (b *Bus) Close() error { return b.b.Close() }

func (b *Bus) String() string { return b.b.String() }
