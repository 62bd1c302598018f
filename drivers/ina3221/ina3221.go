// Package ina3221 provides a TinyGo/host driver for the TI INA3221
// triple-channel, high-side shunt and bus voltage monitor.
//
// Design notes (datasheet references):
// • I2C, up to 2.44MHz, 16-bit registers transferred MSB first.
// • Address 0x40..0x43 selected by the A0 strap.
// • Shunt readings and critical/warning limits: 13-bit two's complement in bits 15..3, 40 µV/LSB.
// • Bus readings and power-valid limits: 13-bit two's complement in bits 15..3, 8 mV/LSB.
// • MASK/ENABLE status flags clear when the register is read.
//
// Every method is a blocking request/response against the device's register
// file; the driver keeps no shadow copy of device state and never retries.
// A Device must be owned by a single goroutine.
//
// Datasheet: https://www.ti.com/lit/ds/symlink/ina3221.pdf
package ina3221

import "tinygo.org/x/drivers"

// Driver configuration.
type Config struct {
	Address uint16
	// Shunt resistor per channel in µΩ; 0 leaves current readings unavailable.
	ShuntResistors [Channels]uint32
}

// DefaultConfig returns the address with A0 tied to GND and no shunt values.
func DefaultConfig() Config {
	return Config{Address: AddressDefault}
}

// Validate checks the strap-selectable address.
func (c Config) Validate() error {
	if c.Address < AddressDefault || c.Address > AddressDefault+3 {
		return ErrInvalidAddress
	}
	return nil
}

// Device represents an INA3221 instance on an I²C bus.
type Device struct {
	i2c  drivers.I2C
	addr uint16

	shunt_uOhm [Channels]uint32

	// Fixed buffers to avoid per-call heap allocations.
	w [3]byte
	r [2]byte
}

// New constructs a Device. It does not touch the bus.
func New(i2c drivers.I2C, cfg Config) *Device {
	addr := cfg.Address
	if addr == 0 {
		addr = AddressDefault
	}
	return &Device{
		i2c:        i2c,
		addr:       addr,
		shunt_uOhm: cfg.ShuntResistors,
	}
}

// Configure applies runtime changes to the sense resistors.
func (d *Device) Configure(cfg Config) {
	for ch, r := range cfg.ShuntResistors {
		if r != 0 {
			d.shunt_uOhm[ch] = r
		}
	}
}

func (d *Device) Address() uint16 { return d.addr }

// ---- Identification ----

func (d *Device) ManufacturerID() (uint16, error) { return d.readWord(regManufacturerID) }
func (d *Device) DieID() (uint16, error)          { return d.readWord(regDieID) }

// Connected verifies both identification registers.
func (d *Device) Connected() error {
	mfg, err := d.ManufacturerID()
	if err != nil {
		return err
	}
	die, err := d.DieID()
	if err != nil {
		return err
	}
	if mfg != ManufacturerIDTI || die != DieIDINA3221 {
		return ErrNotConnected
	}
	return nil
}

// Reset sets the RST bit. The device returns to its power-on configuration;
// the caller must re-apply any configuration afterwards.
func (d *Device) Reset() error {
	return d.modifyBitmaskRegister(regConfig, cfgReset, 0)
}

// ---- Measurements ----

// BusVoltage reads the bus (IN-) voltage of channel ch.
func (d *Device) BusVoltage(ch int) (Voltage, error) {
	if err := checkChannel(ch); err != nil {
		return Voltage{}, err
	}
	raw, err := d.readWord(regBusVoltage[ch])
	if err != nil {
		return Voltage{}, err
	}
	return BusFromRaw(raw), nil
}

// ShuntVoltage reads the voltage across the shunt of channel ch.
func (d *Device) ShuntVoltage(ch int) (Voltage, error) {
	if err := checkChannel(ch); err != nil {
		return Voltage{}, err
	}
	raw, err := d.readWord(regShuntVoltage[ch])
	if err != nil {
		return Voltage{}, err
	}
	return ShuntFromRaw(raw), nil
}

// LoadVoltage is the supply-side voltage of channel ch: bus + shunt.
func (d *Device) LoadVoltage(ch int) (Voltage, error) {
	bus, err := d.BusVoltage(ch)
	if err != nil {
		return Voltage{}, err
	}
	shunt, err := d.ShuntVoltage(ch)
	if err != nil {
		return Voltage{}, err
	}
	return bus.Add(shunt), nil
}

// ShuntCurrent returns the current through the shunt of channel ch in µA.
func (d *Device) ShuntCurrent(ch int) (int32, error) {
	if err := checkChannel(ch); err != nil {
		return 0, err
	}
	if d.shunt_uOhm[ch] == 0 {
		return 0, ErrShuntUnset
	}
	v, err := d.ShuntVoltage(ch)
	if err != nil {
		return 0, err
	}
	return currentMicroamps(v, d.shunt_uOhm[ch]), nil
}

func currentMicroamps(v Voltage, uOhm uint32) int32 {
	return int32(int64(v.Microvolts()) * 1_000_000 / int64(uOhm))
}

// ShuntSum reads the sum of the shunt voltages of the channels selected
// with SetSummationChannels.
func (d *Device) ShuntSum() (Voltage, error) {
	raw, err := d.readWord(regShuntVoltageSum)
	if err != nil {
		return Voltage{}, err
	}
	return SumFromRaw(raw), nil
}

// ---- Configuration ----

func (d *Device) ReadConfiguration() (Configuration, error) {
	v, err := d.readWord(regConfig)
	if err != nil {
		return Configuration{}, err
	}
	return decodeConfiguration(v)
}

// WriteConfiguration replaces the whole CONFIGURATION register.
func (d *Device) WriteConfiguration(c Configuration) error {
	v, err := c.encode()
	if err != nil {
		return err
	}
	return d.writeWord(regConfig, v)
}

func (d *Device) Mode() (OperatingMode, error) {
	v, err := d.readWord(regConfig)
	if err != nil {
		return 0, err
	}
	return decodeMode(v)
}

// SetMode updates MODE3..MODE1 and preserves the other configuration bits.
// Writing a triggered mode starts a single conversion.
func (d *Device) SetMode(m OperatingMode) error {
	if !m.Valid() {
		return ErrInvalidMode
	}
	return d.modifyBitmaskRegister(regConfig, uint16(m), cfgModeMask)
}

func (d *Device) SetAveraging(a Averaging) error {
	return d.modifyBitmaskRegister(regConfig, uint16(a&0x7)<<cfgAvgShift, cfgAvgMask)
}

func (d *Device) SetBusConversionTime(t ConversionTime) error {
	return d.modifyBitmaskRegister(regConfig, uint16(t&0x7)<<cfgBusCTShift, cfgBusCTMask)
}

func (d *Device) SetShuntConversionTime(t ConversionTime) error {
	return d.modifyBitmaskRegister(regConfig, uint16(t&0x7)<<cfgShuntCTShift, cfgShuntCTMask)
}

// ChannelsEnabled returns CH1EN..CH3EN as a slice indexed by channel.
func (d *Device) ChannelsEnabled() ([]bool, error) {
	v, err := d.readWord(regConfig)
	if err != nil {
		return nil, err
	}
	on := decodeChannelBits(v)
	return on[:], nil
}

// SetChannelsEnabled writes CH1EN..CH3EN; on must hold exactly one entry
// per channel.
func (d *Device) SetChannelsEnabled(on []bool) error {
	arr, err := perChannel(on)
	if err != nil {
		return err
	}
	return d.modifyBitmaskRegister(regConfig, encodeChannelBits(arr), cfgChannelMask)
}
