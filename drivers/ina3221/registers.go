// Package ina3221 provides constants for register addresses and bitfields used
// in the operation of the INA3221 triple-channel shunt and bus voltage monitor.
package ina3221

const (
	// 7-bit I2C address with A0 tied to GND. A0 strapped to VS/SDA/SCL gives 0x41/0x42/0x43.
	AddressDefault = 0x40

	// Number of measurement channels.
	Channels = 3

	// Identification register contents.
	ManufacturerIDTI = 0x5449 // "TI"
	DieIDINA3221     = 0x3220

	// --- Register sub-addresses (16-bit word registers) ---
	regConfig          = 0x00 // R/W
	regShuntVoltage1   = 0x01 // R
	regBusVoltage1     = 0x02 // R
	regShuntVoltage2   = 0x03 // R
	regBusVoltage2     = 0x04 // R
	regShuntVoltage3   = 0x05 // R
	regBusVoltage3     = 0x06 // R
	regCriticalLimit1  = 0x07 // R/W
	regWarningLimit1   = 0x08 // R/W
	regCriticalLimit2  = 0x09 // R/W
	regWarningLimit2   = 0x0A // R/W
	regCriticalLimit3  = 0x0B // R/W
	regWarningLimit3   = 0x0C // R/W
	regShuntVoltageSum = 0x0D // R
	regShuntSumLimit   = 0x0E // R/W
	regMaskEnable      = 0x0F // R/W, status bits clear on read
	regPowerValidUpper = 0x10 // R/W
	regPowerValidLower = 0x11 // R/W
	regManufacturerID  = 0xFE // R
	regDieID           = 0xFF // R

	// --- CONFIGURATION (0x00) fields ---
	cfgReset        = 1 << 15
	cfgChannelShift = 12 // CH1EN is bit 14, CH3EN bit 12
	cfgChannelMask  = 0x7 << cfgChannelShift
	cfgAvgShift     = 9
	cfgAvgMask      = 0x7 << cfgAvgShift
	cfgBusCTShift   = 6
	cfgBusCTMask    = 0x7 << cfgBusCTShift
	cfgShuntCTShift = 3
	cfgShuntCTMask  = 0x7 << cfgShuntCTShift
	cfgModeMask     = 0x7

	// Power-on value of CONFIGURATION: all channels on, 1 sample,
	// 1.1 ms conversions, shunt and bus continuous.
	configDefault = 0x7127

	// --- Field layouts of the measurement and limit registers ---
	// Shunt readings and critical/warning limits: 40 µV/LSB, bits 15..3.
	shuntLSB_uV = 40
	// Bus readings and power-valid limits: 8 mV/LSB, bits 15..3.
	busLSB_uV = 8000
	// Shunt sum and its limit: 40 µV/LSB, bits 15..1.
	sumLSB_uV = 40

	fieldShift13 = 3
	fieldShift15 = 1
)

// Per-channel register tables, indexed by channel 0..2.
var (
	regBusVoltage   = [Channels]uint8{regBusVoltage1, regBusVoltage2, regBusVoltage3}
	regShuntVoltage = [Channels]uint8{regShuntVoltage1, regShuntVoltage2, regShuntVoltage3}
	regCritical     = [Channels]uint8{regCriticalLimit1, regCriticalLimit2, regCriticalLimit3}
	regWarning      = [Channels]uint8{regWarningLimit1, regWarningLimit2, regWarningLimit3}
)
