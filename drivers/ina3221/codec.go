package ina3221

import "ina3221-go/x/mathx"

// field describes a left-justified two's-complement field in a 16-bit word:
// the value occupies bits 15..shift and each LSB is lsb microvolts.
type field struct {
	shift uint
	lsb   int32
}

var (
	shuntField = field{shift: fieldShift13, lsb: shuntLSB_uV} // 13-bit, 40 µV
	busField   = field{shift: fieldShift13, lsb: busLSB_uV}   // 13-bit, 8 mV
	sumField   = field{shift: fieldShift15, lsb: sumLSB_uV}   // 15-bit, 40 µV
)

// counts sign-extends the field and drops the reserved low bits.
func (f field) counts(raw uint16) int32 {
	return int32(int16(raw) >> f.shift)
}

func (f field) decode(raw uint16) Voltage {
	return Voltage{uV: f.counts(raw) * f.lsb}
}

// encode quantises v toward zero onto the field. Values outside the
// field's signed range are rejected, never clamped.
func (f field) encode(v Voltage) (uint16, error) {
	code := v.uV / f.lsb
	max := int32(1)<<(15-f.shift) - 1
	if !mathx.Between(code, -max-1, max) {
		return 0, ErrOutOfRange
	}
	return uint16(code) << f.shift, nil
}

// ShuntFromRaw decodes a shunt-voltage or critical/warning limit register.
func ShuntFromRaw(raw uint16) Voltage { return shuntField.decode(raw) }

// BusFromRaw decodes a bus-voltage or power-valid limit register.
func BusFromRaw(raw uint16) Voltage { return busField.decode(raw) }

// SumFromRaw decodes the shunt-voltage sum register or its limit.
func SumFromRaw(raw uint16) Voltage { return sumField.decode(raw) }

// ShuntRaw encodes v in the shunt/limit register layout.
func (v Voltage) ShuntRaw() (uint16, error) { return shuntField.encode(v) }

// BusRaw encodes v in the bus/power-valid register layout.
func (v Voltage) BusRaw() (uint16, error) { return busField.encode(v) }

// SumRaw encodes v in the shunt-sum limit register layout.
func (v Voltage) SumRaw() (uint16, error) { return sumField.encode(v) }

// Range limits of each layout.
var (
	ShuntMin = FromMicrovolts(-4096 * shuntLSB_uV)
	ShuntMax = FromMicrovolts(4095 * shuntLSB_uV)
	BusMin   = FromMicrovolts(-4096 * busLSB_uV)
	BusMax   = FromMicrovolts(4095 * busLSB_uV)
	SumMin   = FromMicrovolts(-16384 * sumLSB_uV)
	SumMax   = FromMicrovolts(16383 * sumLSB_uV)
)
