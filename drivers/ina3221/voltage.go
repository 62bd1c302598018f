package ina3221

import (
	"math"
	"strconv"

	"ina3221-go/x/mathx"
)

// Voltage is an immutable signed voltage held in microvolts. One microvolt
// resolves every LSB of the INA3221 registers exactly (shunt 40 µV, bus 8 mV).
type Voltage struct {
	uV int32
}

// FromMicrovolts returns the Voltage for uV microvolts.
func FromMicrovolts(uV int32) Voltage { return Voltage{uV: uV} }

// FromMillivolts returns the Voltage nearest to mV millivolts.
func FromMillivolts(mV float64) Voltage { return Voltage{uV: int32(math.Round(mV * 1e3))} }

// FromVolts returns the Voltage nearest to v volts.
func FromVolts(v float64) Voltage { return Voltage{uV: int32(math.Round(v * 1e6))} }

func (v Voltage) Microvolts() int32   { return v.uV }
func (v Voltage) Millivolts() float64 { return float64(v.uV) / 1e3 }
func (v Voltage) Volts() float64      { return float64(v.uV) / 1e6 }

func (v Voltage) IsZero() bool     { return v.uV == 0 }
func (v Voltage) IsNegative() bool { return v.uV < 0 }
func (v Voltage) IsPositive() bool { return v.uV > 0 }

// Add returns v+o, e.g. bus + shunt = load voltage.
func (v Voltage) Add(o Voltage) Voltage { return Voltage{uV: v.uV + o.uV} }

// Sub returns v-o.
func (v Voltage) Sub(o Voltage) Voltage { return Voltage{uV: v.uV - o.uV} }

func (v Voltage) Neg() Voltage { return Voltage{uV: -v.uV} }
func (v Voltage) Abs() Voltage { return Voltage{uV: mathx.Abs(v.uV)} }

// Clamp limits v to [lo, hi].
func (v Voltage) Clamp(lo, hi Voltage) Voltage {
	return Voltage{uV: mathx.Clamp(v.uV, lo.uV, hi.uV)}
}

// String formats v in millivolts with microvolt precision, e.g. "-0.200mV".
func (v Voltage) String() string {
	uV := int64(v.uV)
	sign := ""
	if uV < 0 {
		sign = "-"
		uV = -uV
	}
	frac := strconv.FormatInt(uV%1000, 10)
	for len(frac) < 3 {
		frac = "0" + frac
	}
	return sign + strconv.FormatInt(uV/1000, 10) + "." + frac + "mV"
}
