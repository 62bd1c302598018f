package ina3221

// ----- Critical / warning limits (shunt layout, per channel) -----

// CriticalLimit reads the critical-alert shunt limit of channel ch.
func (d *Device) CriticalLimit(ch int) (Voltage, error) {
	return d.readChannelLimit(regCritical, ch)
}

// SetCriticalLimit programs the critical-alert shunt limit of channel ch.
// The limit is compared against every single conversion.
func (d *Device) SetCriticalLimit(ch int, v Voltage) error {
	return d.writeChannelLimit(regCritical, ch, v)
}

// WarningLimit reads the warning-alert shunt limit of channel ch.
func (d *Device) WarningLimit(ch int) (Voltage, error) {
	return d.readChannelLimit(regWarning, ch)
}

// SetWarningLimit programs the warning-alert shunt limit of channel ch.
// The limit is compared against the averaged value.
func (d *Device) SetWarningLimit(ch int, v Voltage) error {
	return d.writeChannelLimit(regWarning, ch, v)
}

func (d *Device) readChannelLimit(table [Channels]uint8, ch int) (Voltage, error) {
	if err := checkChannel(ch); err != nil {
		return Voltage{}, err
	}
	raw, err := d.readWord(table[ch])
	if err != nil {
		return Voltage{}, err
	}
	return ShuntFromRaw(raw), nil
}

func (d *Device) writeChannelLimit(table [Channels]uint8, ch int, v Voltage) error {
	if err := checkChannel(ch); err != nil {
		return err
	}
	raw, err := v.ShuntRaw()
	if err != nil {
		return err
	}
	return d.writeWord(table[ch], raw)
}

// ----- Power-valid window (bus layout) -----

// PowerValidLimits reads the upper and lower power-valid bus thresholds.
func (d *Device) PowerValidLimits() (upper, lower Voltage, err error) {
	hi, err := d.readWord(regPowerValidUpper)
	if err != nil {
		return Voltage{}, Voltage{}, err
	}
	lo, err := d.readWord(regPowerValidLower)
	if err != nil {
		return Voltage{}, Voltage{}, err
	}
	return BusFromRaw(hi), BusFromRaw(lo), nil
}

// SetPowerValidLimits programs both power-valid thresholds. Both values are
// validated before either register is written.
func (d *Device) SetPowerValidLimits(upper, lower Voltage) error {
	hi, err := upper.BusRaw()
	if err != nil {
		return err
	}
	lo, err := lower.BusRaw()
	if err != nil {
		return err
	}
	if err := d.writeWord(regPowerValidUpper, hi); err != nil {
		return err
	}
	return d.writeWord(regPowerValidLower, lo)
}

// ----- Shunt-voltage sum -----

func (d *Device) ShuntSumLimit() (Voltage, error) {
	raw, err := d.readWord(regShuntSumLimit)
	if err != nil {
		return Voltage{}, err
	}
	return SumFromRaw(raw), nil
}

func (d *Device) SetShuntSumLimit(v Voltage) error {
	raw, err := v.SumRaw()
	if err != nil {
		return err
	}
	return d.writeWord(regShuntSumLimit, raw)
}

// SummationChannels returns SCC1..SCC3 as a slice indexed by channel.
func (d *Device) SummationChannels() ([]bool, error) {
	f, err := d.AlertFlags(true)
	if err != nil {
		return nil, err
	}
	out := make([]bool, Channels)
	for ch := range out {
		out[ch] = f.Summation(ch)
	}
	return out, nil
}

// SetSummationChannels selects which channels contribute to the shunt sum.
func (d *Device) SetSummationChannels(on []bool) error {
	arr, err := perChannel(on)
	if err != nil {
		return err
	}
	var set MaskEnableFlags
	for ch, e := range arr {
		if e {
			set |= summationFlags[ch]
		}
	}
	return d.modifyBitmaskRegister(regMaskEnable, uint16(set),
		uint16(FlagSummationControl1|FlagSummationControl2|FlagSummationControl3))
}

// ----- MASK/ENABLE -----

// AlertFlags reads MASK/ENABLE. The device clears the status flags as a side
// effect of the read. With preserve set the image read is written straight
// back, so latch and summation control bits are untouched and a device model
// that accepts status writes keeps its flags.
func (d *Device) AlertFlags(preserve bool) (MaskEnableFlags, error) {
	v, err := d.readWord(regMaskEnable)
	if err != nil {
		return 0, err
	}
	if preserve {
		if err := d.writeWord(regMaskEnable, v); err != nil {
			return MaskEnableFlags(v), err
		}
	}
	return MaskEnableFlags(v), nil
}

// ConversionReady reports CVRF. Reading it clears the status flags.
func (d *Device) ConversionReady() (bool, error) {
	f, err := d.AlertFlags(false)
	return f.Has(FlagConversionReady), err
}

// SetCriticalAlertLatch toggles CEN; every other bit is written back as read.
func (d *Device) SetCriticalAlertLatch(on bool) error {
	return d.setMaskBit(FlagCriticalLatch, on)
}

// SetWarningAlertLatch toggles WEN; every other bit is written back as read.
func (d *Device) SetWarningAlertLatch(on bool) error {
	return d.setMaskBit(FlagWarningLatch, on)
}

func (d *Device) setMaskBit(flag MaskEnableFlags, on bool) error {
	if on {
		return d.modifyBitmaskRegister(regMaskEnable, uint16(flag), 0)
	}
	return d.modifyBitmaskRegister(regMaskEnable, 0, uint16(flag))
}
