package ina3221

// I2C 16-bit word operations (big-endian: HIGH then LOW).

func (d *Device) readWord(reg uint8) (uint16, error) {
	d.w[0] = reg
	if err := d.i2c.Tx(d.addr, d.w[:1], d.r[:2]); err != nil {
		return 0, err
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeWord(reg uint8, val uint16) error {
	d.w[0] = reg
	d.w[1] = byte(val >> 8) // high
	d.w[2] = byte(val)      // low
	return d.i2c.Tx(d.addr, d.w[:3], nil)
}

// Generic read-modify-write for 16-bit registers with bitmasks.
func (d *Device) modifyBitmaskRegister(reg uint8, set, clear uint16) error {
	current, err := d.readWord(reg)
	if err != nil {
		return err
	}
	return d.writeWord(reg, (current&^clear)|set)
}
