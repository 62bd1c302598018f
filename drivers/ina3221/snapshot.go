package ina3221

// ChannelReading is one channel's measurement set.
type ChannelReading struct {
	Bus, Shunt Voltage
	Current_uA int32 // valid when HasCurrent
	HasCurrent bool
}

// Load returns bus + shunt.
func (c ChannelReading) Load() Voltage { return c.Bus.Add(c.Shunt) }

// Snapshot collects every enabled channel plus sum and flags.
// Zero values remain where individual reads fail.
type Snapshot struct {
	Enabled  [Channels]bool
	Channels [Channels]ChannelReading
	Sum      Voltage
	Flags    MaskEnableFlags
}

func (d *Device) Snapshot() (Snapshot, error) {
	var s Snapshot
	err := d.SnapshotInto(&s)
	return s, err
}

// SnapshotInto fills out and returns the first error encountered. Flags are
// read with preserve set so alerts are left for AlertFlags(false).
func (d *Device) SnapshotInto(out *Snapshot) error {
	var s Snapshot
	var first error
	keep := func(err error) bool {
		if err != nil && first == nil {
			first = err
		}
		return err == nil
	}

	if v, e := d.readWord(regConfig); keep(e) {
		s.Enabled = decodeChannelBits(v)
	}
	for ch := 0; ch < Channels; ch++ {
		if !s.Enabled[ch] {
			continue
		}
		c := &s.Channels[ch]
		if v, e := d.BusVoltage(ch); keep(e) {
			c.Bus = v
		}
		if v, e := d.ShuntVoltage(ch); keep(e) {
			c.Shunt = v
			if r := d.shunt_uOhm[ch]; r != 0 {
				c.Current_uA = currentMicroamps(v, r)
				c.HasCurrent = true
			}
		}
	}
	if v, e := d.ShuntSum(); keep(e) {
		s.Sum = v
	}
	if v, e := d.AlertFlags(true); keep(e) {
		s.Flags = v
	}
	*out = s
	return first
}
