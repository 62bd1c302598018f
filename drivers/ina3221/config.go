package ina3221

// Averaging sets how many samples are collected and averaged per conversion.
type Averaging uint8

// Constants representing each possible value of type Averaging.
const (
	Averaging1       Averaging = 0 // (000b) -- default
	Averaging4       Averaging = 1 // (001b)
	Averaging16      Averaging = 2 // (010b)
	Averaging64      Averaging = 3 // (011b)
	Averaging128     Averaging = 4 // (100b)
	Averaging256     Averaging = 5 // (101b)
	Averaging512     Averaging = 6 // (110b)
	Averaging1024    Averaging = 7 // (111b)
	AveragingDefault Averaging = Averaging1
)

var averagingSamples = [8]uint16{1, 4, 16, 64, 128, 256, 512, 1024}

// Samples returns the sample count selected by a.
func (a Averaging) Samples() uint16 { return averagingSamples[a&0x7] }

// AveragingForSamples returns the setting for exactly n samples.
func AveragingForSamples(n uint16) (Averaging, bool) {
	for i, s := range averagingSamples {
		if s == n {
			return Averaging(i), true
		}
	}
	return 0, false
}

// ConversionTime is the ADC conversion time of one bus or shunt sample.
type ConversionTime uint8

// Constants representing each possible value of type ConversionTime.
const (
	ConversionTime140us   ConversionTime = 0 // (000b)
	ConversionTime204us   ConversionTime = 1 // (001b)
	ConversionTime332us   ConversionTime = 2 // (010b)
	ConversionTime588us   ConversionTime = 3 // (011b)
	ConversionTime1p1ms   ConversionTime = 4 // (100b) -- default (bus, shunt)
	ConversionTime2p116ms ConversionTime = 5 // (101b)
	ConversionTime4p156ms ConversionTime = 6 // (110b)
	ConversionTime8p244ms ConversionTime = 7 // (111b)
	ConversionTimeDefault ConversionTime = ConversionTime1p1ms
)

var conversionMicros = [8]uint32{140, 204, 332, 588, 1100, 2116, 4156, 8244}

// Micros returns the conversion time in microseconds.
func (t ConversionTime) Micros() uint32 { return conversionMicros[t&0x7] }

// ConversionTimeForMicros returns the setting for exactly us microseconds.
func ConversionTimeForMicros(us uint32) (ConversionTime, bool) {
	for i, v := range conversionMicros {
		if v == us {
			return ConversionTime(i), true
		}
	}
	return 0, false
}

// Configuration represents the content of the CONFIGURATION register (00h).
type Configuration struct {
	ChannelEnabled [Channels]bool
	Averaging      Averaging
	BusTime        ConversionTime
	ShuntTime      ConversionTime
	Mode           OperatingMode
}

// DefaultConfiguration is the power-on configuration of an INA3221.
func DefaultConfiguration() Configuration {
	c, _ := decodeConfiguration(configDefault)
	return c
}

// CycleMicros estimates one full conversion cycle: every enabled channel
// converts shunt and/or bus according to Mode, Averaging times.
func (c Configuration) CycleMicros() uint32 {
	var per uint32
	if c.Mode.Shunt() {
		per += c.ShuntTime.Micros()
	}
	if c.Mode.Bus() {
		per += c.BusTime.Micros()
	}
	var n uint32
	for _, on := range c.ChannelEnabled {
		if on {
			n++
		}
	}
	return per * n * uint32(c.Averaging.Samples())
}

func decodeConfiguration(v uint16) (Configuration, error) {
	m, err := decodeMode(v)
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		ChannelEnabled: decodeChannelBits(v),
		Averaging:      Averaging((v & cfgAvgMask) >> cfgAvgShift),
		BusTime:        ConversionTime((v & cfgBusCTMask) >> cfgBusCTShift),
		ShuntTime:      ConversionTime((v & cfgShuntCTMask) >> cfgShuntCTShift),
		Mode:           m,
	}, nil
}

func (c Configuration) encode() (uint16, error) {
	if !c.Mode.Valid() {
		return 0, ErrInvalidMode
	}
	v := encodeChannelBits(c.ChannelEnabled)
	v |= uint16(c.Averaging&0x7) << cfgAvgShift
	v |= uint16(c.BusTime&0x7) << cfgBusCTShift
	v |= uint16(c.ShuntTime&0x7) << cfgShuntCTShift
	v |= uint16(c.Mode)
	return v, nil
}

// Channel enable bits are CH1EN=14, CH2EN=13, CH3EN=12.

func channelEnableBit(ch int) uint16 {
	return 1 << (cfgChannelShift + Channels - 1 - ch)
}

func decodeChannelBits(v uint16) (out [Channels]bool) {
	for ch := range out {
		out[ch] = v&channelEnableBit(ch) != 0
	}
	return out
}

func encodeChannelBits(on [Channels]bool) uint16 {
	var v uint16
	for ch, e := range on {
		if e {
			v |= channelEnableBit(ch)
		}
	}
	return v
}
