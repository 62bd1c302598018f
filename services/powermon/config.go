package powermon

import (
	"errors"
	"log/slog"
	"time"

	"go.uber.org/multierr"

	"ina3221-go/drivers/ina3221"
)

var (
	ErrNoName       = errors.New("powermon: name is required")
	ErrPeriod       = errors.New("powermon: period must be positive")
	ErrAveraging    = errors.New("powermon: averaging must be one of 1,4,16,64,128,256,512,1024")
	ErrConvTime     = errors.New("powermon: conversion time must be one of 140,204,332,588,1100,2116,4156,8244 us")
	ErrWindowOrder  = errors.New("powermon: power-valid lower limit above upper limit")
	ErrChannelsSize = errors.New("powermon: channels needs exactly 3 entries")
)

// ChannelLimits sets the alert thresholds of one channel, in mV of shunt
// voltage. Nil leaves the register as it is.
type ChannelLimits struct {
	Channel    int      `yaml:"channel"`
	CriticalMV *float64 `yaml:"critical_mV"`
	WarningMV  *float64 `yaml:"warning_mV"`
}

// Window is the power-valid bus voltage window, in mV.
type Window struct {
	UpperMV float64 `yaml:"upper_mV"`
	LowerMV float64 `yaml:"lower_mV"`
}

// Config describes one monitored INA3221. Zero values for the optional
// conversion settings leave the device defaults in place.
type Config struct {
	Name           string                   `yaml:"name"`
	Address        uint16                   `yaml:"address"`
	ShuntResistors [ina3221.Channels]uint32 `yaml:"shunt_uohm"`
	Period         time.Duration            `yaml:"period"`
	Mode           string                   `yaml:"mode"`
	Averaging      uint16                   `yaml:"averaging"`
	BusTimeUS      uint32                   `yaml:"bus_time_us"`
	ShuntTimeUS    uint32                   `yaml:"shunt_time_us"`
	Channels       []bool                   `yaml:"channels"`
	Limits         []ChannelLimits          `yaml:"limits"`
	PowerValid     *Window                  `yaml:"power_valid"`
	CriticalLatch  bool                     `yaml:"critical_latch"`
	WarningLatch   bool                     `yaml:"warning_latch"`
	QueueLen       int                      `yaml:"queue_len"`
	Bus            string                   `yaml:"-"`
	Logger         *slog.Logger             `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		Name:     "ina3221",
		Address:  ina3221.AddressDefault,
		Period:   time.Second,
		Mode:     ina3221.ModeDefault.String(),
		QueueLen: 8,
	}
}

// Validate reports every problem found, combined.
func (c Config) Validate() error {
	_, err := c.resolve()
	return err
}

// limit is a ChannelLimits entry converted to register values.
type limit struct {
	ch                int
	critical, warning *ina3221.Voltage
}

// plan is a validated Config in driver terms.
type plan struct {
	mode      ina3221.OperatingMode
	avg       *ina3221.Averaging
	busCT     *ina3221.ConversionTime
	shuntCT   *ina3221.ConversionTime
	channels  []bool
	limits    []limit
	pvUpper   ina3221.Voltage
	pvLower   ina3221.Voltage
	hasWindow bool
}

func (c Config) resolve() (plan, error) {
	var p plan
	var err error

	if c.Name == "" {
		err = multierr.Append(err, ErrNoName)
	}
	if e := (ina3221.Config{Address: c.addr()}).Validate(); e != nil {
		err = multierr.Append(err, e)
	}
	if c.Period <= 0 {
		err = multierr.Append(err, ErrPeriod)
	}

	p.mode = ina3221.ModeDefault
	if c.Mode != "" {
		m, e := ina3221.ParseOperatingMode(c.Mode)
		err = multierr.Append(err, e)
		p.mode = m
	}
	if c.Averaging != 0 {
		if a, ok := ina3221.AveragingForSamples(c.Averaging); ok {
			p.avg = &a
		} else {
			err = multierr.Append(err, ErrAveraging)
		}
	}
	if c.BusTimeUS != 0 {
		if t, ok := ina3221.ConversionTimeForMicros(c.BusTimeUS); ok {
			p.busCT = &t
		} else {
			err = multierr.Append(err, ErrConvTime)
		}
	}
	if c.ShuntTimeUS != 0 {
		if t, ok := ina3221.ConversionTimeForMicros(c.ShuntTimeUS); ok {
			p.shuntCT = &t
		} else {
			err = multierr.Append(err, ErrConvTime)
		}
	}
	if c.Channels != nil {
		if len(c.Channels) != ina3221.Channels {
			err = multierr.Append(err, ErrChannelsSize)
		}
		p.channels = c.Channels
	}

	for _, l := range c.Limits {
		if l.Channel < 0 || l.Channel >= ina3221.Channels {
			err = multierr.Append(err, ina3221.ErrInvalidChannel)
			continue
		}
		r := limit{ch: l.Channel}
		if l.CriticalMV != nil {
			v, e := shuntMV(*l.CriticalMV)
			err = multierr.Append(err, e)
			r.critical = &v
		}
		if l.WarningMV != nil {
			v, e := shuntMV(*l.WarningMV)
			err = multierr.Append(err, e)
			r.warning = &v
		}
		p.limits = append(p.limits, r)
	}

	if w := c.PowerValid; w != nil {
		up, e1 := busMV(w.UpperMV)
		lo, e2 := busMV(w.LowerMV)
		err = multierr.Combine(err, e1, e2)
		if w.LowerMV > w.UpperMV {
			err = multierr.Append(err, ErrWindowOrder)
		}
		p.pvUpper, p.pvLower, p.hasWindow = up, lo, true
	}
	return p, err
}

func (c Config) addr() uint16 {
	if c.Address == 0 {
		return ina3221.AddressDefault
	}
	return c.Address
}

func shuntMV(mV float64) (ina3221.Voltage, error) {
	v := ina3221.FromMillivolts(mV)
	_, err := v.ShuntRaw()
	return v, err
}

func busMV(mV float64) (ina3221.Voltage, error) {
	v := ina3221.FromMillivolts(mV)
	_, err := v.BusRaw()
	return v, err
}
