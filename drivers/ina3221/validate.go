package ina3221

import "errors"

var (
	// Preconditions (no bus traffic is issued when these are returned).
	ErrInvalidChannel = errors.New("ina3221: channel must be 0, 1 or 2")
	ErrChannelCount   = errors.New("ina3221: expected one value per channel")
	ErrOutOfRange     = errors.New("ina3221: value outside register range")
	ErrInvalidAddress = errors.New("ina3221: address must be 0x40..0x43")

	// Decode: the device returned a pattern with no defined meaning.
	ErrInvalidMode = errors.New("ina3221: undefined operating mode")

	// Sense resistor unset.
	ErrShuntUnset = errors.New("ina3221: shunt resistor not set for channel")

	// Identification registers did not match an INA3221.
	ErrNotConnected = errors.New("ina3221: device did not identify as INA3221")
)

func validChannel(ch int) bool { return ch >= 0 && ch < Channels }

func checkChannel(ch int) error {
	if !validChannel(ch) {
		return ErrInvalidChannel
	}
	return nil
}

// perChannel converts a caller slice into a fixed array, rejecting any
// length other than Channels.
func perChannel(on []bool) ([Channels]bool, error) {
	var out [Channels]bool
	if len(on) != Channels {
		return out, ErrChannelCount
	}
	copy(out[:], on)
	return out, nil
}
