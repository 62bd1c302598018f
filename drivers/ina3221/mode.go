package ina3221

// OperatingMode selects which voltages are converted and whether conversion
// is single-shot (triggered by writing the mode) or continuous.
type OperatingMode uint8

// Constants representing each defined MODE3..MODE1 pattern.
const (
	ModePowerDown          OperatingMode = 0 // (000b)
	ModeShuntTriggered     OperatingMode = 1 // (001b)
	ModeBusTriggered       OperatingMode = 2 // (010b)
	ModeShuntBusTriggered  OperatingMode = 3 // (011b)
	ModeShuntContinuous    OperatingMode = 5 // (101b)
	ModeBusContinuous      OperatingMode = 6 // (110b)
	ModeShuntBusContinuous OperatingMode = 7 // (111b) -- default
	ModeDefault            OperatingMode = ModeShuntBusContinuous
)

// Valid reports whether m is one of the defined modes. Pattern 100b, the
// datasheet's alternate power-down code, is not.
func (m OperatingMode) Valid() bool {
	switch m {
	case ModePowerDown, ModeShuntTriggered, ModeBusTriggered, ModeShuntBusTriggered,
		ModeShuntContinuous, ModeBusContinuous, ModeShuntBusContinuous:
		return true
	default:
		return false
	}
}

func (m OperatingMode) Continuous() bool { return m.Valid() && m&0x4 != 0 }
func (m OperatingMode) Shunt() bool      { return m.Valid() && m&0x1 != 0 }
func (m OperatingMode) Bus() bool        { return m.Valid() && m&0x2 != 0 }

func (m OperatingMode) String() string {
	switch m {
	case ModePowerDown:
		return "power-down"
	case ModeShuntTriggered:
		return "shunt-triggered"
	case ModeBusTriggered:
		return "bus-triggered"
	case ModeShuntBusTriggered:
		return "shunt-bus-triggered"
	case ModeShuntContinuous:
		return "shunt-continuous"
	case ModeBusContinuous:
		return "bus-continuous"
	case ModeShuntBusContinuous:
		return "shunt-bus-continuous"
	default:
		return "invalid"
	}
}

// ParseOperatingMode maps the names returned by String back to modes.
func ParseOperatingMode(s string) (OperatingMode, error) {
	for m := ModePowerDown; m <= ModeShuntBusContinuous; m++ {
		if m.Valid() && m.String() == s {
			return m, nil
		}
	}
	return 0, ErrInvalidMode
}

// decodeMode extracts MODE3..MODE1 from a configuration word.
func decodeMode(cfg uint16) (OperatingMode, error) {
	m := OperatingMode(cfg & cfgModeMask)
	if !m.Valid() {
		return 0, ErrInvalidMode
	}
	return m, nil
}
