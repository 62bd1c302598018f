package ina3221

// MaskEnableFlags is the content of the MASK/ENABLE register (0Fh): alert
// status flags (bits 9..0, cleared when the register is read) plus the latch
// and summation control bits.
type MaskEnableFlags uint16

const (
	FlagConversionReady   MaskEnableFlags = 1 << 0  // CVRF
	FlagTimingControl     MaskEnableFlags = 1 << 1  // TCF
	FlagPowerValid        MaskEnableFlags = 1 << 2  // PVF
	FlagWarning3          MaskEnableFlags = 1 << 3  // WF3
	FlagWarning2          MaskEnableFlags = 1 << 4  // WF2
	FlagWarning1          MaskEnableFlags = 1 << 5  // WF1
	FlagSummation         MaskEnableFlags = 1 << 6  // SF
	FlagCritical3         MaskEnableFlags = 1 << 7  // CF3
	FlagCritical2         MaskEnableFlags = 1 << 8  // CF2
	FlagCritical1         MaskEnableFlags = 1 << 9  // CF1
	FlagCriticalLatch     MaskEnableFlags = 1 << 10 // CEN
	FlagWarningLatch      MaskEnableFlags = 1 << 11 // WEN
	FlagSummationControl3 MaskEnableFlags = 1 << 12 // SCC3
	FlagSummationControl2 MaskEnableFlags = 1 << 13 // SCC2
	FlagSummationControl1 MaskEnableFlags = 1 << 14 // SCC1

	// Status bits latched by the device; clear-on-read.
	FlagsStatus MaskEnableFlags = 0x03FF
	// Writable control bits.
	FlagsControl MaskEnableFlags = FlagCriticalLatch | FlagWarningLatch |
		FlagSummationControl1 | FlagSummationControl2 | FlagSummationControl3
)

var (
	criticalFlags  = [Channels]MaskEnableFlags{FlagCritical1, FlagCritical2, FlagCritical3}
	warningFlags   = [Channels]MaskEnableFlags{FlagWarning1, FlagWarning2, FlagWarning3}
	summationFlags = [Channels]MaskEnableFlags{FlagSummationControl1, FlagSummationControl2, FlagSummationControl3}
)

func (f MaskEnableFlags) Has(flag MaskEnableFlags) bool { return f&flag != 0 }

func (f MaskEnableFlags) With(flag MaskEnableFlags) MaskEnableFlags    { return f | flag }
func (f MaskEnableFlags) Without(flag MaskEnableFlags) MaskEnableFlags { return f &^ flag }

// Status returns only the latched status bits.
func (f MaskEnableFlags) Status() MaskEnableFlags { return f & FlagsStatus }

// Control returns only the latch and summation control bits.
func (f MaskEnableFlags) Control() MaskEnableFlags { return f & FlagsControl }

// Critical reports the critical-alert flag of channel ch (0..2).
func (f MaskEnableFlags) Critical(ch int) bool {
	return validChannel(ch) && f.Has(criticalFlags[ch])
}

// Warning reports the warning-alert flag of channel ch (0..2).
func (f MaskEnableFlags) Warning(ch int) bool {
	return validChannel(ch) && f.Has(warningFlags[ch])
}

// Summation reports whether channel ch contributes to the shunt sum.
func (f MaskEnableFlags) Summation(ch int) bool {
	return validChannel(ch) && f.Has(summationFlags[ch])
}

var flagNames = [...]string{
	"CVRF", "TCF", "PVF", "WF3", "WF2", "WF1", "SF", "CF3", "CF2", "CF1",
	"CEN", "WEN", "SCC3", "SCC2", "SCC1",
}

// String lists set flags by datasheet name, e.g. "CF1|WEN".
func (f MaskEnableFlags) String() string {
	if f == 0 {
		return "0"
	}
	s := ""
	for i, name := range flagNames {
		if f&(1<<i) == 0 {
			continue
		}
		if s != "" {
			s += "|"
		}
		s += name
	}
	if f&0x8000 != 0 {
		if s != "" {
			s += "|"
		}
		s += "0x8000"
	}
	return s
}
