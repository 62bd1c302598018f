package types

// ------------------------
// Power monitor (ina3221)
// ------------------------

// Retained info: hal/cap/power/ina3221/<name>/info
type PowerMonitorInfo struct {
	Bus            string    `json:"bus"`
	Addr           uint16    `json:"addr"`
	ManufacturerID uint16    `json:"manufacturer_id"`
	DieID          uint16    `json:"die_id"`
	ShuntsUOhm     [3]uint32 `json:"shunts_uohm"`
}

// ChannelValue is one channel's reading. Voltages are in µV.
type ChannelValue struct {
	Enabled    bool  `json:"enabled"`
	BusUV      int32 `json:"bus_uV"`
	ShuntUV    int32 `json:"shunt_uV"`
	LoadUV     int32 `json:"load_uV"`
	CurrentUA  int32 `json:"current_uA,omitempty"`
	HasCurrent bool  `json:"has_current,omitempty"`
}

// Retained value: hal/cap/power/ina3221/<name>/value
type PowerMonitorValue struct {
	Channels [3]ChannelValue `json:"channels"`
	SumUV    int32           `json:"sum_uV"`
	Flags    uint16          `json:"flags"` // raw MASK/ENABLE image
	TS       int64           `json:"ts_ms"`
}

// Event: hal/cap/power/ina3221/<name>/alerts (not retained).
// Published when a consuming read of MASK/ENABLE returns status bits.
type PowerMonitorAlerts struct {
	Critical    [3]bool `json:"critical"`
	Warning     [3]bool `json:"warning"`
	PowerValid  bool    `json:"power_valid"`
	Summation   bool    `json:"summation"`
	TimingAlert bool    `json:"timing_control"`
	Raw         uint16  `json:"raw"`
	TS          int64   `json:"ts_ms"`
}

// ---- Controls (verb on .../control/<verb>) ----

type PowerMonitorRead struct{} // verb: "read"

type SetPowerMonitorMode struct { // verb: "set_mode"
	Mode string `json:"mode"` // e.g. "shunt-bus-continuous"
}

type EnablePowerChannels struct { // verb: "enable_channels"
	On []bool `json:"on"`
}

type SetPowerAlertLatch struct { // verb: "set_latch"
	Critical *bool `json:"critical,omitempty"`
	Warning  *bool `json:"warning,omitempty"`
}

type ResetPowerMonitor struct{} // verb: "reset"

// SetPowerLimits is a partial update. Nil means "leave as-is". Values in mV.
type SetPowerLimits struct { // verb: "set_limits"
	Channel     int      `json:"channel"`
	CriticalMV  *float64 `json:"critical_mV,omitempty"`
	WarningMV   *float64 `json:"warning_mV,omitempty"`
	PVUpperMV   *float64 `json:"pv_upper_mV,omitempty"`
	PVLowerMV   *float64 `json:"pv_lower_mV,omitempty"`
	SumLimitMV  *float64 `json:"sum_limit_mV,omitempty"`
	SumChannels []bool   `json:"sum_channels,omitempty"`
}
