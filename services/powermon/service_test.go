package powermon

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"ina3221-go/bus"
	"ina3221-go/drivers/ina3221"
	"ina3221-go/errcode"
	"ina3221-go/types"
)

var errNack = errors.New("fake: nack")

// fakeINA is a register file answering like an INA3221 at 0x40. Reading
// MASK/ENABLE clears its status bits; RST restores power-on values.
type fakeINA struct {
	mu   sync.Mutex
	regs map[uint8]uint16
}

func powerOn() map[uint8]uint16 {
	return map[uint8]uint16{
		0x00: 0x7127,
		0x07: 0x7FF8, 0x08: 0x7FF8, 0x09: 0x7FF8,
		0x0A: 0x7FF8, 0x0B: 0x7FF8, 0x0C: 0x7FF8,
		0x0E: 0x7FFE,
		0x0F: 0x0002,
		0x10: 0x2710,
		0x11: 0x2328,
		0xFE: 0x5449,
		0xFF: 0x3220,
	}
}

func newFake() *fakeINA { return &fakeINA{regs: powerOn()} }

func (f *fakeINA) Tx(addr uint16, w, r []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if addr != 0x40 {
		return errNack
	}
	switch {
	case len(w) == 3 && len(r) == 0:
		v := uint16(w[1])<<8 | uint16(w[2])
		if w[0] == 0x00 && v&0x8000 != 0 {
			f.regs = powerOn()
			return nil
		}
		f.regs[w[0]] = v
	case len(w) == 1 && len(r) == 2:
		v := f.regs[w[0]]
		r[0], r[1] = byte(v>>8), byte(v)
		if w[0] == 0x0F {
			f.regs[0x0F] = v &^ 0x03FF
		}
	default:
		return errNack
	}
	return nil
}

func (f *fakeINA) set(reg uint8, v uint16) {
	f.mu.Lock()
	f.regs[reg] = v
	f.mu.Unlock()
}

func (f *fakeINA) get(reg uint8) uint16 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.regs[reg]
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Name = "rail"
	cfg.Period = time.Hour
	cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	return cfg
}

func start(t *testing.T, b *bus.Bus, f *fakeINA, cfg Config) *Service {
	t.Helper()
	svc, err := New(b, f, cfg)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() {
		_ = svc.Close()
		cancel()
	})
	return svc
}

func next(t *testing.T, sub *bus.Subscription) *bus.Message {
	t.Helper()
	select {
	case m := <-sub.Channel():
		return m
	case <-time.After(time.Second):
		t.Fatalf("timeout waiting on %s", sub.Topic())
		return nil
	}
}

func call(t *testing.T, conn *bus.Connection, verb string, payload any) any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m, err := conn.RequestWait(ctx, conn.NewMessage(Topic("rail").Append("control", verb), payload, false))
	require.NoError(t, err)
	return m.Payload
}

func ptr[T any](v T) *T { return &v }

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.Name = ""
	cfg.Period = 0
	cfg.Mode = "bogus"
	cfg.Averaging = 3
	cfg.Channels = []bool{true}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 5)
	assert.ErrorIs(t, err, ErrNoName)
	assert.ErrorIs(t, err, ina3221.ErrInvalidMode)

	cfg = DefaultConfig()
	cfg.Address = 0x50
	assert.ErrorIs(t, cfg.Validate(), ina3221.ErrInvalidAddress)

	cfg = DefaultConfig()
	cfg.Limits = []ChannelLimits{{Channel: 3, CriticalMV: ptr(10.0)}}
	assert.ErrorIs(t, cfg.Validate(), ina3221.ErrInvalidChannel)

	cfg = DefaultConfig()
	cfg.Limits = []ChannelLimits{{Channel: 0, CriticalMV: ptr(200.0)}}
	assert.ErrorIs(t, cfg.Validate(), ina3221.ErrOutOfRange)

	cfg = DefaultConfig()
	cfg.PowerValid = &Window{UpperMV: 4800, LowerMV: 5600}
	assert.ErrorIs(t, cfg.Validate(), ErrWindowOrder)

	_, err = New(bus.NewBus(4), newFake(), Config{})
	assert.Error(t, err)
}

func TestPublishesInfoAndValue(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	f.set(0x02, 0x2EE0) // 12 V
	f.set(0x01, 0x0028) // +200 µV
	f.set(0x03, 0xFFD8) // -200 µV

	cfg := testConfig()
	cfg.Bus = "/dev/i2c-1"
	cfg.ShuntResistors = [3]uint32{100_000, 0, 0}
	start(t, b, f, cfg)

	conn := b.NewConnection("test")
	info := next(t, conn.Subscribe(Topic("rail").Append("info")))
	require.IsType(t, types.Info{}, info.Payload)
	assert.True(t, info.Retained)
	detail := info.Payload.(types.Info).Detail.(types.PowerMonitorInfo)
	assert.Equal(t, "/dev/i2c-1", detail.Bus)
	assert.Equal(t, uint16(0x40), detail.Addr)
	assert.Equal(t, uint16(0x3220), detail.DieID)

	m := next(t, conn.Subscribe(Topic("rail").Append("value")))
	v, ok := m.Payload.(types.PowerMonitorValue)
	require.True(t, ok)
	assert.Equal(t, int32(12_000_000), v.Channels[0].BusUV)
	assert.Equal(t, int32(200), v.Channels[0].ShuntUV)
	assert.Equal(t, int32(12_000_200), v.Channels[0].LoadUV)
	assert.True(t, v.Channels[0].HasCurrent)
	assert.Equal(t, int32(2000), v.Channels[0].CurrentUA)
	assert.Equal(t, int32(-200), v.Channels[1].ShuntUV)
	assert.False(t, v.Channels[1].HasCurrent)
	for ch := range v.Channels {
		assert.True(t, v.Channels[ch].Enabled)
	}

	st := next(t, conn.Subscribe(Topic("rail").Append("status")))
	assert.Equal(t, types.LinkUp, st.Payload.(types.CapabilityStatus).Link)
}

func TestAppliesConfiguration(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()

	cfg := testConfig()
	cfg.Mode = "shunt-continuous"
	cfg.Averaging = 64
	cfg.Channels = []bool{true, false, true}
	cfg.Limits = []ChannelLimits{{Channel: 0, WarningMV: ptr(20.0)}, {Channel: 2, CriticalMV: ptr(-10.0)}}
	cfg.PowerValid = &Window{UpperMV: 5600, LowerMV: 4800}
	cfg.CriticalLatch = true
	start(t, b, f, cfg)

	conn := b.NewConnection("test")
	next(t, conn.Subscribe(Topic("rail").Append("info")))

	assert.Equal(t, uint16(0x5725), f.get(0x00))
	assert.Equal(t, uint16(0x0FA0), f.get(0x08))
	assert.Equal(t, uint16(0xF830), f.get(0x0B))
	assert.Equal(t, uint16(0x7FF8), f.get(0x07))
	assert.Equal(t, uint16(0x15E0), f.get(0x10))
	assert.Equal(t, uint16(0x12C0), f.get(0x11))
	assert.NotZero(t, f.get(0x0F)&uint16(ina3221.FlagCriticalLatch))
	assert.Zero(t, f.get(0x0F)&uint16(ina3221.FlagWarningLatch))
}

func TestMissingDeviceReportsLinkDown(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	f.set(0xFF, 0x0000)

	start(t, b, f, testConfig())

	conn := b.NewConnection("test")
	m := next(t, conn.Subscribe(Topic("rail").Append("status")))
	st := m.Payload.(types.CapabilityStatus)
	assert.Equal(t, types.LinkDown, st.Link)
	assert.Equal(t, string(errcode.NotConnected), st.Error)

	// Unconfigured services answer reads with unavailable.
	reply := call(t, conn, "read", nil)
	assert.Equal(t, types.ErrorReply{OK: false, Error: string(errcode.Unavailable)}, reply)
}

func TestRetriesConfigureOnTick(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	f.set(0xFF, 0x0000)

	cfg := testConfig()
	cfg.Period = 10 * time.Millisecond
	start(t, b, f, cfg)

	conn := b.NewConnection("test")
	info := conn.Subscribe(Topic("rail").Append("info"))
	f.set(0xFF, 0x3220)
	next(t, info)
}

func TestAlertsAreConsumedAndPublished(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	f.set(0x0F, uint16(ina3221.FlagCritical1|ina3221.FlagPowerValid))

	conn := b.NewConnection("test")
	alerts := conn.Subscribe(Topic("rail").Append("alerts"))
	start(t, b, f, testConfig())

	m := next(t, alerts)
	assert.False(t, m.Retained)
	a := m.Payload.(types.PowerMonitorAlerts)
	assert.Equal(t, [3]bool{true, false, false}, a.Critical)
	assert.Equal(t, [3]bool{}, a.Warning)
	assert.True(t, a.PowerValid)
	assert.False(t, a.Summation)

	// The read that raised the event cleared the status bits.
	assert.Zero(t, f.get(0x0F)&uint16(ina3221.FlagsStatus))
}

func TestControlsOverBus(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	start(t, b, f, testConfig())
	conn := b.NewConnection("test")

	ok := types.OKReply{OK: true}

	assert.Equal(t, ok, call(t, conn, "set_mode", types.SetPowerMonitorMode{Mode: "power-down"}))
	assert.Equal(t, uint16(0), f.get(0x00)&0x7)

	assert.Equal(t, ok, call(t, conn, "enable_channels", &types.EnablePowerChannels{On: []bool{false, true, false}}))
	assert.Equal(t, uint16(0x2000), f.get(0x00)&0x7000)

	assert.Equal(t, ok, call(t, conn, "set_limits", []byte(`{"channel":1,"critical_mV":10}`)))
	assert.Equal(t, uint16(0x07D0), f.get(0x09))

	assert.Equal(t, ok, call(t, conn, "set_limits", types.SetPowerLimits{
		PVUpperMV:   ptr(5600.0),
		SumLimitMV:  ptr(1.0),
		SumChannels: []bool{true, true, false},
	}))
	assert.Equal(t, uint16(0x15E0), f.get(0x10))
	assert.Equal(t, uint16(0x2328), f.get(0x11))
	assert.Equal(t, uint16(0x0032), f.get(0x0E))
	assert.Equal(t, uint16(0x6000), f.get(0x0F)&0x7000)

	assert.Equal(t, ok, call(t, conn, "set_latch", types.SetPowerAlertLatch{Warning: ptr(true)}))
	assert.NotZero(t, f.get(0x0F)&uint16(ina3221.FlagWarningLatch))

	assert.Equal(t, ok, call(t, conn, "read", nil))
}

func TestControlErrors(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	start(t, b, f, testConfig())
	conn := b.NewConnection("test")

	fail := func(c errcode.Code) types.ErrorReply { return types.ErrorReply{OK: false, Error: string(c)} }

	assert.Equal(t, fail(errcode.Unsupported), call(t, conn, "explode", nil))
	assert.Equal(t, fail(errcode.InvalidPayload), call(t, conn, "set_mode", "power-down"))
	assert.Equal(t, fail(errcode.InvalidParams), call(t, conn, "set_mode", types.SetPowerMonitorMode{Mode: "turbo"}))
	assert.Equal(t, fail(errcode.InvalidChannel), call(t, conn, "set_limits", types.SetPowerLimits{Channel: 3, WarningMV: ptr(1.0)}))
	assert.Equal(t, fail(errcode.OutOfRange), call(t, conn, "set_limits", types.SetPowerLimits{CriticalMV: ptr(500.0)}))
	assert.Equal(t, fail(errcode.InvalidParams), call(t, conn, "enable_channels", types.EnablePowerChannels{On: []bool{true}}))

	// Nothing was written by the rejected limit.
	assert.Equal(t, uint16(0x7FF8), f.get(0x07))
}

func TestResetReappliesConfiguration(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	cfg := testConfig()
	cfg.Mode = "bus-continuous"
	start(t, b, f, cfg)
	conn := b.NewConnection("test")

	ok := types.OKReply{OK: true}
	assert.Equal(t, ok, call(t, conn, "set_mode", types.SetPowerMonitorMode{Mode: "power-down"}))
	assert.Equal(t, uint16(0), f.get(0x00)&0x7)

	assert.Equal(t, ok, call(t, conn, "reset", nil))
	assert.Equal(t, uint16(6), f.get(0x00)&0x7)
}

func TestControlQueue(t *testing.T) {
	b := bus.NewBus(16)
	f := newFake()
	svc, err := New(b, f, testConfig())
	require.NoError(t, err)

	assert.Equal(t, errcode.Unavailable, svc.Control("read", nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, svc.Start(ctx))

	assert.Equal(t, errcode.Unsupported, svc.Control("explode", nil))
	assert.Equal(t, errcode.InvalidPayload, svc.Control("set_mode", 42))
	require.NoError(t, svc.Control("set_mode", types.SetPowerMonitorMode{Mode: "shunt-triggered"}))

	require.Eventually(t, func() bool { return f.get(0x00)&0x7 == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, svc.Close())
	assert.Equal(t, errcode.Unavailable, svc.Control("read", nil))
}
