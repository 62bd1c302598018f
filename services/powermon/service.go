// Package powermon runs an INA3221 behind the message bus. One worker
// goroutine owns the driver: it samples on a timer, publishes retained
// info/value/status, emits alert events and applies control requests.
package powermon

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"tinygo.org/x/drivers"

	"ina3221-go/bus"
	"ina3221-go/drivers/ina3221"
	"ina3221-go/errcode"
	"ina3221-go/types"
)

// Flags that raise an alerts event. CVRF and TCF are bookkeeping only.
const alertMask = ina3221.FlagsStatus &^ (ina3221.FlagConversionReady | ina3221.FlagTimingControl)

type opCode uint8

const (
	opRead opCode = iota
	opSetMode
	opSetLimits
	opEnableChannels
	opSetLatch
	opReset
	opStop
)

var verbs = map[string]opCode{
	"read":            opRead,
	"set_mode":        opSetMode,
	"set_limits":      opSetLimits,
	"enable_channels": opEnableChannels,
	"set_latch":       opSetLatch,
	"reset":           opReset,
}

func (o opCode) String() string {
	for v, op := range verbs {
		if op == o {
			return v
		}
	}
	return "stop"
}

type request struct {
	op  opCode
	arg any
	msg *bus.Message // set for bus requests; replies go to msg.ReplyTo
}

// Service is a single-goroutine power monitor.
type Service struct {
	cfg  Config
	plan plan
	log  *slog.Logger
	i2c  drivers.I2C
	conn *bus.Connection
	base bus.Topic

	alive atomic.Bool
	reqCh chan request
	done  chan struct{}

	// Owned by the worker only:
	dev        *ina3221.Device
	configured bool
	status     types.CapabilityStatus
}

// New validates cfg and prepares a service; nothing touches the bus until Start.
func New(b *bus.Bus, i2c drivers.I2C, cfg Config) (*Service, error) {
	p, err := cfg.resolve()
	if err != nil {
		return nil, err
	}
	if cfg.QueueLen <= 0 {
		cfg.QueueLen = 8
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		cfg:  cfg,
		plan: p,
		log:  log.With("svc", "powermon", "name", cfg.Name),
		i2c:  i2c,
		conn: b.NewConnection("powermon/" + cfg.Name),
		base: Topic(cfg.Name),
	}, nil
}

// Topic returns the capability root for a monitor name.
func Topic(name string) bus.Topic {
	return bus.T("hal", "cap", "power", "ina3221", name)
}

// Start subscribes to control requests and launches the worker. The worker
// stops when ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) error {
	if s.alive.Load() {
		return errcode.Busy
	}
	s.reqCh = make(chan request, s.cfg.QueueLen)
	s.done = make(chan struct{})
	ctrl := s.conn.Subscribe(s.base.Append("control", bus.WildOne))

	s.alive.Store(true)
	go s.worker(ctx, ctrl)
	return nil
}

// Close stops the worker and waits a bounded time for it to exit.
func (s *Service) Close() error {
	if !s.alive.Load() {
		return nil
	}
	select {
	case s.reqCh <- request{op: opStop}:
	default:
	}
	t := time.NewTimer(300 * time.Millisecond)
	defer t.Stop()
	select {
	case <-s.done:
		return nil
	case <-t.C:
		return errcode.Timeout
	}
}

// Control enqueues a verb without blocking. The outcome shows up on the
// retained status and value topics.
func (s *Service) Control(verb string, payload any) error {
	req, code := parseRequest(verb, payload)
	if code != errcode.OK {
		return code
	}
	if !s.alive.Load() {
		return errcode.Unavailable
	}
	select {
	case s.reqCh <- req:
		return nil
	default:
		return errcode.Busy
	}
}

func parseRequest(verb string, payload any) (request, errcode.Code) {
	op, ok := verbs[verb]
	if !ok {
		return request{}, errcode.Unsupported
	}
	req := request{op: op}
	switch op {
	case opRead, opReset:
		return req, errcode.OK
	case opSetMode:
		req.arg, ok = decodePayload[types.SetPowerMonitorMode](payload)
	case opSetLimits:
		req.arg, ok = decodePayload[types.SetPowerLimits](payload)
	case opEnableChannels:
		req.arg, ok = decodePayload[types.EnablePowerChannels](payload)
	case opSetLatch:
		req.arg, ok = decodePayload[types.SetPowerAlertLatch](payload)
	}
	if !ok {
		return request{}, errcode.InvalidPayload
	}
	return req, errcode.OK
}

// decodePayload accepts T, *T or a JSON encoding of T.
func decodePayload[T any](payload any) (T, bool) {
	var v T
	switch x := payload.(type) {
	case T:
		return x, true
	case *T:
		if x == nil {
			return v, false
		}
		return *x, true
	case []byte:
		if err := json.Unmarshal(x, &v); err != nil {
			return v, false
		}
		return v, true
	default:
		return v, false
	}
}

// ---- Worker ----

func (s *Service) worker(ctx context.Context, ctrl *bus.Subscription) {
	defer close(s.done)
	defer s.alive.Store(false)
	defer s.conn.Disconnect()

	s.dev = ina3221.New(s.i2c, ina3221.Config{
		Address:        s.cfg.addr(),
		ShuntResistors: s.cfg.ShuntResistors,
	})
	s.configure()
	s.sample()

	tick := time.NewTimer(s.cfg.Period)
	defer tick.Stop()

	ctrlC := ctrl.Channel()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopped", "reason", ctx.Err())
			return

		case req := <-s.reqCh:
			if req.op == opStop {
				s.log.Info("stopped")
				return
			}
			s.handle(req)

		case m, ok := <-ctrlC:
			if !ok {
				ctrlC = nil
				break
			}
			verb, _ := m.Topic[len(m.Topic)-1].(string)
			req, code := parseRequest(verb, m.Payload)
			if code != errcode.OK {
				s.conn.Reply(m, types.ErrorReply{OK: false, Error: string(code)}, false)
				break
			}
			req.msg = m
			s.handle(req)

		case <-tick.C:
			if !s.configured {
				s.configure()
			}
			s.sample()
			resetTimer(tick, s.cfg.Period)
		}
	}
}

func (s *Service) handle(req request) {
	err := s.apply(req)
	if err != nil && codeOf(err) != errcode.Unavailable {
		s.log.Warn("control failed", "op", req.op, "err", err)
		s.setStatus(types.LinkDegraded, codeOf(err))
	}
	if req.msg != nil {
		if err != nil {
			s.conn.Reply(req.msg, types.ErrorReply{OK: false, Error: string(codeOf(err))}, false)
		} else {
			s.conn.Reply(req.msg, types.OKReply{OK: true}, false)
		}
	}
	// Controls change what the next sample shows; publish it now.
	if err == nil && req.op != opRead {
		s.sample()
	}
}

func (s *Service) apply(req request) error {
	switch req.op {
	case opRead:
		return s.sample()
	case opSetMode:
		v := req.arg.(types.SetPowerMonitorMode)
		m, err := ina3221.ParseOperatingMode(v.Mode)
		if err != nil {
			return errcode.InvalidParams
		}
		return s.dev.SetMode(m)
	case opSetLimits:
		return s.setLimits(req.arg.(types.SetPowerLimits))
	case opEnableChannels:
		return s.dev.SetChannelsEnabled(req.arg.(types.EnablePowerChannels).On)
	case opSetLatch:
		v := req.arg.(types.SetPowerAlertLatch)
		var err error
		if v.Critical != nil {
			err = multierr.Append(err, s.dev.SetCriticalAlertLatch(*v.Critical))
		}
		if v.Warning != nil {
			err = multierr.Append(err, s.dev.SetWarningAlertLatch(*v.Warning))
		}
		return err
	case opReset:
		if err := s.dev.Reset(); err != nil {
			return err
		}
		s.configured = false
		return s.configure()
	}
	return errcode.Unsupported
}

func (s *Service) setLimits(v types.SetPowerLimits) error {
	var err error
	if v.CriticalMV != nil {
		err = multierr.Append(err, s.dev.SetCriticalLimit(v.Channel, ina3221.FromMillivolts(*v.CriticalMV)))
	}
	if v.WarningMV != nil {
		err = multierr.Append(err, s.dev.SetWarningLimit(v.Channel, ina3221.FromMillivolts(*v.WarningMV)))
	}
	if v.PVUpperMV != nil || v.PVLowerMV != nil {
		up, lo, e := s.dev.PowerValidLimits()
		if e == nil {
			if v.PVUpperMV != nil {
				up = ina3221.FromMillivolts(*v.PVUpperMV)
			}
			if v.PVLowerMV != nil {
				lo = ina3221.FromMillivolts(*v.PVLowerMV)
			}
			e = s.dev.SetPowerValidLimits(up, lo)
		}
		err = multierr.Append(err, e)
	}
	if v.SumLimitMV != nil {
		err = multierr.Append(err, s.dev.SetShuntSumLimit(ina3221.FromMillivolts(*v.SumLimitMV)))
	}
	if v.SumChannels != nil {
		err = multierr.Append(err, s.dev.SetSummationChannels(v.SumChannels))
	}
	return err
}

// configure checks identity, applies the configured settings and publishes
// the retained info. Failures leave the service unconfigured; the next tick
// retries.
func (s *Service) configure() error {
	if err := s.dev.Connected(); err != nil {
		s.log.Warn("device not found", "addr", s.dev.Address(), "err", err)
		s.setStatus(types.LinkDown, codeOf(err))
		return err
	}

	p := s.plan
	err := s.dev.SetMode(p.mode)
	if p.avg != nil {
		err = multierr.Append(err, s.dev.SetAveraging(*p.avg))
	}
	if p.busCT != nil {
		err = multierr.Append(err, s.dev.SetBusConversionTime(*p.busCT))
	}
	if p.shuntCT != nil {
		err = multierr.Append(err, s.dev.SetShuntConversionTime(*p.shuntCT))
	}
	if p.channels != nil {
		err = multierr.Append(err, s.dev.SetChannelsEnabled(p.channels))
	}
	for _, l := range p.limits {
		if l.critical != nil {
			err = multierr.Append(err, s.dev.SetCriticalLimit(l.ch, *l.critical))
		}
		if l.warning != nil {
			err = multierr.Append(err, s.dev.SetWarningLimit(l.ch, *l.warning))
		}
	}
	if p.hasWindow {
		err = multierr.Append(err, s.dev.SetPowerValidLimits(p.pvUpper, p.pvLower))
	}
	err = multierr.Append(err, s.dev.SetCriticalAlertLatch(s.cfg.CriticalLatch))
	err = multierr.Append(err, s.dev.SetWarningAlertLatch(s.cfg.WarningLatch))
	if err != nil {
		s.log.Warn("configure failed", "err", err)
		s.setStatus(types.LinkDegraded, codeOf(err))
		return err
	}

	s.configured = true
	s.conn.Publish(s.conn.NewMessage(s.base.Append("info"), types.Info{
		SchemaVersion: 1,
		Driver:        "ina3221",
		Detail: types.PowerMonitorInfo{
			Bus:            s.cfg.Bus,
			Addr:           s.dev.Address(),
			ManufacturerID: ina3221.ManufacturerIDTI,
			DieID:          ina3221.DieIDINA3221,
			ShuntsUOhm:     s.cfg.ShuntResistors,
		},
	}, true))
	s.log.Info("configured", "addr", s.dev.Address(), "mode", p.mode)
	return nil
}

// sample publishes the retained value and, when alert flags are raised,
// consumes them and emits an alerts event.
func (s *Service) sample() error {
	if !s.configured {
		return errcode.Unavailable
	}
	snap, err := s.dev.Snapshot()
	if err != nil {
		s.setStatus(types.LinkDegraded, codeOf(err))
		return err
	}
	ts := time.Now().UnixMilli()

	v := types.PowerMonitorValue{SumUV: snap.Sum.Microvolts(), Flags: uint16(snap.Flags), TS: ts}
	for ch := range snap.Channels {
		r := snap.Channels[ch]
		v.Channels[ch] = types.ChannelValue{
			Enabled:    snap.Enabled[ch],
			BusUV:      r.Bus.Microvolts(),
			ShuntUV:    r.Shunt.Microvolts(),
			LoadUV:     r.Load().Microvolts(),
			CurrentUA:  r.Current_uA,
			HasCurrent: r.HasCurrent,
		}
	}
	s.conn.Publish(s.conn.NewMessage(s.base.Append("value"), v, true))

	flags := snap.Flags
	if flags&alertMask != 0 {
		// Consume so the next raise is a new event.
		f, err := s.dev.AlertFlags(false)
		if err != nil {
			s.setStatus(types.LinkDegraded, codeOf(err))
			return err
		}
		flags |= f
		s.publishAlerts(flags, ts)
	}
	s.setStatus(types.LinkUp, errcode.OK)
	return nil
}

func (s *Service) publishAlerts(f ina3221.MaskEnableFlags, ts int64) {
	a := types.PowerMonitorAlerts{
		PowerValid:  f.Has(ina3221.FlagPowerValid),
		Summation:   f.Has(ina3221.FlagSummation),
		TimingAlert: f.Has(ina3221.FlagTimingControl),
		Raw:         uint16(f),
		TS:          ts,
	}
	for ch := 0; ch < ina3221.Channels; ch++ {
		a.Critical[ch] = f.Critical(ch)
		a.Warning[ch] = f.Warning(ch)
	}
	s.log.Warn("alert", "flags", f)
	s.conn.Publish(s.conn.NewMessage(s.base.Append("alerts"), a, false))
}

// setStatus publishes the retained status when link or error changes.
func (s *Service) setStatus(link types.Link, code errcode.Code) {
	st := types.CapabilityStatus{Link: link}
	if code != errcode.OK {
		st.Error = string(code)
	}
	if st.Link == s.status.Link && st.Error == s.status.Error {
		return
	}
	st.TS = time.Now().UnixMilli()
	s.status = st
	s.conn.Publish(s.conn.NewMessage(s.base.Append("status"), st, true))
}

func codeOf(err error) errcode.Code {
	if errs := multierr.Errors(err); len(errs) > 0 {
		err = errs[0]
	}
	return errcode.MapDriverErr(err)
}
