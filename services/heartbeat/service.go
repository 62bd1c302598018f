// Package heartbeat publishes a retained liveness beat on the bus.
package heartbeat

import (
	"context"
	"log/slog"
	"time"

	"ina3221-go/bus"
)

var (
	TopicBeat   = bus.T("svc", "heartbeat")
	TopicConfig = bus.T("config", "heartbeat")
)

// Beat is the retained payload on TopicBeat.
type Beat struct {
	Seq      uint64 `json:"seq"`
	UptimeMS int64  `json:"uptime_ms"`
	TS       int64  `json:"ts_ms"`
}

// Interval is accepted on TopicConfig to change the beat period.
type Interval struct {
	Every time.Duration `json:"every"`
}

type Service struct {
	every time.Duration
	log   *slog.Logger
	start time.Time
	seq   uint64
}

// New returns a heartbeat with period every (1s when not positive).
func New(every time.Duration, log *slog.Logger) *Service {
	if every <= 0 {
		every = time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{every: every, log: log.With("svc", "heartbeat")}
}

func (s *Service) serviceLoop(ctx context.Context, conn *bus.Connection, cfgSub *bus.Subscription) {
	defer conn.Unsubscribe(cfgSub)

	tick := time.NewTicker(s.every)
	defer tick.Stop()

	s.beat(conn)
	for {
		select {
		case <-ctx.Done():
			s.log.Info("stopping")
			return
		case <-tick.C:
			s.beat(conn)
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				return
			}
			switch v := msg.Payload.(type) {
			case Interval:
				if v.Every > 0 {
					s.every = v.Every
					tick.Reset(s.every)
					s.log.Info("interval changed", "every", s.every)
				}
			case map[string]any:
				// JSON-decoded config carries seconds.
				if iv, ok := v["interval"].(float64); ok && iv > 0 {
					s.every = time.Duration(iv * float64(time.Second))
					tick.Reset(s.every)
					s.log.Info("interval changed", "every", s.every)
				}
			}
		}
	}
}

func (s *Service) beat(conn *bus.Connection) {
	s.seq++
	now := time.Now()
	conn.Publish(conn.NewMessage(TopicBeat, Beat{
		Seq:      s.seq,
		UptimeMS: now.Sub(s.start).Milliseconds(),
		TS:       now.UnixMilli(),
	}, true))
	s.log.Debug("beat", "seq", s.seq)
}

// Start subscribes to interval changes and runs until ctx is cancelled.
func (s *Service) Start(ctx context.Context, conn *bus.Connection) error {
	s.start = time.Now()
	cfgSub := conn.Subscribe(TopicConfig)
	go s.serviceLoop(ctx, conn, cfgSub)
	return nil
}
