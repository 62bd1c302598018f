// ina3221-mon polls an INA3221 on a Linux I²C bus and logs its readings.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"periph.io/x/conn/v3/physic"

	"ina3221-go/bus"
	"ina3221-go/services/heartbeat"
	"ina3221-go/services/powermon"
	"ina3221-go/types"
	"ina3221-go/x/periphi2c"
)

var errNoDevice = errors.New("ina3221-mon: device not reachable")

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	once := flag.Bool("once", false, "log one reading and exit")
	logLevel := flag.String("log-level", "", "Log level override: debug, info, warn, error")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *once, log); err != nil {
		log.Error("exit", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg fileConfig, once bool, log *slog.Logger) error {
	i2c, err := periphi2c.Open(cfg.Bus, physic.Frequency(cfg.SpeedKHz)*physic.KiloHertz)
	if err != nil {
		return err
	}
	defer i2c.Close()
	log.Info("bus open", "bus", i2c.String(), "speed_khz", cfg.SpeedKHz)

	b := bus.NewBus(16)
	conn := b.NewConnection("ina3221-mon")
	defer conn.Disconnect()

	if err := heartbeat.New(cfg.Heartbeat, log).Start(ctx, b.NewConnection("heartbeat")); err != nil {
		return err
	}

	root := powermon.Topic(cfg.Monitor.Name)
	values := conn.Subscribe(root.Append("value"))
	alerts := conn.Subscribe(root.Append("alerts"))
	status := conn.Subscribe(root.Append("status"))

	cfg.Monitor.Logger = log
	svc, err := powermon.New(b, i2c, cfg.Monitor)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Close()

	for {
		select {
		case <-ctx.Done():
			return nil

		case m := <-values.Channel():
			if v, ok := m.Payload.(types.PowerMonitorValue); ok {
				logValue(log, v)
				if once {
					return nil
				}
			}

		case m := <-alerts.Channel():
			if a, ok := m.Payload.(types.PowerMonitorAlerts); ok {
				log.Warn("alert", "critical", a.Critical, "warning", a.Warning,
					"power_valid", a.PowerValid, "summation", a.Summation, "raw", fmt.Sprintf("0x%04X", a.Raw))
			}

		case m := <-status.Channel():
			st, ok := m.Payload.(types.CapabilityStatus)
			if !ok {
				break
			}
			log.Info("status", "link", st.Link, "error", st.Error)
			if once && st.Link == types.LinkDown {
				return fmt.Errorf("%w: %s", errNoDevice, st.Error)
			}
		}
	}
}

func logValue(log *slog.Logger, v types.PowerMonitorValue) {
	for ch, c := range v.Channels {
		if !c.Enabled {
			continue
		}
		attrs := []any{
			"ch", ch + 1,
			"bus_mV", float64(c.BusUV) / 1e3,
			"shunt_mV", float64(c.ShuntUV) / 1e3,
			"load_mV", float64(c.LoadUV) / 1e3,
		}
		if c.HasCurrent {
			attrs = append(attrs, "current_mA", float64(c.CurrentUA)/1e3)
		}
		log.Info("reading", attrs...)
	}
	log.Debug("sum", "shunt_sum_mV", float64(v.SumUV)/1e3, "flags", fmt.Sprintf("0x%04X", v.Flags))
}
