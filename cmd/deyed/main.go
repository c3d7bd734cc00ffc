// cmd/deyed/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/tamzrod/deye-bridge/internal/config"
	"github.com/tamzrod/deye-bridge/internal/metrics"
	"github.com/tamzrod/deye-bridge/internal/poller"
	"github.com/tamzrod/deye-bridge/internal/publisher"
	"github.com/tamzrod/deye-bridge/internal/sensor"
	"github.com/tamzrod/deye-bridge/internal/watchdog"
)

const connectTimeout = 10 * time.Second

func main() {
	cfgPath := flag.String("config", "", "path to config.yaml (environment overrides apply)")
	flag.Parse()
	if *cfgPath == "" && flag.NArg() > 0 {
		*cfgPath = flag.Arg(0)
	}

	boot := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		boot.Fatal().Err(err).Msg("config load failed")
	}
	if err := config.Validate(cfg); err != nil {
		boot.Fatal().Err(err).Msg("config validation failed")
	}
	config.Normalize(cfg)

	log := cfg.Log.Logger(os.Stderr)

	if err := run(cfg, log); err != nil {
		log.Error().Err(err).Msg("deyed exiting")
		os.Exit(1)
	}
}

func run(cfg *config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("logger", cfg.Logger.Address()).
		Uint32("serial", cfg.Logger.SerialNumber).
		Strs("groups", cfg.Poll.MetricGroups).
		Str("publisher", cfg.Publisher.Kind).
		Msg("deyed starting")

	// ---- watchdog ----
	feeder := buildWatchdog(cfg.Watchdog, log)

	// ---- publisher ----
	pub, link, err := buildPublisher(cfg, sensor.Active(cfg.Poll.MetricGroups), log)
	if err != nil {
		return err
	}
	defer pub.Close()

	// ---- metrics ----
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	rec, err := metrics.New(reg)
	if err != nil {
		return err
	}

	// ---- poller ----
	opts := []poller.Option{poller.WithRecorder(rec)}
	if sw, ok := pub.(publisher.StatusWriter); ok {
		opts = append(opts, poller.WithStatusWriter(sw))
	}
	p, err := poller.Build(cfg, pub, feeder, log, opts...)
	if err != nil {
		return fmt.Errorf("poller build failed: %w", err)
	}

	if cfg.Metrics.Listen != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.Metrics.Listen, metrics.Router(reg, p), log); err != nil {
				log.Error().Err(err).Msg("metrics endpoint failed")
			}
		}()
	}

	errCh := make(chan error, 2)

	go func() { errCh <- p.Run(ctx) }()

	// ---- connectivity supervision ----
	if limit := cfg.Connectivity.MaxOffline(); limit > 0 && link != nil {
		go func() { errCh <- supervise(ctx, link, limit, log) }()
	}

	if s, ok := feeder.(*watchdog.Systemd); ok {
		s.Ready()
	}

	err = <-errCh
	stop()
	if errors.Is(err, context.Canceled) {
		log.Info().Msg("shutdown requested")
		return nil
	}
	return err
}

func buildWatchdog(c config.WatchdogConfig, log zerolog.Logger) watchdog.Feeder {
	if !c.Enabled {
		return watchdog.Nop{}
	}

	s, ok, err := watchdog.NewSystemd(log)
	if err != nil {
		log.Warn().Err(err).Msg("watchdog unavailable")
		return watchdog.Nop{}
	}
	if !ok {
		log.Warn().Msg("watchdog enabled but the service manager has none configured")
		return watchdog.Nop{}
	}

	log.Info().Dur("feed_interval", s.FeedInterval()).Msg("watchdog enabled")
	return s
}

func buildPublisher(cfg *config.Config, sensors []*sensor.Sensor, log zerolog.Logger) (publisher.Publisher, publisher.LinkMonitor, error) {
	switch cfg.Publisher.Kind {
	case config.PublisherNATS:
		n, err := publisher.NewNATS(publisher.NATSConfig{
			URL:           cfg.NATS.URL,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return n, n, nil

	default:
		m, err := publisher.NewMQTT(publisher.MQTTConfig{
			Broker:      cfg.MQTT.Broker(),
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			KeepAlive:   cfg.MQTT.KeepAlive(),
			Retain:      cfg.MQTT.Retain,
			Discovery: publisher.DiscoveryConfig{
				Enabled: cfg.MQTT.Discovery.Enabled,
				Prefix:  cfg.MQTT.Discovery.Prefix,
				NodeID:  cfg.MQTT.Discovery.NodeID,
			},
		}, sensors, log)
		if err != nil {
			return nil, nil, err
		}

		// the client keeps retrying in the background
		if err := m.Connect(connectTimeout); err != nil {
			log.Warn().Err(err).Msg("mqtt not reachable yet")
		}
		return m, m, nil
	}
}
