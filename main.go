package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/AndreRenaud/eink_frame/change"
	"github.com/AndreRenaud/eink_frame/config"
	"github.com/AndreRenaud/eink_frame/cycle"
	"github.com/AndreRenaud/eink_frame/epd"
	"github.com/AndreRenaud/eink_frame/fetch"
	"github.com/AndreRenaud/eink_frame/marker"
	"github.com/AndreRenaud/eink_frame/network"
	"github.com/AndreRenaud/eink_frame/power"
	"github.com/AndreRenaud/eink_frame/render"
	"github.com/AndreRenaud/eink_frame/report"
	"github.com/AndreRenaud/eink_frame/source"
)

func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := cfg.SlogLevel()
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}

// openStore returns the marker store and a function releasing it.
func openStore(cfg config.MarkerConfig) (marker.Store, func() error, error) {
	switch cfg.Backend {
	case "sqlite":
		s, err := marker.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "memory":
		return marker.NewMemory(), func() error { return nil }, nil
	default:
		s, err := marker.NewFileStore(cfg.Path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	}
}

func newLocator(cfg config.SourceConfig) source.Locator {
	if cfg.Mode == "static" {
		return source.Static{URL: cfg.URL}
	}
	return &source.Listing{
		URL:        cfg.ListingURL,
		RawBase:    cfg.RawBase,
		Extensions: cfg.Extensions,
	}
}

func newConnector(cfg config.NetworkConfig, logger *slog.Logger) network.Connector {
	if cfg.ProbeHost == "" {
		return nil
	}
	return &network.Waiter{
		Probe:    network.PingProbe(cfg.ProbeHost, cfg.Interval, cfg.Privileged),
		Attempts: cfg.Attempts,
		Interval: cfg.Interval,
		Logger:   logger,
	}
}

func newReporter(cfg config.ReportConfig) report.Reporter {
	if cfg.Broker == "" {
		return report.Discard{}
	}
	return report.NewMQTT(cfg.Broker, cfg.ClientID, cfg.Topic, cfg.QoS, cfg.Timeout)
}

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	once := flag.Bool("once", false, "Run a single cycle and exit instead of sleeping")
	logLevel := flag.String("log-level", "", "Override log.level from the configuration")
	blank := flag.Bool("clear", false, "Blank the display, forget the marker and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config: %s", err)
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	logger, err := newLogger(cfg.Log, os.Stderr)
	if err != nil {
		log.Fatalf("logger: %s", err)
	}
	slog.SetDefault(logger)

	if err := run(cfg, *once, *blank, logger); err != nil {
		logger.Error("eink_frame: exiting", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, once, blank bool, logger *slog.Logger) error {
	store, closeStore, err := openStore(cfg.Marker)
	if err != nil {
		return fmt.Errorf("marker store: %w", err)
	}
	defer closeStore()

	panel, err := openPanel(cfg.Display)
	if err != nil {
		return fmt.Errorf("display: %w", err)
	}
	defer panel.Close()

	if blank {
		c, ok := panel.(epd.Clearer)
		if !ok {
			return fmt.Errorf("display %s cannot be cleared", cfg.Display.Type)
		}
		if err := c.Clear(); err != nil {
			return err
		}
		logger.Info("eink_frame: display cleared")
		return store.Clear()
	}

	strategy, err := change.ParseStrategy(cfg.Change.Strategy)
	if err != nil {
		return err
	}
	sleeper, err := power.New(cfg.Sleep.Mode)
	if err != nil {
		return err
	}
	if once {
		sleeper = power.OneShot{}
	}

	renderer := render.New(panel, render.Options{
		Rotation: cfg.Display.Rotation,
		Width:    cfg.Display.Width,
		Height:   cfg.Display.Height,
		Scale:    render.Scale(cfg.Display.Scale),
	}, logger)

	controller := cycle.New(cycle.Deps{
		Connector: newConnector(cfg.Network, logger),
		Locator:   newLocator(cfg.Source),
		Fetcher: &fetch.HTTP{
			MaxSize: cfg.Source.MaxSize,
			Timeout: cfg.Source.Timeout,
		},
		Strategy: strategy,
		Renderer: renderer,
		Store:    store,
		Sleeper:  sleeper,
		Reporter: newReporter(cfg.Report),
		Logger:   logger,
	}, cycle.Options{
		SleepDuration: cfg.Sleep.Duration,
		Hold:          cfg.Display.Hold,
		ReportTimeout: cfg.Report.Timeout,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("eink_frame: starting",
		"display", cfg.Display.Type,
		"source", cfg.Source.Mode,
		"strategy", strategy,
		"marker", cfg.Marker.Backend,
		"sleep", cfg.Sleep.Mode)
	err = controller.Run(ctx)
	if ctx.Err() != nil {
		logger.Info("eink_frame: interrupted")
		return nil
	}
	return err
}
