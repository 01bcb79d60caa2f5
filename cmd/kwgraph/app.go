package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hurttlocker/kwgraph/internal/bus"
	"github.com/hurttlocker/kwgraph/internal/config"
	"github.com/hurttlocker/kwgraph/internal/metrics"
	"github.com/hurttlocker/kwgraph/internal/store"
	"github.com/hurttlocker/kwgraph/internal/usage"
)

// app is everything a command needs once configuration is resolved.
type app struct {
	cfg      config.ResolvedConfig
	logger   *slog.Logger
	metrics  *metrics.Metrics
	registry *prometheus.Registry
	medium   store.Medium
	store    *store.KeywordStore
	usage    *usage.Tracker
}

func (o *rootOptions) resolve() (config.ResolvedConfig, error) {
	return config.ResolveConfig(config.ResolveOptions{
		ConfigPath:   o.configPath,
		CLIDBPath:    o.dbPath,
		CLIBackend:   o.backend,
		CLINATSURL:   o.natsURL,
		CLINamespace: o.namespace,
		CLIHost:      o.host,
		CLIPort:      o.port,
		CLILogLevel:  o.logLevel,
	})
}

// open resolves configuration, connects the storage medium and loads the
// graph, seeding it on first use. Logs go to logOut.
func (o *rootOptions) open(ctx context.Context, logOut io.Writer) (*app, error) {
	cfg, err := o.resolve()
	if err != nil {
		return nil, err
	}
	level, err := config.ParseLogLevel(cfg.LogLevel.Value)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(logOut, &slog.HandlerOptions{Level: level}))

	m := metrics.New()
	reg, err := metrics.NewRegistry(m)
	if err != nil {
		return nil, fmt.Errorf("registering metrics: %w", err)
	}

	medium, err := openMedium(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	st, err := store.New(store.Config{
		Medium:    medium,
		Namespace: cfg.Namespace.Value,
		Bus:       bus.New(logger),
		Logger:    logger,
		Metrics:   m,
	})
	if err != nil {
		medium.Close()
		return nil, err
	}
	if _, err := st.Load(ctx); err != nil {
		medium.Close()
		return nil, fmt.Errorf("loading graph: %w", err)
	}

	return &app{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		registry: reg,
		medium:   medium,
		store:    st,
		usage:    usage.NewTracker(st, logger),
	}, nil
}

func openMedium(ctx context.Context, cfg config.ResolvedConfig, logger *slog.Logger) (store.Medium, error) {
	switch cfg.Backend.Value {
	case config.BackendNATS:
		m, err := store.NewNATSMedium(ctx, store.NATSConfig{
			URL:    cfg.NATSURL.Value,
			Bucket: cfg.NATSBucket.Value,
			Logger: logger,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to %s: %w", cfg.NATSURL.Value, err)
		}
		return m, nil
	case config.BackendMemory:
		return store.NewMemoryMedium(logger), nil
	default:
		m, err := store.NewSQLiteMedium(store.SQLiteConfig{
			DBPath:       cfg.DBPath.Value,
			PollInterval: cfg.PollInterval.Duration(config.DefaultPoll),
			Logger:       logger,
		})
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", cfg.DBPath.Value, err)
		}
		return m, nil
	}
}

func (a *app) Close() error {
	return a.medium.Close()
}

// withApp opens the app for the duration of fn.
func withApp(ctx context.Context, o *rootOptions, logOut io.Writer, fn func(*app) error) error {
	a, err := o.open(ctx, logOut)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}
