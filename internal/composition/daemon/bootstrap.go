// Package daemon wires the wallet worker process: override storage, settings
// resolution, the capability module behind the session bridge, and the RPC
// transport.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"lightning-worker/go-backend/internal/adapters/rpc"
	"lightning-worker/go-backend/internal/capability/memwallet"
	"lightning-worker/go-backend/internal/events"
	"lightning-worker/go-backend/internal/observability"
	"lightning-worker/go-backend/internal/settings"
	"lightning-worker/go-backend/internal/worker"
)

const (
	DefaultDataDir    = "lnw-data"
	eventHistoryLimit = 256
	bootTimeout       = 30 * time.Second
)

type Config struct {
	RPCAddr      string
	DataDir      string
	DefaultsPath string
	Origin       string
	Backend      Backend
	Mnemonic     *string
	Password     *string
	Flags        worker.SetupFlags
	// SkipSetup leaves the session in ModuleReady; a client constructs it
	// over RPC.
	SkipSetup bool
	Logger    *slog.Logger
}

type Daemon struct {
	cfg      Config
	logger   *slog.Logger
	storage  StorageBundle
	defaults settings.Defaults
	registry *prometheus.Registry
	events   *events.Broadcaster
	runtime  *memwallet.Runtime
	bridge   *worker.Bridge
	server   *rpc.Server

	closeOnce sync.Once
	closeErr  error
}

// Build opens storage and resolves settings once so misconfiguration fails
// before anything listens.
func Build(ctx context.Context, cfg Config) (*Daemon, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg.DataDir = strings.TrimSpace(cfg.DataDir)
	if cfg.DataDir == "" {
		cfg.DataDir = DefaultDataDir
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	defaults, err := settings.LoadDefaults(cfg.DefaultsPath)
	if err != nil {
		return nil, err
	}
	bundle, err := BuildStorageBundle(ctx, cfg.DataDir, cfg.Backend)
	if err != nil {
		return nil, err
	}

	d := &Daemon{
		cfg:      cfg,
		logger:   logger.With("component", "daemon"),
		storage:  bundle,
		defaults: defaults,
		registry: prometheus.NewRegistry(),
		events:   events.NewBroadcaster(eventHistoryLimit),
	}
	resolved, err := d.ResolveSettings(ctx)
	if err != nil {
		_ = bundle.Close()
		return nil, err
	}

	d.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewBridgeMetrics(d.registry)
	if err != nil {
		_ = bundle.Close()
		return nil, err
	}
	d.runtime = memwallet.NewRuntime(memwallet.Options{Events: d.events, Logger: logger})
	d.bridge = worker.New(d.runtime, worker.Options{Logger: logger, Metrics: metrics})

	eventChan, _ := resolved.Value(settings.LNEventBroadcastChannel)
	d.server = rpc.New(rpc.Options{
		Addr:         cfg.RPCAddr,
		Bridge:       d.bridge,
		Settings:     d.ResolveSettings,
		Events:       d.events,
		EventChannel: eventChan,
		Gatherer:     d.registry,
		Logger:       logger,
	})
	d.logger.Info("daemon built",
		"data_dir", cfg.DataDir,
		"overrides_backend", string(bundle.Backend),
		"network", resolved.Network(),
	)
	return d, nil
}

// ResolveSettings reads the current overrides on every call, so settings
// written while the daemon runs apply to the next construction.
func (d *Daemon) ResolveSettings(ctx context.Context) (settings.Resolved, error) {
	return settings.Resolve(ctx, d.storage.Overrides, settings.Options{
		Defaults: d.defaults,
		Origin:   d.cfg.Origin,
		Logger:   d.logger,
	})
}

func (d *Daemon) Bridge() *worker.Bridge { return d.bridge }

func (d *Daemon) Runtime() *memwallet.Runtime { return d.runtime }

func (d *Daemon) Server() *rpc.Server { return d.server }

// Boot loads the capability module and, unless SkipSetup is set, constructs
// the wallet session.
func (d *Daemon) Boot(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, bootTimeout)
	defer cancel()
	if _, err := d.bridge.LoadModule().Await(ctx); err != nil {
		return err
	}
	if d.cfg.SkipSetup {
		d.logger.Info("module loaded; waiting for setup over rpc")
		return nil
	}
	resolved, err := d.ResolveSettings(ctx)
	if err != nil {
		return err
	}
	if _, err := d.bridge.Setup(resolved, d.cfg.Mnemonic, d.cfg.Password, d.cfg.Flags).Await(ctx); err != nil {
		return fmt.Errorf("construct wallet session: %w", err)
	}
	d.logger.Info("wallet session ready")
	return nil
}

// Run boots the session and serves RPC until ctx ends.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.Close()
	if err := d.Boot(ctx); err != nil {
		return err
	}
	return d.server.Run(ctx)
}

// Close stops a running session, then the bridge and storage.
func (d *Daemon) Close() error {
	d.closeOnce.Do(func() { d.closeErr = d.shutdown() })
	return d.closeErr
}

func (d *Daemon) shutdown() error {
	stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var errs []error
	if d.bridge != nil {
		info, err := d.bridge.State().Await(stopCtx)
		if err == nil && info.State == worker.SessionReady {
			if _, err := d.bridge.Stop().Await(stopCtx); err != nil {
				errs = append(errs, fmt.Errorf("stop session: %w", err))
			}
		}
		d.bridge.Close()
	}
	if err := d.storage.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
