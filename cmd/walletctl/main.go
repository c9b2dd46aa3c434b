package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"lightning-worker/go-backend/internal/composition/daemon"
	"lightning-worker/go-backend/internal/platform/privacylog"
	"lightning-worker/go-backend/internal/settings"
)

type globalOptions struct {
	dataDir      string
	backend      string
	defaultsPath string
	origin       string
	jsonOutput   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	root := &cobra.Command{
		Use:           "walletctl",
		Short:         "Inspect and change lightning worker settings",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&opts.dataDir, "data-dir", envOr("LNW_DATA_DIR", daemon.DefaultDataDir), "daemon data directory")
	flags.StringVar(&opts.backend, "overrides", envOr("LNW_OVERRIDES_BACKEND", "sqlite"), "override store: sqlite | file")
	flags.StringVar(&opts.defaultsPath, "defaults", "", "YAML defaults file")
	flags.StringVar(&opts.origin, "origin", os.Getenv("LNW_ORIGIN"), "origin for self-hosted endpoints")
	flags.BoolVar(&opts.jsonOutput, "json", false, "print JSON")

	root.AddCommand(newSettingsCommand(opts), newDoctorCommand(opts))
	return root
}

// env is the opened override store plus the defaults it is resolved against.
type env struct {
	bundle   daemon.StorageBundle
	defaults settings.Defaults
	origin   string
	logger   *slog.Logger
}

func openEnv(ctx context.Context, opts *globalOptions, stderr io.Writer) (*env, error) {
	backend, err := daemon.ParseBackend(opts.backend)
	if err != nil {
		return nil, err
	}
	if backend == daemon.BackendMemory {
		return nil, fmt.Errorf("the memory backend only lives inside a daemon process")
	}
	if err := os.MkdirAll(opts.dataDir, 0o700); err != nil {
		return nil, err
	}
	defaults, err := settings.LoadDefaults(opts.defaultsPath)
	if err != nil {
		return nil, err
	}
	bundle, err := daemon.BuildStorageBundle(ctx, opts.dataDir, backend)
	if err != nil {
		return nil, err
	}
	return &env{
		bundle:   bundle,
		defaults: defaults,
		origin:   opts.origin,
		logger:   privacylog.NewLogger(stderr, slog.LevelWarn),
	}, nil
}

func (e *env) resolve(ctx context.Context) (settings.Resolved, error) {
	return settings.Resolve(ctx, e.bundle.Overrides, settings.Options{
		Defaults: e.defaults,
		Origin:   e.origin,
		Logger:   e.logger,
	})
}

func (e *env) Close() error { return e.bundle.Close() }

func printJSON(w io.Writer, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(raw))
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
