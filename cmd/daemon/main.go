package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lightning-worker/go-backend/internal/adapters/rpc"
	"lightning-worker/go-backend/internal/composition/daemon"
	"lightning-worker/go-backend/internal/platform/privacylog"
	"lightning-worker/go-backend/internal/worker"
)

var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	rpcAddr := flag.String("rpc-addr", rpc.DefaultRPCAddr, "JSON-RPC listen address")
	defaultsPath := flag.String("defaults", "", "Path to a YAML defaults file (optional)")
	dataDir := flag.String("data-dir", envOr("LNW_DATA_DIR", daemon.DefaultDataDir), "Directory for setting overrides and keys")
	backend := flag.String("overrides", envOr("LNW_OVERRIDES_BACKEND", "sqlite"), "Override store: sqlite | file | memory")
	origin := flag.String("origin", os.Getenv("LNW_ORIGIN"), "Origin that self-hosted relative endpoints resolve against")
	rpcToken := flag.String("rpc-token", "", "RPC token for Authorization/X-LNW-RPC-Token (optional)")
	skipSetup := flag.Bool("skip-setup", false, "Load the module only; construct the session over RPC")
	safeMode := flag.Bool("safe-mode", false, "Construct the session in safe mode")
	verbose := flag.Bool("verbose", false, "Log at debug level")
	flag.Parse()
	if *showVersion {
		fmt.Printf("lnw-daemon version=%s commit=%s build_date=%s\n", version, commit, buildDate)
		return
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := privacylog.NewLogger(os.Stderr, level)
	slog.SetDefault(logger)

	overrides, err := daemon.ParseBackend(*backend)
	if err != nil {
		logger.Error("invalid flags", "error", err)
		os.Exit(2)
	}
	if *rpcToken != "" {
		_ = os.Setenv("LNW_RPC_TOKEN", *rpcToken)
	}

	cfg := daemon.Config{
		RPCAddr:      *rpcAddr,
		DataDir:      *dataDir,
		DefaultsPath: *defaultsPath,
		Origin:       *origin,
		Backend:      overrides,
		Mnemonic:     optionalEnv("LNW_MNEMONIC"),
		Password:     optionalEnv("LNW_WALLET_PASSWORD"),
		SkipSetup:    *skipSetup,
		Logger:       logger,
	}
	if *safeMode {
		cfg.Flags = worker.SetupFlags{SafeMode: safeMode}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	d, err := daemon.Build(ctx, cfg)
	if err != nil {
		logger.Error("lnw-daemon failed to initialize", "error", err)
		os.Exit(1)
	}
	logger.Info("lnw-daemon starting", "version", version, "rpc_addr", *rpcAddr)
	if err := d.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("lnw-daemon failed", "error", err)
		os.Exit(1)
	}
	logger.Info("lnw-daemon stopped")
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// optionalEnv distinguishes an unset variable (nil) from an exported empty
// one.
func optionalEnv(key string) *string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	return &v
}
