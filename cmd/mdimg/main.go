package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/Sriram-PR/mdimg/pkg/config"
	"github.com/Sriram-PR/mdimg/pkg/discover"
	mdlog "github.com/Sriram-PR/mdimg/pkg/log"
	"github.com/Sriram-PR/mdimg/pkg/orchestrate"
	"github.com/Sriram-PR/mdimg/pkg/rewrite"
	"github.com/Sriram-PR/mdimg/pkg/storage"
)

// Version is set at build time via ldflags.
var Version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	flags, positional, err := parseFlags(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return ExitSuccess
	}
	if err != nil {
		fmt.Fprintln(stderr, err)
		return ExitUsage
	}
	if flags.version {
		fmt.Fprintf(stdout, "mdimg %s\n", Version)
		return ExitSuccess
	}

	// --- Logger Configuration ---
	logger := mdlog.NewConsoleLogger(stdout, stderr, logrus.InfoLevel)
	if level, err := logrus.ParseLevel(flags.logLevel); err != nil {
		logger.Warnf("Invalid log level '%s', using default 'info'. Error: %v", flags.logLevel, err)
	} else {
		logger.SetLevel(level)
	}

	runID := uuid.NewString()
	log := logger.WithField("run_id", runID[:8])

	_, _ = maxprocs.Set(maxprocs.Logger(log.Debugf))

	// --- Configuration ---
	appCfg, err := loadConfig(flags.configPath)
	if err != nil {
		log.Error(err)
		return exitCodeFor(err)
	}
	flags.applyTo(appCfg)
	warnings, err := appCfg.Validate()
	for _, w := range warnings {
		log.Warn(w)
	}
	if err != nil {
		log.Errorf("Invalid configuration: %v", err)
		return ExitUsage
	}
	logAppConfig(appCfg, log)

	// --- Target ---
	targetArg := "."
	if len(positional) > 0 {
		targetArg = positional[0]
	}
	if len(positional) > 1 {
		log.Warnf("Ignoring extra arguments: %v", positional[1:])
	}
	target, err := discover.ResolveTarget(targetArg)
	if err != nil {
		log.Error(err)
		return exitCodeFor(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Ledger (optional) ---
	var ledger rewrite.Ledger
	var store *storage.BadgerStore
	if appCfg.LedgerEnabled() {
		store, err = storage.NewBadgerStore(ctx, appCfg.StateDir, flags.resetLedger, log)
		if err != nil {
			log.Errorf("Failed to open ledger: %v", err)
			return ExitFailure
		}
		defer store.Close()
		ledger = store
	}

	runner := orchestrate.NewRunner(orchestrate.NewRewriter(appCfg, ledger, runID, log), log)
	if store != nil {
		runner.WithLedger(store)
	}
	_, runErr := runner.Run(ctx, target)

	if flags.ledgerLog != "" {
		if store == nil {
			log.Warn("--write-ledger-log needs a ledger; set --state-dir")
		} else if err := store.WriteLedgerLog(flags.ledgerLog); err != nil {
			log.Errorf("Failed to write ledger log: %v", err)
		}
	}

	if runErr != nil {
		log.Error(runErr)
		return exitCodeFor(runErr)
	}
	return ExitSuccess
}

// loadConfig reads the YAML config, or returns defaults when no path is given
func loadConfig(path string) (*config.AppConfig, error) {
	if path == "" {
		return &config.AppConfig{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	return cfg, nil
}

// logAppConfig logs the effective configuration at debug level
func logAppConfig(cfg *config.AppConfig, log *logrus.Entry) {
	if cfg.ConvertAllToJPG {
		log.Info("Converting all non-PNG/JPG images to JPG format")
	}
	log.WithFields(logrus.Fields{
		"workers":        cfg.NumFetchWorkers,
		"per_host":       cfg.MaxRequestsPerHost,
		"host_delay":     cfg.DefaultDelayPerHost,
		"timeout":        cfg.HTTPClientSettings.Timeout,
		"max_image_size": cfg.MaxImageSizeBytes,
		"state_dir":      cfg.StateDir,
	}).Debug("Effective configuration")
}
