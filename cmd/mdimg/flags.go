package main

import (
	"fmt"
	"io"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/Sriram-PR/mdimg/pkg/config"
)

// cliFlags holds parsed command-line flags
type cliFlags struct {
	convertAllToJPG bool
	configPath      string
	logLevel        string
	workers         int
	stateDir        string
	resetLedger     bool
	ledgerLog       string
	timeout         time.Duration
	maxImageSize    int64
	userAgent       string
	version         bool

	changed map[string]bool // Flags set explicitly on the command line
}

// parseFlags parses args (without the program name) and returns the positional args.
func parseFlags(args []string, stderr io.Writer) (*cliFlags, []string, error) {
	fs := flag.NewFlagSet("mdimg", flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := &cliFlags{changed: make(map[string]bool)}

	fs.BoolVarP(&f.convertAllToJPG, "convert-all-to-jpg", "c", false, "convert every image that is not PNG or JPEG to JPEG")
	fs.StringVar(&f.configPath, "config", "", "path to YAML config file (optional)")
	fs.StringVar(&f.logLevel, "loglevel", "info", "log level (debug, info, warn, error)")
	fs.IntVarP(&f.workers, "workers", "w", 1, "concurrent downloads within one document (1 = sequential)")
	fs.StringVar(&f.stateDir, "state-dir", "", "directory for the download ledger (empty disables it)")
	fs.BoolVar(&f.resetLedger, "reset-ledger", false, "remove the existing ledger before the run")
	fs.StringVar(&f.ledgerLog, "write-ledger-log", "", "write ledger records as TSV to this file after the run")
	fs.DurationVarP(&f.timeout, "timeout", "t", 0, "per-image download timeout (e.g. 30s); 0 keeps the config value")
	fs.Int64Var(&f.maxImageSize, "max-image-size", 0, "maximum image size in bytes (0 = unlimited)")
	fs.StringVar(&f.userAgent, "user-agent", "", "User-Agent header for image requests")
	fs.BoolVarP(&f.version, "version", "v", false, "print version and exit")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: mdimg [flags] [<path>]\n\n")
		fmt.Fprintf(stderr, "Downloads remote images referenced by Markdown files and rewrites the links.\n")
		fmt.Fprintf(stderr, "<path> is a .md file or a directory (default \".\").\n")
		fmt.Fprintf(stderr, "Directories are searched recursively; symlinked directories are not followed.\n\nFlags:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.changed[fl.Name] = true })

	if f.workers < 1 {
		return nil, nil, fmt.Errorf("%w: --workers must be >= 1, got %d", errUsage, f.workers)
	}
	if f.timeout < 0 {
		return nil, nil, fmt.Errorf("%w: --timeout cannot be negative", errUsage)
	}
	return f, fs.Args(), nil
}

// applyTo overrides config values with flags given on the command line
func (f *cliFlags) applyTo(cfg *config.AppConfig) {
	if f.changed["convert-all-to-jpg"] {
		cfg.ConvertAllToJPG = f.convertAllToJPG
	}
	if f.changed["workers"] {
		cfg.NumFetchWorkers = f.workers
	}
	if f.changed["state-dir"] {
		cfg.StateDir = f.stateDir
	}
	if f.changed["timeout"] && f.timeout > 0 {
		cfg.HTTPClientSettings.Timeout = f.timeout
	}
	if f.changed["max-image-size"] {
		cfg.MaxImageSizeBytes = f.maxImageSize
	}
	if f.changed["user-agent"] {
		cfg.UserAgent = f.userAgent
	}
}
