package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Sriram-PR/mdimg/pkg/models"
)

// AppConfig holds the application configuration for a localization run
type AppConfig struct {
	ConvertAllToJPG         bool             `yaml:"convert_all_to_jpg,omitempty"`
	UserAgent               string           `yaml:"user_agent,omitempty"`
	MaxImageSizeBytes       int64            `yaml:"max_image_size_bytes,omitempty"`    // 0 = unlimited
	NumFetchWorkers         int              `yaml:"num_fetch_workers,omitempty"`       // Parallel fetches within one document (1 = sequential)
	MaxRequestsPerHost      int              `yaml:"max_requests_per_host,omitempty"`   // Only enforced when NumFetchWorkers > 1
	DefaultDelayPerHost     time.Duration    `yaml:"default_delay_per_host,omitempty"`  // Politeness delay between requests to one host
	SemaphoreAcquireTimeout time.Duration    `yaml:"semaphore_acquire_timeout,omitempty"`
	StateDir                string           `yaml:"state_dir,omitempty"` // Ledger location; empty disables the ledger
	HTTPClientSettings      HTTPClientConfig `yaml:"http_client_settings,omitempty"`
}

// HTTPClientConfig holds settings for the shared HTTP client
type HTTPClientConfig struct {
	Timeout               time.Duration `yaml:"timeout,omitempty"`                 // Per-image request timeout
	MaxIdleConns          int           `yaml:"max_idle_conns,omitempty"`          // Max total idle connections
	MaxIdleConnsPerHost   int           `yaml:"max_idle_conns_per_host,omitempty"` // Max idle connections per host
	IdleConnTimeout       time.Duration `yaml:"idle_conn_timeout,omitempty"`       // Timeout for idle connections
	TLSHandshakeTimeout   time.Duration `yaml:"tls_handshake_timeout,omitempty"`   // Timeout for TLS handshake
	ExpectContinueTimeout time.Duration `yaml:"expect_continue_timeout,omitempty"` // Timeout for 100-continue
	ForceAttemptHTTP2     *bool         `yaml:"force_attempt_http2,omitempty"`     // nil=default, true=force, false=disable
	DialerTimeout         time.Duration `yaml:"dialer_timeout,omitempty"`          // Connection dial timeout
	DialerKeepAlive       time.Duration `yaml:"dialer_keep_alive,omitempty"`       // TCP keep-alive interval
}

// Load reads and parses a YAML config file. Defaults are not applied; call Validate.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

// ProcessingOptions derives the immutable per-run options handed to the pipeline
func (c *AppConfig) ProcessingOptions() models.ProcessingOptions {
	return models.ProcessingOptions{ConvertAllToJPG: c.ConvertAllToJPG}
}

// LedgerEnabled reports whether outcomes should be persisted to the state dir
func (c *AppConfig) LedgerEnabled() bool {
	return c.StateDir != ""
}
