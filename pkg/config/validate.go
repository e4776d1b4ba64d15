package config

import (
	"fmt"
	"time"
)

const (
	defaultUserAgent  = "mdimg/1.0 (+https://github.com/Sriram-PR/mdimg)"
	maxFetchWorkers   = 32
	defaultPerHostCap = 2
)

// Validate checks AppConfig fields and applies sensible defaults.
// Returns collected warnings and any fatal error.
// Modifies receiver in place to apply defaults.
func (c *AppConfig) Validate() (warnings []string, err error) {
	// UserAgent
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}

	// NumFetchWorkers
	if c.NumFetchWorkers <= 0 {
		c.NumFetchWorkers = 1
	}
	if c.NumFetchWorkers > maxFetchWorkers {
		warnings = append(warnings, fmt.Sprintf(
			"num_fetch_workers (%d) exceeds maximum, capping at %d", c.NumFetchWorkers, maxFetchWorkers))
		c.NumFetchWorkers = maxFetchWorkers
	}

	// MaxRequestsPerHost
	if c.MaxRequestsPerHost <= 0 {
		if c.NumFetchWorkers > 1 {
			warnings = append(warnings, fmt.Sprintf(
				"max_requests_per_host should be > 0, defaulting to %d", defaultPerHostCap))
		}
		c.MaxRequestsPerHost = defaultPerHostCap
	}

	// DefaultDelayPerHost
	if c.DefaultDelayPerHost < 0 {
		warnings = append(warnings, "default_delay_per_host cannot be negative, disabling delay")
		c.DefaultDelayPerHost = 0
	}

	// SemaphoreAcquireTimeout
	if c.SemaphoreAcquireTimeout <= 0 {
		c.SemaphoreAcquireTimeout = 30 * time.Second
	}

	// MaxImageSizeBytes
	if c.MaxImageSizeBytes < 0 {
		warnings = append(warnings, "max_image_size_bytes cannot be negative, setting to 0 (unlimited)")
		c.MaxImageSizeBytes = 0
	}

	// HTTPClientSettings defaults
	c.validateHTTPClientSettings()

	return warnings, nil // AppConfig validation never fails fatally
}

// validateHTTPClientSettings applies defaults to HTTP client settings.
func (c *AppConfig) validateHTTPClientSettings() {
	h := &c.HTTPClientSettings
	if h.Timeout <= 0 {
		h.Timeout = 45 * time.Second
	}
	if h.MaxIdleConns <= 0 {
		h.MaxIdleConns = 100
	}
	if h.MaxIdleConnsPerHost <= 0 {
		h.MaxIdleConnsPerHost = 2
	}
	if h.IdleConnTimeout <= 0 {
		h.IdleConnTimeout = 90 * time.Second
	}
	if h.TLSHandshakeTimeout <= 0 {
		h.TLSHandshakeTimeout = 10 * time.Second
	}
	if h.ExpectContinueTimeout <= 0 {
		h.ExpectContinueTimeout = 1 * time.Second
	}
	if h.DialerTimeout <= 0 {
		h.DialerTimeout = 15 * time.Second
	}
	if h.DialerKeepAlive <= 0 {
		h.DialerKeepAlive = 30 * time.Second
	}
}
