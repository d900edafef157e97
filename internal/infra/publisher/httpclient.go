// Package publisher contains PublisherAdapter implementations: one per
// family of publisher site the pipeline knows how to crawl (spec.md §4.1).
package publisher

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"newsfeed-pipeline/internal/domain/entity"
)

// ClientConfig controls the SSRF-safe HTTP client shared by every adapter.
type ClientConfig struct {
	// Timeout bounds a single HTTP request, including redirects.
	Timeout time.Duration

	// MaxBodySize is loaded from PUBLISHER_FETCH_MAX_BODY_SIZE but not read
	// by the adapters: RSSAdapter rejects article bodies over a fixed
	// 10 MiB and ArchiveAdapter reads at most 10 MiB of them.
	MaxBodySize int64

	// MaxRedirects bounds the redirect chain length.
	MaxRedirects int

	// UserAgent is not read by the adapters: page and listing requests
	// send "newsfeed-pipeline/1.0" and the feed parser sends
	// "newsfeed-pipeline".
	UserAgent string

	// DenyPrivateIPs blocks redirect targets that resolve to a private,
	// loopback, or link-local address (SSRF prevention). Tests against a
	// local httptest.Server set this false; production always leaves it
	// true.
	DenyPrivateIPs bool
}

// DefaultClientConfig returns production defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:        10 * time.Second,
		MaxBodySize:    10 * 1024 * 1024,
		MaxRedirects:   5,
		UserAgent:      "newsfeed-pipeline/1.0",
		DenyPrivateIPs: true,
	}
}

// ClientConfigFromEnv overlays PUBLISHER_FETCH_* environment variables onto
// DefaultClientConfig, ignoring unparsable values (fail-open, spec.md's
// ambient config convention).
func ClientConfigFromEnv() ClientConfig {
	cfg := DefaultClientConfig()

	if v := os.Getenv("PUBLISHER_FETCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	if v := os.Getenv("PUBLISHER_FETCH_MAX_BODY_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBodySize = n
		}
	}
	if v := os.Getenv("PUBLISHER_FETCH_MAX_REDIRECTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRedirects = n
		}
	}

	return cfg
}

// NewHTTPClient builds an *http.Client that validates every redirect target
// for SSRF (entity.ValidateURL) and caps the redirect chain length.
func NewHTTPClient(cfg ClientConfig) *http.Client {
	return &http.Client{
		Timeout: cfg.Timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
			TLSClientConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("%w: %d redirects", ErrTooManyRedirects, len(via))
			}
			if err := validateFetchURL(req.URL.String(), cfg); err != nil {
				return fmt.Errorf("redirect target validation failed: %w", err)
			}
			return nil
		},
	}
}

// validateFetchURL checks scheme/host/SSRF, honoring cfg.DenyPrivateIPs so
// adapters can be exercised against a local httptest.Server without
// tripping the private-IP guard.
func validateFetchURL(urlStr string, cfg ClientConfig) error {
	if !cfg.DenyPrivateIPs {
		return nil
	}
	return entity.ValidateURL(urlStr)
}
