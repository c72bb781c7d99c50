package twitter

import (
	"log/slog"
	"time"

	"github.com/anatolykoptev/go-stealth/ratelimit"
)

// Hooks receive progress and failure events. Every field is optional and
// may be called from several goroutines at once.
type Hooks struct {
	// OnPage is called after each page of a query has been classified.
	// page counts from 1, entries is the number of new content entities.
	OnPage func(query string, page, entries int)

	// OnEntityError is called for every entity that was skipped. Dropped
	// quoted or retweeted posts are reported under the entry that held them.
	OnEntityError func(entryID string, err error)

	// OnRetry is called before each backoff sleep.
	OnRetry func(query string, attempt uint, err error)
}

// Config configures pagination drivers and the orchestrator.
type Config struct {
	// Retries is the number of retries per page fetch. Default: 3.
	// A negative value disables retrying.
	Retries int

	// BaseDelay is the first backoff delay; it doubles per retry. Default: 1s.
	BaseDelay time.Duration

	// MaxDelay caps a single backoff delay. Default: 1m.
	MaxDelay time.Duration

	// MaxJitter is the upper bound of the random delay added to each
	// backoff. Default: 1s.
	MaxJitter time.Duration

	// RequestTimeout bounds a single fetch. Default: 30s.
	RequestTimeout time.Duration

	// Concurrency bounds how many queries run at once; 0 means unbounded.
	Concurrency int

	// MaxDepth bounds quoted/retweeted nesting. Default: 8.
	MaxDepth int

	// KeepPages retains raw page bodies in Result.Pages.
	KeepPages bool

	// Sink, if set, receives every fetched page.
	Sink PageSink

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	Hooks Hooks
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *Config) defaults() {
	switch {
	case cfg.Retries == 0:
		cfg.Retries = 3
	case cfg.Retries < 0:
		cfg.Retries = 0
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = time.Minute
	}
	if cfg.MaxJitter == 0 {
		cfg.MaxJitter = time.Second
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = defaultMaxDepth
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}

// ClientConfig holds all configuration for the HTTP transport.
type ClientConfig struct {
	// Session supplies credentials. A nil session makes the client acquire
	// a guest token on first use.
	Session *Session

	// Proxy is an optional proxy URL.
	Proxy string

	// RequestsPerSecond paces outgoing requests. Default: 1.
	RequestsPerSecond float64

	// Burst is the limiter burst size. Default: 1.
	Burst int

	// RateLimit configures per-endpoint rate limiting windows.
	RateLimit ratelimit.Config

	// TransactionID, if set, generates the x-client-transaction-id header
	// for a request method and URL path.
	TransactionID func(method, path string) (string, error)

	// NoJitter disables the anti-fingerprint delay before each request.
	NoJitter bool

	// MetricsHook is called on each API request for external metrics collection.
	// endpoint is the operation name, success and rateLimited indicate the outcome.
	MetricsHook func(endpoint string, success, rateLimited bool)

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// defaults fills in zero-value config fields with sensible defaults.
func (cfg *ClientConfig) defaults() {
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}
	if cfg.Burst == 0 {
		cfg.Burst = 1
	}
	if cfg.RateLimit.RequestsPerWindow == 0 {
		cfg.RateLimit = ratelimit.DefaultConfig
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
}
