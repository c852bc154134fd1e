package tether

import (
	"os"
	"time"

	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
	"golang.org/x/text/encoding"
)

// DefaultFileMode is the permission mode for files created by saves.
const DefaultFileMode os.FileMode = 0o644

// config collects construction options for Load and Adopt.
type config struct {
	format   string
	saveTo   string
	encoding encoding.Encoding
	async    bool
	deep     bool
	reactive bool
	debounce time.Duration
	clock    clockz.Clock
	metrics  MetricsProvider
	fileMode os.FileMode
	ringSize int
	saveOpts []SaveOption
}

func defaultConfig() config {
	return config{
		async:    true,
		deep:     true,
		reactive: true,
		clock:    clockz.RealClock,
		fileMode: DefaultFileMode,
	}
}

func (c *config) validate() error {
	if c.debounce < 0 {
		return &ConfigError{Field: "Debounce", Reason: "must not be negative"}
	}
	if c.ringSize < 0 {
		return &ConfigError{Field: "ErrorHistory", Reason: "must not be negative"}
	}
	return nil
}

// Option configures a Document at construction time.
type Option func(*config)

// WithFormat sets the format identifier explicitly instead of inferring it
// from the file extension.
func WithFormat(format string) Option {
	return func(c *config) { c.format = format }
}

// WithSaveTo overrides the destination path. The default is the load path.
// Adopt requires this option.
func WithSaveTo(path string) Option {
	return func(c *config) { c.saveTo = path }
}

// WithBlockingSave makes saves complete before the triggering mutation
// returns, propagating failures synchronously. The default is non-blocking:
// writes run on the document's writer and failures surface through
// Errors, LastError, and the degraded state.
func WithBlockingSave() Option {
	return func(c *config) { c.async = false }
}

// WithShallow observes only mutations on the root container's own entries.
// Nested container internals become opaque: child handles mutate without
// notifying. The default is deep observation.
func WithShallow() Option {
	return func(c *config) { c.deep = false }
}

// WithReactive controls whether mutations trigger persistence at all.
// When disabled, mutations are never observed and only explicit Save and
// SaveNow calls write. Default: enabled.
func WithReactive(enabled bool) Option {
	return func(c *config) { c.reactive = enabled }
}

// WithEncoding sets the text encoding for file I/O. File bytes are decoded
// to UTF-8 on load and encoded back on save. The default (nil) is UTF-8
// passthrough.
func WithEncoding(enc encoding.Encoding) Option {
	return func(c *config) { c.encoding = enc }
}

// WithDebounce coalesces rapid mutations into a single non-blocking write.
// A save runs only after d elapses without further mutations. Default: no
// debounce, every scheduled save runs as soon as the writer is free.
func WithDebounce(d time.Duration) Option {
	return func(c *config) { c.debounce = d }
}

// WithClock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce testing.
func WithClock(clock clockz.Clock) Option {
	return func(c *config) { c.clock = clock }
}

// WithMetrics sets a metrics provider for observability integration.
// The provider receives callbacks on observed changes, save success and
// failure, and state transitions.
func WithMetrics(provider MetricsProvider) Option {
	return func(c *config) { c.metrics = provider }
}

// WithFileMode sets the permission mode for files created by saves.
// Default: 0o644.
func WithFileMode(mode os.FileMode) Option {
	return func(c *config) { c.fileMode = mode }
}

// WithErrorHistory sets the number of recent save errors to retain.
// When set, ErrorHistory returns up to n recent errors. Use 0 (default)
// to only retain the most recent error via LastError.
func WithErrorHistory(n int) Option {
	return func(c *config) { c.ringSize = n }
}

// -----------------------------------------------------------------------------
// Save pipeline options
// -----------------------------------------------------------------------------
// These wrap the write stage with reliability middleware. They apply to
// every save regardless of how it was triggered.

// SaveOption wraps the save pipeline with middleware.
type SaveOption func(pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest]

// buildSavePipeline wraps the terminal write stage with save options.
func buildSavePipeline(terminal pipz.Chainable[*SaveRequest], opts []SaveOption) pipz.Chainable[*SaveRequest] {
	pipeline := terminal
	for _, opt := range opts {
		pipeline = opt(pipeline)
	}
	return pipeline
}

// WithSaveRetry wraps the save pipeline with retry logic.
// Failed writes are retried immediately up to maxAttempts times.
// For exponential backoff between retries, use WithSaveBackoff instead.
func WithSaveRetry(maxAttempts int) Option {
	return func(c *config) {
		c.saveOpts = append(c.saveOpts, func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
			return pipz.NewRetry("save-retry", p, maxAttempts)
		})
	}
}

// WithSaveBackoff wraps the save pipeline with exponential backoff retry
// logic. Failed writes are retried with increasing delays: baseDelay,
// 2*baseDelay, 4*baseDelay, etc.
func WithSaveBackoff(maxAttempts int, baseDelay time.Duration) Option {
	return func(c *config) {
		c.saveOpts = append(c.saveOpts, func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
			return pipz.NewBackoff("save-backoff", p, maxAttempts, baseDelay)
		})
	}
}

// WithSaveTimeout wraps the save pipeline with a deadline. Writes that
// take longer than d fail with a timeout error.
func WithSaveTimeout(d time.Duration) Option {
	return func(c *config) {
		c.saveOpts = append(c.saveOpts, func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
			return pipz.NewTimeout("save-timeout", p, d)
		})
	}
}

// WithSaveErrorHandler adds error observation to the save pipeline.
// Errors are passed to the handler for logging, metrics, or alerting, but
// still propagate to the document's error surfacing.
func WithSaveErrorHandler(handler pipz.Chainable[*pipz.Error[*SaveRequest]]) Option {
	return func(c *config) {
		c.saveOpts = append(c.saveOpts, func(p pipz.Chainable[*SaveRequest]) pipz.Chainable[*SaveRequest] {
			return pipz.NewHandle("save-error-handler", p, handler)
		})
	}
}
