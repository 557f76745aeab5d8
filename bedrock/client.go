package bedrock

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jivagrisma/ISA-AGENT/pkg/logging"
)

const (
	// maxAttempts bounds the whole invoke operation, not its sub-steps.
	maxAttempts = 3

	// maxReconnectAttempts caps connection refreshes across the lifetime of
	// one client until a successful round trip resets the counter.
	maxReconnectAttempts = 5

	backoffInitial = time.Second
	backoffCap     = 60 * time.Second
)

// Client invokes Bedrock models with bounded retry and connection refresh on
// throttling or availability failures. Reconnect state is owned by the client
// value; concurrent invocations share it and a refresh performed for one
// in-flight request is visible to the next.
type Client struct {
	cfg    Config
	logger *slog.Logger

	newTransport func() http.RoundTripper
	newBackOff   func() backoff.BackOff

	mu                sync.Mutex
	httpc             *http.Client
	reconnectAttempts int
}

// Option configures a Client.
type Option func(*Client)

// WithTransportFactory overrides how the underlying HTTP session is built.
// The factory runs once at construction and again on every refresh.
func WithTransportFactory(factory func() http.RoundTripper) Option {
	return func(c *Client) {
		if factory != nil {
			c.newTransport = factory
		}
	}
}

// WithBackOff overrides the retry wait strategy.
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(c *Client) {
		if factory != nil {
			c.newBackOff = factory
		}
	}
}

// WithLogger overrides the component logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a client for the configured regional endpoint.
func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		cfg:          cfg,
		logger:       logging.WithComponent("bedrock"),
		newTransport: func() http.RoundTripper { return http.DefaultTransport },
		newBackOff:   defaultBackOff,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.httpc = c.buildSession()
	return c
}

func defaultBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = backoffInitial
	b.Multiplier = 2
	b.MaxInterval = backoffCap
	return b
}

// Invoke sends the envelope to the model endpoint, retrying up to three
// attempts with randomized exponential backoff. Throttling and
// service-unavailable failures trigger a connection refresh before the next
// retry; other failures are retried as-is. Cancelling the context during a
// backoff wait abandons the sequence without issuing the call.
func (c *Client) Invoke(ctx context.Context, modelID string, envelope []byte) ([]byte, error) {
	operation := func() ([]byte, error) {
		raw, err := c.doInvoke(ctx, modelID, envelope)
		if err != nil {
			var perr *ProviderError
			if errors.As(err, &perr) && perr.Transient() {
				if rerr := c.refresh(ctx); rerr != nil {
					c.logger.Warn("connection refresh skipped",
						"model", modelID, "error", rerr)
				}
			}
			return nil, err
		}
		c.resetReconnects()
		return raw, nil
	}

	raw, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(c.newBackOff()),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke %s failed: %w", modelID, err)
	}
	return raw, nil
}

// ReconnectAttempts reports the current refresh counter.
func (c *Client) ReconnectAttempts() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reconnectAttempts
}

// refresh waits 2^n wait-units, rebuilds the HTTP session and increments the
// reconnect counter. Once the counter reaches its cap, refresh is skipped and
// the caller's error propagates unchanged.
func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	if c.reconnectAttempts >= maxReconnectAttempts {
		c.mu.Unlock()
		return fmt.Errorf("bedrock: reconnect attempts exhausted (%d)", maxReconnectAttempts)
	}
	c.reconnectAttempts++
	attempt := c.reconnectAttempts
	c.mu.Unlock()

	wait := (1 << attempt) * c.cfg.refreshWaitUnit()
	c.logger.Info("refreshing connection",
		"attempt", attempt, "max_attempts", maxReconnectAttempts, "wait", wait)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	session := c.buildSession()
	c.mu.Lock()
	c.httpc = session
	c.mu.Unlock()
	return nil
}

func (c *Client) resetReconnects() {
	c.mu.Lock()
	c.reconnectAttempts = 0
	c.mu.Unlock()
}

// session returns the current HTTP client; refreshes swap it atomically.
func (c *Client) session() *http.Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.httpc
}

func (c *Client) buildSession() *http.Client {
	return &http.Client{
		Transport: c.newTransport(),
		Timeout:   c.cfg.timeout(),
	}
}
