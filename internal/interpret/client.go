// Package interpret is an HTTP client for a remote interpretation service.
// It satisfies consensus.Interpreter.
package interpret

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"casetrace/internal/casefile"
	"casetrace/internal/consensus"
	"casetrace/internal/logging"
)

// Defaults.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxRetries  = 2
	DefaultBaseBackoff = 200 * time.Millisecond
	DefaultRatePerSec  = 5
	DefaultBurst       = 3

	maxResponseBytes = 4 << 20
)

var (
	// ErrNoEndpoint is returned when the client has no endpoint configured.
	ErrNoEndpoint = errors.New("interpret: no endpoint configured")
	// ErrBadResponse is returned when a 2xx body is not valid JSON.
	ErrBadResponse = errors.New("interpret: invalid response body")
)

// Config configures a Client.
type Config struct {
	Endpoint    string
	APIKey      string
	Timeout     time.Duration
	MaxRetries  int
	BaseBackoff time.Duration
	// RatePerSec limits outgoing requests. Zero means DefaultRatePerSec;
	// a negative value disables limiting.
	RatePerSec float64
	Burst      int
}

// Client posts summaries to the interpretation endpoint.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

var _ consensus.Interpreter = (*Client)(nil)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("interpret: status %d", e.StatusCode)
	}
	return fmt.Sprintf("interpret: status %d: %s", e.StatusCode, e.Body)
}

func (e *StatusError) retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// New creates a client. A nil logger discards output.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.RatePerSec == 0 {
		cfg.RatePerSec = DefaultRatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = DefaultBurst
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	limit := rate.Limit(cfg.RatePerSec)
	if cfg.RatePerSec < 0 {
		limit = rate.Inf
	}
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, cfg.Burst),
		logger:  logger,
	}
}

type request struct {
	Summary *casefile.Summary `json:"summary"`
	Mode    consensus.Mode    `json:"mode"`
}

type response struct {
	Output     string `json:"output"`
	OutputText string `json:"output_text"`
}

// Interpret sends summary in the given mode and returns the service's
// output. Transport errors, 429 and 5xx responses are retried with
// exponential backoff; other failures are returned at once.
func (c *Client) Interpret(ctx context.Context, summary *casefile.Summary, mode consensus.Mode) (string, error) {
	if c.cfg.Endpoint == "" {
		return "", ErrNoEndpoint
	}

	body, err := json.Marshal(request{Summary: summary, Mode: mode})
	if err != nil {
		return "", fmt.Errorf("interpret: marshal request: %w", err)
	}
	requestID := logging.RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	requestID += "/" + string(mode)

	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			if err := c.backoff(ctx, attempt); err != nil {
				return "", err
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("interpret: rate limit: %w", err)
		}

		out, err := c.do(ctx, body, requestID)
		if err == nil {
			return out, nil
		}
		lastErr = err

		var se *StatusError
		if errors.As(err, &se) && !se.retryable() || errors.Is(err, ErrBadResponse) {
			return "", err
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.logger.DebugContext(ctx, "interpretation request failed",
			"mode", string(mode),
			"attempt", attempt+1,
			"request_id", requestID,
			"error", err,
		)
	}
	return "", fmt.Errorf("interpret: giving up after %d attempts: %w", c.cfg.MaxRetries+1, lastErr)
}

func (c *Client) do(ctx context.Context, body []byte, requestID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("interpret: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("interpret: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(data), 200)}
	}

	var r response
	if err := json.Unmarshal(data, &r); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadResponse, err)
	}
	if r.Output != "" {
		return r.Output, nil
	}
	return r.OutputText, nil
}

func (c *Client) backoff(ctx context.Context, attempt int) error {
	d := c.cfg.BaseBackoff << (attempt - 1)
	d += time.Duration(rand.Int64N(int64(c.cfg.BaseBackoff)/2 + 1))

	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
