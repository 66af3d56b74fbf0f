package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"golang.org/x/oauth2"

	"github.com/Kamar-Folarin/starred-sync/internal/config"
	apperrors "github.com/Kamar-Folarin/starred-sync/internal/errors"
	"github.com/Kamar-Folarin/starred-sync/internal/metrics"
)

const (
	acceptHeader    = "application/vnd.github.v3+json"
	maxResponseSize = 32 << 20
)

// Response carries the parts of a GitHub response callers need besides the decoded body.
type Response struct {
	StatusCode int
	Header     http.Header
}

// Requester issues authenticated GET requests against the GitHub REST API.
type Requester interface {
	Get(ctx context.Context, credential, path string, query url.Values, out any) (*Response, error)
}

// Client is a GitHub REST client that throttles through a shared RateLimitTracker and
// retries primary and secondary rate limit responses.
type Client struct {
	baseURL          string
	transport        http.RoundTripper
	timeout          time.Duration
	tracker          *RateLimitTracker
	clock            clockwork.Clock
	logger           *logrus.Logger
	maxRetries       int
	baseBackoff      time.Duration
	abuseBaseBackoff time.Duration
	sleep            func(ctx context.Context, d time.Duration) error
}

// ClientOption allows configuring the GitHub client
type ClientOption func(*Client)

// WithRetryConfig configures retry behavior
func WithRetryConfig(maxRetries int, baseBackoff, abuseBaseBackoff time.Duration) ClientOption {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseBackoff = baseBackoff
		c.abuseBaseBackoff = abuseBaseBackoff
	}
}

// WithBaseURL points the client at a different API root (GitHub Enterprise, tests).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithTimeout bounds each individual HTTP call.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithTransport sets the base transport under the auth layer.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.transport = rt
	}
}

// WithClock sets the clock used for throttling sleeps.
func WithClock(clock clockwork.Clock) ClientOption {
	return func(c *Client) {
		c.clock = clock
	}
}

// WithSleeper replaces the context-aware sleep used for throttling and backoff.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) ClientOption {
	return func(c *Client) {
		c.sleep = sleep
	}
}

// NewClient creates a GitHub client. The tracker is shared by every caller of the client.
func NewClient(tracker *RateLimitTracker, logger *logrus.Logger, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:          "https://api.github.com",
		transport:        http.DefaultTransport,
		timeout:          30 * time.Second,
		tracker:          tracker,
		clock:            clockwork.NewRealClock(),
		logger:           logger,
		maxRetries:       3,
		baseBackoff:      time.Second,
		abuseBaseBackoff: 10 * time.Second,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.sleep == nil {
		c.sleep = c.clockSleep
	}

	return c
}

// NewClientFromConfig creates a client from the loaded GitHub configuration.
func NewClientFromConfig(cfg *config.GitHubConfig, tracker *RateLimitTracker, logger *logrus.Logger, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBaseURL(cfg.APIBaseURL),
		WithTimeout(cfg.RequestTimeout),
		WithRetryConfig(cfg.RateLimit.MaxRetries, cfg.RateLimit.BaseBackoff, cfg.RateLimit.AbuseBaseBackoff),
	}
	return NewClient(tracker, logger, append(base, opts...)...)
}

// Get performs GET baseURL+path?query authenticated with credential and decodes a 2xx body
// into out (when out is non-nil). It makes up to maxRetries+1 attempts: rate limit responses
// are retried with backoff, anything else fails immediately. Exhausting the retries returns
// a RETRIES_EXHAUSTED error wrapping the last RATE_LIMIT or ABUSE_DETECTED error.
func (c *Client) Get(ctx context.Context, credential, path string, query url.Values, out any) (*Response, error) {
	var lastErr error
	// Every endpoint used here starts in the core bucket; retries follow what GitHub reports.
	resource := ResourceCore

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if delay := c.tracker.RecommendedDelay(resource); delay > 0 {
			c.logger.WithFields(logrus.Fields{
				"path":  path,
				"delay": delay.String(),
			}).Debug("Throttling GitHub request")
			if err := c.wait(ctx, delay); err != nil {
				return nil, err
			}
		}

		status, header, body, err := c.do(ctx, credential, path, query)
		if err != nil {
			return nil, NewGitHubError(0, "request failed", err)
		}
		resource = ResourceOf(header)
		c.tracker.Record(resource, header)
		metrics.GitHubRequestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()

		resp := &Response{StatusCode: status, Header: header}
		if status >= 200 && status < 300 {
			if out != nil && len(body) > 0 {
				if err := json.Unmarshal(body, out); err != nil {
					return resp, NewGitHubError(status, "failed to decode response", err)
				}
			}
			return resp, nil
		}

		ghErr := newResponseError(status, body)
		var (
			backoff time.Duration
			reason  string
		)
		switch classifyLimit(ghErr) {
		case limitPrimary:
			lastErr = apperrors.New(apperrors.ErrRateLimit, ghErr.Message, ghErr)
			backoff = ExponentialBackoff(attempt+1, c.baseBackoff)
			reason = "rate_limit"
		case limitSecondary:
			lastErr = apperrors.New(apperrors.ErrAbuseDetected, ghErr.Message, ghErr)
			if secs, ok := headerInt(header, "Retry-After"); ok && secs >= 0 {
				backoff = time.Duration(secs) * time.Second
			} else {
				backoff = ExponentialBackoff(attempt+1, c.abuseBaseBackoff)
			}
			reason = "secondary_rate_limit"
		default:
			return resp, ghErr
		}

		if attempt == c.maxRetries {
			break
		}

		metrics.GitHubRetriesTotal.WithLabelValues(reason).Inc()
		c.logger.WithFields(logrus.Fields{
			"path":    path,
			"status":  status,
			"attempt": attempt + 1,
			"backoff": backoff.String(),
			"reason":  reason,
		}).Warn("GitHub rate limit hit, backing off")

		if err := c.wait(ctx, backoff); err != nil {
			return nil, err
		}
	}

	return nil, apperrors.New(apperrors.ErrRetriesExhausted,
		fmt.Sprintf("GitHub request %s failed after %d attempts", path, c.maxRetries+1), lastErr)
}

func (c *Client) do(ctx context.Context, credential, path string, query url.Values) (int, http.Header, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient(credential).Do(req)
	if err != nil {
		return 0, nil, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("failed to read response body: %w", err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// httpClient authenticates with "Authorization: token <credential>".
func (c *Client) httpClient(credential string) *http.Client {
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{
				AccessToken: credential,
				TokenType:   "token",
			}),
			Base: c.transport,
		},
		Timeout: c.timeout,
	}
}

func (c *Client) wait(ctx context.Context, d time.Duration) error {
	metrics.GitHubThrottleSeconds.Observe(d.Seconds())
	return c.sleep(ctx, d)
}

func (c *Client) clockSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := c.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}
