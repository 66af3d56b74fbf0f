package github

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/Kamar-Folarin/starred-sync/internal/metrics"
)

const (
	// ResourceCore is GitHub's quota bucket for the REST endpoints used here.
	ResourceCore = "core"

	lowQuotaWarnRatio  = 0.10
	lowQuotaSpaceRatio = 0.05
	maxSpacingDelay    = time.Second
	maxBackoff         = 60 * time.Second
	backoffMultiplier  = 1.5
)

// RateLimitInfo holds the last quota GitHub reported for one resource
type RateLimitInfo struct {
	Limit     int
	Remaining int
	Used      int
	ResetTime time.Time
	// RetryAfter is set when GitHub asked for an explicit cool-down.
	RetryAfter time.Time
}

// RateLimitTracker records GitHub quota headers per resource and recommends how long to
// wait before the next request. It never sleeps itself. Safe for concurrent use.
type RateLimitTracker struct {
	mu     sync.Mutex
	limits map[string]RateLimitInfo
	clock  clockwork.Clock
	logger *logrus.Logger
}

func NewRateLimitTracker(clock clockwork.Clock, logger *logrus.Logger) *RateLimitTracker {
	return &RateLimitTracker{
		limits: make(map[string]RateLimitInfo),
		clock:  clock,
		logger: logger,
	}
}

// ResourceOf returns the quota bucket a response was charged to, from X-RateLimit-Resource.
func ResourceOf(header http.Header) string {
	if r := header.Get("X-RateLimit-Resource"); r != "" {
		return r
	}
	return ResourceCore
}

// Record updates the resource's quota from response headers. A snapshot is only replaced
// when both the limit and the reset are present; Retry-After is honoured on its own.
func (t *RateLimitTracker) Record(resource string, header http.Header) {
	if resource == "" {
		resource = ResourceCore
	}

	limit, hasLimit := headerInt(header, "X-RateLimit-Limit")
	remaining, hasRemaining := headerInt(header, "X-RateLimit-Remaining")
	reset, hasReset := headerInt(header, "X-RateLimit-Reset")
	used, _ := headerInt(header, "X-RateLimit-Used")
	retryAfter, hasRetryAfter := headerInt(header, "Retry-After")

	t.mu.Lock()
	info := t.limits[resource]
	if hasLimit && hasReset {
		info.Limit = limit
		info.ResetTime = time.Unix(int64(reset), 0)
		info.Used = used
		if hasRemaining {
			info.Remaining = remaining
		} else {
			info.Remaining = limit
		}
	}
	if hasRetryAfter && retryAfter >= 0 {
		info.RetryAfter = t.clock.Now().Add(time.Duration(retryAfter) * time.Second)
	}
	t.limits[resource] = info
	t.mu.Unlock()

	if hasLimit && hasReset {
		metrics.GitHubRateLimitRemaining.WithLabelValues(resource).Set(float64(info.Remaining))
		if float64(info.Remaining) < float64(info.Limit)*lowQuotaWarnRatio {
			t.logger.WithFields(logrus.Fields{
				"resource":  resource,
				"remaining": info.Remaining,
				"limit":     info.Limit,
				"reset":     info.ResetTime.UTC().Format(time.RFC3339),
			}).Warn("GitHub rate limit running low")
		}
	}
}

// RecommendedDelay returns how long to wait before the next request against resource.
func (t *RateLimitTracker) RecommendedDelay(resource string) time.Duration {
	if resource == "" {
		resource = ResourceCore
	}

	t.mu.Lock()
	info, ok := t.limits[resource]
	t.mu.Unlock()
	if !ok {
		return 0
	}

	now := t.clock.Now()
	if info.RetryAfter.After(now) {
		return info.RetryAfter.Sub(now)
	}
	if info.Limit == 0 {
		return 0
	}

	untilReset := info.ResetTime.Sub(now)
	if untilReset < 0 {
		untilReset = 0
	}

	if info.Remaining <= 0 {
		return untilReset
	}
	if float64(info.Remaining) < float64(info.Limit)*lowQuotaSpaceRatio {
		spacing := untilReset / time.Duration(info.Remaining+1)
		if spacing > maxSpacingDelay {
			spacing = maxSpacingDelay
		}
		return spacing
	}
	return 0
}

// Snapshot returns a copy of the resource's last recorded quota.
func (t *RateLimitTracker) Snapshot(resource string) (RateLimitInfo, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	info, ok := t.limits[resource]
	return info, ok
}

// ExponentialBackoff returns base * 1.5^attempt, capped at 60s. A non-positive base means 1s.
func ExponentialBackoff(attempt int, base time.Duration) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if attempt < 0 {
		attempt = 0
	}
	d := float64(base) * math.Pow(backoffMultiplier, float64(attempt))
	if d >= float64(maxBackoff) || math.IsInf(d, 0) || math.IsNaN(d) {
		return maxBackoff
	}
	return time.Duration(d)
}

func headerInt(header http.Header, key string) (int, bool) {
	v := header.Get(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}
