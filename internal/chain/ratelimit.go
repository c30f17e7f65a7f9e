package chain

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"

	deployerr "github.com/mrz1836/ethdeploy/pkg/errors"
)

// RateLimiter throttles RPC calls per node host with a token bucket.
// Several clients pointing at the same host share one bucket.
type RateLimiter struct {
	limiters   map[string]*rate.Limiter
	mu         sync.RWMutex
	rateLimit  rate.Limit
	burstLimit int
}

// NewRateLimiter creates a rate limiter allowing ratePerSecond requests with
// the given burst. A non-positive rate disables limiting.
func NewRateLimiter(ratePerSecond float64, burst int) *RateLimiter {
	limit := rate.Limit(ratePerSecond)
	if ratePerSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters:   make(map[string]*rate.Limiter),
		rateLimit:  limit,
		burstLimit: burst,
	}
}

// DefaultRateLimiter returns a limiter of 10 requests/second with a burst of 20.
func DefaultRateLimiter() *RateLimiter {
	return NewRateLimiter(10, 20)
}

// EndpointKey returns the bucket key for an RPC URL: its lowercased host.
// Unparseable URLs are keyed by the raw string.
func EndpointKey(rpcURL string) string {
	u, err := url.Parse(rpcURL)
	if err != nil || u.Host == "" {
		return rpcURL
	}
	return strings.ToLower(u.Host)
}

// Allow reports whether a request to the endpoint may proceed now.
func (r *RateLimiter) Allow(endpoint string) bool {
	return r.getLimiter(endpoint).Allow()
}

// Wait blocks until a request to the endpoint is allowed or ctx is done.
func (r *RateLimiter) Wait(ctx context.Context, endpoint string) error {
	if err := r.getLimiter(endpoint).Wait(ctx); err != nil {
		return deployerr.WithDetails(deployerr.WithCause(deployerr.ErrNetworkTransient, err), map[string]string{
			"endpoint": endpoint,
			"reason":   "rate limit wait aborted",
		})
	}
	return nil
}

// getLimiter returns the limiter for the endpoint, creating one if needed.
func (r *RateLimiter) getLimiter(endpoint string) *rate.Limiter {
	r.mu.RLock()
	limiter, exists := r.limiters[endpoint]
	r.mu.RUnlock()

	if exists {
		return limiter
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if limiter, exists = r.limiters[endpoint]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(r.rateLimit, r.burstLimit)
	r.limiters[endpoint] = limiter
	return limiter
}
