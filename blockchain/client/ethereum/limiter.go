package ethereum

import (
	"context"
	"errors"
	"strings"

	"hashauth/internal/metrics"

	geth "github.com/ethereum/go-ethereum"
	"golang.org/x/time/rate"
)

// limiter throttles node calls with a token bucket. A nil *limiter never waits.
type limiter struct {
	bucket *rate.Limiter
}

func newLimiter(rps float64, burst int) *limiter {
	if rps <= 0 {
		return nil
	}
	return &limiter{bucket: rate.NewLimiter(rate.Limit(rps), burst)}
}

// Wait blocks until one call is allowed or ctx is done.
func (l *limiter) Wait(ctx context.Context) error {
	if l == nil {
		return nil
	}
	if l.bucket.Tokens() < 1 {
		metrics.ChainRateLimitWaits.Inc()
	}
	return l.bucket.Wait(ctx)
}

// classifyCall maps a node call error to a metric status label.
func classifyCall(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, geth.NotFound):
		return "not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case isReverted(err):
		return "reverted"
	}
	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "429") || strings.Contains(lower, "rate limit") || strings.Contains(lower, "too many requests"):
		return "rate_limited"
	case strings.Contains(lower, "connection refused") || strings.Contains(lower, "no such host") || strings.Contains(lower, "eof"):
		return "connection"
	default:
		return "error"
	}
}
