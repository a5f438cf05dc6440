package scanning

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"
)

// defaultMaxWait bounds how long a request queues for the limiter.
const defaultMaxWait = 2 * time.Minute

// Limited wraps a Scanner so recognition requests stay within a per-minute
// quota, as hosted model APIs enforce one.
type Limited struct {
	scanner Scanner
	limiter *rate.Limiter
	maxWait time.Duration
}

// NewLimited allows perMinute requests per minute through to scanner. A
// non-positive perMinute disables the limit.
func NewLimited(scanner Scanner, perMinute int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{
		scanner: scanner,
		limiter: rate.NewLimiter(limit, 1),
		maxWait: defaultMaxWait,
	}
}

// RecognizeText waits for the limiter, then delegates
func (l *Limited) RecognizeText(imageData []byte, contentType string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), l.maxWait)
	defer cancel()

	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("waiting for rate limit: %w", err)
	}
	return l.scanner.RecognizeText(imageData, contentType)
}

// Close closes the wrapped scanner
func (l *Limited) Close() error {
	return l.scanner.Close()
}
