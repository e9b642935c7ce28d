package media

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const defaultCacheTTL = 10 * time.Minute

// CachedProber remembers probe results per source for a TTL, so re-adding
// the same upload does not spawn another ffprobe.
type CachedProber struct {
	prober Prober
	ttl    time.Duration
	logger *slog.Logger

	mu      sync.RWMutex
	results map[string]*ProbeResult
}

func NewCachedProber(p Prober, logger *slog.Logger) *CachedProber {
	return &CachedProber{
		prober:  p,
		ttl:     defaultCacheTTL,
		logger:  logger,
		results: make(map[string]*ProbeResult),
	}
}

func (c *CachedProber) Probe(ctx context.Context, source string) (*ProbeResult, error) {
	c.mu.RLock()
	res, ok := c.results[source]
	c.mu.RUnlock()
	if ok && time.Since(res.ProbedAt) < c.ttl {
		cp := *res
		return &cp, nil
	}

	res, err := c.prober.Probe(ctx, source)
	if err != nil {
		c.logger.Warn("media probe failed", "error", err)
		return nil, err
	}
	if res.ProbedAt.IsZero() {
		res.ProbedAt = time.Now()
	}

	c.mu.Lock()
	c.results[source] = res
	c.mu.Unlock()
	cp := *res
	return &cp, nil
}

// Invalidate forgets every cached result.
func (c *CachedProber) Invalidate() {
	c.mu.Lock()
	c.results = make(map[string]*ProbeResult)
	c.mu.Unlock()
}
