package render

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

const defaultCacheTTL = 5 * time.Minute

// CachedProbe keeps the result of Renderer.Probe for a while so health checks
// do not spawn ffmpeg on every request.
type CachedProbe struct {
	renderer Renderer
	ttl      time.Duration
	logger   *slog.Logger

	mu     sync.RWMutex
	cached *Capabilities
}

func NewCachedProbe(renderer Renderer, logger *slog.Logger) *CachedProbe {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CachedProbe{
		renderer: renderer,
		ttl:      defaultCacheTTL,
		logger:   logger,
	}
}

// Get returns cached capabilities if fresh, otherwise re-probes.
func (p *CachedProbe) Get(ctx context.Context) (*Capabilities, error) {
	p.mu.RLock()
	if p.cached != nil && time.Since(p.cached.ProbedAt) < p.ttl {
		caps := p.cached
		p.mu.RUnlock()
		return caps, nil
	}
	p.mu.RUnlock()

	return p.Refresh(ctx)
}

// Peek returns the last probe without running a new one. It may be nil.
func (p *CachedProbe) Peek() *Capabilities {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cached
}

// Refresh probes regardless of cache freshness. On failure a stale result is
// returned when there is one.
func (p *CachedProbe) Refresh(ctx context.Context) (*Capabilities, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	caps, err := p.renderer.Probe(ctx)
	if err != nil {
		p.logger.Warn("ffmpeg probe failed", "error", err)
		if p.cached != nil {
			return p.cached, nil
		}
		return nil, err
	}

	p.cached = caps
	return caps, nil
}

func (p *CachedProbe) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}
