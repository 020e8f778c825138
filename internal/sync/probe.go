package sync

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/imroc/req/v3"
	"go.uber.org/zap"

	"github.com/merci1994dz/appdreamer-creator/internal/config"
	"github.com/merci1994dz/appdreamer-creator/internal/metrics"
)

// DefaultProbeTimeout bounds a single source probe.
const DefaultProbeTimeout = 5 * time.Second

// Source is a remote catalog endpoint.
type Source = config.Source

// ErrSourceUnavailable is returned when a source cannot be reached.
var ErrSourceUnavailable = errors.New("sync: source unavailable")

// ProberOptions configures an HTTPProber.
type ProberOptions struct {
	Timeout  time.Duration
	CacheTTL time.Duration
	Skew     *SkewTracker
	Tokens   TokenProvider
}

// HTTPProber finds the first reachable source in priority order.
type HTTPProber struct {
	logger  *zap.Logger
	sources []Source
	client  *req.Client
	timeout time.Duration
	ttl     time.Duration
	skew    *SkewTracker
	tokens  TokenProvider
	cache   *ristretto.Cache
}

// NewHTTPProber constructs a prober over sources.
func NewHTTPProber(logger *zap.Logger, sources []Source, opts ProberOptions) (*HTTPProber, error) {
	if logger == nil {
		return nil, errors.New("sync: logger is required")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}

	p := &HTTPProber{
		logger:  logger,
		sources: append([]Source(nil), sources...),
		client:  newHTTPClient(timeout, 0),
		timeout: timeout,
		ttl:     opts.CacheTTL,
		skew:    opts.Skew,
		tokens:  opts.Tokens,
	}
	if opts.CacheTTL > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 1e3,
			MaxCost:     1 << 10,
			BufferItems: 64,
		})
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	return p, nil
}

// Probe returns the first source that answers, or false when none does. The
// result is a hint; callers must not treat an empty result as fatal.
func (p *HTTPProber) Probe(ctx context.Context) (*Source, bool) {
	for i := range p.sources {
		src := p.sources[i]
		if up, cached := p.cached(src); cached {
			if up {
				return &src, true
			}
			continue
		}

		err := p.probeOne(ctx, src)
		if err == nil {
			p.remember(src, true)
			return &src, true
		}
		// a cancelled caller says nothing about the source
		if ctx.Err() != nil {
			return nil, false
		}
		p.remember(src, false)
		metrics.ProbeFailures.WithLabelValues(src.Name).Inc()
		p.logger.Debug("source probe failed", zap.String("source", src.Name), zap.Error(err))
	}
	return nil, false
}

func (p *HTTPProber) probeOne(ctx context.Context, src Source) error {
	target := src.ProbeURL
	if target == "" {
		target = src.URL
	}

	probeCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	r := p.client.R().SetContext(probeCtx)
	authorize(probeCtx, r, p.tokens, src)
	sent := time.Now()
	resp, err := r.Head(target)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrSourceUnavailable, src.Name, err)
	}
	if resp.GetStatusCode() >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %s: HTTP %d", ErrSourceUnavailable, src.Name, resp.GetStatusCode())
	}

	if p.skew != nil {
		if served, err := http.ParseTime(resp.GetHeader("Date")); err == nil {
			// midpoint of the round trip approximates when the server stamped Date
			p.skew.Observe(served, sent.Add(time.Since(sent)/2))
		}
	}
	return nil
}

func (p *HTTPProber) cached(src Source) (up bool, ok bool) {
	if p.cache == nil {
		return false, false
	}
	val, found := p.cache.Get(src.URL)
	if !found {
		return false, false
	}
	up, ok = val.(bool)
	return up, ok
}

func (p *HTTPProber) remember(src Source, up bool) {
	if p.cache == nil {
		return
	}
	p.cache.SetWithTTL(src.URL, up, 1, p.ttl)
	p.cache.Wait()
}

// Close releases the probe cache.
func (p *HTTPProber) Close() {
	if p.cache != nil {
		p.cache.Close()
	}
}
