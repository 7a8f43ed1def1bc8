package geocode

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Provider represents a single geocoding backend.
type Provider interface {
	Name() string
	Geocode(ctx context.Context, addr AddressInput) (*Result, error)
	Available() bool
}

// CascadeClient tries geocode providers in order until one matches.
type CascadeClient struct {
	providers        []Provider
	cache            Cache
	batchConcurrency int
	addressTimeout   time.Duration
}

// CascadeOption configures the CascadeClient.
type CascadeOption func(*CascadeClient)

// WithCache stores matches and misses so repeated runs skip the providers.
func WithCache(c Cache) CascadeOption {
	return func(cc *CascadeClient) {
		cc.cache = c
	}
}

// WithBatchConcurrency sets the max parallel calls for BatchGeocode.
func WithBatchConcurrency(n int) CascadeOption {
	return func(c *CascadeClient) {
		if n > 0 {
			c.batchConcurrency = n
		}
	}
}

// WithAddressTimeout bounds each address lookup of BatchGeocode, across all
// providers. Zero means no bound beyond the caller's context.
func WithAddressTimeout(d time.Duration) CascadeOption {
	return func(c *CascadeClient) {
		c.addressTimeout = d
	}
}

// NewCascadeClient creates a CascadeClient that tries providers in order.
func NewCascadeClient(providers []Provider, opts ...CascadeOption) *CascadeClient {
	c := &CascadeClient{
		providers:        providers,
		batchConcurrency: 10,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Geocode implements Client by trying each provider in order. A provider
// error only moves on to the next provider. When no provider could answer,
// because each one failed or ctx ended, the last error is returned.
func (c *CascadeClient) Geocode(ctx context.Context, addr AddressInput) (*Result, error) {
	key := cacheKey(addr)

	if c.cache != nil {
		cached, err := c.cache.Get(ctx, key)
		if err != nil {
			zap.L().Debug("cascade: cache lookup failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	var lastResult *Result
	var lastErr error
	var providerErrs int
	for _, p := range c.providers {
		if !p.Available() {
			continue
		}
		result, err := p.Geocode(ctx, addr)
		if err != nil {
			providerErrs++
			lastErr = err
			zap.L().Debug("cascade: provider error, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err),
			)
			continue
		}
		if result != nil && result.Matched {
			c.store(ctx, key, result)
			return result, nil
		}
		if result != nil {
			lastResult = result
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "geocode: cascade")
	}
	if providerErrs > 0 && lastResult == nil {
		return nil, eris.Wrapf(lastErr, "geocode: %d provider(s) failed", providerErrs)
	}

	noMatch := &Result{Matched: false, Source: "cascade"}
	if lastResult != nil {
		noMatch.Source = lastResult.Source
		noMatch.Rating = lastResult.Rating
	}
	// A miss caused by provider outages is not remembered.
	if providerErrs == 0 {
		c.store(ctx, key, noMatch)
	}
	return noMatch, nil
}

func (c *CascadeClient) store(ctx context.Context, key string, r *Result) {
	if c.cache == nil {
		return
	}
	if err := c.cache.Put(ctx, key, r); err != nil {
		zap.L().Debug("cascade: cache store failed", zap.Error(err))
	}
}

// BatchGeocode implements Client by geocoding addresses in parallel. Each
// lookup gets its own timeout; one failure never cancels the others.
func (c *CascadeClient) BatchGeocode(ctx context.Context, addrs []AddressInput) ([]Result, error) {
	if len(addrs) == 0 {
		return nil, nil
	}

	for i := range addrs {
		if addrs[i].ID == "" {
			addrs[i].ID = fmt.Sprintf("%d", i)
		}
	}

	results := make([]Result, len(addrs))

	var eg errgroup.Group
	eg.SetLimit(c.batchConcurrency)

	for i, addr := range addrs {
		eg.Go(func() error {
			actx := ctx
			if c.addressTimeout > 0 {
				var cancel context.CancelFunc
				actx, cancel = context.WithTimeout(ctx, c.addressTimeout)
				defer cancel()
			}

			r, gcErr := c.Geocode(actx, addr)
			switch {
			case gcErr != nil:
				results[i] = Result{Matched: false, Source: "cascade", Err: gcErr}
			case r == nil:
				results[i] = Result{Matched: false, Source: "cascade"}
			default:
				results[i] = *r
			}
			return nil
		})
	}

	_ = eg.Wait()
	return results, nil
}
