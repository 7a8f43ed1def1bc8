package geocode

import (
	"net/http"
	"time"

	"github.com/sells-group/visit-planner/internal/config"
	"github.com/sells-group/visit-planner/internal/db"
	"github.com/sells-group/visit-planner/internal/resilience"
)

// FromConfig builds the provider cascade described by cfg. The TIGER
// provider and the persistent cache need a Postgres pool; pass nil when the
// planner runs on SQLite. It returns nil when geocoding is disabled.
func FromConfig(cfg config.GeocodeConfig, pool db.Pool) *CascadeClient {
	if !cfg.Enabled {
		return nil
	}
	hc := httpClient(cfg)

	var providers []Provider
	if pool != nil && cfg.TigerMaxRating > 0 {
		providers = append(providers, NewTigerProvider(pool, cfg.TigerMaxRating))
	}
	if cfg.CensusEnabled {
		census := NewCensusProvider(hc, cfg.RateLimit)
		census.retry = retryFromConfig(cfg, "census")
		providers = append(providers, census)
	}
	if cfg.GoogleKey != "" {
		google := NewGoogleProvider(cfg.GoogleKey, hc, cfg.RateLimit)
		google.retry = retryFromConfig(cfg, "google")
		google.breaker = resilience.NewCircuitBreaker("google", resilience.CircuitBreakerConfig{
			FailureThreshold: cfg.BreakerThreshold,
			Cooldown:         time.Duration(cfg.BreakerCooldownSecs) * time.Second,
		})
		providers = append(providers, google)
	}

	ttl := time.Duration(cfg.CacheTTLHours) * time.Hour
	layers := Layered{NewMemoryCache(cfg.MemoryEntries, ttl)}
	if pool != nil {
		layers = append(layers, NewPGCache(pool, ttl))
	}

	return NewCascadeClient(providers,
		WithCache(layers),
		WithBatchConcurrency(cfg.Concurrency),
		WithAddressTimeout(time.Duration(cfg.TimeoutSecs)*time.Second),
	)
}

// TravelTimerFromConfig returns a DistanceMatrix when travel-time annotation
// is enabled and a Google key is configured, nil otherwise.
func TravelTimerFromConfig(cfg config.GeocodeConfig) *DistanceMatrix {
	if !cfg.TravelTimes || cfg.GoogleKey == "" {
		return nil
	}
	dm := NewDistanceMatrix(cfg.GoogleKey, httpClient(cfg), cfg.RateLimit)
	dm.retry = retryFromConfig(cfg, "google-distance-matrix")
	return dm
}

// retryFromConfig overrides the default retry policy with any configured
// attempts or base delay.
func retryFromConfig(cfg config.GeocodeConfig, service string) resilience.RetryConfig {
	r := resilience.DefaultRetryConfig(service)
	if cfg.RetryAttempts > 0 {
		r.MaxAttempts = cfg.RetryAttempts
	}
	if cfg.RetryBaseMS > 0 {
		r.BaseDelay = time.Duration(cfg.RetryBaseMS) * time.Millisecond
	}
	return r
}

func httpClient(cfg config.GeocodeConfig) *http.Client {
	timeout := 30 * time.Second
	if cfg.TimeoutSecs > 0 {
		timeout = time.Duration(cfg.TimeoutSecs) * time.Second
	}
	return &http.Client{Timeout: timeout}
}
