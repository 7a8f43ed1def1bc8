package geocode

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/visit-planner/internal/db"
)

// Cache stores geocode results by normalized address key. Get returns nil
// without error on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Result, error)
	Put(ctx context.Context, key string, r *Result) error
}

// cacheKey returns SHA-256 hex of the normalized address. Case, surrounding
// whitespace and diacritics do not change the key.
func cacheKey(addr AddressInput) string {
	normalized := fmt.Sprintf("%s|%s|%s|%s|%s",
		foldKeyPart(addr.Street),
		foldKeyPart(addr.City),
		foldKeyPart(addr.State),
		foldKeyPart(addr.ZipCode),
		foldKeyPart(addr.Country),
	)
	h := sha256.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", h)
}

func foldKeyPart(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// PGCache persists results in planner.geocode_cache.
type PGCache struct {
	pool db.Pool
	ttl  time.Duration
}

// NewPGCache creates a PGCache. Entries older than ttl are ignored; a zero
// ttl keeps entries forever.
func NewPGCache(pool db.Pool, ttl time.Duration) *PGCache {
	return &PGCache{pool: pool, ttl: ttl}
}

// Get implements Cache.
func (c *PGCache) Get(ctx context.Context, key string) (*Result, error) {
	query := `SELECT latitude, longitude, source, quality, matched FROM planner.geocode_cache WHERE address_hash = $1`
	args := []any{key}
	if c.ttl > 0 {
		query += ` AND cached_at > $2`
		args = append(args, time.Now().Add(-c.ttl).UTC())
	}

	var r Result
	err := c.pool.QueryRow(ctx, query, args...).Scan(&r.Latitude, &r.Longitude, &r.Source, &r.Quality, &r.Matched)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "geocode: cache lookup")
	}
	return &r, nil
}

// Put implements Cache.
func (c *PGCache) Put(ctx context.Context, key string, r *Result) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO planner.geocode_cache (address_hash, latitude, longitude, source, quality, matched, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())
		ON CONFLICT (address_hash) DO UPDATE SET
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			source = EXCLUDED.source,
			quality = EXCLUDED.quality,
			matched = EXCLUDED.matched,
			cached_at = now()`,
		key, r.Latitude, r.Longitude, r.Source, r.Quality, r.Matched,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}

// MemoryCache is a concurrent-safe LRU cache with TTL expiration.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]memoryEntry
	order      []string // LRU order: front=oldest, back=newest
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
}

type memoryEntry struct {
	result    Result
	createdAt time.Time
}

// NewMemoryCache creates a MemoryCache with the given capacity and TTL.
func NewMemoryCache(maxEntries int, ttl time.Duration) *MemoryCache {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryCache{
		entries:    make(map[string]memoryEntry),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) (*Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.removeFromOrder(key)
		return nil, nil
	}

	c.removeFromOrder(key)
	c.order = append(c.order, key)
	r := entry.result
	return &r, nil
}

// Put implements Cache, evicting the least recently used entry at capacity.
func (c *MemoryCache) Put(_ context.Context, key string, r *Result) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[key]; ok {
		c.removeFromOrder(key)
	} else {
		for len(c.entries) >= c.maxEntries && len(c.order) > 0 {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = memoryEntry{result: *r, createdAt: c.now()}
	c.order = append(c.order, key)
	return nil
}

func (c *MemoryCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) removeFromOrder(key string) {
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// Layered checks caches in order and back-fills the faster layers on a hit
// further down. Puts go to every layer.
type Layered []Cache

// Get implements Cache.
func (l Layered) Get(ctx context.Context, key string) (*Result, error) {
	for i, c := range l {
		r, err := c.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if r == nil {
			continue
		}
		for _, faster := range l[:i] {
			_ = faster.Put(ctx, key, r)
		}
		return r, nil
	}
	return nil, nil
}

// Put implements Cache.
func (l Layered) Put(ctx context.Context, key string, r *Result) error {
	for _, c := range l {
		if err := c.Put(ctx, key, r); err != nil {
			return err
		}
	}
	return nil
}
