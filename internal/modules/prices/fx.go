package prices

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
)

// RateTTL is how long a fetched exchange rate stays fresh. Rates are
// refreshed at most once per day.
const RateTTL = 24 * time.Hour

// RateCache converts currencies to the base currency with a 24h cached
// rate, persisted so restarts don't refetch. Explicitly injectable with
// Clear/Invalidate so tests stay deterministic.
type RateCache struct {
	mu       sync.Mutex
	memory   map[string]cachedRate
	db       *sql.DB
	provider quotes.Provider
	now      func() time.Time
	log      zerolog.Logger
}

type cachedRate struct {
	rate    float64
	fetched time.Time
}

// NewRateCache creates a new exchange-rate cache
func NewRateCache(db *sql.DB, provider quotes.Provider, log zerolog.Logger) *RateCache {
	return &RateCache{
		memory:   make(map[string]cachedRate),
		db:       db,
		provider: provider,
		now:      func() time.Time { return time.Now().UTC() },
		log:      log.With().Str("component", "rate_cache").Logger(),
	}
}

// GetRate returns the conversion rate from one currency to another.
// Same-currency requests short-circuit to 1.0 without any lookup.
func (c *RateCache) GetRate(ctx context.Context, from, to string) (float64, error) {
	if from == to || from == "" {
		return 1.0, nil
	}

	key := from + ":" + to

	c.mu.Lock()
	defer c.mu.Unlock()

	if cached, ok := c.memory[key]; ok && c.now().Sub(cached.fetched) <= RateTTL {
		return cached.rate, nil
	}

	if rate, fetched, ok := c.loadStored(from, to); ok && c.now().Sub(fetched) <= RateTTL {
		c.memory[key] = cachedRate{rate: rate, fetched: fetched}
		return rate, nil
	}

	rate, err := c.provider.FetchRate(ctx, from, to)
	if err != nil {
		// A stale stored rate beats no rate at all.
		if rate, _, ok := c.loadStored(from, to); ok {
			c.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Rate fetch failed, using stale stored rate")
			return rate, nil
		}
		return 0, fmt.Errorf("failed to fetch rate %s->%s: %w", from, to, err)
	}

	now := c.now()
	c.memory[key] = cachedRate{rate: rate, fetched: now}
	c.store(from, to, rate, now)

	return rate, nil
}

// Invalidate drops one currency pair from the in-memory cache
func (c *RateCache) Invalidate(from, to string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.memory, from+":"+to)
}

// Clear drops the entire in-memory cache
func (c *RateCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.memory = make(map[string]cachedRate)
}

func (c *RateCache) loadStored(from, to string) (float64, time.Time, bool) {
	if c.db == nil {
		return 0, time.Time{}, false
	}

	var rate float64
	var lastUpdated string
	err := c.db.QueryRow(
		"SELECT rate, last_updated FROM exchange_rates WHERE from_currency = ? AND to_currency = ?",
		from, to,
	).Scan(&rate, &lastUpdated)
	if err != nil {
		return 0, time.Time{}, false
	}

	t, err := time.Parse(time.RFC3339, lastUpdated)
	if err != nil {
		return 0, time.Time{}, false
	}
	return rate, t, true
}

func (c *RateCache) store(from, to string, rate float64, fetched time.Time) {
	if c.db == nil {
		return
	}

	_, err := c.db.Exec(`
		INSERT INTO exchange_rates (from_currency, to_currency, rate, last_updated)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(from_currency, to_currency) DO UPDATE SET
		    rate = excluded.rate, last_updated = excluded.last_updated`,
		from, to, rate, fetched.Format(time.RFC3339),
	)
	if err != nil {
		c.log.Warn().Err(err).Str("from", from).Str("to", to).Msg("Failed to persist exchange rate")
	}
}
