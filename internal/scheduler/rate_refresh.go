package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/modules/prices"
)

// RateRefreshJob re-fetches the exchange rates for every currency the
// stored market prices use, so conversions to the base currency never
// wait on a provider call during a page load.
type RateRefreshJob struct {
	db           *sql.DB
	rates        *prices.RateCache
	baseCurrency string
	log          zerolog.Logger
}

// NewRateRefreshJob creates a new rate refresh job
func NewRateRefreshJob(db *sql.DB, rates *prices.RateCache, baseCurrency string, log zerolog.Logger) *RateRefreshJob {
	return &RateRefreshJob{
		db:           db,
		rates:        rates,
		baseCurrency: baseCurrency,
		log:          log.With().Str("job", "rate_refresh").Logger(),
	}
}

// Name returns the job name
func (j *RateRefreshJob) Name() string {
	return "rate_refresh"
}

// Run executes the refresh
func (j *RateRefreshJob) Run() error {
	rows, err := j.db.Query("SELECT DISTINCT currency FROM market_prices WHERE currency != ''")
	if err != nil {
		return fmt.Errorf("failed to query currencies in use: %w", err)
	}
	defer rows.Close()

	var currencies []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return fmt.Errorf("failed to scan currency: %w", err)
		}
		if c != j.baseCurrency {
			currencies = append(currencies, c)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating currencies: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	refreshed := 0
	for _, currency := range currencies {
		// Drop the in-memory entry so GetRate re-checks the stored
		// rate's age and re-fetches anything past its TTL.
		j.rates.Invalidate(currency, j.baseCurrency)
		if _, err := j.rates.GetRate(ctx, currency, j.baseCurrency); err != nil {
			j.log.Warn().Err(err).Str("currency", currency).Msg("Rate refresh failed")
			continue
		}
		refreshed++
	}

	j.log.Info().
		Int("currencies", len(currencies)).
		Int("refreshed", refreshed).
		Msg("Rate refresh finished")

	return nil
}
