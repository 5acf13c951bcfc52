package prices

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/ratelimit"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
	"github.com/aristath/folio-tracker/internal/domain"
)

// parallelThreshold is the batch size above which the worker pool kicks
// in. Smaller batches run sequentially, which is simpler to reason
// about and test.
const parallelThreshold = 20

// Updater batch-fetches prices and persists them in the base currency
type Updater struct {
	provider     quotes.Provider
	repo         *Repository
	rates        *RateCache
	baseCurrency string
	workers      int
	limiter      ratelimit.Limiter
	log          zerolog.Logger
}

// NewUpdater creates a new price updater. The limiter paces provider
// calls across all workers.
func NewUpdater(provider quotes.Provider, repo *Repository, rates *RateCache, baseCurrency string, workers int, log zerolog.Logger) *Updater {
	if workers < 1 {
		workers = 1
	}
	return &Updater{
		provider:     provider,
		repo:         repo,
		rates:        rates,
		baseCurrency: baseCurrency,
		workers:      workers,
		limiter:      ratelimit.New(10), // provider calls per second
		log:          log.With().Str("component", "price_updater").Logger(),
	}
}

// UpdateBatch fetches and persists prices for the given identifiers.
// Per-identifier failures are collected and returned, never fatal to
// the batch. Cancellation is cooperative: the context is checked
// between identifiers.
func (u *Updater) UpdateBatch(ctx context.Context, identifiers []string) []string {
	if len(identifiers) == 0 {
		return nil
	}

	if len(identifiers) < parallelThreshold {
		return u.updateSequential(ctx, identifiers)
	}
	return u.updateParallel(ctx, identifiers)
}

func (u *Updater) updateSequential(ctx context.Context, identifiers []string) []string {
	var failed []string
	for i, id := range identifiers {
		if ctx.Err() != nil {
			failed = append(failed, identifiers[i:]...)
			break
		}
		if err := u.updateOne(ctx, id); err != nil {
			u.log.Warn().Err(err).Str("identifier", id).Msg("Price update failed")
			failed = append(failed, id)
		}
	}
	sort.Strings(failed)
	return failed
}

func (u *Updater) updateParallel(ctx context.Context, identifiers []string) []string {
	jobs := make(chan string)
	var mu sync.Mutex
	var failed []string
	var wg sync.WaitGroup

	for i := 0; i < u.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range jobs {
				if err := u.updateOne(ctx, id); err != nil {
					u.log.Warn().Err(err).Str("identifier", id).Msg("Price update failed")
					mu.Lock()
					failed = append(failed, id)
					mu.Unlock()
				}
			}
		}()
	}

	for _, id := range identifiers {
		if ctx.Err() != nil {
			mu.Lock()
			failed = append(failed, id)
			mu.Unlock()
			continue
		}
		jobs <- id
	}
	close(jobs)
	wg.Wait()

	sort.Strings(failed)
	return failed
}

// updateOne fetches one quote, converts it to the base currency and
// upserts the price row
func (u *Updater) updateOne(ctx context.Context, identifier string) error {
	u.limiter.Take()

	quote, err := u.provider.FetchQuote(ctx, identifier)
	if err != nil {
		return err
	}

	rate := 1.0
	if u.rates != nil {
		rate, err = u.rates.GetRate(ctx, quote.Currency, u.baseCurrency)
		if err != nil {
			return err
		}
	}

	return u.repo.Upsert(domain.MarketPrice{
		Identifier:          identifier,
		Price:               quote.Price,
		Currency:            quote.Currency,
		PriceInBaseCurrency: quote.Price * rate,
		Country:             quote.Country,
		LastUpdated:         time.Now().UTC(),
	})
}
