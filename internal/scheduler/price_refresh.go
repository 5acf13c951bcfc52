package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/modules/prices"
)

// PriceRefreshJob refreshes the stored market price of every identifier
// any holding references. Per-identifier failures are logged, never
// fatal; a de-listed ticker must not stop the rest of the batch.
type PriceRefreshJob struct {
	repo    *prices.Repository
	updater *prices.Updater
	timeout time.Duration
	log     zerolog.Logger
}

// NewPriceRefreshJob creates a new price refresh job
func NewPriceRefreshJob(repo *prices.Repository, updater *prices.Updater, log zerolog.Logger) *PriceRefreshJob {
	return &PriceRefreshJob{
		repo:    repo,
		updater: updater,
		timeout: 10 * time.Minute,
		log:     log.With().Str("job", "price_refresh").Logger(),
	}
}

// Name returns the job name
func (j *PriceRefreshJob) Name() string {
	return "price_refresh"
}

// Run executes the refresh
func (j *PriceRefreshJob) Run() error {
	identifiers, err := j.repo.ListIdentifiersInUse()
	if err != nil {
		return err
	}
	if len(identifiers) == 0 {
		j.log.Debug().Msg("No identifiers in use, nothing to refresh")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	started := time.Now()
	failed := j.updater.UpdateBatch(ctx, identifiers)

	j.log.Info().
		Int("total", len(identifiers)).
		Int("failed", len(failed)).
		Dur("elapsed", time.Since(started)).
		Msg("Price refresh finished")

	if len(failed) > 0 {
		j.log.Warn().Strs("identifiers", failed).Msg("Some prices failed to refresh")
	}

	return nil
}
