package prices

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
)

// fakeBatchProvider serves a flat price for every symbol except the ones
// told to fail. Safe for concurrent use by the worker pool.
type fakeBatchProvider struct {
	mu      sync.Mutex
	failing map[string]bool
	calls   int
}

func (p *fakeBatchProvider) FetchQuote(_ context.Context, identifier string) (*quotes.Quote, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.failing[identifier] {
		return nil, fmt.Errorf("%s: %w", identifier, quotes.ErrNoQuote)
	}
	return &quotes.Quote{Price: 100, Currency: "EUR"}, nil
}

func (p *fakeBatchProvider) FetchRate(context.Context, string, string) (float64, error) {
	return 1.0, nil
}

func newTestUpdater(t *testing.T, provider quotes.Provider) (*Updater, *Repository) {
	t.Helper()
	db := newRateTestDB(t)
	repo := NewRepository(db.Conn(), zerolog.Nop())
	rates := NewRateCache(db.Conn(), provider, zerolog.Nop())
	return NewUpdater(provider, repo, rates, "EUR", 4, zerolog.Nop()), repo
}

func TestUpdateBatch_EmptyBatch(t *testing.T) {
	updater, _ := newTestUpdater(t, &fakeBatchProvider{})
	assert.Nil(t, updater.UpdateBatch(context.Background(), nil))
}

func TestUpdateBatch_PersistsPrices(t *testing.T) {
	provider := &fakeBatchProvider{}
	updater, repo := newTestUpdater(t, provider)

	failed := updater.UpdateBatch(context.Background(), []string{"AAPL", "MSFT"})
	assert.Empty(t, failed)

	for _, id := range []string{"AAPL", "MSFT"} {
		mp, err := repo.Get(id)
		require.NoError(t, err)
		require.NotNil(t, mp)
		assert.Equal(t, 100.0, mp.Price)
		assert.Equal(t, 100.0, mp.PriceInBaseCurrency)
	}
}

func TestUpdateBatch_CollectsFailuresWithoutAborting(t *testing.T) {
	provider := &fakeBatchProvider{failing: map[string]bool{"DEAD": true}}
	updater, repo := newTestUpdater(t, provider)

	failed := updater.UpdateBatch(context.Background(), []string{"AAPL", "DEAD", "MSFT"})
	assert.Equal(t, []string{"DEAD"}, failed)

	mp, err := repo.Get("MSFT")
	require.NoError(t, err)
	assert.NotNil(t, mp, "identifiers after a failure still get updated")
}

func TestUpdateBatch_LargeBatchUsesWorkerPool(t *testing.T) {
	provider := &fakeBatchProvider{failing: map[string]bool{"DEAD1": true, "DEAD2": true}}
	updater, repo := newTestUpdater(t, provider)

	identifiers := []string{"DEAD1", "DEAD2"}
	for i := 0; i < parallelThreshold; i++ {
		identifiers = append(identifiers, fmt.Sprintf("SYM%02d", i))
	}

	failed := updater.UpdateBatch(context.Background(), identifiers)
	assert.Equal(t, []string{"DEAD1", "DEAD2"}, failed, "failures come back sorted")
	assert.Equal(t, len(identifiers), provider.calls)

	mp, err := repo.Get("SYM00")
	require.NoError(t, err)
	assert.NotNil(t, mp)
}

func TestUpdateBatch_CancelledContextStopsEarly(t *testing.T) {
	provider := &fakeBatchProvider{}
	updater, _ := newTestUpdater(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	failed := updater.UpdateBatch(ctx, []string{"AAPL", "MSFT", "GOOG"})
	assert.Equal(t, []string{"AAPL", "GOOG", "MSFT"}, failed,
		"everything unprocessed at cancellation is reported as failed")
	assert.Zero(t, provider.calls)
}
