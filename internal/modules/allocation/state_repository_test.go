package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio-tracker/internal/database"
)

func newStateRepo(t *testing.T) (*StateRepository, int64) {
	t.Helper()
	db, err := database.NewInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	res, err := db.Exec("INSERT INTO accounts (username) VALUES ('alice')")
	require.NoError(t, err)
	accountID, err := res.LastInsertId()
	require.NoError(t, err)

	return NewStateRepository(db.Conn(), zerolog.Nop()), accountID
}

func TestStateRepository_GetUnknownReturnsNil(t *testing.T) {
	repo, accountID := newStateRepo(t)

	state, err := repo.Get(accountID, "builder")
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestStateRepository_SaveAndGet(t *testing.T) {
	repo, accountID := newStateRepo(t)

	saved := &BuilderState{
		TotalNetWorth:     100000,
		InvestableCapital: 25000,
		Portfolios: []PortfolioTarget{{
			PortfolioID:          1,
			Name:                 "Core",
			TargetWeightPct:      70,
			MinPositions:         5,
			PlaceholderWeightPct: 15,
			PositionWeights:      map[string]float64{"Apple": 40},
		}},
		Rules: &Rules{MaxPerStockPct: 10, MaxPerCategoryPct: 25, MaxPerCountryPct: 40},
	}
	require.NoError(t, repo.Save(accountID, "builder", saved))

	loaded, err := repo.Get(accountID, "builder")
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, saved, loaded)
}

func TestStateRepository_SaveOverwrites(t *testing.T) {
	repo, accountID := newStateRepo(t)

	require.NoError(t, repo.Save(accountID, "builder", &BuilderState{TotalNetWorth: 1}))
	require.NoError(t, repo.Save(accountID, "builder", &BuilderState{TotalNetWorth: 2}))

	loaded, err := repo.Get(accountID, "builder")
	require.NoError(t, err)
	assert.Equal(t, 2.0, loaded.TotalNetWorth)
}

func TestStateRepository_PagesAreIndependent(t *testing.T) {
	repo, accountID := newStateRepo(t)

	require.NoError(t, repo.Save(accountID, "builder", &BuilderState{TotalNetWorth: 1}))
	require.NoError(t, repo.Save(accountID, "review", &BuilderState{TotalNetWorth: 9}))

	builder, err := repo.Get(accountID, "builder")
	require.NoError(t, err)
	assert.Equal(t, 1.0, builder.TotalNetWorth)

	review, err := repo.Get(accountID, "review")
	require.NoError(t, err)
	assert.Equal(t, 9.0, review.TotalNetWorth)
}
