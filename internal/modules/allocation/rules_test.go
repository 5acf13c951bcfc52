package allocation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRulesFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadRules_EmptyPathReturnsDefaults(t *testing.T) {
	rules, err := LoadRules("")
	require.NoError(t, err)
	assert.Equal(t, DefaultRules(), rules)
}

func TestLoadRules_FromFile(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  max_per_stock_pct: 10
  max_per_category_pct: 25
  max_per_country_pct: 40
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, Rules{MaxPerStockPct: 10, MaxPerCategoryPct: 25, MaxPerCountryPct: 40}, rules)
}

func TestLoadRules_MissingFieldsBackfilled(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  max_per_stock_pct: 10
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Equal(t, 10.0, rules.MaxPerStockPct)
	assert.Equal(t, DefaultRules().MaxPerCategoryPct, rules.MaxPerCategoryPct)
	assert.Equal(t, DefaultRules().MaxPerCountryPct, rules.MaxPerCountryPct)
}

func TestLoadRules_ExplicitZeroDisablesCheck(t *testing.T) {
	path := writeRulesFile(t, `
rules:
  max_per_stock_pct: 0
`)

	rules, err := LoadRules(path)
	require.NoError(t, err)
	assert.Zero(t, rules.MaxPerStockPct, "zero disables the check instead of falling back to the default")
	assert.Equal(t, DefaultRules().MaxPerCategoryPct, rules.MaxPerCategoryPct)
	assert.Equal(t, DefaultRules().MaxPerCountryPct, rules.MaxPerCountryPct)
}

func TestLoadRules_MissingFileErrors(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "nope.yml"))
	assert.Error(t, err)
}

func TestLoadRules_MalformedFileErrors(t *testing.T) {
	path := writeRulesFile(t, "rules: [not: a: mapping\n")
	_, err := LoadRules(path)
	assert.Error(t, err)
}
