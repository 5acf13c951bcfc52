package allocation

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rulesFile is the YAML shape of the optional rules file. Pointer
// fields distinguish a limit left unset (falls back to the default)
// from an explicit zero (disables that check).
type rulesFile struct {
	Rules struct {
		MaxPerStockPct    *float64 `yaml:"max_per_stock_pct"`
		MaxPerCategoryPct *float64 `yaml:"max_per_category_pct"`
		MaxPerCountryPct  *float64 `yaml:"max_per_country_pct"`
	} `yaml:"rules"`
}

// LoadRules reads advisory limits from a YAML file. An empty path
// returns the defaults; a missing or malformed file is an error so a
// misconfigured deployment fails loudly instead of silently using the
// wrong limits.
func LoadRules(path string) (Rules, error) {
	if path == "" {
		return DefaultRules(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Rules{}, fmt.Errorf("failed to read rules file: %w", err)
	}

	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Rules{}, fmt.Errorf("failed to parse rules file: %w", err)
	}

	rules := DefaultRules()
	if f.Rules.MaxPerStockPct != nil {
		rules.MaxPerStockPct = *f.Rules.MaxPerStockPct
	}
	if f.Rules.MaxPerCategoryPct != nil {
		rules.MaxPerCategoryPct = *f.Rules.MaxPerCategoryPct
	}
	if f.Rules.MaxPerCountryPct != nil {
		rules.MaxPerCountryPct = *f.Rules.MaxPerCountryPct
	}

	return rules, nil
}
