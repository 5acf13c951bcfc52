package allocation

import (
	"fmt"

	"github.com/aristath/folio-tracker/internal/modules/portfolio"
)

// ComputeCapacity reports, per category and per country, how much more
// can be invested before the advisory limit is reached. Remaining is
// negative when already over the limit; over-allocation is flagged, not
// clamped away.
func (s *Service) ComputeCapacity(holdings []portfolio.HoldingView, rules Rules) *CapacityReport {
	var totalValue float64
	byCategory := make(map[string]float64)
	byCountry := make(map[string]float64)

	for _, hv := range holdings {
		totalValue += hv.Value

		category := UncategorizedCategory
		if hv.Holding.Category != nil && *hv.Holding.Category != "" {
			category = *hv.Holding.Category
		}
		byCategory[category] += hv.Value

		if hv.Country != nil && *hv.Country != "" {
			byCountry[*hv.Country] += hv.Value
		}
	}

	report := &CapacityReport{TotalValue: totalValue}
	report.Categories = capacities(byCategory, rules.MaxPerCategoryPct, totalValue)
	report.Countries = capacities(byCountry, rules.MaxPerCountryPct, totalValue)

	return report
}

func capacities(invested map[string]float64, maxPct, totalValue float64) []Capacity {
	if maxPct <= 0 {
		return nil
	}

	maxAllowed := maxPct / 100 * totalValue

	result := make([]Capacity, 0, len(invested))
	for _, name := range sortedKeys(invested) {
		c := Capacity{
			Name:       name,
			Invested:   invested[name],
			MaxAllowed: maxAllowed,
			Remaining:  maxAllowed - invested[name],
		}
		if c.Remaining < 0 {
			c.Message = fmt.Sprintf("%q is over-allocated by %s", name, formatEUR(-c.Remaining))
		}
		result = append(result, c)
	}

	return result
}
