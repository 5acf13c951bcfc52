package portfolio

import "github.com/aristath/folio-tracker/internal/domain"

// HoldingView is a holding joined with its share lot and market price,
// the shape the allocation engine and the holdings endpoint consume.
type HoldingView struct {
	Holding         domain.Holding  `json:"holding"`
	PortfolioName   string          `json:"portfolio_name"`
	EffectiveShares float64         `json:"effective_shares"`
	Price           *float64        `json:"price"`          // base-currency price, nil when no market price exists
	Value           float64         `json:"value"`          // effective value (custom value wins over shares*price)
	Country         *string         `json:"country"`
}

// EffectiveValue computes the value of a holding: the user's custom
// total value when set, else effective shares times base-currency price.
func EffectiveValue(h domain.Holding, effectiveShares float64, basePrice *float64) float64 {
	if h.IsCustomValue && h.CustomTotalValue != nil {
		return *h.CustomTotalValue
	}
	if h.IsCustomValue && h.CustomPrice != nil {
		return effectiveShares * *h.CustomPrice
	}
	if basePrice != nil {
		return effectiveShares * *basePrice
	}
	return 0
}
