package allocation

// MissingPositionsCategory is the synthetic category that carries
// placeholder slots for holdings the user hasn't purchased yet.
const MissingPositionsCategory = "Missing Positions"

// UncategorizedCategory groups holdings without a category tag
const UncategorizedCategory = "Uncategorized"

// Rules are the advisory concentration limits. Violations are computed
// and surfaced but never block a plan.
type Rules struct {
	MaxPerStockPct    float64 `json:"max_per_stock_pct" yaml:"max_per_stock_pct"`
	MaxPerCategoryPct float64 `json:"max_per_category_pct" yaml:"max_per_category_pct"`
	MaxPerCountryPct  float64 `json:"max_per_country_pct" yaml:"max_per_country_pct"`
}

// DefaultRules returns the limits used when the user configured none
func DefaultRules() Rules {
	return Rules{
		MaxPerStockPct:    15,
		MaxPerCategoryPct: 30,
		MaxPerCountryPct:  35,
	}
}

// PortfolioTarget is the stored per-portfolio configuration: its target
// weight, position-level weights and placeholder-slot settings.
type PortfolioTarget struct {
	PortfolioID          int64              `json:"portfolio_id"`
	Name                 string             `json:"name"`
	TargetWeightPct      float64            `json:"target_weight_pct"`
	MinPositions         int                `json:"min_positions"`
	PlaceholderWeightPct float64            `json:"placeholder_weight_pct"`
	PositionWeights      map[string]float64 `json:"position_weights"` // holding name -> pct
}

// BuilderState is the typed shape of the per-account allocation page
// blob: budget figures, portfolio targets and rules.
type BuilderState struct {
	TotalNetWorth     float64           `json:"total_net_worth"`
	InvestableCapital float64           `json:"investable_capital"`
	Portfolios        []PortfolioTarget `json:"portfolios"`
	Rules             *Rules            `json:"rules,omitempty"`
}

// PositionPlan is one position in the rebalancing plan
type PositionPlan struct {
	Name             string  `json:"name"`
	CurrentValue     float64 `json:"current_value"`
	TargetValue      float64 `json:"target_value"`
	CurrentWeightPct float64 `json:"current_weight_pct"`
	TargetWeightPct  float64 `json:"target_weight_pct"`
	Placeholder      bool    `json:"placeholder,omitempty"`
}

// CategoryPlan groups positions within a portfolio
type CategoryPlan struct {
	Name         string         `json:"name"`
	CurrentValue float64        `json:"current_value"`
	TargetValue  float64        `json:"target_value"`
	Positions    []PositionPlan `json:"positions"`
}

// PortfolioPlan is one portfolio's slice of the rebalancing plan
type PortfolioPlan struct {
	PortfolioID      int64          `json:"portfolio_id"`
	Name             string         `json:"name"`
	CurrentValue     float64        `json:"current_value"`
	TargetValue      float64        `json:"target_value"`
	CurrentWeightPct float64        `json:"current_weight_pct"`
	TargetWeightPct  float64        `json:"target_weight_pct"`
	Categories       []CategoryPlan `json:"categories"`
}

// RuleViolation flags an advisory limit that is currently exceeded
type RuleViolation struct {
	Type         string  `json:"type"` // "stock", "category" or "country"
	Name         string  `json:"name"`
	CurrentValue float64 `json:"current_value"`
	MaxAllowed   float64 `json:"max_allowed"`
	Excess       float64 `json:"excess"`
	Message      string  `json:"message"`
}

// Plan is the full rebalancing plan consumed by the presentation layer
type Plan struct {
	TotalCurrentValue float64         `json:"total_current_value"`
	Portfolios        []PortfolioPlan `json:"portfolios"`
	Violations        []RuleViolation `json:"violations"`
}

// Capacity is the remaining headroom under one advisory limit.
// Remaining goes negative to flag over-allocation explicitly rather
// than clamping to zero.
type Capacity struct {
	Name       string  `json:"name"`
	Invested   float64 `json:"invested"`
	MaxAllowed float64 `json:"max_allowed"`
	Remaining  float64 `json:"remaining"`
	Message    string  `json:"message,omitempty"`
}

// CapacityReport breaks down headroom per category and per country
type CapacityReport struct {
	TotalValue float64    `json:"total_value"`
	Categories []Capacity `json:"categories"`
	Countries  []Capacity `json:"countries"`
}
