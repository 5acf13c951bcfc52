package allocation

import (
	"fmt"
	"math"
	"sort"

	"github.com/Rhymond/go-money"
	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/floats"

	"github.com/aristath/folio-tracker/internal/modules/portfolio"
)

// Service computes rebalancing plans. ComputePlan is a pure function of
// its inputs; no I/O happens here.
type Service struct {
	log zerolog.Logger
}

// NewService creates a new allocation service
func NewService(log zerolog.Logger) *Service {
	return &Service{
		log: log.With().Str("service", "allocation").Logger(),
	}
}

// grouped is the intermediate position grouping: portfolio -> category
// -> positions
type grouped struct {
	target    PortfolioTarget
	byCatName map[string][]PositionPlan
	catOrder  []string
	value     float64
}

// ComputePlan builds the rebalancing plan from current holdings, the
// stored builder state and the advisory rules.
func (s *Service) ComputePlan(holdings []portfolio.HoldingView, state *BuilderState, rules Rules) *Plan {
	if state == nil {
		state = &BuilderState{}
	}
	if state.Rules != nil {
		rules = *state.Rules
	}

	groups, totalValue := s.groupPositions(holdings, state)
	plan := s.calculateTargets(groups, totalValue)
	plan.Violations = s.detectViolations(holdings, totalValue, rules)

	return plan
}

// groupPositions groups holdings by portfolio then category, summing
// effective values and attaching stored position target weights.
// Positions absent from the weight map carry weight 0.
func (s *Service) groupPositions(holdings []portfolio.HoldingView, state *BuilderState) (map[int64]*grouped, float64) {
	targets := make(map[int64]PortfolioTarget, len(state.Portfolios))
	for _, t := range state.Portfolios {
		targets[t.PortfolioID] = t
	}

	groups := make(map[int64]*grouped)
	values := make([]float64, 0, len(holdings))

	for _, hv := range holdings {
		pid := hv.Holding.PortfolioID

		g, ok := groups[pid]
		if !ok {
			target, configured := targets[pid]
			if !configured {
				// Unconfigured portfolios still appear, with zero
				// target weight.
				target = PortfolioTarget{PortfolioID: pid, Name: hv.PortfolioName}
			}
			g = &grouped{target: target, byCatName: make(map[string][]PositionPlan)}
			groups[pid] = g
		}

		category := UncategorizedCategory
		if hv.Holding.Category != nil && *hv.Holding.Category != "" {
			category = *hv.Holding.Category
		}

		weight := 0.0
		if g.target.PositionWeights != nil {
			weight = g.target.PositionWeights[hv.Holding.Name]
		}

		if _, seen := g.byCatName[category]; !seen {
			g.catOrder = append(g.catOrder, category)
		}
		g.byCatName[category] = append(g.byCatName[category], PositionPlan{
			Name:            hv.Holding.Name,
			CurrentValue:    hv.Value,
			TargetWeightPct: weight,
		})
		g.value += hv.Value
		values = append(values, hv.Value)
	}

	return groups, floats.Sum(values)
}

// calculateTargets turns the grouping into a plan with target values,
// synthesizing placeholder slots where a portfolio is configured for
// more positions than it holds.
func (s *Service) calculateTargets(groups map[int64]*grouped, totalValue float64) *Plan {
	plan := &Plan{TotalCurrentValue: totalValue}

	pids := make([]int64, 0, len(groups))
	for pid := range groups {
		pids = append(pids, pid)
	}
	sort.Slice(pids, func(i, j int) bool { return pids[i] < pids[j] })

	for _, pid := range pids {
		g := groups[pid]
		portfolioTarget := g.target.TargetWeightPct / 100 * totalValue

		pp := PortfolioPlan{
			PortfolioID:     pid,
			Name:            g.target.Name,
			CurrentValue:    g.value,
			TargetValue:     portfolioTarget,
			TargetWeightPct: g.target.TargetWeightPct,
		}
		if totalValue > 0 {
			pp.CurrentWeightPct = g.value / totalValue * 100
		}

		realCount := 0
		var realWeights []float64

		for _, category := range g.catOrder {
			positions := g.byCatName[category]

			cp := CategoryPlan{Name: category}
			for i := range positions {
				positions[i].TargetValue = positions[i].TargetWeightPct / 100 * portfolioTarget
				if totalValue > 0 {
					positions[i].CurrentWeightPct = positions[i].CurrentValue / totalValue * 100
				}
				cp.CurrentValue += positions[i].CurrentValue
				cp.TargetValue += positions[i].TargetValue
				realWeights = append(realWeights, positions[i].TargetWeightPct)
			}
			realCount += len(positions)
			cp.Positions = positions
			pp.Categories = append(pp.Categories, cp)
		}

		// Placeholder slots surface how much target allocation is
		// earmarked for holdings not yet purchased. Suppressed when the
		// configured real weights already reach 100%.
		if g.target.MinPositions > realCount && floats.Sum(realWeights) < 100 {
			slots := g.target.MinPositions - realCount
			cp := CategoryPlan{Name: MissingPositionsCategory}
			for i := 0; i < slots; i++ {
				slot := PositionPlan{
					Name:            fmt.Sprintf("Missing position %d", i+1),
					TargetWeightPct: g.target.PlaceholderWeightPct,
					TargetValue:     g.target.PlaceholderWeightPct / 100 * portfolioTarget,
					Placeholder:     true,
				}
				cp.TargetValue += slot.TargetValue
				cp.Positions = append(cp.Positions, slot)
			}
			pp.Categories = append(pp.Categories, cp)
		}

		plan.Portfolios = append(plan.Portfolios, pp)
	}

	return plan
}

// detectViolations checks the advisory limits per stock, category and
// country. Limits ≤ 0 disable the corresponding check.
func (s *Service) detectViolations(holdings []portfolio.HoldingView, totalValue float64, rules Rules) []RuleViolation {
	if totalValue <= 0 {
		return nil
	}

	var violations []RuleViolation

	if rules.MaxPerStockPct > 0 {
		maxAllowed := rules.MaxPerStockPct / 100 * totalValue
		for _, hv := range holdings {
			if hv.Value > maxAllowed {
				violations = append(violations, newViolation("stock", hv.Holding.Name, hv.Value, maxAllowed))
			}
		}
	}

	if rules.MaxPerCategoryPct > 0 {
		byCategory := make(map[string]float64)
		for _, hv := range holdings {
			category := UncategorizedCategory
			if hv.Holding.Category != nil && *hv.Holding.Category != "" {
				category = *hv.Holding.Category
			}
			byCategory[category] += hv.Value
		}
		maxAllowed := rules.MaxPerCategoryPct / 100 * totalValue
		for _, name := range sortedKeys(byCategory) {
			if byCategory[name] > maxAllowed {
				violations = append(violations, newViolation("category", name, byCategory[name], maxAllowed))
			}
		}
	}

	if rules.MaxPerCountryPct > 0 {
		byCountry := make(map[string]float64)
		for _, hv := range holdings {
			if hv.Country == nil || *hv.Country == "" {
				continue
			}
			byCountry[*hv.Country] += hv.Value
		}
		maxAllowed := rules.MaxPerCountryPct / 100 * totalValue
		for _, name := range sortedKeys(byCountry) {
			if byCountry[name] > maxAllowed {
				violations = append(violations, newViolation("country", name, byCountry[name], maxAllowed))
			}
		}
	}

	return violations
}

func newViolation(kind, name string, current, maxAllowed float64) RuleViolation {
	excess := current - maxAllowed
	return RuleViolation{
		Type:         kind,
		Name:         name,
		CurrentValue: current,
		MaxAllowed:   maxAllowed,
		Excess:       excess,
		Message:      fmt.Sprintf("%s %q is over-allocated by %s", kind, name, formatEUR(excess)),
	}
}

// formatEUR renders a base-currency amount for user-facing messages,
// rounded to the nearest cent
func formatEUR(amount float64) string {
	return money.New(int64(math.Round(amount*100)), money.EUR).Display()
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
