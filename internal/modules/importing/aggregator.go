package importing

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/pkg/money"
)

// Aggregator nets transactions into per-holding positions and
// reconciles them against stored state, including user manual edits.
type Aggregator struct {
	log zerolog.Logger
}

// NewAggregator creates a new position aggregator
func NewAggregator(log zerolog.Logger) *Aggregator {
	return &Aggregator{
		log: log.With().Str("component", "position_aggregator").Logger(),
	}
}

// Aggregate performs two-pass netting grouped by holding display name.
// All acquisitions are applied before any disposal, so intermediate
// state never goes negative regardless of row order. Grouping by name
// rather than identifier keeps a renamed identifier for the same
// logical holding netting correctly.
func (a *Aggregator) Aggregate(transactions []Transaction, existing map[string]ExistingHolding) *AggregationResult {
	result := &AggregationResult{
		Positions:         make(map[string]*ComputedPosition),
		ShareCalculations: make(map[string]ShareCalculation),
		ToRemove:          make(map[string]struct{}),
	}

	// Pass 1: buys and transfers in.
	for _, tx := range transactions {
		if !tx.Type.IsAcquisition() {
			continue
		}

		pos, ok := result.Positions[tx.HoldingName]
		if !ok {
			// The identifier sticks from the first acquisition seen.
			pos = &ComputedPosition{Name: tx.HoldingName, Identifier: tx.Identifier}
			result.Positions[tx.HoldingName] = pos
		}

		pos.TotalShares = money.RoundShares(pos.TotalShares + tx.Shares)
		pos.TotalInvested = money.RoundAmount(pos.TotalInvested + tx.Shares*tx.Price)
	}

	// Pass 2: sells and transfers out, with proportional cost-basis
	// reduction (average-cost accounting, not lot tracking).
	for _, tx := range transactions {
		if !tx.Type.IsDisposal() {
			continue
		}

		pos, ok := result.Positions[tx.HoldingName]
		if !ok {
			a.log.Warn().
				Str("holding", tx.HoldingName).
				Str("identifier", tx.Identifier).
				Msg("Sell without prior buy, skipping")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("sell of %q without a prior buy in this import, skipped", tx.HoldingName))
			continue
		}

		sold := tx.Shares
		if sold > pos.TotalShares {
			a.log.Warn().
				Str("holding", tx.HoldingName).
				Float64("requested", sold).
				Float64("available", pos.TotalShares).
				Msg("Sell exceeds held shares, clamping")
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("sell of %.6f %q clamped to %.6f held shares", sold, tx.HoldingName, pos.TotalShares))
			sold = pos.TotalShares
		}

		if pos.TotalShares > money.Epsilon {
			reduction := pos.TotalInvested * (sold / pos.TotalShares)
			pos.TotalInvested = money.RoundAmount(pos.TotalInvested - reduction)
		}
		pos.TotalShares = money.RoundShares(pos.TotalShares - sold)

		if pos.TotalInvested < 0 {
			pos.TotalInvested = 0
		}
	}

	a.reconcileManualEdits(transactions, existing, result)
	a.collectRemovals(existing, result)

	a.log.Info().
		Int("positions", len(result.Positions)).
		Int("removals", len(result.ToRemove)).
		Int("warnings", len(result.Warnings)).
		Msg("Aggregation complete")

	return result
}

// reconcileManualEdits decides, per manually edited holding, whether
// the user's override still stands or must absorb the net effect of
// transactions dated after the edit. CSVShares always gets the freshly
// computed total so the stored system count stays historically
// accurate either way.
func (a *Aggregator) reconcileManualEdits(transactions []Transaction, existing map[string]ExistingHolding, result *AggregationResult) {
	for name, pos := range result.Positions {
		calc := ShareCalculation{HoldingName: name, CSVShares: pos.TotalShares}

		held, ok := existing[name]
		if ok && held.Lot != nil && held.Lot.IsManuallyEdited && held.Lot.ManualEditDate != nil {
			netChange, latest, newer := netChangeAfter(transactions, name, *held.Lot.ManualEditDate)

			if newer {
				// Genuinely new activity after the user's correction:
				// apply its net effect on top of the override instead
				// of wiping the correction. The edit date advances to
				// the newest reconciled transaction so the same file
				// imported again finds no newer activity.
				oldOverride := held.Lot.EffectiveShares()
				newOverride := money.RoundShares(oldOverride + netChange)
				calc.NewOverride = &newOverride
				calc.NewEditDate = &latest
				calc.CSVModifiedAfterEdit = true

				a.log.Info().
					Str("holding", name).
					Float64("old_override", oldOverride).
					Float64("net_change", netChange).
					Float64("new_override", newOverride).
					Msg("New transactions after manual edit, adjusting override")
			}
		}

		result.ShareCalculations[name] = calc
	}
}

// collectRemovals slates holdings for removal: stored but absent from
// this import, or present but netted to roughly zero. A manually edited
// holding survives a zero CSV count as long as its override is
// non-zero.
func (a *Aggregator) collectRemovals(existing map[string]ExistingHolding, result *AggregationResult) {
	for name, held := range existing {
		pos, inImport := result.Positions[name]
		if !inImport {
			result.ToRemove[name] = struct{}{}
			continue
		}

		if !money.IsZeroShares(pos.TotalShares) {
			continue
		}

		if held.Lot != nil && held.Lot.IsManuallyEdited {
			override := held.Lot.EffectiveShares()
			if calc, ok := result.ShareCalculations[name]; ok && calc.NewOverride != nil {
				override = *calc.NewOverride
			}
			if !money.IsZeroShares(override) {
				continue
			}
		}

		result.ToRemove[name] = struct{}{}
	}

	// Fully sold positions that never existed in storage produce no
	// holding at all.
	for name, pos := range result.Positions {
		if money.IsZeroShares(pos.TotalShares) {
			if _, stored := existing[name]; !stored {
				delete(result.Positions, name)
				delete(result.ShareCalculations, name)
			}
		}
	}
}

// netChangeAfter sums the net share effect (acquisitions minus
// disposals) of one holding's transactions dated strictly after the
// cutoff, returning the newest such transaction date and whether any
// exists. Dividends are newer activity but carry no share effect.
func netChangeAfter(transactions []Transaction, name string, cutoff time.Time) (float64, time.Time, bool) {
	var acquired, disposed float64
	var latest time.Time
	newer := false
	for _, tx := range transactions {
		if tx.HoldingName != name || !tx.Date.After(cutoff) {
			continue
		}
		newer = true
		if tx.Date.After(latest) {
			latest = tx.Date
		}
		switch {
		case tx.Type.IsAcquisition():
			acquired += tx.Shares
		case tx.Type.IsDisposal():
			disposed += tx.Shares
		}
	}
	return money.RoundShares(acquired - disposed), latest, newer
}
