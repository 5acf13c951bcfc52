package importing

import (
	"fmt"
	"strings"
	"time"

	"github.com/aristath/folio-tracker/internal/domain"
)

// TransactionType classifies a parsed CSV row
type TransactionType string

const (
	TypeBuy         TransactionType = "buy"
	TypeSell        TransactionType = "sell"
	TypeTransferIn  TransactionType = "transferin"
	TypeTransferOut TransactionType = "transferout"
	TypeDividend    TransactionType = "dividend"
)

// IsAcquisition reports whether the type adds shares
func (t TransactionType) IsAcquisition() bool {
	return t == TypeBuy || t == TypeTransferIn
}

// IsDisposal reports whether the type removes shares
func (t TransactionType) IsDisposal() bool {
	return t == TypeSell || t == TypeTransferOut
}

// Transaction is one normalized CSV row. Dates are UTC with the zone
// stripped at parse time, so they compare safely against each other and
// against stored edit dates.
type Transaction struct {
	Identifier  string
	HoldingName string
	Shares      float64
	Price       float64
	Type        TransactionType
	Date        time.Time
	Fee         float64
	Tax         float64
	Currency    string
}

// ParseStats reports what the parser did with the raw rows
type ParseStats struct {
	TotalRows        int `json:"total_rows"`
	Imported         int `json:"imported"`
	DroppedNumeric   int `json:"dropped_numeric"`
	DroppedNoID      int `json:"dropped_no_identifier"`
	DefaultedTypes   int `json:"defaulted_types"`
	DefaultedDates   int `json:"defaulted_dates"`
}

// Dropped is the total number of rows that did not make it through
func (s *ParseStats) Dropped() int {
	return s.DroppedNumeric + s.DroppedNoID
}

// MissingColumnsError is returned when none of a required column's
// aliases appear in the header. This is a validation error: the import
// does not proceed.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("CSV is missing required columns: %s", strings.Join(e.Missing, ", "))
}

// ComputedPosition is the aggregator's output for one holding name
type ComputedPosition struct {
	Name          string
	Identifier    string
	TotalShares   float64
	TotalInvested float64
}

// ShareCalculation reconciles a computed position with a stored manual
// edit. CSVShares always carries the freshly computed total; the
// override fields are set only when newer transactions changed it.
// NewEditDate is the reconciliation watermark: the newest transaction
// date folded into the override, stored back as the edit date so
// re-importing the same file does not apply the delta again.
type ShareCalculation struct {
	HoldingName          string
	CSVShares            float64
	NewOverride          *float64
	NewEditDate          *time.Time
	CSVModifiedAfterEdit bool
}

// ExistingHolding is the slice of stored state the aggregator and
// applier need to reconcile against
type ExistingHolding struct {
	HoldingID            int64
	Identifier           string
	IdentifierProtected  bool
	PortfolioID          int64
	Lot                  *domain.ShareLot
}

// AggregationResult bundles the aggregator's three outputs
type AggregationResult struct {
	Positions         map[string]*ComputedPosition
	ShareCalculations map[string]ShareCalculation
	ToRemove          map[string]struct{}
	Warnings          []string
}

// ApplyResult reports what the applier changed, by holding name
type ApplyResult struct {
	Added   []string
	Updated []string
	Removed []string
}

// ImportResult is the user-facing outcome of one import run. Price
// failures are common (new or de-listed tickers) and are always
// reported, even on success.
type ImportResult struct {
	Success      bool     `json:"success"`
	Message      string   `json:"message"`
	Added        []string `json:"added"`
	Updated      []string `json:"updated"`
	Removed      []string `json:"removed"`
	FailedPrices []string `json:"failed_prices"`
	SkippedRows  int      `json:"skipped_rows"`
}
