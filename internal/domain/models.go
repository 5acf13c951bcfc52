package domain

import "time"

// DefaultPortfolioName is the unsorted bucket, auto-created on demand.
// New holdings land here until the user files them elsewhere.
const DefaultPortfolioName = "-"

// InvestmentType classifies a holding
type InvestmentType string

const (
	InvestmentTypeStock InvestmentType = "Stock"
	InvestmentTypeETF   InvestmentType = "ETF"
)

// Account is the tenant boundary. Deleting an account cascades to all
// owned portfolios, holdings and per-account configuration.
type Account struct {
	ID          int64     `json:"id"`
	Username    string    `json:"username"`
	CashBalance float64   `json:"cash_balance"`
	CreatedAt   time.Time `json:"created_at"`
}

// Portfolio is a named grouping of holdings within an account.
type Portfolio struct {
	ID        int64  `json:"id"`
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
}

// Holding is one tracked position. Identifier is nullable for manual
// entries; the override fields carry user edits that must survive
// re-imports.
type Holding struct {
	ID                       int64    `json:"id"`
	AccountID                int64    `json:"account_id"`
	PortfolioID              int64    `json:"portfolio_id"`
	Name                     string   `json:"name"`
	Identifier               *string  `json:"identifier"`
	Category                 *string  `json:"category"`
	InvestmentType           *string  `json:"investment_type"`
	TotalInvested            float64  `json:"total_invested"`
	IsCustomValue            bool     `json:"is_custom_value"`
	CustomTotalValue         *float64 `json:"custom_total_value"`
	CustomPrice              *float64 `json:"custom_price"`
	IdentifierManuallyEdited bool     `json:"identifier_manually_edited"`
	OverrideIdentifier       *string  `json:"override_identifier"`
	CountryManuallyEdited    bool     `json:"country_manually_edited"`
	OverrideCountry          *string  `json:"override_country"`
}

// EffectiveIdentifier returns the identifier the rest of the system
// should use: the manual override when the user protected it, else the
// import-derived one.
func (h *Holding) EffectiveIdentifier() string {
	if h.IdentifierManuallyEdited && h.OverrideIdentifier != nil && *h.OverrideIdentifier != "" {
		return *h.OverrideIdentifier
	}
	if h.Identifier != nil {
		return *h.Identifier
	}
	return ""
}

// ShareLot holds the share-count state for a holding, 1:1. The dual
// shares/override_shares design keeps user manual corrections intact
// across re-imports: Shares always tracks the CSV-derived count,
// OverrideShares the user's correction when present.
type ShareLot struct {
	HoldingID            int64      `json:"holding_id"`
	Shares               float64    `json:"shares"`
	OverrideShares       *float64   `json:"override_shares"`
	IsManuallyEdited     bool       `json:"is_manually_edited"`
	ManualEditDate       *time.Time `json:"manual_edit_date"`
	CSVModifiedAfterEdit bool       `json:"csv_modified_after_edit"`
}

// EffectiveShares returns override_shares when set, else shares.
func (l *ShareLot) EffectiveShares() float64 {
	if l.OverrideShares != nil {
		return *l.OverrideShares
	}
	return l.Shares
}

// MarketPrice is keyed by canonical identifier and shared across
// accounts. Removed when the last referencing holding disappears.
type MarketPrice struct {
	Identifier          string    `json:"identifier"`
	Price               float64   `json:"price"`
	Currency            string    `json:"currency"`
	PriceInBaseCurrency float64   `json:"price_in_base_currency"`
	Country             *string   `json:"country"`
	LastUpdated         time.Time `json:"last_updated"`
}

// IdentifierMapping is a per-account user preference mapping a raw CSV
// identifier to the identifier the user wants used for it.
type IdentifierMapping struct {
	ID                  int64   `json:"id"`
	AccountID           int64   `json:"account_id"`
	CSVIdentifier       string  `json:"csv_identifier"`
	PreferredIdentifier string  `json:"preferred_identifier"`
	CompanyName         *string `json:"company_name"`
}
