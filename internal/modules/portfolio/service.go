package portfolio

import (
	"database/sql"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/domain"
)

// Service exposes the combined holdings view
type Service struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewService creates a new portfolio service
func NewService(db *sql.DB, log zerolog.Logger) *Service {
	return &Service{
		db:  db,
		log: log.With().Str("service", "portfolio").Logger(),
	}
}

// GetHoldingViews returns every holding for the account joined with its
// share lot, portfolio name and market price. Holdings without a price
// row still appear, with a nil price.
func (s *Service) GetHoldingViews(accountID int64) ([]HoldingView, error) {
	rows, err := s.db.Query(`
		SELECT h.id, h.account_id, h.portfolio_id, h.name, h.identifier, h.category,
		       h.investment_type, h.total_invested, h.is_custom_value, h.custom_total_value, h.custom_price,
		       h.identifier_manually_edited, h.override_identifier, h.country_manually_edited, h.override_country,
		       p.name,
		       COALESCE(l.shares, 0), l.override_shares,
		       mp.price_in_base_currency, mp.country
		FROM holdings h
		JOIN portfolios p ON p.id = h.portfolio_id
		LEFT JOIN share_lots l ON l.holding_id = h.id
		LEFT JOIN market_prices mp ON mp.identifier = COALESCE(
		    CASE WHEN h.identifier_manually_edited = 1 THEN h.override_identifier END,
		    h.identifier)
		WHERE h.account_id = ?
		ORDER BY p.name, h.name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holding views: %w", err)
	}
	defer rows.Close()

	var views []HoldingView
	for rows.Next() {
		var h domain.Holding
		var identifier, category, invType, overrideID, overrideCountry sql.NullString
		var customTotal, customPrice, overrideShares, basePrice sql.NullFloat64
		var isCustom, idEdited, countryEdited int
		var portfolioName string
		var shares float64
		var country sql.NullString

		err := rows.Scan(
			&h.ID, &h.AccountID, &h.PortfolioID, &h.Name, &identifier, &category,
			&invType, &h.TotalInvested, &isCustom, &customTotal, &customPrice,
			&idEdited, &overrideID, &countryEdited, &overrideCountry,
			&portfolioName, &shares, &overrideShares, &basePrice, &country,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding view: %w", err)
		}

		if identifier.Valid {
			h.Identifier = &identifier.String
		}
		if category.Valid {
			h.Category = &category.String
		}
		if invType.Valid {
			h.InvestmentType = &invType.String
		}
		if customTotal.Valid {
			h.CustomTotalValue = &customTotal.Float64
		}
		if customPrice.Valid {
			h.CustomPrice = &customPrice.Float64
		}
		if overrideID.Valid {
			h.OverrideIdentifier = &overrideID.String
		}
		if overrideCountry.Valid {
			h.OverrideCountry = &overrideCountry.String
		}
		h.IsCustomValue = isCustom != 0
		h.IdentifierManuallyEdited = idEdited != 0
		h.CountryManuallyEdited = countryEdited != 0

		effective := shares
		if overrideShares.Valid {
			effective = overrideShares.Float64
		}

		view := HoldingView{
			Holding:         h,
			PortfolioName:   portfolioName,
			EffectiveShares: effective,
		}
		if basePrice.Valid {
			view.Price = &basePrice.Float64
		}
		view.Value = EffectiveValue(h, effective, view.Price)

		// User country override wins over provider country.
		if h.CountryManuallyEdited && h.OverrideCountry != nil {
			view.Country = h.OverrideCountry
		} else if country.Valid {
			view.Country = &country.String
		}

		views = append(views, view)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holding views: %w", err)
	}

	return views, nil
}
