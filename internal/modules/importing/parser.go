package importing

import (
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/pkg/money"
)

// Logical columns and the header aliases accepted for each. Matching is
// case-insensitive after trimming and collapsing separators.
var requiredColumns = map[string][]string{
	"identifier":   {"identifier", "isin", "ticker", "symbol", "wkn"},
	"holding_name": {"holding_name", "name", "holding", "company", "product", "description"},
	"shares":       {"shares", "quantity", "units", "count"},
	"price":        {"price", "share_price", "price_per_share", "unit_price"},
	"type":         {"type", "transaction_type", "order_type", "direction"},
}

var optionalColumns = map[string][]string{
	"date":     {"date", "datetime", "order_date", "time", "timestamp"},
	"fee":      {"fee", "fees", "commission"},
	"tax":      {"tax", "taxes", "withholding"},
	"currency": {"currency", "ccy"},
}

// Date layouts tried in order. All are parsed as UTC and the zone
// dropped, so a parsed date never carries a location that could make it
// incomparable with another.
var dateLayouts = []string{
	"2006-01-02 15:04:05",
	time.RFC3339,
	"02.01.2006 15:04:05",
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2006-01-02",
}

// Parser turns raw broker CSV exports into normalized transactions
type Parser struct {
	log zerolog.Logger
	now func() time.Time
}

// NewParser creates a new CSV parser
func NewParser(log zerolog.Logger) *Parser {
	return &Parser{
		log: log.With().Str("component", "csv_parser").Logger(),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Parse parses raw CSV text into transactions sorted ascending by date.
// Row-level problems (bad numbers, blank identifiers) drop the row and
// count it; only a structurally unusable file (missing columns, no
// rows) returns an error.
func (p *Parser) Parse(raw string) ([]Transaction, *ParseStats, error) {
	raw = strings.TrimPrefix(raw, "\ufeff")
	lines := strings.SplitN(strings.TrimSpace(raw), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil, fmt.Errorf("CSV input is empty")
	}

	delimiter := sniffDelimiter(lines[0])

	reader := csv.NewReader(strings.NewReader(raw))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) < 2 {
		return nil, nil, fmt.Errorf("CSV has no data rows")
	}

	columns, err := matchColumns(records[0])
	if err != nil {
		return nil, nil, err
	}

	stats := &ParseStats{TotalRows: len(records) - 1}
	var transactions []Transaction

	for _, record := range records[1:] {
		tx, ok := p.parseRow(record, columns, stats)
		if ok {
			transactions = append(transactions, tx)
		}
	}

	stats.Imported = len(transactions)

	// Ascending by date. Aggregation itself is order-independent within
	// each pass; the sort keeps logs and debugging chronological.
	sort.SliceStable(transactions, func(i, j int) bool {
		return transactions[i].Date.Before(transactions[j].Date)
	})

	p.log.Info().
		Int("rows", stats.TotalRows).
		Int("imported", stats.Imported).
		Int("dropped", stats.Dropped()).
		Int("defaulted_types", stats.DefaultedTypes).
		Msg("Parsed CSV")

	return transactions, stats, nil
}

// parseRow converts one record, reporting whether it survived
func (p *Parser) parseRow(record []string, columns map[string]int, stats *ParseStats) (Transaction, bool) {
	field := func(name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	var tx Transaction

	tx.Identifier = strings.ToUpper(field("identifier"))
	if tx.Identifier == "" {
		stats.DroppedNoID++
		return tx, false
	}

	tx.HoldingName = field("holding_name")
	if tx.HoldingName == "" {
		tx.HoldingName = tx.Identifier
	}

	shares, err := money.ParseDecimal(field("shares"))
	if err != nil {
		p.log.Debug().Str("identifier", tx.Identifier).Str("value", field("shares")).Msg("Unparseable share count, dropping row")
		stats.DroppedNumeric++
		return tx, false
	}
	price, err := money.ParseDecimal(field("price"))
	if err != nil {
		p.log.Debug().Str("identifier", tx.Identifier).Str("value", field("price")).Msg("Unparseable price, dropping row")
		stats.DroppedNumeric++
		return tx, false
	}
	tx.Shares = shares
	tx.Price = price

	tx.Type = p.normalizeType(field("type"), stats)
	tx.Date = p.parseDate(field("date"), stats)
	tx.Currency = strings.ToUpper(field("currency"))

	// Optional numerics default to zero when absent or unparseable.
	if v, err := money.ParseDecimal(field("fee")); err == nil {
		tx.Fee = v
	}
	if v, err := money.ParseDecimal(field("tax")); err == nil {
		tx.Tax = v
	}

	return tx, true
}

// normalizeType maps raw type strings onto the known set. Unrecognized
// strings default to buy with a warning rather than failing the import.
func (p *Parser) normalizeType(raw string, stats *ParseStats) TransactionType {
	normalized := strings.ReplaceAll(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", ""), "_", "")

	switch normalized {
	case "buy", "purchase", "bought", "b":
		return TypeBuy
	case "sell", "sale", "sold", "s":
		return TypeSell
	case "transferin", "depositin", "in":
		return TypeTransferIn
	case "transferout", "withdrawal", "out":
		return TypeTransferOut
	case "dividend", "div", "distribution":
		return TypeDividend
	}

	p.log.Warn().Str("type", raw).Msg("Unrecognized transaction type, defaulting to buy")
	stats.DefaultedTypes++
	return TypeBuy
}

// parseDate tries the known layouts day-first; unparseable dates fall
// back to now. The result is always UTC so comparisons never mix zones.
func (p *Parser) parseDate(raw string, stats *ParseStats) time.Time {
	if raw == "" {
		stats.DefaultedDates++
		return p.now()
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC()
		}
	}

	p.log.Warn().Str("date", raw).Msg("Unparseable date, defaulting to now")
	stats.DefaultedDates++
	return p.now()
}

// sniffDelimiter picks the delimiter from the header line. A semicolon
// header implies the comma-decimal regional convention, which
// money.ParseDecimal handles per value.
func sniffDelimiter(header string) rune {
	if strings.Count(header, ";") > 0 {
		return ';'
	}
	return ','
}

// matchColumns fuzzy-matches header cells to logical columns
func matchColumns(header []string) (map[string]int, error) {
	normalized := make([]string, len(header))
	for i, cell := range header {
		normalized[i] = normalizeHeader(cell)
	}

	columns := make(map[string]int)
	match := func(logical string, aliases []string) bool {
		for _, alias := range aliases {
			for i, cell := range normalized {
				if cell == alias {
					columns[logical] = i
					return true
				}
			}
		}
		return false
	}

	var missing []string
	for logical, aliases := range requiredColumns {
		if !match(logical, aliases) {
			missing = append(missing, logical)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &MissingColumnsError{Missing: missing}
	}

	for logical, aliases := range optionalColumns {
		match(logical, aliases)
	}

	return columns, nil
}

func normalizeHeader(cell string) string {
	cell = strings.ToLower(strings.TrimSpace(cell))
	cell = strings.TrimPrefix(cell, "\ufeff")
	cell = strings.ReplaceAll(cell, " ", "_")
	cell = strings.ReplaceAll(cell, "-", "_")
	return cell
}
