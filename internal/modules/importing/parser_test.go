package importing

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestParser() *Parser {
	p := NewParser(zerolog.Nop())
	p.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return p
}

func TestParse_CommaDelimited(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type,Date\n" +
		"AAPL,Apple Inc,10,150.50,buy,2024-01-15\n" +
		"MSFT,Microsoft,5,300.00,buy,2024-01-16\n"

	txs, stats, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, 2, stats.Imported)

	assert.Equal(t, "AAPL", txs[0].Identifier)
	assert.Equal(t, "Apple Inc", txs[0].HoldingName)
	assert.Equal(t, 10.0, txs[0].Shares)
	assert.Equal(t, 150.50, txs[0].Price)
	assert.Equal(t, TypeBuy, txs[0].Type)
}

func TestParse_SemicolonDelimitedCommaDecimals(t *testing.T) {
	csv := "Identifier;Name;Shares;Price;Type\n" +
		"SAP.DE;SAP SE;2,5;120,75;buy\n"

	txs, _, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 2.5, txs[0].Shares)
	assert.Equal(t, 120.75, txs[0].Price)
}

func TestParse_HeaderAliases(t *testing.T) {
	csv := "symbol,product,quantity,unit price,order type\n" +
		"VWCE.DE,Vanguard FTSE All-World,3,105.2,buy\n"

	txs, _, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "VWCE.DE", txs[0].Identifier)
	assert.Equal(t, "Vanguard FTSE All-World", txs[0].HoldingName)
}

func TestParse_MissingColumns(t *testing.T) {
	csv := "Identifier,Name\nAAPL,Apple\n"

	_, _, err := newTestParser().Parse(csv)
	require.Error(t, err)

	var missing *MissingColumnsError
	require.ErrorAs(t, err, &missing)
	assert.ElementsMatch(t, []string{"price", "shares", "type"}, missing.Missing)
	assert.Contains(t, err.Error(), "price")
}

func TestParse_UnknownTypeDefaultsToBuy(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type\n" +
		"AAPL,Apple,10,100,gobbledygook\n"

	txs, stats, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, TypeBuy, txs[0].Type)
	assert.Equal(t, 1, stats.DefaultedTypes)
}

func TestParse_BadNumericDropsRow(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type\n" +
		"AAPL,Apple,ten,100,buy\n" +
		"MSFT,Microsoft,5,300,buy\n"

	txs, stats, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "MSFT", txs[0].Identifier)
	assert.Equal(t, 1, stats.DroppedNumeric)
	assert.Equal(t, 1, stats.Dropped())
}

func TestParse_BlankIdentifierDropsRow(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type\n" +
		",Mystery,10,100,buy\n" +
		"AAPL,Apple,1,100,buy\n"

	txs, stats, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 1, stats.DroppedNoID)
}

func TestParse_TypeNormalization(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want TransactionType
	}{
		{name: "sell", raw: "sell", want: TypeSell},
		{name: "sale", raw: "Sale", want: TypeSell},
		{name: "transfer in with space", raw: "Transfer In", want: TypeTransferIn},
		{name: "transfer_out", raw: "transfer_out", want: TypeTransferOut},
		{name: "dividend", raw: "DIVIDEND", want: TypeDividend},
		{name: "div", raw: "div", want: TypeDividend},
		{name: "purchase", raw: "purchase", want: TypeBuy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csv := "Identifier,Name,Shares,Price,Type\nAAPL,Apple,1,100," + tt.raw + "\n"
			txs, _, err := newTestParser().Parse(csv)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.Equal(t, tt.want, txs[0].Type)
		})
	}
}

func TestParse_DateFormats(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{name: "iso date", raw: "2024-01-15", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "german dotted", raw: "15.01.2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "day first dashes", raw: "15-01-2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "day first slashes", raw: "15/01/2024", want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{name: "datetime", raw: "2024-01-15 09:30:00", want: time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			csv := "Identifier,Name,Shares,Price,Type,Date\nAAPL,Apple,1,100,buy," + tt.raw + "\n"
			txs, _, err := newTestParser().Parse(csv)
			require.NoError(t, err)
			require.Len(t, txs, 1)
			assert.True(t, tt.want.Equal(txs[0].Date), "got %v", txs[0].Date)
		})
	}
}

func TestParse_ZoneAwareDatesNormalizedToUTC(t *testing.T) {
	// Mixing zone-aware and naive timestamps must never reach a
	// comparison: everything is normalized to UTC at parse time.
	csv := "Identifier,Name,Shares,Price,Type,Date\n" +
		"AAPL,Apple,1,100,buy,2024-01-15T10:00:00+02:00\n" +
		"AAPL,Apple,1,100,buy,2024-01-15 09:00:00\n"

	txs, _, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 2)

	for _, tx := range txs {
		_, offset := tx.Date.Zone()
		assert.Equal(t, 0, offset, "parsed dates must be UTC")
	}

	// +02:00 10:00 is 08:00 UTC, so it sorts before the naive 09:00.
	assert.Equal(t, time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC), txs[0].Date)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), txs[1].Date)
}

func TestParse_UnparseableDateDefaultsToNow(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type,Date\n" +
		"AAPL,Apple,1,100,buy,someday\n"

	p := newTestParser()
	txs, stats, err := p.Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, p.now(), txs[0].Date)
	assert.Equal(t, 1, stats.DefaultedDates)
}

func TestParse_SortedAscendingByDate(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type,Date\n" +
		"AAPL,Apple,1,100,buy,2024-03-01\n" +
		"AAPL,Apple,1,100,buy,2024-01-01\n" +
		"AAPL,Apple,1,100,buy,2024-02-01\n"

	txs, _, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 3)
	assert.True(t, txs[0].Date.Before(txs[1].Date))
	assert.True(t, txs[1].Date.Before(txs[2].Date))
}

func TestParse_FeesAndTaxes(t *testing.T) {
	csv := "Identifier,Name,Shares,Price,Type,Fee,Tax\n" +
		"AAPL,Apple,1,100,buy,1.50,0.30\n"

	txs, _, err := newTestParser().Parse(csv)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, 1.5, txs[0].Fee)
	assert.Equal(t, 0.3, txs[0].Tax)
}

func TestParse_EmptyInput(t *testing.T) {
	_, _, err := newTestParser().Parse("")
	assert.Error(t, err)

	_, _, err = newTestParser().Parse("Identifier,Name,Shares,Price,Type\n")
	assert.Error(t, err)
}
