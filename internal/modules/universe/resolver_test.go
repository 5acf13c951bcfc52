package universe

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
)

// fakeProvider resolves only the identifiers it was given
type fakeProvider struct {
	known map[string]float64
	calls []string
}

func (f *fakeProvider) FetchQuote(_ context.Context, identifier string) (*quotes.Quote, error) {
	f.calls = append(f.calls, identifier)
	price, ok := f.known[identifier]
	if !ok {
		return nil, fmt.Errorf("%s: %w", identifier, quotes.ErrNoQuote)
	}
	return &quotes.Quote{Identifier: identifier, Price: price, Currency: "USD"}, nil
}

func (f *fakeProvider) FetchRate(_ context.Context, from, to string) (float64, error) {
	return 1.0, nil
}

func TestIsISIN(t *testing.T) {
	tests := []struct {
		name       string
		identifier string
		want       bool
	}{
		{name: "valid US ISIN", identifier: "US0378331005", want: true},
		{name: "valid DE ISIN", identifier: "DE0005140008", want: true},
		{name: "lowercase works", identifier: "us0378331005", want: true},
		{name: "too short", identifier: "US037833100", want: false},
		{name: "too long", identifier: "US03783310055", want: false},
		{name: "digits first", identifier: "120378331005", want: false},
		{name: "plain ticker", identifier: "AAPL", want: false},
		{name: "empty", identifier: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsISIN(tt.identifier))
		})
	}
}

func TestHasExchangeSuffix(t *testing.T) {
	assert.True(t, HasExchangeSuffix("AIR.PA"))
	assert.True(t, HasExchangeSuffix("BMW.DE"))
	assert.True(t, HasExchangeSuffix("7203.T"))
	assert.False(t, HasExchangeSuffix("AAPL"))
	assert.False(t, HasExchangeSuffix("BTC-USD"))
	assert.False(t, HasExchangeSuffix(""))
}

func TestIsAmbiguous(t *testing.T) {
	assert.True(t, IsAmbiguous("BTC"))
	assert.True(t, IsAmbiguous("AAPL"))
	assert.False(t, IsAmbiguous("GOOGLE"), "six characters is not ambiguous")
	assert.False(t, IsAmbiguous("AIR.PA"))
	assert.False(t, IsAmbiguous("US0378331005"))
	assert.False(t, IsAmbiguous(""))
}

func newTestResolver(provider quotes.Provider) *Resolver {
	return NewResolver(nil, provider, NewResolutionCache(0), zerolog.Nop())
}

func TestResolve_PassThroughShapes(t *testing.T) {
	provider := &fakeProvider{known: map[string]float64{}}
	r := newTestResolver(provider)

	got, err := r.Resolve(context.Background(), 1, "US0378331005")
	require.NoError(t, err)
	assert.Equal(t, "US0378331005", got)

	got, err = r.Resolve(context.Background(), 1, "air.pa")
	require.NoError(t, err)
	assert.Equal(t, "AIR.PA", got)

	// Unambiguous shapes must not hit the provider.
	assert.Empty(t, provider.calls)
}

func TestResolve_CryptoPriority(t *testing.T) {
	// BTC resolves both as BTC-USD and as a bare ticker: crypto wins.
	provider := &fakeProvider{known: map[string]float64{
		"BTC-USD": 60000,
		"BTC":     12.5,
	}}
	r := newTestResolver(provider)

	got, err := r.Resolve(context.Background(), 1, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", got)
}

func TestResolve_StockFallback(t *testing.T) {
	provider := &fakeProvider{known: map[string]float64{"AAPL": 190}}
	r := newTestResolver(provider)

	got, err := r.Resolve(context.Background(), 1, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, "AAPL", got)
}

func TestResolve_NeitherResolves(t *testing.T) {
	provider := &fakeProvider{known: map[string]float64{}}
	r := newTestResolver(provider)

	got, err := r.Resolve(context.Background(), 1, "XYZQ")
	require.NoError(t, err)
	assert.Equal(t, "XYZQ", got, "unresolvable identifiers come back unchanged")
}

func TestResolve_CachesWithinRun(t *testing.T) {
	provider := &fakeProvider{known: map[string]float64{"ETH-USD": 3000}}
	r := newTestResolver(provider)

	for i := 0; i < 3; i++ {
		got, err := r.Resolve(context.Background(), 1, "ETH")
		require.NoError(t, err)
		assert.Equal(t, "ETH-USD", got)
	}

	// One probe, not three.
	assert.Equal(t, []string{"ETH-USD"}, provider.calls)
}

func TestResolve_EmptyIdentifier(t *testing.T) {
	r := newTestResolver(&fakeProvider{})
	_, err := r.Resolve(context.Background(), 1, "  ")
	assert.Error(t, err)
}

func TestResolutionCache(t *testing.T) {
	c := NewResolutionCache(0)

	_, ok := c.Get("k")
	assert.False(t, ok)

	c.Put("k", "v")
	got, ok := c.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", got)

	c.Invalidate("k")
	_, ok = c.Get("k")
	assert.False(t, ok)

	c.Put("a", "1")
	c.Put("b", "2")
	c.Clear()
	_, ok = c.Get("a")
	assert.False(t, ok)
}
