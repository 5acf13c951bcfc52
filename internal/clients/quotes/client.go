package quotes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// ErrNoQuote is returned when the provider has no usable price for an
// identifier. Callers treat it as a per-identifier failure, never as a
// batch failure.
var ErrNoQuote = errors.New("no quote available")

// Provider is the price/fx surface the core consumes. The concrete
// Client talks to the external provider; tests substitute fakes.
type Provider interface {
	FetchQuote(ctx context.Context, identifier string) (*Quote, error)
	FetchRate(ctx context.Context, from, to string) (float64, error)
}

// Client fetches market quotes and exchange rates over HTTP
type Client struct {
	quotes *resty.Client
	fx     *resty.Client
	log    zerolog.Logger
}

// New creates a new quotes client
func New(quoteBaseURL, fxBaseURL string, log zerolog.Logger) *Client {
	return &Client{
		quotes: resty.New().
			SetBaseURL(quoteBaseURL).
			SetTimeout(30 * time.Second).
			SetRetryCount(2),
		fx: resty.New().
			SetBaseURL(fxBaseURL).
			SetTimeout(15 * time.Second),
		log: log.With().Str("client", "quotes").Logger(),
	}
}

// Close releases idle connections held by the underlying clients
func (c *Client) Close() {
	_ = c.quotes.Close()
	_ = c.fx.Close()
}

// FetchQuote fetches the current quote for one identifier. A missing
// price is an error (ErrNoQuote); a missing country is not.
func (c *Client) FetchQuote(ctx context.Context, identifier string) (*Quote, error) {
	var out quoteResponse
	res, err := c.quotes.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"symbols": identifier,
			"fields":  "symbol,regularMarketPrice,currency,country,longName,shortName",
		}).
		SetResult(&out).
		Get("/v7/finance/quote")
	if err != nil {
		return nil, fmt.Errorf("quote request for %s failed: %w", identifier, err)
	}
	if res.IsError() {
		return nil, fmt.Errorf("quote request for %s: status %d", identifier, res.StatusCode())
	}

	if len(out.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("%s: %w", identifier, ErrNoQuote)
	}

	r := out.QuoteResponse.Result[0]
	if r.RegularMarketPrice == nil || *r.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("%s: %w", identifier, ErrNoQuote)
	}

	name := r.LongName
	if name == nil {
		name = r.ShortName
	}

	return &Quote{
		Identifier: r.Symbol,
		Price:      *r.RegularMarketPrice,
		Currency:   r.Currency,
		Country:    r.Country,
		Name:       name,
	}, nil
}

// FetchRate fetches the conversion rate from one currency to another.
// Same-currency requests short-circuit to 1.0 without a network call.
func (c *Client) FetchRate(ctx context.Context, from, to string) (float64, error) {
	if from == to {
		return 1.0, nil
	}

	var out rateResponse
	res, err := c.fx.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"from": from,
			"to":   to,
		}).
		SetResult(&out).
		Get("/latest")
	if err != nil {
		return 0, fmt.Errorf("rate request %s->%s failed: %w", from, to, err)
	}
	if res.IsError() {
		return 0, fmt.Errorf("rate request %s->%s: status %d", from, to, res.StatusCode())
	}

	rate, ok := out.Rates[to]
	if !ok || rate <= 0 {
		return 0, fmt.Errorf("rate request %s->%s: no rate in response", from, to)
	}

	return rate, nil
}
