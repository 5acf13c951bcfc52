package quotes

// Quote is the subset of provider data the import pipeline needs.
// Country is frequently missing for ETFs and crypto pairs.
type Quote struct {
	Identifier string   `json:"identifier"`
	Price      float64  `json:"price"`
	Currency   string   `json:"currency"`
	Country    *string  `json:"country"`
	Name       *string  `json:"name"`
}

// quoteResponse mirrors the provider's quote envelope
type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol             string   `json:"symbol"`
			RegularMarketPrice *float64 `json:"regularMarketPrice"`
			Currency           string   `json:"currency"`
			Country            *string  `json:"country"`
			LongName           *string  `json:"longName"`
			ShortName          *string  `json:"shortName"`
		} `json:"result"`
		Error interface{} `json:"error"`
	} `json:"quoteResponse"`
}

// rateResponse mirrors the exchange-rate provider's envelope
type rateResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}
