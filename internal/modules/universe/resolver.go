package universe

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/folio-tracker/internal/clients/quotes"
)

// ISIN shape: two letters, nine alphanumerics, one check digit.
var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

// Exchange suffix: trailing .XX style market code (e.g. AIR.PA, BMW.DE).
var exchangeSuffixPattern = regexp.MustCompile(`\.[A-Z]{1,3}$`)

// Purely alphabetic short tickers are ambiguous between a stock symbol
// and a crypto symbol.
var alphabeticPattern = regexp.MustCompile(`^[A-Z]+$`)

// IsISIN checks if an identifier has the 12-character ISIN shape
func IsISIN(identifier string) bool {
	return isinPattern.MatchString(strings.TrimSpace(strings.ToUpper(identifier)))
}

// HasExchangeSuffix checks for a trailing market code like .PA or .DE
func HasExchangeSuffix(identifier string) bool {
	if identifier == "" {
		return false
	}
	return exchangeSuffixPattern.MatchString(strings.ToUpper(identifier))
}

// IsAmbiguous reports whether an identifier could plausibly be either a
// stock ticker or a crypto symbol: short (≤5 chars) and purely
// alphabetic.
func IsAmbiguous(identifier string) bool {
	id := strings.ToUpper(identifier)
	return len(id) > 0 && len(id) <= 5 && alphabeticPattern.MatchString(id)
}

// Resolver maps raw CSV identifiers to canonical identifiers: account
// preferences first, then generic normalization with provider probing
// for ambiguous short tickers.
type Resolver struct {
	mappings *MappingRepository
	provider quotes.Provider
	cache    *ResolutionCache
	log      zerolog.Logger
}

// NewResolver creates a new identifier resolver
func NewResolver(mappings *MappingRepository, provider quotes.Provider, cache *ResolutionCache, log zerolog.Logger) *Resolver {
	return &Resolver{
		mappings: mappings,
		provider: provider,
		cache:    cache,
		log:      log.With().Str("component", "identifier_resolver").Logger(),
	}
}

// ClearCache drops all cached resolutions. The import pipeline calls
// this at the start of each run so the cache spans exactly one run.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}

// Resolve resolves a raw CSV identifier for an account. Resolution is
// deterministic given the same provider responses and never fails the
// import: when nothing resolves, the original string comes back with a
// warning logged.
func (r *Resolver) Resolve(ctx context.Context, accountID int64, raw string) (string, error) {
	identifier := strings.TrimSpace(strings.ToUpper(raw))
	if identifier == "" {
		return "", fmt.Errorf("empty identifier")
	}

	cacheKey := fmt.Sprintf("%d:%s", accountID, identifier)
	if cached, ok := r.cache.Get(cacheKey); ok {
		return cached, nil
	}

	resolved, err := r.resolve(ctx, accountID, identifier)
	if err != nil {
		return "", err
	}

	r.cache.Put(cacheKey, resolved)
	return resolved, nil
}

func (r *Resolver) resolve(ctx context.Context, accountID int64, identifier string) (string, error) {
	// User preference always wins.
	if r.mappings != nil {
		mapping, err := r.mappings.Get(accountID, identifier)
		if err != nil {
			return "", fmt.Errorf("failed to check identifier mapping: %w", err)
		}
		if mapping != nil {
			r.log.Debug().
				Str("raw", identifier).
				Str("preferred", mapping.PreferredIdentifier).
				Msg("Resolved via account mapping")
			return mapping.PreferredIdentifier, nil
		}
	}

	// Unambiguous shapes pass through unchanged.
	if IsISIN(identifier) || HasExchangeSuffix(identifier) {
		return identifier, nil
	}

	if IsAmbiguous(identifier) {
		return r.resolveAmbiguous(ctx, identifier), nil
	}

	return identifier, nil
}

// resolveAmbiguous probes both the bare form and the SYMBOL-USD crypto
// form. When both resolve, the crypto form wins. Falling back to the
// stock form when both exist produced dual-identifier duplicates in the
// past, so the priority is fixed and must not change without product
// sign-off.
func (r *Resolver) resolveAmbiguous(ctx context.Context, identifier string) string {
	cryptoForm := identifier + "-USD"

	_, cryptoErr := r.provider.FetchQuote(ctx, cryptoForm)
	if cryptoErr == nil {
		r.log.Debug().Str("identifier", identifier).Str("resolved", cryptoForm).Msg("Ambiguous identifier resolved as crypto")
		return cryptoForm
	}

	_, stockErr := r.provider.FetchQuote(ctx, identifier)
	if stockErr == nil {
		r.log.Debug().Str("identifier", identifier).Msg("Ambiguous identifier resolved as stock")
		return identifier
	}

	r.log.Warn().
		Str("identifier", identifier).
		AnErr("crypto_probe", cryptoErr).
		AnErr("stock_probe", stockErr).
		Msg("Identifier resolved by neither probe, keeping original")
	return identifier
}
