package core

import "strings"

// CurrencyNormalizer maps a venue currency code to its canonical form. It must be pure.
type CurrencyNormalizer func(code string) string

var commonCurrencies = map[string]string{
	"XBT":    "BTC",
	"BCC":    "BCH",
	"DRK":    "DASH",
	"BCHABC": "BCH",
	"BCHSV":  "BSV",
}

// CommonCurrencyCode replaces legacy or ambiguous tickers with their common name.
// The input is expected to be uppercased already; unknown codes pass through.
func CommonCurrencyCode(code string) string {
	if c, ok := commonCurrencies[code]; ok {
		return c
	}
	return code
}

// CanonicalCurrency uppercases a venue code and applies normalize, if any.
func CanonicalCurrency(code string, normalize CurrencyNormalizer) string {
	upper := strings.ToUpper(code)
	if normalize == nil {
		return upper
	}
	return normalize(upper)
}
