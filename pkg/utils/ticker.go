package utils

import (
	"strings"
)

// Common ticker aliases for US equities and indexes, resolved to the
// Yahoo Finance symbol.
var tickerAliases = map[string]string{
	"GOOGLE":       "GOOGL",
	"ALPHABET":     "GOOGL",
	"FACEBOOK":     "META",
	"BERKSHIRE":    "BRK-B",
	"BRK.A":        "BRK-A",
	"BRK.B":        "BRK-B",
	"SP500":        "^GSPC",
	"S&P500":       "^GSPC",
	"S&P 500":      "^GSPC",
	"SPX":          "^GSPC",
	"NASDAQ":       "^IXIC",
	"NASDAQ100":    "^NDX",
	"DOW":          "^DJI",
	"DJIA":         "^DJI",
	"RUSSELL2000":  "^RUT",
	"RUSSELL 2000": "^RUT",
	"VIX":          "^VIX",
}

// NormalizeTicker normalizes a user-input ticker to Yahoo Finance format.
// It handles aliases, uppercasing, whitespace, a leading $, and converts
// class-share dots to dashes (BRK.B → BRK-B).
func NormalizeTicker(ticker string) string {
	ticker = strings.TrimSpace(strings.ToUpper(ticker))

	// Remove $ prefix if present (common in chat)
	ticker = strings.TrimPrefix(ticker, "$")

	if canonical, ok := tickerAliases[ticker]; ok {
		return canonical
	}

	// Yahoo uses dashes for share classes.
	if !strings.HasPrefix(ticker, "^") {
		ticker = strings.ReplaceAll(ticker, ".", "-")
	}

	return ticker
}

// IsIndex checks if the ticker refers to an index rather than a stock.
func IsIndex(ticker string) bool {
	return strings.HasPrefix(NormalizeTicker(ticker), "^")
}
