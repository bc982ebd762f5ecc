// Package domain defines core data structures used throughout the portfolio tracker.
package domain

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// GroupingMode selects the key orders are aggregated under.
type GroupingMode string

const (
	// GroupBySymbol aggregates per full pair, e.g. "BTC/USDT".
	GroupBySymbol GroupingMode = "symbol"
	// GroupByBase aggregates per base asset, e.g. "BTC".
	GroupByBase GroupingMode = "base"
)

// ParseGroupingMode returns the mode for s, empty string means GroupBySymbol.
func ParseGroupingMode(s string) (GroupingMode, error) {
	switch GroupingMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", GroupBySymbol:
		return GroupBySymbol, nil
	case GroupByBase:
		return GroupByBase, nil
	default:
		return "", errors.Errorf("unknown grouping mode %q", s)
	}
}

// Pair cryptocurrency trading pair.
type Pair struct {
	// Base asset symbol, uppercased.
	Base string
	// Quote currency symbol, uppercased.
	Quote string
}

// ParsePair splits symbol on "/". A symbol without a quote part gets defaultQuote.
func ParsePair(symbol, defaultQuote string) Pair {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	base, quote, found := strings.Cut(symbol, "/")
	base = strings.TrimSpace(base)
	quote = strings.TrimSpace(quote)
	if !found || quote == "" {
		quote = strings.ToUpper(strings.TrimSpace(defaultQuote))
	}

	return Pair{Base: base, Quote: quote}
}

// BaseOf returns the uppercased base asset of a pair symbol.
func BaseOf(symbol string) string {
	base, _, _ := strings.Cut(symbol, "/")
	return strings.ToUpper(strings.TrimSpace(base))
}

// String returns the string representation.
func (p Pair) String() string {
	if p.Quote == "" {
		return p.Base
	}
	return fmt.Sprintf("%s/%s", p.Base, p.Quote)
}

// Symbol returns the concatenated exchange symbol, e.g. BTCUSDT.
func (p Pair) Symbol() string {
	return p.Base + p.Quote
}

// Key returns the aggregation key of the pair for the grouping mode.
func (p Pair) Key(mode GroupingMode) string {
	if mode == GroupByBase {
		return p.Base
	}
	return p.String()
}
