package signals

import (
	"math"
	"strconv"
	"strings"

	"github.com/vadiminshakov/chainguardian/internal/domain"
)

// Upper bounds of the sentiment bands, inclusive.
const (
	extremeFearMax = 25
	fearMax        = 45
	neutralMax     = 54
	greedMax       = 75
)

// DefaultFearBuyThreshold is used when no threshold is configured.
const DefaultFearBuyThreshold = domain.DefaultFearBuyThreshold

// FearBuy reports whether raw parses as a number not above threshold.
// Non-numeric input such as "n/a" never fires.
func FearBuy(raw string, threshold int) bool {
	v, ok := parseIndex(raw)
	return ok && v <= float64(threshold)
}

// FearBuyIndex is FearBuy for an already decoded index.
func FearBuyIndex(idx domain.SentimentIndex, threshold int) bool {
	return idx.Value != nil && *idx.Value <= threshold
}

// Classify maps a 0-100 index value to its band.
func Classify(value int) domain.Band {
	switch {
	case value < 0 || value > 100:
		return domain.BandUnknown
	case value <= extremeFearMax:
		return domain.BandExtremeFear
	case value <= fearMax:
		return domain.BandFear
	case value <= neutralMax:
		return domain.BandNeutral
	case value <= greedMax:
		return domain.BandGreed
	default:
		return domain.BandExtremeGreed
	}
}

// ClassifyIndex returns BandUnknown for a missing value.
func ClassifyIndex(idx domain.SentimentIndex) domain.Band {
	if idx.Value == nil {
		return domain.BandUnknown
	}
	return Classify(*idx.Value)
}

// Sentiment bundles the index with its band and fear-buy hint.
func Sentiment(idx domain.SentimentIndex, threshold int) domain.SentimentSignal {
	return domain.SentimentSignal{
		Index:   idx,
		Band:    ClassifyIndex(idx),
		FearBuy: FearBuyIndex(idx, threshold),
	}
}

func parseIndex(raw string) (float64, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
