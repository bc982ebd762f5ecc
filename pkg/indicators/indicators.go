// Package indicators wraps the technical analysis indicators used on price
// series, converting between decimals and the float pipelines of the
// indicator library.
package indicators

import (
	"fmt"
	"math"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/momentum"
	"github.com/shopspring/decimal"
)

// CalculateRSI calculates the Relative Strength Index for the given period.
// Non-finite outputs are dropped.
func CalculateRSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if period <= 0 {
		return nil, fmt.Errorf("invalid RSI period %d", period)
	}
	if len(closes) < period+1 {
		return nil, fmt.Errorf("not enough data points for RSI: need %d, got %d", period+1, len(closes))
	}

	rsi := momentum.NewRsiWithPeriod[float64](period)
	inputChan := helper.SliceToChan(decimalsToFloat64(closes))
	rsiFloat := helper.ChanToSlice(rsi.Compute(inputChan))

	return float64ToDecimals(rsiFloat), nil
}

// LatestRSI returns the most recent RSI value rounded to two places, ok is
// false when the series is too short.
func LatestRSI(closes []decimal.Decimal, period int) (decimal.Decimal, bool) {
	series, err := CalculateRSI(closes, period)
	if err != nil || len(series) == 0 {
		return decimal.Zero, false
	}
	return series[len(series)-1].Round(2), true
}

// decimalsToFloat64 converts a slice of decimal.Decimal to []float64.
func decimalsToFloat64(decimals []decimal.Decimal) []float64 {
	result := make([]float64, len(decimals))
	for i, d := range decimals {
		result[i] = d.InexactFloat64()
	}
	return result
}

// float64ToDecimals converts a slice of float64 to []decimal.Decimal,
// skipping NaN and infinities.
func float64ToDecimals(floats []float64) []decimal.Decimal {
	result := make([]decimal.Decimal, 0, len(floats))
	for _, f := range floats {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		result = append(result, decimal.NewFromFloat(f))
	}
	return result
}
