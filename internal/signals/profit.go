// Package signals derives advisory signals from position snapshots and the
// market sentiment index. Every function here is pure and degrades to
// "no signal" on missing or degenerate input.
package signals

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

const percentageMultiplier = 100

var hundred = decimal.NewFromInt(percentageMultiplier)

// ProfitTakeDecision explains the outcome of a profit-take evaluation.
type ProfitTakeDecision struct {
	ShouldSell bool
	Qty        decimal.Decimal
	GainPct    decimal.Decimal
	Reason     string
}

// EvaluateProfitTake checks whether the position gained at least profitPct
// percent over avg_buy and, if so, how much to sell to recover the cost basis.
func EvaluateProfitTake(s domain.Snapshot, profitPct decimal.Decimal) ProfitTakeDecision {
	// guard: no usable average price
	if !s.AvgBuy.Valid || !s.AvgBuy.Decimal.IsPositive() {
		return ProfitTakeDecision{Reason: "no_avg_price"}
	}
	if !s.RemainingQty.IsPositive() {
		return ProfitTakeDecision{Reason: "no_position"}
	}
	if !s.PriceKnown() {
		return ProfitTakeDecision{Reason: "price_unknown"}
	}

	current := s.CurrentPrice.Decimal
	gain := current.Sub(s.AvgBuy.Decimal).Div(s.AvgBuy.Decimal).Mul(hundred)
	if gain.LessThan(profitPct) {
		return ProfitTakeDecision{GainPct: gain, Reason: "gain_below_threshold"}
	}

	costBasis := s.CostBasis
	if !costBasis.IsPositive() {
		costBasis = s.RemainingQty.Mul(s.AvgBuy.Decimal)
	}
	qty := decimal.Min(s.RemainingQty, costBasis.Div(current))

	return ProfitTakeDecision{
		ShouldSell: true,
		Qty:        qty,
		GainPct:    gain,
		Reason:     "gain_above_threshold",
	}
}

// ProfitTake reports whether to take profit and the quantity to sell.
// It returns (false, 0) whenever a precondition fails.
func ProfitTake(s domain.Snapshot, profitPct decimal.Decimal) (bool, decimal.Decimal) {
	d := EvaluateProfitTake(s, profitPct)
	if !d.ShouldSell {
		return false, decimal.Zero
	}
	return true, d.Qty
}

// Thresholds resolves the profit-take percentage per snapshot key.
type Thresholds struct {
	Default decimal.Decimal
	// Custom overrides keyed by snapshot key or base asset.
	Custom map[string]decimal.Decimal
}

// ProfitPctFor returns the override for key (exact, then by base) or the default.
func (t Thresholds) ProfitPctFor(key string) decimal.Decimal {
	if v, ok := t.lookup(key); ok {
		return v
	}
	if v, ok := t.lookup(domain.BaseOf(key)); ok {
		return v
	}
	return t.Default
}

func (t Thresholds) lookup(key string) (decimal.Decimal, bool) {
	if v, ok := t.Custom[key]; ok && v.IsPositive() {
		return v, true
	}
	for k, v := range t.Custom {
		if strings.EqualFold(k, key) && v.IsPositive() {
			return v, true
		}
	}
	return decimal.Zero, false
}

// ProfitTakes evaluates every snapshot and returns the fired signals sorted by key.
func ProfitTakes(snaps map[string]domain.Snapshot, thresholds Thresholds) []domain.ProfitTakeSignal {
	out := make([]domain.ProfitTakeSignal, 0)
	for key, s := range snaps {
		pct := thresholds.ProfitPctFor(key)
		d := EvaluateProfitTake(s, pct)
		if !d.ShouldSell {
			continue
		}
		out = append(out, domain.ProfitTakeSignal{
			Key:          key,
			Qty:          d.Qty,
			ThresholdPct: pct,
			GainPct:      d.GainPct,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
