package signals

import (
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

// Rebalance compares market-value weights with target weights (percent of
// the priced portfolio) and emits a hint for every key whose drift exceeds
// tolerancePct. Keys without a known price are left out of the total.
// A target matches snapshots by key, ignoring case, and falls back to the
// base asset when either side has no quote, so "BTC" covers "BTC/USDT".
func Rebalance(snaps map[string]domain.Snapshot, targets map[string]decimal.Decimal, tolerancePct decimal.Decimal) []domain.RebalanceHint {
	hints := make([]domain.RebalanceHint, 0)
	if len(targets) == 0 {
		return hints
	}

	values := make(map[string]decimal.Decimal, len(snaps))
	total := decimal.Zero
	for key, s := range snaps {
		v := s.MarketValue()
		values[key] = v
		total = total.Add(v)
	}
	if !total.IsPositive() {
		return hints
	}

	for key, target := range targets {
		if target.IsNegative() {
			continue
		}
		current := targetValue(values, key).Div(total).Mul(hundred)
		drift := current.Sub(target)
		if drift.Abs().LessThanOrEqual(tolerancePct) {
			continue
		}

		action := domain.RebalanceBuy
		if drift.IsPositive() {
			action = domain.RebalanceSell
		}
		hints = append(hints, domain.RebalanceHint{
			Key:           key,
			CurrentWeight: current,
			TargetWeight:  target,
			Drift:         drift,
			Action:        action,
			Value:         drift.Abs().Mul(total).Div(hundred),
		})
	}

	sort.Slice(hints, func(i, j int) bool { return hints[i].Key < hints[j].Key })
	return hints
}

// targetValue sums the market values of the snapshots a target key resolves to.
func targetValue(values map[string]decimal.Decimal, target string) decimal.Decimal {
	exact, byBase := decimal.Zero, decimal.Zero
	var found bool
	for key, v := range values {
		if strings.EqualFold(key, target) {
			exact = exact.Add(v)
			found = true
			continue
		}
		if !strings.Contains(key, "/") || !strings.Contains(target, "/") {
			if domain.BaseOf(key) == domain.BaseOf(target) {
				byBase = byBase.Add(v)
			}
		}
	}
	if found {
		return exact
	}
	return byBase
}
