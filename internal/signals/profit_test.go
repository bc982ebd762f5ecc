package signals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

func snapshot(avg, current, qty, cost float64) domain.Snapshot {
	s := domain.Snapshot{
		RemainingQty: decimal.NewFromFloat(qty),
		CostBasis:    decimal.NewFromFloat(cost),
	}
	if avg != 0 {
		s.AvgBuy = domain.NullOf(decimal.NewFromFloat(avg))
	}
	if current != 0 {
		s.CurrentPrice = domain.NullOf(decimal.NewFromFloat(current))
	}
	return s
}

func TestProfitTake(t *testing.T) {
	tests := []struct {
		name       string
		snapshot   domain.Snapshot
		profitPct  float64
		wantSignal bool
		wantQty    float64
	}{
		{
			name:       "4x price at 300 percent threshold",
			snapshot:   snapshot(100, 400, 1, 100),
			profitPct:  300,
			wantSignal: true,
			wantQty:    0.25,
		},
		{
			name:       "3x price is only 200 percent gain",
			snapshot:   snapshot(100, 300, 1, 100),
			profitPct:  300,
			wantSignal: false,
		},
		{
			name:       "quantity capped at remaining",
			snapshot:   snapshot(100, 150, 0.1, 1000),
			profitPct:  10,
			wantSignal: true,
			wantQty:    0.1,
		},
		{
			name:       "no average price",
			snapshot:   snapshot(0, 400, 1, 100),
			profitPct:  300,
			wantSignal: false,
		},
		{
			name:       "no position",
			snapshot:   snapshot(100, 400, 0, 0),
			profitPct:  300,
			wantSignal: false,
		},
		{
			name:       "unknown current price",
			snapshot:   snapshot(100, 0, 1, 100),
			profitPct:  300,
			wantSignal: false,
		},
		{
			name:       "negative current price",
			snapshot:   snapshot(100, -5, 1, 100),
			profitPct:  0,
			wantSignal: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signal, qty := ProfitTake(tt.snapshot, decimal.NewFromFloat(tt.profitPct))
			assert.Equal(t, tt.wantSignal, signal)
			assert.True(t, decimal.NewFromFloat(tt.wantQty).Equal(qty), "expected qty %v, got %s", tt.wantQty, qty)
		})
	}
}

func TestEvaluateProfitTake_Reasons(t *testing.T) {
	assert.Equal(t, "no_avg_price", EvaluateProfitTake(snapshot(0, 1, 1, 1), decimal.Zero).Reason)
	assert.Equal(t, "no_position", EvaluateProfitTake(snapshot(1, 1, 0, 1), decimal.Zero).Reason)
	assert.Equal(t, "price_unknown", EvaluateProfitTake(snapshot(1, 0, 1, 1), decimal.Zero).Reason)

	d := EvaluateProfitTake(snapshot(100, 150, 1, 100), decimal.NewFromInt(100))
	assert.Equal(t, "gain_below_threshold", d.Reason)
	assert.True(t, decimal.NewFromInt(50).Equal(d.GainPct))
}

func TestThresholds_ProfitPctFor(t *testing.T) {
	th := Thresholds{
		Default: decimal.NewFromInt(300),
		Custom: map[string]decimal.Decimal{
			"ETH/USDT": decimal.NewFromInt(50),
			"btc":      decimal.NewFromInt(100),
			"XRP/USDT": decimal.Zero,
		},
	}

	assert.True(t, decimal.NewFromInt(50).Equal(th.ProfitPctFor("ETH/USDT")))
	assert.True(t, decimal.NewFromInt(100).Equal(th.ProfitPctFor("BTC/USDT")))
	assert.True(t, decimal.NewFromInt(100).Equal(th.ProfitPctFor("BTC")))
	assert.True(t, decimal.NewFromInt(300).Equal(th.ProfitPctFor("XRP/USDT")))
	assert.True(t, decimal.NewFromInt(300).Equal(th.ProfitPctFor("SOL/USDT")))
}

func TestProfitTakes(t *testing.T) {
	snaps := map[string]domain.Snapshot{
		"BTC/USDT": snapshot(100, 400, 1, 100),
		"ETH/USDT": snapshot(10, 16, 2, 20),
		"XRP/USDT": snapshot(1, 1.1, 100, 100),
	}
	th := Thresholds{
		Default: decimal.NewFromInt(300),
		Custom:  map[string]decimal.Decimal{"ETH": decimal.NewFromInt(50)},
	}

	fired := ProfitTakes(snaps, th)

	if assert.Len(t, fired, 2) {
		assert.Equal(t, "BTC/USDT", fired[0].Key)
		assert.Equal(t, "ETH/USDT", fired[1].Key)
		assert.True(t, decimal.NewFromInt(20).Div(decimal.NewFromInt(16)).Equal(fired[1].Qty))
		assert.True(t, decimal.NewFromInt(50).Equal(fired[1].ThresholdPct))
	}
}
