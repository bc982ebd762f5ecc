package signals

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

func TestRebalance(t *testing.T) {
	snaps := map[string]domain.Snapshot{
		// 3 * 200 = 600 -> 60%
		"BTC/USDT": snapshot(100, 200, 3, 300),
		// 40 * 10 = 400 -> 40%
		"ETH/USDT": snapshot(5, 10, 40, 200),
		// unpriced, excluded from the total
		"XRP/USDT": snapshot(1, 0, 100, 100),
	}
	targets := map[string]decimal.Decimal{
		"BTC/USDT": decimal.NewFromInt(50),
		"ETH/USDT": decimal.NewFromInt(38),
		"XRP/USDT": decimal.NewFromInt(12),
	}

	hints := Rebalance(snaps, targets, decimal.NewFromInt(5))
	require.Len(t, hints, 2)

	assert.Equal(t, "BTC/USDT", hints[0].Key)
	assert.Equal(t, domain.RebalanceSell, hints[0].Action)
	assert.True(t, decimal.NewFromInt(10).Equal(hints[0].Drift))
	assert.True(t, decimal.NewFromInt(100).Equal(hints[0].Value))

	assert.Equal(t, "XRP/USDT", hints[1].Key)
	assert.Equal(t, domain.RebalanceBuy, hints[1].Action)
	assert.True(t, decimal.NewFromInt(120).Equal(hints[1].Value))
}

func TestRebalance_Degenerate(t *testing.T) {
	assert.Empty(t, Rebalance(nil, nil, decimal.Zero))
	assert.Empty(t, Rebalance(map[string]domain.Snapshot{"A": snapshot(1, 0, 1, 1)},
		map[string]decimal.Decimal{"A": decimal.NewFromInt(100)}, decimal.Zero))
}

func TestRebalance_ResolvesTargetsByBase(t *testing.T) {
	tests := []struct {
		name    string
		snaps   map[string]domain.Snapshot
		targets map[string]decimal.Decimal
		want    []domain.RebalanceHint
	}{
		{
			name: "base targets over symbol keys",
			snaps: map[string]domain.Snapshot{
				"BTC/USDT": snapshot(100, 200, 1, 100),
				"ETH/USDT": snapshot(10, 20, 10, 100),
			},
			targets: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(50), "eth": decimal.NewFromInt(50)},
		},
		{
			name: "symbol targets over base keys",
			snaps: map[string]domain.Snapshot{
				"BTC": snapshot(100, 200, 1, 100),
				"ETH": snapshot(10, 20, 10, 100),
			},
			targets: map[string]decimal.Decimal{"BTC/USDT": decimal.NewFromInt(50), "ETH/USDT": decimal.NewFromInt(50)},
		},
		{
			name: "base target sums every quote",
			snaps: map[string]domain.Snapshot{
				"BTC/USDT": snapshot(100, 200, 1, 100),
				"BTC/USDC": snapshot(100, 200, 1, 100),
				"ETH/USDT": snapshot(10, 20, 10, 100),
			},
			targets: map[string]decimal.Decimal{"BTC": decimal.NewFromInt(50)},
			want: []domain.RebalanceHint{{
				Key:           "BTC",
				CurrentWeight: decimal.RequireFromString("66.6666666666666667"),
				TargetWeight:  decimal.NewFromInt(50),
				Action:        domain.RebalanceSell,
			}},
		},
		{
			name: "quoted target does not match another quote",
			snaps: map[string]domain.Snapshot{
				"BTC/USDC": snapshot(100, 200, 1, 100),
				"ETH/USDT": snapshot(10, 20, 10, 100),
			},
			targets: map[string]decimal.Decimal{"BTC/USDT": decimal.NewFromInt(50)},
			want: []domain.RebalanceHint{{
				Key:          "BTC/USDT",
				TargetWeight: decimal.NewFromInt(50),
				Action:       domain.RebalanceBuy,
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hints := Rebalance(tt.snaps, tt.targets, decimal.NewFromInt(5))
			require.Len(t, hints, len(tt.want))
			for i, want := range tt.want {
				assert.Equal(t, want.Key, hints[i].Key)
				assert.Equal(t, want.Action, hints[i].Action)
				assert.True(t, want.TargetWeight.Equal(hints[i].TargetWeight))
				assert.True(t, want.CurrentWeight.Round(4).Equal(hints[i].CurrentWeight.Round(4)),
					"weight %s", hints[i].CurrentWeight)
			}
		})
	}
}
