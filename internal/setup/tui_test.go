package setup

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/ledger"
)

func TestOrderInput_Build(t *testing.T) {
	tests := []struct {
		name    string
		in      OrderInput
		want    domain.Order
		wantErr error
	}{
		{
			name: "bare symbol buy",
			in:   OrderInput{Asset: " btc ", Side: "buy", Amount: "0.5", Price: "30000", Exchange: " binance ", Note: "dca"},
			want: domain.Order{
				Symbol:   "BTC",
				Side:     domain.SideBuy,
				Amount:   decimal.RequireFromString("0.5"),
				Price:    decimal.RequireFromString("30000"),
				Exchange: "binance",
				Note:     "dca",
				Status:   domain.StatusRecorded,
			},
		},
		{
			name: "trailing slash takes default quote",
			in:   OrderInput{Asset: "eth/", Side: "sell", Amount: "2", Price: ""},
			want: domain.Order{
				Symbol: "ETH/USDT",
				Side:   domain.SideSell,
				Amount: decimal.NewFromInt(2),
				Price:  decimal.Zero,
				Status: domain.StatusRecorded,
			},
		},
		{
			name:    "missing asset",
			in:      OrderInput{Asset: "  ", Side: "buy", Amount: "1"},
			wantErr: ledger.ErrEmptySymbol,
		},
		{
			name:    "unknown side",
			in:      OrderInput{Asset: "BTC", Side: "hold", Amount: "1"},
			wantErr: ledger.ErrUnknownSide,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Build("USDT")
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Symbol, got.Symbol)
			assert.Equal(t, tt.want.Side, got.Side)
			assert.True(t, tt.want.Amount.Equal(got.Amount))
			assert.True(t, tt.want.Price.Equal(got.Price))
			assert.Equal(t, tt.want.Exchange, got.Exchange)
			assert.Equal(t, tt.want.Note, got.Note)
			assert.Equal(t, tt.want.Status, got.Status)
		})
	}
}

func TestOrderInput_BuildRejectsBadNumbers(t *testing.T) {
	tests := []struct {
		name string
		in   OrderInput
	}{
		{"empty amount", OrderInput{Asset: "BTC", Side: "buy", Amount: ""}},
		{"zero amount", OrderInput{Asset: "BTC", Side: "buy", Amount: "0"}},
		{"negative amount", OrderInput{Asset: "BTC", Side: "buy", Amount: "-1"}},
		{"text amount", OrderInput{Asset: "BTC", Side: "buy", Amount: "lots"}},
		{"negative price", OrderInput{Asset: "BTC", Side: "buy", Amount: "1", Price: "-5"}},
		{"text price", OrderInput{Asset: "BTC", Side: "buy", Amount: "1", Price: "cheap"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.in.Build("USDT")
			assert.Error(t, err)
		})
	}
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateAmount("1.25"))
	assert.Error(t, validateAmount("0"))
	assert.NoError(t, validatePrice(""))
	assert.NoError(t, validatePrice("0"))
	assert.Error(t, validatePrice("-0.1"))
	assert.NoError(t, validateAsset("BTC/USDT"))
	assert.Error(t, validateAsset(""))
	assert.Error(t, validateAsset("BTC USDT"))
}

func TestSummary(t *testing.T) {
	o := domain.Order{
		Symbol: "BTC",
		Side:   domain.SideBuy,
		Amount: decimal.NewFromInt(1),
		Note:   "first",
	}
	s := Summary("main", o)
	assert.Contains(t, s, "Account:  main")
	assert.Contains(t, s, "Price:    unknown")
	assert.Contains(t, s, "Note:     first")
	assert.NotContains(t, s, "Exchange")
}
