package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePair(t *testing.T) {
	tests := []struct {
		symbol    string
		want      Pair
		bySymbol  string
		byBase    string
		exchSymbl string
	}{
		{"BTC/USDT", Pair{Base: "BTC", Quote: "USDT"}, "BTC/USDT", "BTC", "BTCUSDT"},
		{" eth / usdc ", Pair{Base: "ETH", Quote: "USDC"}, "ETH/USDC", "ETH", "ETHUSDC"},
		{"sol", Pair{Base: "SOL", Quote: "USDT"}, "SOL/USDT", "SOL", "SOLUSDT"},
		{"ADA/", Pair{Base: "ADA", Quote: "USDT"}, "ADA/USDT", "ADA", "ADAUSDT"},
	}

	for _, tt := range tests {
		t.Run(tt.symbol, func(t *testing.T) {
			got := ParsePair(tt.symbol, "usdt")
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.bySymbol, got.Key(GroupBySymbol))
			assert.Equal(t, tt.byBase, got.Key(GroupByBase))
			assert.Equal(t, tt.exchSymbl, got.Symbol())
		})
	}
}

func TestPair_StringWithoutQuote(t *testing.T) {
	assert.Equal(t, "BTC", ParsePair("btc", "").String())
}

func TestBaseOf(t *testing.T) {
	assert.Equal(t, "BTC", BaseOf("btc/usdt"))
	assert.Equal(t, "ETH", BaseOf(" eth "))
}

func TestParseGroupingMode(t *testing.T) {
	for in, want := range map[string]GroupingMode{"": GroupBySymbol, "symbol": GroupBySymbol, " BASE ": GroupByBase} {
		got, err := ParseGroupingMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseGroupingMode("exchange")
	assert.EqualError(t, err, `unknown grouping mode "exchange"`)
}
