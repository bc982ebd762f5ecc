// Package clients constructs the read-only exchange and chain clients used
// for market data. None of them is given trading credentials.
package clients

import (
	"github.com/adshao/go-binance/v2"
)

// NewBinanceClient returns a Binance client for the public market endpoints.
func NewBinanceClient() *binance.Client {
	return binance.NewClient("", "")
}
