package clients

import (
	"github.com/hirokisan/bybit/v2"
)

// NewBybitClient returns an unauthenticated Bybit client.
func NewBybitClient() *bybit.Client {
	return bybit.NewClient()
}
