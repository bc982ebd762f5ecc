package pricer

import (
	"context"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/clients"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
)

// Binance prices bases against a single quote asset using 24h ticker stats.
type Binance struct {
	quote   string
	retrier *retrier.Retrier
	tickers func(ctx context.Context) ([]*binance.PriceChangeStats, error)
}

// NewBinance creates a Binance oracle. A nil client uses the public API.
func NewBinance(client *binance.Client, quote string, r *retrier.Retrier) *Binance {
	if client == nil {
		client = clients.NewBinanceClient()
	}
	if quote == "" {
		quote = domain.DefaultQuote
	}
	return &Binance{
		quote:   strings.ToUpper(quote),
		retrier: r,
		tickers: func(ctx context.Context) ([]*binance.PriceChangeStats, error) {
			return client.NewListPriceChangeStatsService().Do(ctx)
		},
	}
}

func (b *Binance) Name() string { return SourceBinance }

// Prices fetches all tickers once and picks BASE+QUOTE symbols from them.
func (b *Binance) Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error) {
	bases = normalizeBases(bases)
	out := make(map[string]domain.Quote, len(bases))
	if len(bases) == 0 {
		return out, nil
	}

	stats, err := retrier.DoWithData(b.retrier, ctx, b.tickers)
	if err != nil {
		return out, errors.Wrap(err, "binance ticker stats")
	}

	bySymbol := make(map[string]*binance.PriceChangeStats, len(stats))
	for _, s := range stats {
		if s != nil {
			bySymbol[s.Symbol] = s
		}
	}

	for _, base := range bases {
		if base == b.quote {
			out[base] = unitQuote()
			continue
		}
		s, ok := bySymbol[base+b.quote]
		if !ok {
			continue
		}
		if q, ok := parseQuote(s.LastPrice, s.PriceChangePercent, 1); ok {
			out[base] = q
		}
	}
	return out, nil
}
