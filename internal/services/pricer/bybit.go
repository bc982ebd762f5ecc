package pricer

import (
	"context"
	"strings"

	"github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/clients"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
)

// Bybit prices bases from the V5 spot tickers.
type Bybit struct {
	quote   string
	retrier *retrier.Retrier
	tickers func(ctx context.Context) ([]bybit.V5GetTickersSpotItem, error)
}

// NewBybit creates a Bybit oracle. A nil client uses the public API.
func NewBybit(client *bybit.Client, quote string, r *retrier.Retrier) *Bybit {
	if client == nil {
		client = clients.NewBybitClient()
	}
	if quote == "" {
		quote = domain.DefaultQuote
	}
	return &Bybit{
		quote:   strings.ToUpper(quote),
		retrier: r,
		tickers: func(ctx context.Context) ([]bybit.V5GetTickersSpotItem, error) {
			result, err := client.V5().Market().GetTickers(bybit.V5GetTickersParam{
				Category: "spot",
			})
			if err != nil {
				return nil, err
			}
			return result.Result.Spot.List, nil
		},
	}
}

func (b *Bybit) Name() string { return SourceBybit }

func (b *Bybit) Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error) {
	bases = normalizeBases(bases)
	out := make(map[string]domain.Quote, len(bases))
	if len(bases) == 0 {
		return out, nil
	}

	items, err := retrier.DoWithData(b.retrier, ctx, b.tickers)
	if err != nil {
		return out, errors.Wrap(err, "bybit spot tickers")
	}

	bySymbol := make(map[string]bybit.V5GetTickersSpotItem, len(items))
	for _, it := range items {
		bySymbol[string(it.Symbol)] = it
	}

	for _, base := range bases {
		if base == b.quote {
			out[base] = unitQuote()
			continue
		}
		it, ok := bySymbol[base+b.quote]
		if !ok {
			continue
		}
		// price24hPcnt is a fraction, 0.0123 means 1.23%.
		if q, ok := parseQuote(it.LastPrice, it.Price24HPcnt, 100); ok {
			out[base] = q
		}
	}
	return out, nil
}
