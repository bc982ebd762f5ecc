// Package history derives trailing-window price changes and RSI from daily
// price series.
package history

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/clients"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/indicators"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
)

const (
	// MaxDays is the longest window tracked.
	MaxDays = 365
	// RSIPeriod is the RSI lookback in daily samples.
	RSIPeriod = 14

	day = 24 * time.Hour
)

var hundred = decimal.NewFromInt(100)

// Source returns daily price points for base, oldest first.
type Source interface {
	History(ctx context.Context, base string, days int) ([]domain.PricePoint, error)
}

// Binance reads daily close prices from Binance klines.
type Binance struct {
	quote   string
	retrier *retrier.Retrier
	klines  func(ctx context.Context, symbol string, limit int) ([]*binance.Kline, error)
}

// NewBinance creates a kline-backed history source. A nil client uses the
// public API.
func NewBinance(client *binance.Client, quote string, r *retrier.Retrier) *Binance {
	if client == nil {
		client = clients.NewBinanceClient()
	}
	if quote == "" {
		quote = domain.DefaultQuote
	}
	if r == nil {
		r = retrier.New(retrier.WithRetryIf(retrier.IsRetryable))
	}
	return &Binance{
		quote:   strings.ToUpper(quote),
		retrier: r,
		klines: func(ctx context.Context, symbol string, limit int) ([]*binance.Kline, error) {
			return client.NewKlinesService().
				Symbol(symbol).
				Interval("1d").
				Limit(limit).
				Do(ctx)
		},
	}
}

// History returns days+2 daily closes. Points are stamped with the candle
// close time, so the oldest one must close before now-days for the longest
// window to have a reference.
func (b *Binance) History(ctx context.Context, base string, days int) ([]domain.PricePoint, error) {
	symbol := strings.ToUpper(base) + b.quote

	klines, err := retrier.DoWithData(b.retrier, ctx, func(ctx context.Context) ([]*binance.Kline, error) {
		return b.klines(ctx, symbol, days+2)
	})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to fetch klines from Binance for %s", symbol)
	}

	points := make([]domain.PricePoint, 0, len(klines))
	for i, k := range klines {
		closePrice, err := decimal.NewFromString(k.Close)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse close price at index %d", i)
		}
		points = append(points, domain.PricePoint{
			Time:  time.UnixMilli(k.CloseTime).UTC(),
			Price: closePrice,
		})
	}
	return points, nil
}

// WindowChange returns the percentage change from the price days ago to the
// latest price. The reference is the newest point at or before now-days.
// It is null when the series does not reach that far back or the reference
// price is not positive.
func WindowChange(points []domain.PricePoint, days int, now time.Time) decimal.NullDecimal {
	if len(points) < 2 || days <= 0 {
		return decimal.NullDecimal{}
	}

	sorted := make([]domain.PricePoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Time.Before(sorted[j].Time) })

	cutoff := now.Add(-time.Duration(days) * day)
	idx := sort.Search(len(sorted), func(i int) bool { return sorted[i].Time.After(cutoff) })
	if idx == 0 {
		return decimal.NullDecimal{}
	}

	ref := sorted[idx-1].Price
	last := sorted[len(sorted)-1].Price
	if !ref.IsPositive() {
		return decimal.NullDecimal{}
	}
	return domain.NullOf(last.Sub(ref).Div(ref).Mul(hundred))
}

// RSI returns the latest RSI of closes for the given period, null when the
// series is too short.
func RSI(closes []decimal.Decimal, period int) decimal.NullDecimal {
	v, ok := indicators.LatestRSI(closes, period)
	if !ok {
		return decimal.NullDecimal{}
	}
	return domain.NullOf(v)
}

// Changes fetches a year of history for base and derives all windows.
// Failures yield empty changes along with the error.
func Changes(ctx context.Context, src Source, base string, now time.Time) (domain.WindowChanges, error) {
	points, err := src.History(ctx, base, MaxDays)
	if err != nil {
		return domain.WindowChanges{}, err
	}
	return Compute(points, now), nil
}

// Compute derives window changes and RSI from points.
func Compute(points []domain.PricePoint, now time.Time) domain.WindowChanges {
	closes := make([]decimal.Decimal, len(points))
	for i, p := range points {
		closes[i] = p.Price
	}

	return domain.WindowChanges{
		Change7d:   WindowChange(points, 7, now),
		Change30d:  WindowChange(points, 30, now),
		Change90d:  WindowChange(points, 90, now),
		Change365d: WindowChange(points, MaxDays, now),
		RSI14:      RSI(closes, RSIPeriod),
	}
}
