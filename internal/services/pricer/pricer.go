// Package pricer implements the price oracles used to value positions.
// Every oracle answers for a whole batch of base assets in one call.
package pricer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	hyperliquid "github.com/sonirico/go-hyperliquid"
	"github.com/vadiminshakov/chainguardian/internal/clients"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
	"go.uber.org/zap"
)

// Supported price sources.
const (
	SourceCoinGecko   = "coingecko"
	SourceBinance     = "binance"
	SourceBybit       = "bybit"
	SourceHyperliquid = "hyperliquid"
)

const defaultHTTPTimeout = 10 * time.Second

// Oracle returns quotes keyed by uppercased base asset. Unknown bases are
// omitted from the result rather than reported as errors.
type Oracle interface {
	Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error)
	Name() string
}

// Options configure oracle construction.
type Options struct {
	Source string
	// Quote is the currency prices are expressed in, e.g. USDT or USD.
	Quote string
	// CoinGeckoIDs maps base symbols to CoinGecko coin ids.
	CoinGeckoIDs map[string]string
	// CoinGeckoURL overrides the CoinGecko API root.
	CoinGeckoURL   string
	HyperliquidURL string
	CacheTTL       time.Duration
	HTTPClient     *http.Client
	Retrier        *retrier.Retrier
	Logger         *zap.Logger
}

// New builds the oracle for opts.Source wrapped in a response cache.
func New(opts Options) (Oracle, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Retrier == nil {
		opts.Retrier = newRetrier(opts.Logger)
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	var (
		oracle Oracle
		err    error
	)
	switch strings.ToLower(opts.Source) {
	case "", SourceCoinGecko:
		cg := NewCoinGecko(opts.HTTPClient, opts.Quote, opts.CoinGeckoIDs, opts.Retrier).
			WithLimiter(NewCoinGeckoLimiter())
		if opts.CoinGeckoURL != "" {
			cg.WithBaseURL(opts.CoinGeckoURL)
		}
		oracle = cg
	case SourceBinance:
		oracle = NewBinance(nil, opts.Quote, opts.Retrier)
	case SourceBybit:
		oracle = NewBybit(nil, opts.Quote, opts.Retrier)
	case SourceHyperliquid:
		var info *hyperliquid.Info
		info, err = clients.NewHyperliquidInfo(context.Background(), opts.HyperliquidURL)
		if err == nil {
			oracle, err = NewHyperliquid(info, opts.Retrier)
		}
	default:
		return nil, fmt.Errorf("unsupported price source: %s", opts.Source)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "create %s oracle", opts.Source)
	}

	if opts.CacheTTL > 0 {
		oracle = NewCached(oracle, opts.CacheTTL)
	}
	return oracle, nil
}

func newRetrier(l *zap.Logger) *retrier.Retrier {
	return retrier.New(
		retrier.WithRetryIf(retrier.IsRetryable),
		retrier.WithOnRetry(func(attempt int, err error) {
			l.Debug("retrying price request", zap.Int("attempt", attempt), zap.Error(err))
		}),
	)
}

// normalizeBases uppercases, trims and deduplicates bases.
func normalizeBases(bases []string) []string {
	seen := make(map[string]struct{}, len(bases))
	out := make([]string, 0, len(bases))
	for _, b := range bases {
		b = strings.ToUpper(strings.TrimSpace(b))
		if b == "" {
			continue
		}
		if _, ok := seen[b]; ok {
			continue
		}
		seen[b] = struct{}{}
		out = append(out, b)
	}
	return out
}

// parseQuote builds a quote from exchange string fields. changePct is
// multiplied by pctScale, 100 for sources reporting fractions.
func parseQuote(price, changePct string, pctScale int64) (domain.Quote, bool) {
	p, err := decimal.NewFromString(strings.TrimSpace(price))
	if err != nil || !p.IsPositive() {
		return domain.Quote{}, false
	}
	q := domain.Quote{Price: domain.NullOf(p)}
	if c, err := decimal.NewFromString(strings.TrimSpace(changePct)); err == nil {
		q.Change24h = domain.NullOf(c.Mul(decimal.NewFromInt(pctScale)))
	}
	return q, true
}

// unitQuote prices the quote asset against itself.
func unitQuote() domain.Quote {
	return domain.Quote{Price: domain.NullOf(decimal.NewFromInt(1)), Change24h: domain.NullOf(decimal.Zero)}
}
