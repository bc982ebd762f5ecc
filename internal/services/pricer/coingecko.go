package pricer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
	"golang.org/x/time/rate"
)

// CoinGeckoBaseURL is the public CoinGecko API root.
const CoinGeckoBaseURL = "https://api.coingecko.com/api/v3"

// The public API allows roughly 30 calls per minute.
const (
	coinGeckoInterval = 2 * time.Second
	coinGeckoBurst    = 3
)

// NewCoinGeckoLimiter returns a limiter matching the public API quota.
func NewCoinGeckoLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(coinGeckoInterval), coinGeckoBurst)
}

// DefaultCoinGeckoIDs maps common tickers to CoinGecko coin ids.
// Unmapped tickers fall back to their lowercased symbol.
var DefaultCoinGeckoIDs = map[string]string{
	"BTC":  "bitcoin",
	"ETH":  "ethereum",
	"XRP":  "ripple",
	"POL":  "polygon-ecosystem-token",
	"USDT": "tether",
	"USDC": "usd-coin",
	"SOL":  "solana",
	"BNB":  "binancecoin",
	"ADA":  "cardano",
	"DOGE": "dogecoin",
	"DOT":  "polkadot",
	"AVAX": "avalanche-2",
	"LINK": "chainlink",
	"LTC":  "litecoin",
	"TRX":  "tron",
	"TON":  "the-open-network",
	"ATOM": "cosmos",
	"ARB":  "arbitrum",
	"OP":   "optimism",
}

// CoinGecko prices bases through the simple/price endpoint.
type CoinGecko struct {
	client   *http.Client
	baseURL  string
	currency string
	ids      map[string]string
	retrier  *retrier.Retrier
	limiter  *rate.Limiter
}

// NewCoinGecko creates a CoinGecko oracle. ids extends DefaultCoinGeckoIDs.
func NewCoinGecko(client *http.Client, quote string, ids map[string]string, r *retrier.Retrier) *CoinGecko {
	merged := make(map[string]string, len(DefaultCoinGeckoIDs)+len(ids))
	for k, v := range DefaultCoinGeckoIDs {
		merged[k] = v
	}
	for k, v := range ids {
		merged[strings.ToUpper(k)] = v
	}
	return &CoinGecko{
		client:   client,
		baseURL:  CoinGeckoBaseURL,
		currency: vsCurrency(quote),
		ids:      merged,
		retrier:  r,
	}
}

// WithLimiter throttles outgoing requests, nil disables throttling.
func (c *CoinGecko) WithLimiter(l *rate.Limiter) *CoinGecko {
	c.limiter = l
	return c
}

// WithBaseURL points the oracle at another API root.
func (c *CoinGecko) WithBaseURL(u string) *CoinGecko {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

func (c *CoinGecko) Name() string { return SourceCoinGecko }

// vsCurrency maps a quote asset to a CoinGecko vs_currency. Dollar
// stablecoins are priced in usd.
func vsCurrency(quote string) string {
	switch q := strings.ToUpper(quote); q {
	case "", "USD", "USDT", "USDC", "BUSD", "FDUSD":
		return "usd"
	default:
		return strings.ToLower(q)
	}
}

func (c *CoinGecko) coinID(base string) string {
	if id, ok := c.ids[base]; ok {
		return id
	}
	return strings.ToLower(base)
}

func (c *CoinGecko) Prices(ctx context.Context, bases []string) (map[string]domain.Quote, error) {
	bases = normalizeBases(bases)
	out := make(map[string]domain.Quote, len(bases))
	if len(bases) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(bases))
	for _, b := range bases {
		ids = append(ids, c.coinID(b))
	}

	data, err := retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) (map[string]map[string]decimal.NullDecimal, error) {
		return c.fetch(ctx, ids)
	})
	if err != nil {
		return out, errors.Wrap(err, "coingecko simple price")
	}

	changeKey := c.currency + "_24h_change"
	for _, b := range bases {
		entry, ok := data[c.coinID(b)]
		if !ok {
			continue
		}
		price := entry[c.currency]
		if !price.Valid || !price.Decimal.IsPositive() {
			continue
		}
		out[b] = domain.Quote{Price: price, Change24h: entry[changeKey]}
	}
	return out, nil
}

func (c *CoinGecko) fetch(ctx context.Context, ids []string) (map[string]map[string]decimal.NullDecimal, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, retrier.Permanent(errors.Wrap(err, "rate limit"))
		}
	}

	q := url.Values{}
	q.Set("ids", strings.Join(ids, ","))
	q.Set("vs_currencies", c.currency)
	q.Set("include_24hr_change", "true")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/simple/price?"+q.Encode(), nil)
	if err != nil {
		return nil, retrier.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var data map[string]map[string]decimal.NullDecimal
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, retrier.Permanent(errors.Wrap(err, "decode response"))
	}
	return data, nil
}

// checkStatus turns non-2xx responses into errors. Client errors other than
// 429 are permanent.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	err := fmt.Errorf("unexpected status %d from %s", resp.StatusCode, resp.Request.URL.Host)
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return retrier.Permanent(err)
	}
	return err
}
