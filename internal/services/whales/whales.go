// Package whales reports balances of tracked BTC and ETH addresses.
package whales

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	ChainBTC = "BTC"
	ChainETH = "ETH"

	// BlockchairURL is the public Blockchair API root.
	BlockchairURL = "https://api.blockchair.com"

	weiDecimals     = 18
	satoshiDecimals = 8
)

// NewBlockchairLimiter returns a limiter within the free Blockchair quota.
func NewBlockchairLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(2*time.Second), 3)
}

// EthBalancer is the subset of ethclient.Client used here.
type EthBalancer interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Tracker looks up balances of tracked addresses. Lookups never fail the
// caller; problems are reported per line.
type Tracker struct {
	eth           EthBalancer
	http          *http.Client
	blockchairURL string
	retrier       *retrier.Retrier
	limiter       *rate.Limiter
	l             *zap.Logger
}

// NewTracker creates a tracker. eth may be nil when no RPC endpoint is
// configured, ETH lines are then reported as unavailable.
func NewTracker(eth EthBalancer, httpClient *http.Client, l *zap.Logger) *Tracker {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Tracker{
		eth:           eth,
		http:          httpClient,
		blockchairURL: BlockchairURL,
		retrier:       retrier.New(retrier.WithRetryIf(retrier.IsRetryable)),
		l:             l,
	}
}

// WithBlockchairURL points BTC lookups at another API root.
func (t *Tracker) WithBlockchairURL(u string) *Tracker {
	t.blockchairURL = strings.TrimRight(u, "/")
	return t
}

// WithLimiter throttles Blockchair requests, nil disables throttling.
func (t *Tracker) WithLimiter(l *rate.Limiter) *Tracker {
	t.limiter = l
	return t
}

// WithRetrier replaces the retry policy.
func (t *Tracker) WithRetrier(r *retrier.Retrier) *Tracker {
	t.retrier = r
	return t
}

// Balances looks up all tracked addresses concurrently. The result lists
// BTC addresses first, then ETH, each in input order.
func (t *Tracker) Balances(ctx context.Context, addrs domain.TrackedAddresses) []domain.AddressBalance {
	out := make([]domain.AddressBalance, 0, len(addrs.BTC)+len(addrs.ETH))
	for _, a := range addrs.BTC {
		out = append(out, domain.AddressBalance{Chain: ChainBTC, Address: strings.TrimSpace(a)})
	}
	for _, a := range addrs.ETH {
		out = append(out, domain.AddressBalance{Chain: ChainETH, Address: strings.TrimSpace(a)})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range out {
		g.Go(func() error {
			var (
				bal decimal.Decimal
				err error
			)
			switch out[i].Chain {
			case ChainBTC:
				bal, err = t.btcBalance(gctx, out[i].Address)
			case ChainETH:
				bal, err = t.ethBalance(gctx, out[i].Address)
			}
			if err != nil {
				t.l.Debug("address balance unavailable",
					zap.String("chain", out[i].Chain),
					zap.String("address", out[i].Address),
					zap.Error(err))
				out[i].Unavailable = err.Error()
				return nil
			}
			out[i].Balance = domain.NullOf(bal)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.l.Warn("address balance lookup aborted", zap.Error(err))
	}

	return out
}

func (t *Tracker) ethBalance(ctx context.Context, addr string) (decimal.Decimal, error) {
	if t.eth == nil {
		return decimal.Zero, errors.New("no ethereum rpc configured")
	}
	if !common.IsHexAddress(addr) {
		return decimal.Zero, fmt.Errorf("invalid address %q", addr)
	}

	wei, err := retrier.DoWithData(t.retrier, ctx, func(ctx context.Context) (*big.Int, error) {
		return t.eth.BalanceAt(ctx, common.HexToAddress(addr), nil)
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "eth balance")
	}
	return decimal.NewFromBigInt(wei, -weiDecimals), nil
}

type blockchairResponse struct {
	Data map[string]struct {
		Address struct {
			Balance json.Number `json:"balance"`
		} `json:"address"`
	} `json:"data"`
}

func (t *Tracker) btcBalance(ctx context.Context, addr string) (decimal.Decimal, error) {
	if addr == "" {
		return decimal.Zero, errors.New("empty address")
	}

	sat, err := retrier.DoWithData(t.retrier, ctx, func(ctx context.Context) (decimal.Decimal, error) {
		return t.fetchBlockchair(ctx, addr)
	})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "btc balance")
	}
	return sat.Shift(-satoshiDecimals), nil
}

func (t *Tracker) fetchBlockchair(ctx context.Context, addr string) (decimal.Decimal, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return decimal.Zero, retrier.Permanent(errors.Wrap(err, "rate limit"))
		}
	}

	u := fmt.Sprintf("%s/bitcoin/dashboards/address/%s", t.blockchairURL, url.PathEscape(addr))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, retrier.Permanent(err)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return decimal.Zero, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("unexpected status %d", resp.StatusCode)
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return decimal.Zero, retrier.Permanent(err)
		}
		return decimal.Zero, err
	}

	var body blockchairResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, retrier.Permanent(errors.Wrap(err, "decode response"))
	}
	entry, ok := body.Data[addr]
	if !ok {
		return decimal.Zero, retrier.Permanent(fmt.Errorf("address %s not in response", addr))
	}
	sat, err := decimal.NewFromString(entry.Address.Balance.String())
	if err != nil {
		return decimal.Zero, retrier.Permanent(errors.Wrap(err, "parse balance"))
	}
	return sat, nil
}
