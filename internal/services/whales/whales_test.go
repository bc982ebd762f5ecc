package whales

import (
	"context"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/pkg/retrier"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	ethAddr = "0x00000000219ab540356cBB839Cbe05303d7705Fa"
	btcAddr = "bc1qgdjqv0av3q56jvd82tkdjpy7gdp9ut8tlqmgrpmv24sq90ecnvqqjwvw97"
)

type fakeEth struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	err      error
}

func (f *fakeEth) BalanceAt(_ context.Context, account common.Address, _ *big.Int) (*big.Int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if b, ok := f.balances[account]; ok {
		return b, nil
	}
	return big.NewInt(0), nil
}

func noRetry() *retrier.Retrier {
	return retrier.New(retrier.WithMaxRetries(0), retrier.WithInitialInterval(time.Millisecond))
}

func blockchair(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		addr := strings.TrimPrefix(r.URL.Path, "/bitcoin/dashboards/address/")
		if addr == "missing" {
			_, _ = w.Write([]byte(`{"data":{}}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":{"` + addr + `":{"address":{"balance":150000000}}}}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestTracker_Balances(t *testing.T) {
	oneAndHalfEth, ok := new(big.Int).SetString("1500000000000000000", 10)
	require.True(t, ok)
	eth := &fakeEth{balances: map[common.Address]*big.Int{common.HexToAddress(ethAddr): oneAndHalfEth}}

	srv := blockchair(t)
	tr := NewTracker(eth, srv.Client(), zap.NewNop()).WithBlockchairURL(srv.URL).WithRetrier(noRetry())

	got := tr.Balances(context.Background(), domain.TrackedAddresses{
		BTC: []string{btcAddr, "missing"},
		ETH: []string{ethAddr, "not-an-address"},
	})

	require.Len(t, got, 4)

	assert.Equal(t, ChainBTC, got[0].Chain)
	require.True(t, got[0].Balance.Valid)
	assert.True(t, got[0].Balance.Decimal.Equal(decimal.RequireFromString("1.5")))

	assert.False(t, got[1].Balance.Valid)
	assert.NotEmpty(t, got[1].Unavailable)

	assert.Equal(t, ChainETH, got[2].Chain)
	require.True(t, got[2].Balance.Valid)
	assert.True(t, got[2].Balance.Decimal.Equal(decimal.RequireFromString("1.5")))

	assert.False(t, got[3].Balance.Valid)
	assert.Contains(t, got[3].Unavailable, "invalid address")
}

func TestTracker_NoEthClient(t *testing.T) {
	tr := NewTracker(nil, nil, zap.NewNop()).WithRetrier(noRetry())

	got := tr.Balances(context.Background(), domain.TrackedAddresses{ETH: []string{ethAddr}})
	require.Len(t, got, 1)
	assert.False(t, got[0].Balance.Valid)
	assert.Contains(t, got[0].Unavailable, "no ethereum rpc")
}

func TestTracker_EthError(t *testing.T) {
	tr := NewTracker(&fakeEth{err: errors.New("rpc down")}, nil, zap.NewNop()).WithRetrier(noRetry())

	got := tr.Balances(context.Background(), domain.TrackedAddresses{ETH: []string{ethAddr}})
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Unavailable, "rpc down")
}

func TestTracker_BlockchairDown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewTracker(nil, srv.Client(), zap.NewNop()).WithBlockchairURL(srv.URL).WithRetrier(noRetry())
	got := tr.Balances(context.Background(), domain.TrackedAddresses{BTC: []string{btcAddr}})
	require.Len(t, got, 1)
	assert.Contains(t, got[0].Unavailable, "404")
}

func TestTracker_Empty(t *testing.T) {
	tr := NewTracker(nil, nil, zap.NewNop())
	assert.Empty(t, tr.Balances(context.Background(), domain.TrackedAddresses{}))
}

func TestTracker_BlockchairRateLimited(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	tr := NewTracker(nil, srv.Client(), zap.NewNop()).
		WithBlockchairURL(srv.URL).
		WithRetrier(noRetry()).
		WithLimiter(rate.NewLimiter(rate.Every(time.Hour), 1))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	got := tr.Balances(ctx, domain.TrackedAddresses{BTC: []string{btcAddr, btcAddr + "x"}})

	require.Len(t, got, 2)
	assert.Equal(t, 1, calls)
	assert.NotEmpty(t, got[0].Unavailable)
	assert.NotEmpty(t, got[1].Unavailable)
}

func TestTracker_EscapesAddressInPath(t *testing.T) {
	const addr = "bad/addr?x"

	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.EscapedPath()
		_, _ = w.Write([]byte(`{"data":{"bad/addr?x":{"address":{"balance":100000000}}}}`))
	}))
	defer srv.Close()

	tr := NewTracker(nil, srv.Client(), zap.NewNop()).WithBlockchairURL(srv.URL).WithRetrier(noRetry())
	got := tr.Balances(context.Background(), domain.TrackedAddresses{BTC: []string{addr}})

	require.Len(t, got, 1)
	assert.Equal(t, "/bitcoin/dashboards/address/bad%2Faddr%3Fx", <-paths)
	require.True(t, got[0].Balance.Valid, got[0].Unavailable)
	assert.True(t, got[0].Balance.Decimal.Equal(decimal.NewFromInt(1)))
}

func TestTracker_CancelledContextMarksLinesUnavailable(t *testing.T) {
	srv := blockchair(t)
	tr := NewTracker(nil, srv.Client(), zap.NewNop()).WithBlockchairURL(srv.URL).WithRetrier(noRetry())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := tr.Balances(ctx, domain.TrackedAddresses{BTC: []string{btcAddr}})
	require.Len(t, got, 1)
	assert.False(t, got[0].Balance.Valid)
	assert.NotEmpty(t, got[0].Unavailable)
}
