// Package refresh runs the periodic portfolio refresh: it values the ledger,
// evaluates signals and publishes the result.
package refresh

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/accounting"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/events"
	"github.com/vadiminshakov/chainguardian/internal/ledger"
	"github.com/vadiminshakov/chainguardian/internal/metrics"
	"github.com/vadiminshakov/chainguardian/internal/services/history"
	"github.com/vadiminshakov/chainguardian/internal/signals"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const (
	historyTTL         = time.Hour
	historyConcurrency = 4
)

// ErrSuperseded is returned by a refresh cancelled by a newer one.
var ErrSuperseded = errors.New("refresh superseded by a newer one")

// SentimentSource returns the current sentiment index.
type SentimentSource interface {
	Index(ctx context.Context) (domain.SentimentIndex, error)
}

// WhaleTracker looks up tracked address balances.
type WhaleTracker interface {
	Balances(ctx context.Context, addrs domain.TrackedAddresses) []domain.AddressBalance
}

// Journal stores every published record.
type Journal interface {
	Save(record domain.PortfolioRecord) (uint64, error)
}

// Params are the per-account inputs of signal evaluation.
type Params struct {
	Account          string
	Thresholds       signals.Thresholds
	FearBuyThreshold int
	RebalanceTargets map[string]decimal.Decimal
	RebalanceTolPct  decimal.Decimal
	TrackedAddresses domain.TrackedAddresses
}

// ParamsFor derives refresh params from a stored account and settings.
func ParamsFor(acc *domain.Account, settings domain.Settings, rebalanceTolPct decimal.Decimal) Params {
	settings = settings.WithDefaults()
	return Params{
		Account: acc.Name,
		Thresholds: signals.Thresholds{
			Default: settings.ProfitPctToTake,
			Custom:  acc.CustomThresholds,
		},
		FearBuyThreshold: settings.FearBuyThreshold,
		RebalanceTargets: acc.RebalanceTargets,
		RebalanceTolPct:  rebalanceTolPct,
		TrackedAddresses: acc.TrackedAddresses,
	}
}

// Refresher produces PortfolioRecords. Optional collaborators may be nil.
type Refresher struct {
	l         *zap.Logger
	params    Params
	ledger    *ledger.Ledger
	engine    *accounting.Engine
	lookup    accounting.PriceLookup
	sentiment SentimentSource
	history   history.Source
	whales    WhaleTracker
	journal   Journal
	bus       *events.Broadcaster
	now       func() time.Time

	histCache *cache.Cache
	seq       atomic.Uint64
	latest    atomic.Pointer[domain.PortfolioRecord]

	mu       sync.Mutex
	inflight context.CancelFunc
	trigger  chan struct{}
}

// Option configures optional collaborators.
type Option func(*Refresher)

func WithSentiment(s SentimentSource) Option { return func(r *Refresher) { r.sentiment = s } }
func WithHistory(h history.Source) Option    { return func(r *Refresher) { r.history = h } }
func WithWhales(w WhaleTracker) Option       { return func(r *Refresher) { r.whales = w } }
func WithJournal(j Journal) Option           { return func(r *Refresher) { r.journal = j } }

// WithBroadcaster publishes every record to b.
func WithBroadcaster(b *events.Broadcaster) Option { return func(r *Refresher) { r.bus = b } }

// WithClock overrides time.Now, used by tests.
func WithClock(now func() time.Time) Option { return func(r *Refresher) { r.now = now } }

// New creates a Refresher over the given ledger.
func New(l *zap.Logger, params Params, lg *ledger.Ledger, engine *accounting.Engine, lookup accounting.PriceLookup, opts ...Option) *Refresher {
	r := &Refresher{
		l:         l,
		params:    params,
		ledger:    lg,
		engine:    engine,
		lookup:    lookup,
		now:       time.Now,
		histCache: cache.New(historyTTL, 2*historyTTL),
		trigger:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Latest returns the most recent published record, nil before the first one.
func (r *Refresher) Latest() *domain.PortfolioRecord {
	return r.latest.Load()
}

// Trigger requests a refresh from Run without waiting for the next tick.
func (r *Refresher) Trigger() {
	select {
	case r.trigger <- struct{}{}:
	default:
	}
}

// Refresh runs one refresh. Starting a refresh cancels the one in flight,
// which then returns ErrSuperseded and publishes nothing.
func (r *Refresher) Refresh(ctx context.Context) (domain.PortfolioRecord, error) {
	ctx, cancel := context.WithCancelCause(ctx)
	r.mu.Lock()
	if r.inflight != nil {
		r.inflight()
	}
	r.inflight = func() { cancel(ErrSuperseded) }
	r.mu.Unlock()
	defer cancel(nil)

	start := time.Now()
	seq := r.seq.Add(1)

	record, err := r.build(ctx, seq)
	if err == nil {
		err = context.Cause(ctx)
	}
	if err != nil {
		outcome := "error"
		if errors.Is(err, ErrSuperseded) {
			outcome = "superseded"
		}
		metrics.RefreshesTotal.WithLabelValues(outcome).Inc()
		return domain.PortfolioRecord{}, err
	}

	r.publish(record)
	metrics.RefreshesTotal.WithLabelValues("ok").Inc()
	metrics.RefreshDuration.Observe(time.Since(start).Seconds())

	return record, nil
}

func (r *Refresher) build(ctx context.Context, seq uint64) (domain.PortfolioRecord, error) {
	orders := r.ledger.Orders()
	p := r.params

	var (
		snaps  map[string]domain.Snapshot
		index  = domain.UnknownSentiment()
		whales []domain.AddressBalance
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		snaps = r.engine.ComputeSnapshots(gctx, orders, r.lookup)
		return nil
	})
	if r.sentiment != nil {
		g.Go(func() error {
			idx, err := r.sentiment.Index(gctx)
			if err != nil {
				metrics.OracleRequests.WithLabelValues("sentiment", "error").Inc()
				r.l.Warn("sentiment index unavailable", zap.Error(err))
			} else {
				metrics.OracleRequests.WithLabelValues("sentiment", "ok").Inc()
			}
			index = idx
			return nil
		})
	}
	if r.whales != nil && len(p.TrackedAddresses.BTC)+len(p.TrackedAddresses.ETH) > 0 {
		g.Go(func() error {
			whales = r.whales.Balances(gctx, p.TrackedAddresses)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.PortfolioRecord{}, err
	}
	if err := context.Cause(ctx); err != nil {
		return domain.PortfolioRecord{}, err
	}

	if r.history != nil && len(snaps) > 0 {
		accounting.ApplyHistory(snaps, r.histories(ctx, accounting.Bases(snaps)))
	}

	sentiment := signals.Sentiment(index, p.FearBuyThreshold)
	record := domain.PortfolioRecord{
		ID:          uuid.NewString(),
		Seq:         seq,
		Account:     p.Account,
		Timestamp:   r.now().UTC(),
		Snapshots:   snaps,
		ProfitTakes: signals.ProfitTakes(snaps, p.Thresholds),
		Rebalance:   signals.Rebalance(snaps, p.RebalanceTargets, p.RebalanceTolPct),
		Sentiment:   sentiment,
		Whales:      whales,
	}
	return record, nil
}

// histories fetches window changes per base, serving from cache when fresh.
// Bases whose history cannot be fetched are left out.
func (r *Refresher) histories(ctx context.Context, bases []string) map[string]domain.WindowChanges {
	out := make(map[string]domain.WindowChanges, len(bases))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(historyConcurrency)
	for _, base := range bases {
		if v, ok := r.histCache.Get(base); ok {
			out[base] = v.(domain.WindowChanges)
			continue
		}
		g.Go(func() error {
			ch, err := history.Changes(gctx, r.history, base, r.now())
			if err != nil {
				r.l.Debug("history unavailable", zap.String("base", base), zap.Error(err))
				return nil
			}
			r.histCache.Set(base, ch, cache.DefaultExpiration)
			mu.Lock()
			out[base] = ch
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		r.l.Warn("history fetch aborted", zap.Error(err))
	}
	return out
}

// publish stores record as latest unless a newer one is already there,
// then fans it out and journals it.
func (r *Refresher) publish(record domain.PortfolioRecord) {
	for {
		cur := r.latest.Load()
		if cur != nil && cur.Seq >= record.Seq {
			r.l.Debug("dropping stale refresh result", zap.Uint64("seq", record.Seq), zap.Uint64("latest_seq", cur.Seq))
			return
		}
		if r.latest.CompareAndSwap(cur, &record) {
			break
		}
	}

	open := 0
	for _, s := range record.Snapshots {
		if !s.Closed() {
			open++
		}
	}
	metrics.Positions.Set(float64(open))
	metrics.ProfitTakeSignals.Set(float64(len(record.ProfitTakes)))
	if v := record.Sentiment.Index.Value; v != nil {
		metrics.SentimentIndex.Set(float64(*v))
	} else {
		metrics.SentimentIndex.Set(-1)
	}

	if r.bus != nil {
		r.bus.Publish(record)
	}
	if r.journal != nil {
		if _, err := r.journal.Save(record); err != nil {
			r.l.Error("failed to journal portfolio record", zap.Error(err))
		}
	}
}

// Run refreshes immediately, then on every tick of interval and on every
// Trigger, until ctx is done.
func (r *Refresher) Run(ctx context.Context, interval time.Duration) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	launch := func() {
		wg.Add(1)
		go func() {
			defer wg.Done()
			record, err := r.Refresh(ctx)
			switch {
			case err == nil:
				r.l.Info("portfolio refreshed",
					zap.String("id", record.ID),
					zap.Int("positions", len(record.Snapshots)),
					zap.Int("profit_takes", len(record.ProfitTakes)))
			case errors.Is(err, ErrSuperseded), ctx.Err() != nil:
			default:
				r.l.Error("portfolio refresh failed", zap.Error(err))
			}
		}()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	launch()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			launch()
		case <-r.trigger:
			launch()
		}
	}
}
