// Package accounting turns a ledger of orders into per-position snapshots.
//
// Lots are matched first-in first-out: every buy opens a lot, sells are
// applied in ledger order and always deplete the oldest open lot first,
// splitting it when the sell is smaller. Sells beyond the available lots are
// dropped, so a position never goes negative.
package accounting

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

const percentageMultiplier = 100

var hundred = decimal.NewFromInt(percentageMultiplier)

// PriceLookup resolves quotes for a set of uppercased base assets. Missing
// entries mean "price unknown". Implementations must not panic on failure.
type PriceLookup func(ctx context.Context, bases []string) map[string]domain.Quote

// Engine computes snapshots. The zero value groups per symbol with a USDT default quote.
type Engine struct {
	grouping     domain.GroupingMode
	defaultQuote string
}

// NewEngine creates an engine for the given grouping mode.
func NewEngine(grouping domain.GroupingMode, defaultQuote string) *Engine {
	if grouping == "" {
		grouping = domain.GroupBySymbol
	}
	if defaultQuote == "" {
		defaultQuote = domain.DefaultQuote
	}
	return &Engine{grouping: grouping, defaultQuote: defaultQuote}
}

// Grouping returns the configured grouping mode.
func (e *Engine) Grouping() domain.GroupingMode {
	if e.grouping == "" {
		return domain.GroupBySymbol
	}
	return e.grouping
}

func (e *Engine) quote() string {
	if e.defaultQuote == "" {
		return domain.DefaultQuote
	}
	return e.defaultQuote
}

type group struct {
	pair     domain.Pair
	exchange string
	orders   []domain.Order
}

// ComputeSnapshots groups orders, runs FIFO matching per group, resolves
// prices with a single lookup call and derives unrealized figures.
// The result depends only on its inputs and the lookup answer.
func (e *Engine) ComputeSnapshots(ctx context.Context, orders []domain.Order, lookup PriceLookup) map[string]domain.Snapshot {
	result := make(map[string]domain.Snapshot)
	if len(orders) == 0 {
		return result
	}

	groups, keys := e.group(orders)

	baseSet := make(map[string]struct{}, len(groups))
	for _, key := range keys {
		snap := fifo(groups[key].orders)
		snap.Key = key
		snap.Base = groups[key].pair.Base
		if e.Grouping() == domain.GroupBySymbol {
			snap.Quote = groups[key].pair.Quote
		}
		snap.Exchange = groups[key].exchange
		result[key] = snap

		if snap.Base != "" {
			baseSet[snap.Base] = struct{}{}
		}
	}

	quotes := map[string]domain.Quote{}
	if lookup != nil && len(baseSet) > 0 {
		bases := make([]string, 0, len(baseSet))
		for b := range baseSet {
			bases = append(bases, b)
		}
		sort.Strings(bases)
		if q := lookup(ctx, bases); q != nil {
			quotes = q
		}
	}

	for key, snap := range result {
		result[key] = withQuote(snap, quotes[snap.Base])
	}

	return result
}

func (e *Engine) group(orders []domain.Order) (map[string]*group, []string) {
	groups := make(map[string]*group)
	keys := make([]string, 0)

	for _, o := range orders {
		pair := o.Pair(e.quote())
		key := pair.Key(e.Grouping())
		g, ok := groups[key]
		if !ok {
			g = &group{pair: pair}
			groups[key] = g
			keys = append(keys, key)
		}
		if g.exchange == "" && o.Exchange != "" {
			g.exchange = o.Exchange
		}
		g.orders = append(g.orders, o)
	}

	return groups, keys
}

// fifo partitions orders into buy lots and sells, both in ledger order,
// and consumes the lots front to back.
func fifo(orders []domain.Order) domain.Snapshot {
	var (
		snap  domain.Snapshot
		lots  = make([]domain.Lot, 0, len(orders))
		sells = make([]domain.Order, 0, len(orders))
	)

	for _, o := range orders {
		switch o.Side {
		case domain.SideBuy:
			snap.BuyQty = snap.BuyQty.Add(o.Amount)
			if o.Amount.IsPositive() {
				lots = append(lots, domain.Lot{Amount: o.Amount, Price: nonNegative(o.Price)})
			}
		case domain.SideSell:
			snap.SellQty = snap.SellQty.Add(o.Amount)
			sells = append(sells, o)
		}
	}

	for _, s := range sells {
		qty := s.Amount
		sellPrice := s.Price
		for qty.IsPositive() && len(lots) > 0 {
			lot := &lots[0]
			take := decimal.Min(qty, lot.Amount)
			if sellPrice.IsPositive() {
				snap.Realized = snap.Realized.Add(take.Mul(sellPrice.Sub(lot.Price)))
			}
			lot.Amount = lot.Amount.Sub(take)
			qty = qty.Sub(take)
			if !lot.Amount.IsPositive() {
				lots = lots[1:]
			}
		}
	}

	for _, lot := range lots {
		snap.RemainingQty = snap.RemainingQty.Add(lot.Amount)
		snap.CostBasis = snap.CostBasis.Add(lot.Cost())
	}
	if snap.RemainingQty.IsPositive() {
		snap.AvgBuy = domain.NullOf(snap.CostBasis.Div(snap.RemainingQty))
	}

	return snap
}

func withQuote(snap domain.Snapshot, q domain.Quote) domain.Snapshot {
	if q.Known() {
		snap.CurrentPrice = q.Price
	}
	snap.Change24h = q.Change24h

	snap.UnrealizedValue = decimal.NullDecimal{}
	snap.UnrealizedPct = decimal.Zero
	if !snap.PriceKnown() || !snap.AvgBuy.Valid || !snap.AvgBuy.Decimal.IsPositive() || !snap.RemainingQty.IsPositive() {
		return snap
	}

	value := snap.RemainingQty.Mul(snap.CurrentPrice.Decimal.Sub(snap.AvgBuy.Decimal))
	snap.UnrealizedValue = domain.NullOf(value)
	if snap.CostBasis.IsPositive() {
		snap.UnrealizedPct = value.Div(snap.CostBasis).Mul(hundred)
	}

	return snap
}

func nonNegative(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

// ApplyHistory merges windowed price changes, keyed by base asset, into the snapshots.
func ApplyHistory(snaps map[string]domain.Snapshot, changes map[string]domain.WindowChanges) {
	for key, snap := range snaps {
		if w, ok := changes[snap.Base]; ok {
			snap.Windows = w
			snaps[key] = snap
		}
	}
}

// Keys returns snapshot keys in a stable order.
func Keys(snaps map[string]domain.Snapshot) []string {
	keys := make([]string, 0, len(snaps))
	for k := range snaps {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Bases returns the distinct base assets of the snapshots, sorted.
func Bases(snaps map[string]domain.Snapshot) []string {
	set := make(map[string]struct{}, len(snaps))
	for _, s := range snaps {
		if s.Base != "" {
			set[s.Base] = struct{}{}
		}
	}
	bases := make([]string, 0, len(set))
	for b := range set {
		bases = append(bases, b)
	}
	sort.Strings(bases)
	return bases
}
