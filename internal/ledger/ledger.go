// Package ledger holds the ordered, append-only list of orders of one account.
package ledger

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

var (
	ErrEmptySymbol    = errors.New("order symbol is required")
	ErrUnknownSide    = errors.New("order side must be buy or sell")
	ErrNegativeAmount = errors.New("order amount must be greater than zero")
	ErrNegativePrice  = errors.New("order price must not be negative")
	ErrOrderNotFound  = errors.New("order not found")
)

// Ledger is safe for concurrent use. Readers get copies, so an accounting
// pass never observes appends made while it runs.
type Ledger struct {
	mu     sync.RWMutex
	orders []domain.Order
	nextID uint64
	now    func() time.Time
}

// New creates a ledger seeded with previously stored orders.
// Ids continue after the largest numeric id found.
func New(orders []domain.Order) *Ledger {
	l := &Ledger{
		orders: make([]domain.Order, 0, len(orders)),
		nextID: 1,
		now:    time.Now,
	}

	for _, o := range orders {
		if n, err := strconv.ParseUint(strings.TrimSpace(o.ID), 10, 64); err == nil && n >= l.nextID {
			l.nextID = n + 1
		}
	}
	for _, o := range orders {
		if o.ID == "" {
			o.ID = l.allocID()
		}
		l.orders = append(l.orders, o)
	}

	return l
}

// Validate checks an order at the ledger boundary.
func Validate(o domain.Order) error {
	if strings.TrimSpace(o.Symbol) == "" {
		return ErrEmptySymbol
	}
	if o.Side != domain.SideBuy && o.Side != domain.SideSell {
		return ErrUnknownSide
	}
	if !o.Amount.IsPositive() {
		return ErrNegativeAmount
	}
	if o.Price.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// Append validates the order, assigns id, timestamp and status when absent
// and stores it at the end of the ledger.
func (l *Ledger) Append(o domain.Order) (domain.Order, error) {
	if err := Validate(o); err != nil {
		return domain.Order{}, errors.Wrapf(err, "append %s order for %q", o.Side, o.Symbol)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	o.Symbol = strings.ToUpper(strings.TrimSpace(o.Symbol))
	o.ID = l.allocID()
	if o.Timestamp.IsZero() {
		o.Timestamp = l.now().UTC()
	}
	if o.Status == "" {
		o.Status = domain.StatusOpen
	}

	l.orders = append(l.orders, o)
	return o, nil
}

// Import appends a batch of orders tagged as imported. Invalid orders are
// skipped and reported together.
func (l *Ledger) Import(orders []domain.Order) ([]domain.Order, error) {
	added := make([]domain.Order, 0, len(orders))
	var skipped []string

	for i, o := range orders {
		o.Status = domain.StatusImported
		stored, err := l.Append(o)
		if err != nil {
			skipped = append(skipped, strconv.Itoa(i)+": "+err.Error())
			continue
		}
		added = append(added, stored)
	}

	if len(skipped) > 0 {
		return added, errors.Errorf("skipped %d orders: %s", len(skipped), strings.Join(skipped, "; "))
	}
	return added, nil
}

// Delete removes the order with the given id.
func (l *Ledger) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, o := range l.orders {
		if o.ID == id {
			l.orders = append(l.orders[:i:i], l.orders[i+1:]...)
			return nil
		}
	}
	return errors.Wrapf(ErrOrderNotFound, "delete order %q", id)
}

// Orders returns a copy of all orders in insertion order.
func (l *Ledger) Orders() []domain.Order {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Len returns the number of orders.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.orders)
}

// Grouped returns raw orders per aggregation key, each group in insertion order.
func (l *Ledger) Grouped(mode domain.GroupingMode, defaultQuote string) map[string][]domain.Order {
	groups := make(map[string][]domain.Order)
	for _, o := range l.Orders() {
		key := o.Pair(defaultQuote).Key(mode)
		groups[key] = append(groups[key], o)
	}
	return groups
}

func (l *Ledger) allocID() string {
	id := l.nextID
	l.nextID++
	return strconv.FormatUint(id, 10)
}
