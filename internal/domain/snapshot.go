package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

const percentageMultiplier = 100

var hundred = decimal.NewFromInt(percentageMultiplier)

// Lot is the unconsumed remainder of a buy order.
type Lot struct {
	Amount decimal.Decimal
	Price  decimal.Decimal
}

// Cost returns the cost of the remaining lot amount.
func (l Lot) Cost() decimal.Decimal {
	return l.Amount.Mul(l.Price)
}

// Quote is a price oracle answer for one base asset.
type Quote struct {
	Price     decimal.NullDecimal `json:"price"`
	Change24h decimal.NullDecimal `json:"change_24h"`
}

// Known reports whether the quote carries a usable positive price.
func (q Quote) Known() bool {
	return q.Price.Valid && q.Price.Decimal.IsPositive()
}

// PricePoint is a single sample of a historical price series.
type PricePoint struct {
	Time  time.Time       `json:"time"`
	Price decimal.Decimal `json:"price"`
}

// WindowChanges holds percentage changes over trailing windows.
type WindowChanges struct {
	Change7d   decimal.NullDecimal `json:"change_7d"`
	Change30d  decimal.NullDecimal `json:"change_30d"`
	Change90d  decimal.NullDecimal `json:"change_90d"`
	Change365d decimal.NullDecimal `json:"change_365d"`
	// RSI14 is the 14-period RSI of daily closes.
	RSI14 decimal.NullDecimal `json:"rsi_14"`
}

// Snapshot is the computed state of one position. It is derived from the
// ledger on every refresh and never treated as a source of truth.
type Snapshot struct {
	Key             string              `json:"key"`
	Base            string              `json:"base"`
	Quote           string              `json:"quote,omitempty"`
	Exchange        string              `json:"exchange,omitempty"`
	BuyQty          decimal.Decimal     `json:"buy_qty"`
	SellQty         decimal.Decimal     `json:"sell_qty"`
	RemainingQty    decimal.Decimal     `json:"remaining_qty"`
	CostBasis       decimal.Decimal     `json:"cost_basis"`
	AvgBuy          decimal.NullDecimal `json:"avg_buy"`
	CurrentPrice    decimal.NullDecimal `json:"current_price"`
	Change24h       decimal.NullDecimal `json:"change_24h"`
	UnrealizedValue decimal.NullDecimal `json:"unrealized_value"`
	UnrealizedPct   decimal.Decimal     `json:"unrealized_pct"`
	Realized        decimal.Decimal     `json:"realized"`
	Windows         WindowChanges       `json:"windows"`
}

// Closed reports whether nothing is held anymore.
func (s Snapshot) Closed() bool {
	return !s.RemainingQty.IsPositive()
}

// PriceKnown reports whether the oracle supplied a positive price.
func (s Snapshot) PriceKnown() bool {
	return s.CurrentPrice.Valid && s.CurrentPrice.Decimal.IsPositive()
}

// MarketValue returns remaining quantity at the current price, zero when unknown.
func (s Snapshot) MarketValue() decimal.Decimal {
	if !s.PriceKnown() {
		return decimal.Zero
	}
	return s.RemainingQty.Mul(s.CurrentPrice.Decimal)
}

// GainPct returns the percentage gain of current price over avg_buy.
// ok is false when either price is unknown or avg_buy is not positive.
func (s Snapshot) GainPct() (pct decimal.Decimal, ok bool) {
	if !s.PriceKnown() || !s.AvgBuy.Valid || !s.AvgBuy.Decimal.IsPositive() {
		return decimal.Zero, false
	}
	return s.CurrentPrice.Decimal.Sub(s.AvgBuy.Decimal).Div(s.AvgBuy.Decimal).Mul(hundred), true
}

// NullOf wraps d into a valid NullDecimal.
func NullOf(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
