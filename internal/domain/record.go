package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ProfitTakeSignal suggests selling Qty units of Key to recover its cost basis.
type ProfitTakeSignal struct {
	Key          string          `json:"key"`
	Qty          decimal.Decimal `json:"qty"`
	ThresholdPct decimal.Decimal `json:"threshold_pct"`
	GainPct      decimal.Decimal `json:"gain_pct"`
}

// RebalanceAction is the direction of a rebalance hint.
type RebalanceAction string

const (
	RebalanceBuy  RebalanceAction = "buy"
	RebalanceSell RebalanceAction = "sell"
)

// RebalanceHint reports a position drifted away from its target weight.
type RebalanceHint struct {
	Key           string          `json:"key"`
	CurrentWeight decimal.Decimal `json:"current_weight"`
	TargetWeight  decimal.Decimal `json:"target_weight"`
	Drift         decimal.Decimal `json:"drift"`
	Action        RebalanceAction `json:"action"`
	// Value is the quote amount to trade to get back to target.
	Value decimal.Decimal `json:"value"`
}

// SentimentSignal combines the index with its band and fear-buy hint.
type SentimentSignal struct {
	Index   SentimentIndex `json:"index"`
	Band    Band           `json:"band"`
	FearBuy bool           `json:"fear_buy"`
}

// AddressBalance is the balance of a tracked on-chain address.
type AddressBalance struct {
	Chain       string              `json:"chain"`
	Address     string              `json:"address"`
	Balance     decimal.NullDecimal `json:"balance"`
	Unavailable string              `json:"unavailable,omitempty"`
}

// PortfolioRecord is the full result of one refresh.
type PortfolioRecord struct {
	ID          string              `json:"id"`
	Seq         uint64              `json:"seq"`
	Account     string              `json:"account"`
	Timestamp   time.Time           `json:"ts"`
	Snapshots   map[string]Snapshot `json:"snapshots"`
	ProfitTakes []ProfitTakeSignal  `json:"profit_takes,omitempty"`
	Rebalance   []RebalanceHint     `json:"rebalance,omitempty"`
	Sentiment   SentimentSignal     `json:"sentiment"`
	Whales      []AddressBalance    `json:"whales,omitempty"`
}

// PortfolioRecordEntry bundles a record with its journal index.
type PortfolioRecordEntry struct {
	Index  uint64
	Record PortfolioRecord
}
