package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of an order.
type Side int

const (
	SideUnknown Side = iota
	SideBuy
	SideSell
)

const (
	sideStringBuy  = "buy"
	sideStringSell = "sell"
)

// ParseSide normalizes free-form input, "BUY", "Buy " and "buy-limit" all parse as SideBuy.
func ParseSide(s string) Side {
	s = strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasPrefix(s, sideStringBuy):
		return SideBuy
	case strings.HasPrefix(s, sideStringSell):
		return SideSell
	default:
		return SideUnknown
	}
}

// String returns the string representation of the side.
func (s Side) String() string {
	switch s {
	case SideBuy:
		return sideStringBuy
	case SideSell:
		return sideStringSell
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the side as its string form.
func (s Side) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts any case.
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		*s = SideUnknown
		return nil
	}
	*s = ParseSide(raw)
	return nil
}

// Order statuses. Advisory only, accounting ignores them.
const (
	StatusOpen     = "open"
	StatusRecorded = "recorded"
	StatusImported = "imported"
)

// Order is a recorded buy or sell. Orders are append-only facts.
type Order struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"asset"`
	Side      Side            `json:"side"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Exchange  string          `json:"exchange,omitempty"`
	Note      string          `json:"note,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Status    string          `json:"status,omitempty"`
}

// Pair returns the parsed trading pair of the order.
func (o Order) Pair(defaultQuote string) Pair {
	return ParsePair(o.Symbol, defaultQuote)
}

// orderJSON mirrors Order with loosely typed numeric fields so that
// a single malformed record does not break loading the whole ledger.
type orderJSON struct {
	ID        json.RawMessage `json:"id"`
	Asset     string          `json:"asset"`
	Symbol    string          `json:"symbol"`
	Side      Side            `json:"side"`
	Amount    json.RawMessage `json:"amount"`
	Price     json.RawMessage `json:"price"`
	Exchange  string          `json:"exchange"`
	Note      string          `json:"note"`
	Timestamp json.RawMessage `json:"timestamp"`
	Status    string          `json:"status"`
}

// UnmarshalJSON decodes an order leniently: amount and price accept numbers
// or numeric strings, anything else (including negatives) becomes zero.
func (o *Order) UnmarshalJSON(data []byte) error {
	var raw orderJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	symbol := raw.Asset
	if symbol == "" {
		symbol = raw.Symbol
	}

	*o = Order{
		ID:        rawString(raw.ID),
		Symbol:    strings.TrimSpace(symbol),
		Side:      raw.Side,
		Amount:    CoerceAmount(rawString(raw.Amount)),
		Price:     CoerceAmount(rawString(raw.Price)),
		Exchange:  raw.Exchange,
		Note:      raw.Note,
		Timestamp: parseTimestamp(rawString(raw.Timestamp)),
		Status:    raw.Status,
	}

	return nil
}

// CoerceAmount parses s as a non-negative decimal, returning zero for
// empty, malformed, non-finite or negative input.
func CoerceAmount(s string) decimal.Decimal {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero
		}
		d = decimal.NewFromFloat(f)
	}
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func rawString(msg json.RawMessage) string {
	if len(msg) == 0 || string(msg) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return string(msg)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp accepts the layouts above or unix seconds.
func parseTimestamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(secs) && !math.IsInf(secs, 0) {
		return time.Unix(0, int64(secs*float64(time.Second))).UTC()
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
