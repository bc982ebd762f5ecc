// Package report renders portfolio records as terminal text.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/chainguardian/internal/accounting"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

const (
	moneyFormat = "#,###.##"
	qtyFormat   = "#,###.########"
	na          = "n/a"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"})
	keyStyle    = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"})
	gainStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"})
	lossStyle   = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#D7263D", Dark: "#FF5F87"})
	signalStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// Renderer formats records. The zero value is not usable, use New.
type Renderer struct {
	now func() time.Time
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithClock overrides the clock used for relative timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Renderer) {
		r.now = now
	}
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render returns the full text report of rec.
func (r *Renderer) Render(rec domain.PortfolioRecord) string {
	var b strings.Builder

	header := fmt.Sprintf("Portfolio %q", rec.Account)
	if !rec.Timestamp.IsZero() {
		header += " · refreshed " + humanize.RelTime(rec.Timestamp, r.now(), "ago", "from now")
	}
	b.WriteString(titleStyle.Render(header))
	b.WriteString("\n\n")

	if len(rec.Snapshots) == 0 {
		b.WriteString(mutedStyle.Render("No orders recorded yet."))
		b.WriteString("\n")
	}
	for _, key := range accounting.Keys(rec.Snapshots) {
		b.WriteString(Position(rec.Snapshots[key]))
		b.WriteString("\n")
	}
	if len(rec.Snapshots) > 0 {
		b.WriteString(Totals(rec.Snapshots))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(Sentiment(rec.Sentiment))
	b.WriteString("\n")

	for _, s := range rec.ProfitTakes {
		b.WriteString(ProfitTake(s))
		b.WriteString("\n")
	}
	for _, h := range rec.Rebalance {
		b.WriteString(RebalanceHint(h))
		b.WriteString("\n")
	}

	if len(rec.Whales) > 0 {
		b.WriteString("\n")
		b.WriteString(keyStyle.Render("Tracked addresses"))
		b.WriteString("\n")
		for _, w := range rec.Whales {
			b.WriteString(Whale(w))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Position renders one snapshot as two or three lines.
func Position(s domain.Snapshot) string {
	var b strings.Builder

	b.WriteString(keyStyle.Render(s.Key))
	if s.Exchange != "" {
		b.WriteString(mutedStyle.Render(" @" + s.Exchange))
	}

	if s.Closed() {
		b.WriteString(mutedStyle.Render("  [closed]"))
		fmt.Fprintf(&b, "  bought %s sold %s  realized %s",
			qty(s.BuyQty), qty(s.SellQty), signed(s.Realized, money))
		return b.String()
	}

	fmt.Fprintf(&b, "  qty %s  avg %s  cost %s",
		qty(s.RemainingQty), nullMoney(s.AvgBuy), money(s.CostBasis))
	b.WriteString("\n  ")

	if !s.PriceKnown() {
		b.WriteString(mutedStyle.Render("current price unknown"))
	} else {
		fmt.Fprintf(&b, "price %s", money(s.CurrentPrice.Decimal))
		if s.Change24h.Valid {
			fmt.Fprintf(&b, " (%s 24h)", signed(s.Change24h.Decimal, pct))
		}
		fmt.Fprintf(&b, "  value %s", money(s.MarketValue()))
		if s.UnrealizedValue.Valid {
			fmt.Fprintf(&b, "  P/L %s (%s)", signed(s.UnrealizedValue.Decimal, money), signed(s.UnrealizedPct, pct))
		}
	}
	if !s.Realized.IsZero() {
		fmt.Fprintf(&b, "  realized %s", signed(s.Realized, money))
	}

	if w := windows(s.Windows); w != "" {
		b.WriteString("\n  ")
		b.WriteString(mutedStyle.Render(w))
	}

	return b.String()
}

func windows(w domain.WindowChanges) string {
	parts := []struct {
		label string
		v     decimal.NullDecimal
	}{
		{"7d", w.Change7d},
		{"30d", w.Change30d},
		{"90d", w.Change90d},
		{"365d", w.Change365d},
	}

	seen := false
	out := make([]string, 0, len(parts)+1)
	for _, p := range parts {
		v := na
		if p.v.Valid {
			v = pct(p.v.Decimal)
			if p.v.Decimal.IsPositive() {
				v = "+" + v
			}
			seen = true
		}
		out = append(out, p.label+" "+v)
	}
	if w.RSI14.Valid {
		out = append(out, "RSI "+w.RSI14.Decimal.StringFixed(1))
		seen = true
	}
	if !seen {
		return ""
	}
	return strings.Join(out, "  ")
}

// Totals sums cost, market value and realized profit across snapshots.
// Unpriced positions are excluded from the market value.
func Totals(snaps map[string]domain.Snapshot) string {
	cost, value, realized := decimal.Zero, decimal.Zero, decimal.Zero
	unpriced := 0
	for _, s := range snaps {
		realized = realized.Add(s.Realized)
		if s.Closed() {
			continue
		}
		cost = cost.Add(s.CostBasis)
		if s.PriceKnown() {
			value = value.Add(s.MarketValue())
		} else {
			unpriced++
		}
	}

	line := fmt.Sprintf("Total  cost %s  value %s  realized %s",
		money(cost), money(value), signed(realized, money))
	if unpriced > 0 {
		line += mutedStyle.Render(fmt.Sprintf("  (%d unpriced)", unpriced))
	}
	return keyStyle.Render(line)
}

// Sentiment renders the sentiment index line.
func Sentiment(s domain.SentimentSignal) string {
	if s.Index.Value == nil {
		return mutedStyle.Render("Sentiment: unavailable")
	}
	line := fmt.Sprintf("Sentiment: %d %s, bias %s", *s.Index.Value, s.Band, s.Band.Bias())
	if s.FearBuy {
		line += "  " + signalStyle.Render("FEAR-BUY")
	}
	return line
}

// ProfitTake renders a take-profit suggestion.
func ProfitTake(s domain.ProfitTakeSignal) string {
	return signalStyle.Render("TAKE-PROFIT") + fmt.Sprintf(" %s: sell %s to recover cost basis (gain %s, threshold %s)",
		s.Key, qty(s.Qty), pct(s.GainPct), pct(s.ThresholdPct))
}

// RebalanceHint renders one rebalance suggestion.
func RebalanceHint(h domain.RebalanceHint) string {
	return signalStyle.Render("REBALANCE") + fmt.Sprintf(" %s: %s %s (weight %s, target %s)",
		h.Key, h.Action, money(h.Value), pct(h.CurrentWeight), pct(h.TargetWeight))
}

// Whale renders a tracked address balance.
func Whale(w domain.AddressBalance) string {
	prefix := fmt.Sprintf("  %s %s: ", strings.ToUpper(w.Chain), shortAddress(w.Address))
	if w.Unavailable != "" || !w.Balance.Valid {
		reason := w.Unavailable
		if reason == "" {
			reason = "no data"
		}
		return prefix + mutedStyle.Render("unavailable ("+reason+")")
	}
	return prefix + qty(w.Balance.Decimal) + " " + strings.ToUpper(w.Chain)
}

func shortAddress(a string) string {
	if len(a) <= 14 {
		return a
	}
	return a[:8] + "…" + a[len(a)-4:]
}

func money(d decimal.Decimal) string {
	return humanize.FormatFloat(moneyFormat, d.InexactFloat64())
}

func qty(d decimal.Decimal) string {
	s := humanize.FormatFloat(qtyFormat, d.InexactFloat64())
	if strings.Contains(s, ".") {
		s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	}
	return s
}

func pct(d decimal.Decimal) string {
	return d.StringFixed(2) + "%"
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return na
	}
	return money(d.Decimal)
}

func signed(d decimal.Decimal, format func(decimal.Decimal) string) string {
	switch {
	case d.IsPositive():
		return gainStyle.Render("+" + format(d))
	case d.IsNegative():
		return lossStyle.Render(format(d))
	default:
		return format(d)
	}
}
