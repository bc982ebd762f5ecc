// Package setup contains the interactive terminal forms.
package setup

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/ledger"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)

	summaryStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(subtle).
			Padding(1)
)

// ErrCancelled is returned when the user declines the confirmation step.
var ErrCancelled = errors.New("order entry cancelled by user")

// OrderInput holds the raw form values before parsing.
type OrderInput struct {
	Asset    string
	Side     string
	Amount   string
	Price    string
	Exchange string
	Note     string
}

// Build parses the form values into an order and validates it the same way
// the ledger does on append.
func (in OrderInput) Build(defaultQuote string) (domain.Order, error) {
	amount, err := parsePositive(in.Amount, true)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "amount")
	}
	price, err := parsePositive(in.Price, false)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "price")
	}

	o := domain.Order{
		Symbol:   normalizeAsset(in.Asset, defaultQuote),
		Side:     domain.ParseSide(in.Side),
		Amount:   amount,
		Price:    price,
		Exchange: strings.TrimSpace(in.Exchange),
		Note:     strings.TrimSpace(in.Note),
		Status:   domain.StatusRecorded,
	}
	if err := ledger.Validate(o); err != nil {
		return domain.Order{}, err
	}
	return o, nil
}

// normalizeAsset upper-cases the symbol. A bare base like "btc" is kept bare,
// grouping resolves it against the default quote later.
func normalizeAsset(s, defaultQuote string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	if strings.HasSuffix(s, "/") {
		return s + strings.ToUpper(defaultQuote)
	}
	return s
}

func parsePositive(s string, strict bool) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if strict {
			return decimal.Zero, fmt.Errorf("is required")
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("must not be negative")
	}
	if strict && d.IsZero() {
		return decimal.Zero, fmt.Errorf("must be greater than zero")
	}
	return d, nil
}

func validateAmount(s string) error {
	_, err := parsePositive(s, true)
	return err
}

func validatePrice(s string) error {
	_, err := parsePositive(s, false)
	return err
}

func validateAsset(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("asset is required")
	}
	if strings.ContainsAny(s, " \t") {
		return fmt.Errorf("asset must not contain spaces")
	}
	return nil
}

func render(step string) {
	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("CHAINGUARDIAN: ADD ORDER"))
	fmt.Println(stepStyle.Render(step))
}

// RunAddOrder walks the user through entering one order and returns it
// parsed and validated. The caller appends it to the ledger.
func RunAddOrder(account, defaultQuote string) (domain.Order, error) {
	in := OrderInput{Side: "buy"}
	var confirm bool

	render("STEP 1: ASSET")
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Asset").
				Description(fmt.Sprintf("Symbol or pair (e.g. BTC, ETH/%s)", defaultQuote)).
				Value(&in.Asset).
				Validate(validateAsset),
			huh.NewSelect[string]().
				Title("Side").
				Options(
					huh.NewOption("Buy", "buy"),
					huh.NewOption("Sell", "sell"),
				).
				Value(&in.Side),
		),
	).Run()
	if err != nil {
		return domain.Order{}, err
	}

	render("STEP 2: SIZE")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Amount").
				Description("Quantity of the base asset (e.g. 0.25)").
				Value(&in.Amount).
				Validate(validateAmount),
			huh.NewInput().
				Title("Price").
				Description(fmt.Sprintf("Unit price in %s, leave empty if unknown", defaultQuote)).
				Value(&in.Price).
				Validate(validatePrice),
		),
	).Run()
	if err != nil {
		return domain.Order{}, err
	}

	render("STEP 3: DETAILS")
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Exchange").
				Description("Optional (e.g. binance, ledger)").
				Value(&in.Exchange),
			huh.NewText().
				Title("Note").
				Description("Optional").
				Value(&in.Note),
		),
	).Run()
	if err != nil {
		return domain.Order{}, err
	}

	order, err := in.Build(defaultQuote)
	if err != nil {
		return domain.Order{}, err
	}

	render("CONFIRMATION")
	fmt.Println(summaryStyle.Render(Summary(account, order)))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Record this order?").
				Affirmative("Yes, save").
				Negative("No, discard").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return domain.Order{}, err
	}
	if !confirm {
		return domain.Order{}, ErrCancelled
	}

	order.Timestamp = time.Now().UTC()
	return order, nil
}

// Summary renders the order as shown on the confirmation step.
func Summary(account string, o domain.Order) string {
	price := o.Price.String()
	if o.Price.IsZero() {
		price = "unknown"
	}
	lines := []string{
		fmt.Sprintf("Account:  %s", account),
		fmt.Sprintf("Asset:    %s", o.Symbol),
		fmt.Sprintf("Side:     %s", o.Side),
		fmt.Sprintf("Amount:   %s", o.Amount.String()),
		fmt.Sprintf("Price:    %s", price),
	}
	if o.Exchange != "" {
		lines = append(lines, fmt.Sprintf("Exchange: %s", o.Exchange))
	}
	if o.Note != "" {
		lines = append(lines, fmt.Sprintf("Note:     %s", o.Note))
	}
	return strings.Join(lines, "\n")
}

// Success renders the message printed after the order is stored.
func Success(o domain.Order) string {
	return lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("✓ Recorded %s %s %s (id %s)", o.Side, o.Amount.String(), o.Symbol, o.ID),
	)
}
