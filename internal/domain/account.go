package domain

import "github.com/shopspring/decimal"

// Default settings applied to every store.
const (
	DefaultRefreshSeconds   = 30
	DefaultFearBuyThreshold = 20
	DefaultProfitPctToTake  = 300
	DefaultQuote            = "USDT"
	DefaultAccountName      = "main"
)

// TrackedAddresses lists on-chain addresses watched per chain.
type TrackedAddresses struct {
	BTC []string `json:"btc"`
	ETH []string `json:"eth"`
}

// Account is one independent ledger inside the store.
type Account struct {
	Name             string                     `json:"name"`
	Orders           []Order                    `json:"orders"`
	TrackedAddresses TrackedAddresses           `json:"tracked_addresses"`
	CustomThresholds map[string]decimal.Decimal `json:"custom_thresholds,omitempty"`
	RebalanceTargets map[string]decimal.Decimal `json:"rebalance_targets,omitempty"`
}

// Settings are user preferences persisted next to the accounts.
type Settings struct {
	RefreshSeconds   int             `json:"refresh_seconds"`
	FearBuyThreshold int             `json:"fear_buy_threshold"`
	ProfitPctToTake  decimal.Decimal `json:"profit_pct_to_take"`
	DefaultQuote     string          `json:"default_quote"`
}

// DefaultSettings returns the settings of a fresh store.
func DefaultSettings() Settings {
	return Settings{
		RefreshSeconds:   DefaultRefreshSeconds,
		FearBuyThreshold: DefaultFearBuyThreshold,
		ProfitPctToTake:  decimal.NewFromInt(DefaultProfitPctToTake),
		DefaultQuote:     DefaultQuote,
	}
}

// WithDefaults fills zero-valued settings.
func (s Settings) WithDefaults() Settings {
	def := DefaultSettings()
	if s.RefreshSeconds <= 0 {
		s.RefreshSeconds = def.RefreshSeconds
	}
	if s.FearBuyThreshold <= 0 {
		s.FearBuyThreshold = def.FearBuyThreshold
	}
	if !s.ProfitPctToTake.IsPositive() {
		s.ProfitPctToTake = def.ProfitPctToTake
	}
	if s.DefaultQuote == "" {
		s.DefaultQuote = def.DefaultQuote
	}
	return s
}

// Store is the decrypted content of the encrypted store file.
type Store struct {
	Accounts map[string]*Account `json:"accounts"`
	APIKeys  map[string]string   `json:"api_keys"`
	Settings Settings            `json:"settings"`
}

// NewStore returns an empty store with a single default account.
func NewStore() *Store {
	return &Store{
		Accounts: map[string]*Account{
			DefaultAccountName: NewAccount(DefaultAccountName),
		},
		APIKeys:  make(map[string]string),
		Settings: DefaultSettings(),
	}
}

// NewAccount creates an empty account.
func NewAccount(name string) *Account {
	return &Account{
		Name:             name,
		Orders:           make([]Order, 0),
		CustomThresholds: make(map[string]decimal.Decimal),
		RebalanceTargets: make(map[string]decimal.Decimal),
	}
}

// Account returns the named account, creating it when absent.
func (s *Store) Account(name string) *Account {
	if name == "" {
		name = DefaultAccountName
	}
	if s.Accounts == nil {
		s.Accounts = make(map[string]*Account)
	}
	acc, ok := s.Accounts[name]
	if !ok || acc == nil {
		acc = NewAccount(name)
		s.Accounts[name] = acc
	}
	if acc.Name == "" {
		acc.Name = name
	}
	return acc
}

// Normalize fills nil collections and default settings after decoding.
func (s *Store) Normalize() {
	if s.Accounts == nil {
		s.Accounts = make(map[string]*Account)
	}
	if len(s.Accounts) == 0 {
		s.Accounts[DefaultAccountName] = NewAccount(DefaultAccountName)
	}
	for name, acc := range s.Accounts {
		if acc == nil {
			s.Accounts[name] = NewAccount(name)
			continue
		}
		if acc.Name == "" {
			acc.Name = name
		}
		if acc.Orders == nil {
			acc.Orders = make([]Order, 0)
		}
		if acc.CustomThresholds == nil {
			acc.CustomThresholds = make(map[string]decimal.Decimal)
		}
		if acc.RebalanceTargets == nil {
			acc.RebalanceTargets = make(map[string]decimal.Decimal)
		}
	}
	if s.APIKeys == nil {
		s.APIKeys = make(map[string]string)
	}
	s.Settings = s.Settings.WithDefaults()
}
