package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/chainguardian/internal/services/pricer"
	"gopkg.in/yaml.v3"
)

// Environment variables holding secrets.
const (
	EnvPassphrase = "CHAINGUARDIAN_PASSPHRASE"
	EnvEthRPC     = "ETH_RPC_URL"
)

// Defaults applied when a field is absent from the yaml file.
const (
	DefaultStorePath       = "chainguardian.db"
	DefaultWALDir          = "wal"
	DefaultPriceSource     = pricer.SourceCoinGecko
	DefaultCacheTTL        = 20 * time.Second
	DefaultRebalanceTolPct = 5
)

// Config is the parsed runtime configuration.
type Config struct {
	StorePath  string
	KeyFile    string
	Passphrase string
	WALDir     string

	Account     string
	Grouping    domain.GroupingMode
	PriceSource string
	// DefaultQuote overrides the quote stored in the settings when set.
	DefaultQuote string
	// RefreshInterval overrides the stored refresh seconds when set.
	RefreshInterval time.Duration
	CacheTTL        time.Duration
	RebalanceTolPct decimal.Decimal

	CoinGeckoIDs   map[string]string
	CoinGeckoURL   string
	HyperliquidURL string
	SentimentURL   string
	BlockchairURL  string
	EthRPCURL      string

	WebAddr string

	Once     bool
	Debug    bool
	AddOrder bool
	Export   string
}

// ConfigTmp mirrors the yaml layout, numbers are kept as strings and parsed
// with per-field defaults.
type ConfigTmp struct {
	StorePath          string            `yaml:"store_path"`
	KeyFile            string            `yaml:"key_file,omitempty"`
	WALDir             string            `yaml:"wal_dir"`
	Account            string            `yaml:"account,omitempty"`
	Grouping           string            `yaml:"grouping"`
	PriceSource        string            `yaml:"price_source"`
	DefaultQuote       string            `yaml:"default_quote,omitempty"`
	RefreshInterval    time.Duration     `yaml:"refresh_interval,omitempty"`
	CacheTTL           time.Duration     `yaml:"cache_ttl,omitempty"`
	RebalanceTolPctStr string            `yaml:"rebalance_tolerance_pct,omitempty"`
	CoinGeckoIDs       map[string]string `yaml:"coingecko_ids,omitempty"`
	CoinGeckoURL       string            `yaml:"coingecko_url,omitempty"`
	HyperliquidURL     string            `yaml:"hyperliquid_url,omitempty"`
	SentimentURL       string            `yaml:"sentiment_url,omitempty"`
	BlockchairURL      string            `yaml:"blockchair_url,omitempty"`
	EthRPCURL          string            `yaml:"eth_rpc_url,omitempty"`
	WebAddr            string            `yaml:"web_addr,omitempty"`
}

// Get reads the command line and the optional yaml file.
func Get() (Config, error) {
	return Parse(os.Args[1:], os.Getenv)
}

// Parse builds the configuration from args. Flags win over the yaml file,
// getenv supplies secrets.
func Parse(args []string, getenv func(string) string) (Config, error) {
	f, err := parseFlags(args)
	if err != nil {
		return Config{}, err
	}

	tmp := ConfigTmp{}
	if f.config != "" {
		tmp, err = readYaml(f.config)
		if err != nil {
			return Config{}, err
		}
	}

	cfg, err := tmp.toConfig()
	if err != nil {
		return Config{}, err
	}

	if f.account != "" {
		cfg.Account = f.account
	}
	if f.web != "" {
		cfg.WebAddr = f.web
	}
	if f.store != "" {
		cfg.StorePath = f.store
	}
	cfg.Once = f.once
	cfg.Debug = f.debug
	cfg.AddOrder = f.addOrder
	cfg.Export = f.export

	if cfg.Account == "" {
		cfg.Account = domain.DefaultAccountName
	}
	cfg.Passphrase = getenv(EnvPassphrase)
	if rpc := getenv(EnvEthRPC); rpc != "" {
		cfg.EthRPCURL = rpc
	}

	if cfg.Once && cfg.AddOrder {
		return Config{}, fmt.Errorf("--once and --add-order are mutually exclusive")
	}
	return cfg, nil
}

func readYaml(path string) (ConfigTmp, error) {
	var tmp ConfigTmp

	data, err := os.ReadFile(path)
	if err != nil {
		return ConfigTmp{}, err
	}
	if err := yaml.Unmarshal(data, &tmp); err != nil {
		return ConfigTmp{}, fmt.Errorf("incorrect yaml config %s, error: %w", path, err)
	}
	return tmp, nil
}

func (c ConfigTmp) toConfig() (Config, error) {
	cfg := Config{
		StorePath:       c.StorePath,
		KeyFile:         c.KeyFile,
		WALDir:          c.WALDir,
		Account:         c.Account,
		PriceSource:     strings.ToLower(strings.TrimSpace(c.PriceSource)),
		DefaultQuote:    strings.ToUpper(strings.TrimSpace(c.DefaultQuote)),
		RefreshInterval: c.RefreshInterval,
		CacheTTL:        c.CacheTTL,
		CoinGeckoURL:    c.CoinGeckoURL,
		HyperliquidURL:  c.HyperliquidURL,
		SentimentURL:    c.SentimentURL,
		BlockchairURL:   c.BlockchairURL,
		EthRPCURL:       c.EthRPCURL,
		WebAddr:         c.WebAddr,
	}

	if cfg.StorePath == "" {
		cfg.StorePath = DefaultStorePath
	}
	if cfg.WALDir == "" {
		cfg.WALDir = DefaultWALDir
	}

	grouping, err := domain.ParseGroupingMode(c.Grouping)
	if err != nil {
		return Config{}, fmt.Errorf("incorrect 'grouping' param in yaml config (symbol or base), error: %w", err)
	}
	cfg.Grouping = grouping

	switch cfg.PriceSource {
	case "":
		cfg.PriceSource = DefaultPriceSource
	case pricer.SourceCoinGecko, pricer.SourceBinance, pricer.SourceBybit, pricer.SourceHyperliquid:
	default:
		return Config{}, fmt.Errorf("incorrect 'price_source' param in yaml config: %s", c.PriceSource)
	}

	if cfg.RefreshInterval < 0 {
		return Config{}, fmt.Errorf("incorrect 'refresh_interval' param in yaml config (must not be negative)")
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}

	if c.RebalanceTolPctStr == "" {
		cfg.RebalanceTolPct = decimal.NewFromInt(DefaultRebalanceTolPct)
	} else {
		tol, err := decimal.NewFromString(c.RebalanceTolPctStr)
		if err != nil {
			return Config{}, fmt.Errorf("incorrect 'rebalance_tolerance_pct' param in yaml config (must be a decimal), error: %w", err)
		}
		if tol.IsNegative() {
			return Config{}, fmt.Errorf("incorrect 'rebalance_tolerance_pct' param in yaml config (must not be negative)")
		}
		cfg.RebalanceTolPct = tol
	}

	if len(c.CoinGeckoIDs) > 0 {
		cfg.CoinGeckoIDs = make(map[string]string, len(c.CoinGeckoIDs))
		for base, id := range c.CoinGeckoIDs {
			cfg.CoinGeckoIDs[strings.ToUpper(base)] = id
		}
	}

	return cfg, nil
}

// Interval returns the refresh interval, falling back to the stored setting.
func (c Config) Interval(settings domain.Settings) time.Duration {
	if c.RefreshInterval > 0 {
		return c.RefreshInterval
	}
	return time.Duration(settings.WithDefaults().RefreshSeconds) * time.Second
}

// Quote returns the configured quote, falling back to the stored setting.
func (c Config) Quote(settings domain.Settings) string {
	if c.DefaultQuote != "" {
		return c.DefaultQuote
	}
	return settings.WithDefaults().DefaultQuote
}

// String hides secrets so the config can be logged.
func (c Config) String() string {
	return "store=" + c.StorePath +
		" account=" + c.Account +
		" grouping=" + string(c.Grouping) +
		" price_source=" + c.PriceSource +
		" cache_ttl=" + c.CacheTTL.String() +
		" web=" + strconv.Quote(c.WebAddr)
}
