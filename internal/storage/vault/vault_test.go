package vault

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

func sampleStore() *domain.Store {
	store := domain.NewStore()
	acc := store.Account("main")
	acc.Orders = append(acc.Orders, domain.Order{
		ID:     "1",
		Symbol: "BTC/USDT",
		Side:   domain.SideBuy,
		Amount: decimal.RequireFromString("0.5"),
		Price:  decimal.NewFromInt(60000),
	})
	acc.TrackedAddresses.BTC = []string{"bc1qxyz"}
	acc.CustomThresholds["BTC/USDT"] = decimal.NewFromInt(150)
	store.APIKeys["etherscan"] = "secret"
	return store
}

func TestVault_LoadMissingReturnsSkeleton(t *testing.T) {
	v, err := New(filepath.Join(t.TempDir(), "store.bin"))
	require.NoError(t, err)

	store, err := v.Load()
	require.NoError(t, err)
	require.Contains(t, store.Accounts, domain.DefaultAccountName)
	assert.Empty(t, store.Accounts[domain.DefaultAccountName].Orders)
	assert.Equal(t, domain.DefaultSettings(), store.Settings)
}

func TestVault_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")
	v, err := New(path)
	require.NoError(t, err)

	require.NoError(t, v.Save(sampleStore()))

	info, err := os.Stat(path + ".key")
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "BTC/USDT")
	assert.NotContains(t, string(raw), "secret")

	loaded, err := v.Load()
	require.NoError(t, err)

	acc := loaded.Account("main")
	require.Len(t, acc.Orders, 1)
	assert.Equal(t, "BTC/USDT", acc.Orders[0].Symbol)
	assert.True(t, acc.Orders[0].Amount.Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, []string{"bc1qxyz"}, acc.TrackedAddresses.BTC)
	assert.True(t, acc.CustomThresholds["BTC/USDT"].Equal(decimal.NewFromInt(150)))
	assert.Equal(t, "secret", loaded.APIKeys["etherscan"])

	_, err = os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))
}

func TestVault_SaveFillsDefaults(t *testing.T) {
	v, err := New(filepath.Join(t.TempDir(), "store.bin"))
	require.NoError(t, err)

	require.NoError(t, v.Save(&domain.Store{}))

	loaded, err := v.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultRefreshSeconds, loaded.Settings.RefreshSeconds)
	assert.Equal(t, domain.DefaultFearBuyThreshold, loaded.Settings.FearBuyThreshold)
	assert.Equal(t, domain.DefaultQuote, loaded.Settings.DefaultQuote)
	assert.True(t, loaded.Settings.ProfitPctToTake.Equal(decimal.NewFromInt(domain.DefaultProfitPctToTake)))
}

func TestVault_WrongKeyFallsBackToSkeleton(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")

	v, err := New(path)
	require.NoError(t, err)
	require.NoError(t, v.Save(sampleStore()))

	other, err := New(path, WithKeyFile(filepath.Join(dir, "other.key")))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.key"), make([]byte, keySize), 0o600))

	store, err := other.Load()
	require.ErrorIs(t, err, ErrDecrypt)
	require.NotNil(t, store)
	assert.Empty(t, store.Account("main").Orders)

	matches, err := filepath.Glob(path + ".corrupt-*")
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestVault_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")
	require.NoError(t, os.WriteFile(path, []byte("definitely not encrypted"), 0o600))

	v, err := New(path)
	require.NoError(t, err)

	store, err := v.Load()
	require.ErrorIs(t, err, ErrDecrypt)
	assert.Contains(t, store.Accounts, domain.DefaultAccountName)
}

func TestVault_MissingKeyFileOnLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "store.bin")

	v, err := New(path)
	require.NoError(t, err)
	require.NoError(t, v.Save(sampleStore()))
	require.NoError(t, os.Remove(path+".key"))

	_, err = v.Load()
	require.ErrorIs(t, err, ErrDecrypt)

	_, err = os.Stat(path + ".key")
	assert.True(t, os.IsNotExist(err), "load must not create a key file")
}

func TestVault_Passphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.bin")

	v, err := New(path, WithPassphrase("correct horse"))
	require.NoError(t, err)
	require.NoError(t, v.Save(sampleStore()))

	_, err = os.Stat(path + ".key")
	assert.True(t, os.IsNotExist(err))

	loaded, err := v.Load()
	require.NoError(t, err)
	assert.Len(t, loaded.Account("main").Orders, 1)

	wrong, err := New(path, WithPassphrase("battery staple"))
	require.NoError(t, err)
	_, err = wrong.Load()
	assert.ErrorIs(t, err, ErrDecrypt)
}

func TestDecodeStore_LegacyLayout(t *testing.T) {
	legacy := `{
		"api_keys": {},
		"settings": {"refresh_seconds": 60, "default_quote": "USDT", "profit_pct_to_take": 250.0},
		"orders": [
			{"id": 1, "asset": "ETH", "side": "buy", "amount": "2", "price": 1500, "status": "open"}
		],
		"tracked_addresses": {"btc": [], "eth": ["0xabc"]},
		"whale_watch": {"btc": [], "eth": []}
	}`

	store, err := decodeStore([]byte(legacy))
	require.NoError(t, err)

	acc := store.Account(domain.DefaultAccountName)
	require.Len(t, acc.Orders, 1)
	assert.Equal(t, "ETH", acc.Orders[0].Symbol)
	assert.Equal(t, domain.SideBuy, acc.Orders[0].Side)
	assert.Equal(t, []string{"0xabc"}, acc.TrackedAddresses.ETH)
	assert.Equal(t, 60, store.Settings.RefreshSeconds)
	assert.True(t, store.Settings.ProfitPctToTake.Equal(decimal.NewFromInt(250)))
	assert.Equal(t, domain.DefaultFearBuyThreshold, store.Settings.FearBuyThreshold)
}

func TestExportPlain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.json")
	require.NoError(t, ExportPlain(sampleStore(), path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Contains(t, decoded, "accounts")
	assert.Contains(t, string(raw), "BTC/USDT")
}
