package snapshots

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vadiminshakov/chainguardian/internal/domain"
)

func record(account, id string) domain.PortfolioRecord {
	return domain.PortfolioRecord{
		ID:        id,
		Account:   account,
		Timestamp: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Snapshots: map[string]domain.Snapshot{
			"BTC/USDT": {
				Key:          "BTC/USDT",
				Base:         "BTC",
				RemainingQty: decimal.NewFromInt(1),
				CostBasis:    decimal.NewFromInt(100),
			},
		},
	}
}

func TestWALStore_SaveAndReadBack(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	idx1, err := store.Save(record("main", "a"))
	require.NoError(t, err)
	idx2, err := store.Save(record("alt", "b"))
	require.NoError(t, err)
	idx3, err := store.Save(record("main", "c"))
	require.NoError(t, err)

	assert.Equal(t, idx1+1, idx2)
	assert.Equal(t, idx2+1, idx3)
	assert.Equal(t, idx3, store.CurrentIndex())

	all, err := store.RecordsAfter(0, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "a", all[0].Record.ID)
	assert.True(t, all[0].Record.Snapshots["BTC/USDT"].CostBasis.Equal(decimal.NewFromInt(100)))

	main, err := store.RecordsAfter(idx1, "main")
	require.NoError(t, err)
	require.Len(t, main, 1)
	assert.Equal(t, "c", main[0].Record.ID)
	assert.Equal(t, idx3, main[0].Index)

	none, err := store.RecordsAfter(idx3, "")
	require.NoError(t, err)
	assert.Empty(t, none)

	latest, ok, err := store.Latest("alt")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "b", latest.Record.ID)

	_, ok, err = store.Latest("nobody")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWALStore_SaveRequiresAccount(t *testing.T) {
	store, err := NewWALStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	_, err = store.Save(domain.PortfolioRecord{ID: "x"})
	assert.Error(t, err)
}

func TestWALStore_Reopen(t *testing.T) {
	dir := t.TempDir()

	store, err := NewWALStore(dir)
	require.NoError(t, err)
	_, err = store.Save(record("main", "persisted"))
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, err := NewWALStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	entries, err := reopened.RecordsAfter(0, "main")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "persisted", entries[0].Record.ID)
}

func TestWALStore_Nil(t *testing.T) {
	var store *WALStore
	_, err := store.Save(record("main", "x"))
	assert.Error(t, err)
	assert.Equal(t, uint64(0), store.CurrentIndex())
}
