// Package snapshots journals refresh results in a write-ahead log so the
// dashboard stream can replay and follow them.
package snapshots

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/chainguardian/internal/domain"
	"github.com/vadiminshakov/gowal"
)

const (
	defaultRecordDir   = "./wal/portfolio"
	recordSegmentLimit = 1000
	recordMaxSegments  = 100
	recordKeyPrefix    = "portfolio_record_"
)

// WALStore persists portfolio records in a WAL.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed record store under dir.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = defaultRecordDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "record_",
		SegmentThreshold: recordSegmentLimit,
		MaxSegments:      recordMaxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init portfolio record WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the record and returns its WAL index.
func (s *WALStore) Save(record domain.PortfolioRecord) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("portfolio record store is not initialized")
	}
	if record.Account == "" {
		return 0, fmt.Errorf("portfolio record account is required")
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return 0, errors.Wrap(err, "marshal portfolio record")
	}

	key := recordKeyPrefix + record.Account

	s.mu.Lock()
	defer s.mu.Unlock()

	nextIndex := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(nextIndex, key, payload); err != nil {
		return 0, errors.Wrap(err, "write portfolio record")
	}
	return nextIndex, nil
}

// RecordsAfter returns records written after index. An empty account
// matches every account.
func (s *WALStore) RecordsAfter(index uint64, account string) ([]domain.PortfolioRecordEntry, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("portfolio record store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.wal.CurrentIndex() <= index {
		return nil, nil
	}

	var entries []domain.PortfolioRecordEntry
	for msg := range s.wal.Iterator() {
		if msg.Index <= index || !strings.HasPrefix(msg.Key, recordKeyPrefix) {
			continue
		}
		if account != "" && msg.Key != recordKeyPrefix+account {
			continue
		}
		var record domain.PortfolioRecord
		if err := json.Unmarshal(msg.Value, &record); err != nil {
			return nil, errors.Wrap(err, "decode portfolio record")
		}
		entries = append(entries, domain.PortfolioRecordEntry{
			Index:  msg.Index,
			Record: record,
		})
	}

	return entries, nil
}

// Latest returns the newest record of account, ok is false when none exists.
func (s *WALStore) Latest(account string) (domain.PortfolioRecordEntry, bool, error) {
	entries, err := s.RecordsAfter(0, account)
	if err != nil || len(entries) == 0 {
		return domain.PortfolioRecordEntry{}, false, err
	}
	return entries[len(entries)-1], true, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("portfolio record store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}
