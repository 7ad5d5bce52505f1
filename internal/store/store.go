// Package store holds the uploaded datasets in memory and persists them
// between restarts.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"advisor-dashboard/internal/models"
)

type stamp struct {
	version    string
	uploadedAt time.Time
	source     string
}

// Store owns the three datasets. Every replacement swaps the slice
// wholesale, so snapshots handed out earlier stay valid and unchanged.
type Store struct {
	mu     sync.RWMutex
	data   models.Datasets
	stamps map[models.DatasetKind]stamp
	now    func() time.Time
}

func New() *Store {
	return &Store{
		stamps: make(map[models.DatasetKind]stamp),
		now:    time.Now,
	}
}

// Snapshot returns the current datasets. Callers must not modify the slices.
func (s *Store) Snapshot() models.Datasets {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data
}

func (s *Store) ReplaceTransactions(records []models.TransactionRecord, source string) models.DatasetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Transactions = records
	return s.bump(models.KindTransactions, len(records), source)
}

func (s *Store) ReplaceCustomers(records []models.CustomerRecord, source string) models.DatasetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Customers = records
	return s.bump(models.KindCustomers, len(records), source)
}

func (s *Store) ReplaceStrategies(records []models.StrategyMapping, source string) models.DatasetInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data.Strategies = records
	return s.bump(models.KindStrategies, len(records), source)
}

// Restore installs datasets loaded from a snapshot, stamping every
// non-empty kind with source.
func (s *Store) Restore(ds models.Datasets, source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = ds
	s.stamps = make(map[models.DatasetKind]stamp)
	for kind, n := range countsOf(ds) {
		if n > 0 {
			s.bump(kind, n, source)
		}
	}
}

func (s *Store) Clear(kind models.DatasetKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case models.KindTransactions:
		s.data.Transactions = nil
	case models.KindCustomers:
		s.data.Customers = nil
	case models.KindStrategies:
		s.data.Strategies = nil
	}
	delete(s.stamps, kind)
}

func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = models.Datasets{}
	s.stamps = make(map[models.DatasetKind]stamp)
}

// Info describes every dataset kind, loaded or not, in a fixed order.
func (s *Store) Info() []models.DatasetInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := countsOf(s.data)
	out := make([]models.DatasetInfo, 0, len(counts))
	for _, kind := range []models.DatasetKind{models.KindTransactions, models.KindCustomers, models.KindStrategies} {
		st := s.stamps[kind]
		out = append(out, models.DatasetInfo{
			Kind:       kind,
			Records:    counts[kind],
			Version:    st.version,
			UploadedAt: st.uploadedAt,
			Source:     st.source,
		})
	}
	return out
}

// bump must be called with mu held.
func (s *Store) bump(kind models.DatasetKind, n int, source string) models.DatasetInfo {
	st := stamp{version: uuid.NewString(), uploadedAt: s.now(), source: source}
	s.stamps[kind] = st
	return models.DatasetInfo{Kind: kind, Records: n, Version: st.version, UploadedAt: st.uploadedAt, Source: source}
}

func countsOf(ds models.Datasets) map[models.DatasetKind]int {
	return map[models.DatasetKind]int{
		models.KindTransactions: len(ds.Transactions),
		models.KindCustomers:    len(ds.Customers),
		models.KindStrategies:   len(ds.Strategies),
	}
}
