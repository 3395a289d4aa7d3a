package claims

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests and local development. It
// keeps the same non-atomic Has/Record contract as the Redis backend.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]ClaimRecord
}

// NewMemoryStore creates an empty in-memory claim store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]ClaimRecord)}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Has(_ context.Context, wallet string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[wallet]
	return ok, nil
}

func (s *MemoryStore) Get(_ context.Context, wallet string) (*ClaimRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[wallet]
	if !ok {
		return nil, nil
	}
	return &record, nil
}

func (s *MemoryStore) Record(_ context.Context, wallet, solTx, cashTx string) (*ClaimRecord, error) {
	record := ClaimRecord{
		WalletAddress: wallet,
		SolTx:         solTx,
		CashTx:        cashTx,
		ClaimedAt:     time.Now().UTC(),
	}
	s.mu.Lock()
	s.records[wallet] = record
	s.mu.Unlock()
	return &record, nil
}
