package memory

import (
	"context"
	"sort"
	"sync"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/storage"
)

// RegistryStore is an in-memory implementation of storage.RegistryStore.
type RegistryStore struct {
	mu   sync.RWMutex
	data map[string]*domain.RegistryRecord // keyed by mint
}

// NewRegistryStore creates a new in-memory registry store.
func NewRegistryStore() *RegistryStore {
	return &RegistryStore{
		data: make(map[string]*domain.RegistryRecord),
	}
}

var _ storage.RegistryStore = (*RegistryStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the mint exists.
func (s *RegistryStore) Insert(_ context.Context, r *domain.RegistryRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.Mint]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[r.Mint] = cloneRecord(r)
	return nil
}

// GetByMint retrieves the record for a mint.
func (s *RegistryStore) GetByMint(_ context.Context, mint string) (*domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.data[mint]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneRecord(r), nil
}

// List returns all records ordered by mint.
func (s *RegistryStore) List(_ context.Context) ([]*domain.RegistryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.RegistryRecord, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, cloneRecord(r))
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Mint < result[j].Mint })
	return result, nil
}

func cloneRecord(r *domain.RegistryRecord) *domain.RegistryRecord {
	c := *r
	c.Data = append([]byte(nil), r.Data...)
	return &c
}
