package memory

import (
	"context"
	"sort"
	"sync"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/storage"
)

// ExecutionStore is an in-memory implementation of storage.ExecutionStore.
type ExecutionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.HookExecution // keyed by execution id
}

// NewExecutionStore creates a new in-memory execution store.
func NewExecutionStore() *ExecutionStore {
	return &ExecutionStore{
		data: make(map[string]*domain.HookExecution),
	}
}

var _ storage.ExecutionStore = (*ExecutionStore)(nil)

// Insert adds a new execution. Returns ErrDuplicateKey if exists.
func (s *ExecutionStore) Insert(_ context.Context, e *domain.HookExecution) error {
	if e == nil || e.ExecutionID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.ExecutionID]; exists {
		return storage.ErrDuplicateKey
	}
	copy := *e
	s.data[e.ExecutionID] = &copy
	return nil
}

// InsertBulk adds multiple executions atomically. Fails entire batch on any duplicate.
func (s *ExecutionStore) InsertBulk(_ context.Context, execs []*domain.HookExecution) error {
	if len(execs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(execs))
	for _, e := range execs {
		if e == nil || e.ExecutionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[e.ExecutionID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[e.ExecutionID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[e.ExecutionID] = struct{}{}
	}

	for _, e := range execs {
		copy := *e
		s.data[e.ExecutionID] = &copy
	}
	return nil
}

// GetByMint retrieves all executions for a mint in chain order.
func (s *ExecutionStore) GetByMint(_ context.Context, mint string) ([]*domain.HookExecution, error) {
	return s.filter(mint, func(*domain.HookExecution) bool { return true }), nil
}

// GetBySlotRange retrieves executions for a mint within [start, end] (inclusive).
func (s *ExecutionStore) GetBySlotRange(_ context.Context, mint string, start, end int64) ([]*domain.HookExecution, error) {
	return s.filter(mint, func(e *domain.HookExecution) bool {
		return e.Slot >= start && e.Slot <= end
	}), nil
}

// TotalBurned sums Burned over all executions of a mint.
func (s *ExecutionStore) TotalBurned(_ context.Context, mint string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var total uint64
	for _, e := range s.data {
		if e.Mint == mint {
			total += e.Burned
		}
	}
	return total, nil
}

func (s *ExecutionStore) filter(mint string, keep func(*domain.HookExecution) bool) []*domain.HookExecution {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.HookExecution
	for _, e := range s.data {
		if e.Mint == mint && keep(e) {
			copy := *e
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		a, b := result[i], result[j]
		if a.Slot != b.Slot {
			return a.Slot < b.Slot
		}
		if a.Signature != b.Signature {
			return a.Signature < b.Signature
		}
		return a.LogIndex < b.LogIndex
	})
	return result
}
