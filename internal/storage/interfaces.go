package storage

import (
	"context"

	"solana-burn-hook/internal/domain"
)

// RegistryStore catalogs initialized extra-account-meta lists.
// Records are create-once: a registry never changes after initialization.
type RegistryStore interface {
	// Insert adds a new record. Returns ErrDuplicateKey if the mint exists.
	Insert(ctx context.Context, r *domain.RegistryRecord) error

	// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
	GetByMint(ctx context.Context, mint string) (*domain.RegistryRecord, error)

	// List returns all records ordered by mint.
	List(ctx context.Context) ([]*domain.RegistryRecord, error)
}

// ExecutionStore provides access to hook_executions storage.
type ExecutionStore interface {
	// Insert adds a new execution. Returns ErrDuplicateKey if execution_id exists.
	Insert(ctx context.Context, e *domain.HookExecution) error

	// InsertBulk adds multiple executions. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, execs []*domain.HookExecution) error

	// GetByMint retrieves all executions for a mint, ordered by (slot, signature, log_index) ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.HookExecution, error)

	// GetBySlotRange retrieves executions for a mint within [start, end] (inclusive).
	GetBySlotRange(ctx context.Context, mint string, start, end int64) ([]*domain.HookExecution, error)

	// TotalBurned sums Burned over all executions of a mint.
	TotalBurned(ctx context.Context, mint string) (uint64, error)
}
