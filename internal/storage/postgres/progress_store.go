package postgres

import (
	"context"

	"solana-burn-hook/internal/storage"
)

// ProgressStore is a PostgreSQL implementation of storage.ProgressStore
// backed by the single-row watcher_progress table.
type ProgressStore struct {
	pool *Pool
}

// NewProgressStore creates a new PostgreSQL progress store.
func NewProgressStore(pool *Pool) *ProgressStore {
	return &ProgressStore{pool: pool}
}

var _ storage.ProgressStore = (*ProgressStore)(nil)

// GetLastProcessed returns the last processed slot and signature.
func (s *ProgressStore) GetLastProcessed(ctx context.Context) (*storage.Progress, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT slot, signature
		FROM watcher_progress
		WHERE id = 1
	`)

	var progress storage.Progress
	if err := row.Scan(&progress.Slot, &progress.Signature); err != nil {
		return nil, translate("get progress", err)
	}
	return &progress, nil
}

// SetLastProcessed saves the last processed slot and signature.
// Uses upsert to handle initial insert and subsequent updates.
func (s *ProgressStore) SetLastProcessed(ctx context.Context, progress *storage.Progress) error {
	if err := storage.ValidateProgress(progress); err != nil {
		return err
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO watcher_progress (id, slot, signature, updated_at)
		VALUES (1, $1, $2, NOW())
		ON CONFLICT (id) DO UPDATE
		SET slot = EXCLUDED.slot,
		    signature = EXCLUDED.signature,
		    updated_at = NOW()
	`, progress.Slot, progress.Signature)
	return translate("set progress", err)
}
