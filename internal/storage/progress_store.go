package storage

import "context"

// Progress represents the last processed position in the chain.
type Progress struct {
	Slot      int64  // last processed Solana slot
	Signature string // last processed transaction signature
}

// ProgressStore provides persistence for watcher state.
// This enables resumption after restarts without reprocessing executions.
type ProgressStore interface {
	// GetLastProcessed returns the last processed slot and signature.
	// Returns ErrNotFound if no progress has been saved yet.
	GetLastProcessed(ctx context.Context) (*Progress, error)

	// SetLastProcessed saves the last processed slot and signature.
	SetLastProcessed(ctx context.Context, progress *Progress) error
}

// ValidateProgress rejects nil progress and negative slots.
func ValidateProgress(p *Progress) error {
	if p == nil || p.Slot < 0 {
		return ErrInvalidInput
	}
	return nil
}
