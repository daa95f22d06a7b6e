package clickhouse

import (
	"context"
	"fmt"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/storage"
)

// ExecutionStore implements storage.ExecutionStore using ClickHouse.
type ExecutionStore struct {
	conn *Conn
}

// NewExecutionStore creates a new ExecutionStore.
func NewExecutionStore(conn *Conn) *ExecutionStore {
	return &ExecutionStore{conn: conn}
}

// Compile-time interface check.
var _ storage.ExecutionStore = (*ExecutionStore)(nil)

const selectExecutions = `
	SELECT execution_id, signature, log_index, slot, mint, source, destination, amount, burned, observed_at
	FROM hook_executions FINAL
`

// Insert adds a new execution. Returns ErrDuplicateKey if execution_id exists.
func (s *ExecutionStore) Insert(ctx context.Context, e *domain.HookExecution) error {
	return s.InsertBulk(ctx, []*domain.HookExecution{e})
}

// InsertBulk adds multiple executions. Fails entire batch on duplicate.
// MergeTree does not enforce keys, so duplicates are checked before the insert.
func (s *ExecutionStore) InsertBulk(ctx context.Context, execs []*domain.HookExecution) error {
	if len(execs) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(execs))
	for _, e := range execs {
		if e == nil || e.ExecutionID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[e.ExecutionID]; exists {
			return storage.ErrDuplicateKey
		}
		seen[e.ExecutionID] = struct{}{}
	}

	for _, e := range execs {
		exists, err := s.exists(ctx, e.ExecutionID)
		if err != nil {
			return fmt.Errorf("check exists: %w", err)
		}
		if exists {
			return storage.ErrDuplicateKey
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO hook_executions (
			execution_id, signature, log_index, slot, mint, source, destination, amount, burned, observed_at
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, e := range execs {
		err = batch.Append(
			e.ExecutionID, e.Signature, uint32(e.LogIndex), uint64(e.Slot),
			e.Mint, e.Source, e.Destination, e.Amount, e.Burned, uint64(e.ObservedAt),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByMint retrieves all executions for a mint, ordered by (slot, signature, log_index) ASC.
func (s *ExecutionStore) GetByMint(ctx context.Context, mint string) ([]*domain.HookExecution, error) {
	query := selectExecutions + `
		WHERE mint = ?
		ORDER BY slot ASC, signature ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, mint)
	if err != nil {
		return nil, fmt.Errorf("query by mint: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// GetBySlotRange retrieves executions for a mint within [start, end] (inclusive).
func (s *ExecutionStore) GetBySlotRange(ctx context.Context, mint string, start, end int64) ([]*domain.HookExecution, error) {
	if start < 0 || end < start {
		return nil, storage.ErrInvalidInput
	}

	query := selectExecutions + `
		WHERE mint = ? AND slot >= ? AND slot <= ?
		ORDER BY slot ASC, signature ASC, log_index ASC
	`

	rows, err := s.conn.Query(ctx, query, mint, uint64(start), uint64(end))
	if err != nil {
		return nil, fmt.Errorf("query by slot range: %w", err)
	}
	defer rows.Close()

	return scanExecutions(rows)
}

// TotalBurned sums burned over all executions of a mint.
func (s *ExecutionStore) TotalBurned(ctx context.Context, mint string) (uint64, error) {
	var total uint64
	err := s.conn.QueryRow(ctx, `
		SELECT sum(burned) FROM hook_executions FINAL WHERE mint = ?
	`, mint).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum burned: %w", err)
	}
	return total, nil
}

func (s *ExecutionStore) exists(ctx context.Context, executionID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `
		SELECT count(*) FROM hook_executions WHERE execution_id = ?
	`, executionID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func scanExecutions(rows chRows) ([]*domain.HookExecution, error) {
	var execs []*domain.HookExecution

	for rows.Next() {
		var e domain.HookExecution
		var logIndex uint32
		var slot, observedAt uint64

		err := rows.Scan(
			&e.ExecutionID, &e.Signature, &logIndex, &slot,
			&e.Mint, &e.Source, &e.Destination, &e.Amount, &e.Burned, &observedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan execution row: %w", err)
		}

		e.LogIndex = int(logIndex)
		e.Slot = int64(slot)
		e.ObservedAt = int64(observedAt)
		execs = append(execs, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate execution rows: %w", err)
	}
	return execs, nil
}
