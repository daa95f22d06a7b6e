package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/storage"
)

// RegistryStore implements storage.RegistryStore using PostgreSQL.
type RegistryStore struct {
	pool *Pool
}

// NewRegistryStore creates a new RegistryStore.
func NewRegistryStore(pool *Pool) *RegistryStore {
	return &RegistryStore{pool: pool}
}

// Compile-time interface check.
var _ storage.RegistryStore = (*RegistryStore)(nil)

// Insert adds a new record. Returns ErrDuplicateKey if the mint exists.
func (s *RegistryStore) Insert(ctx context.Context, r *domain.RegistryRecord) error {
	if r == nil || r.Mint == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO hook_registries (
			mint, address, hook_program, bump, extra_accounts, data, slot, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := s.pool.Exec(ctx, query,
		r.Mint,
		r.Address,
		r.HookProgram,
		int16(r.Bump),
		r.ExtraAccounts,
		r.Data,
		r.Slot,
		r.CreatedAt,
	)
	return translate("insert registry", err)
}

// GetByMint retrieves the record for a mint. Returns ErrNotFound if not exists.
func (s *RegistryStore) GetByMint(ctx context.Context, mint string) (*domain.RegistryRecord, error) {
	query := `
		SELECT mint, address, hook_program, bump, extra_accounts, data, slot, created_at
		FROM hook_registries
		WHERE mint = $1
	`

	r, err := scanRegistry(s.pool.QueryRow(ctx, query, mint))
	if err != nil {
		return nil, translate("get registry by mint", err)
	}
	return r, nil
}

// List returns all records ordered by mint.
func (s *RegistryStore) List(ctx context.Context) ([]*domain.RegistryRecord, error) {
	query := `
		SELECT mint, address, hook_program, bump, extra_accounts, data, slot, created_at
		FROM hook_registries
		ORDER BY mint ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, translate("list registries", err)
	}
	defer rows.Close()

	var result []*domain.RegistryRecord
	for rows.Next() {
		r, err := scanRegistry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registry: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate registries: %w", err)
	}
	return result, nil
}

func scanRegistry(row pgx.Row) (*domain.RegistryRecord, error) {
	var r domain.RegistryRecord
	var bump int16
	err := row.Scan(
		&r.Mint,
		&r.Address,
		&r.HookProgram,
		&bump,
		&r.ExtraAccounts,
		&r.Data,
		&r.Slot,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	r.Bump = uint8(bump)
	return &r, nil
}
