// Package resolver resolves the extra accounts a client must append to a
// hooked transfer, using a registry catalog in front of RPC.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/solana"
	"solana-burn-hook/internal/storage"
)

// Resolver reads registries through rpc and caches them in catalog.
type Resolver struct {
	programID solana.PublicKey
	rpc       solana.RPCClient
	catalog   storage.RegistryStore
	logger    *log.Entry
	now       func() time.Time
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCatalog sets the registry catalog consulted before RPC.
func WithCatalog(store storage.RegistryStore) Option {
	return func(r *Resolver) { r.catalog = store }
}

// WithLogger sets the log entry.
func WithLogger(entry *log.Entry) Option {
	return func(r *Resolver) { r.logger = entry }
}

// New creates a resolver for the hook deployed at programID.
func New(programID solana.PublicKey, rpc solana.RPCClient, opts ...Option) *Resolver {
	r := &Resolver{
		programID: programID,
		rpc:       rpc,
		logger:    log.WithField("component", "resolver"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry is a resolved extra account meta list.
type Registry struct {
	Address solana.PublicKey
	Bump    uint8
	Metas   []hook.ExtraAccountMeta
	Cached  bool // served from the catalog
}

// Resolve returns the registry of mint. A missing registry account yields
// hook.ErrNotInitialized; one not owned by the hook yields hook.ErrAccountMismatch.
func (r *Resolver) Resolve(ctx context.Context, mint solana.PublicKey) (*Registry, error) {
	address, bump, err := hook.RegistryAddress(r.programID, mint)
	if err != nil {
		return nil, fmt.Errorf("derive registry: %w", err)
	}

	if r.catalog != nil {
		rec, err := r.catalog.GetByMint(ctx, mint.String())
		switch {
		case err == nil:
			if rec.Address != address.String() || rec.HookProgram != r.programID.String() {
				return nil, fmt.Errorf("%w: catalog record for %s does not match program %s",
					hook.ErrAccountMismatch, mint, r.programID)
			}
			metas, err := hook.DecodeMetaList(rec.Data)
			if err != nil {
				return nil, fmt.Errorf("decode cataloged registry: %w", err)
			}
			return &Registry{Address: address, Bump: bump, Metas: metas, Cached: true}, nil
		case !errors.Is(err, storage.ErrNotFound):
			return nil, fmt.Errorf("catalog lookup: %w", err)
		}
	}

	info, err := r.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get registry %s: %w", address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("%w: mint %s", hook.ErrNotInitialized, mint)
	}
	if info.Owner != r.programID {
		return nil, fmt.Errorf("%w: registry %s owned by %s", hook.ErrAccountMismatch, address, info.Owner)
	}
	metas, err := hook.DecodeMetaList(info.Data)
	if err != nil {
		return nil, err
	}

	if r.catalog != nil {
		r.remember(ctx, mint, address, bump, len(metas), info.Data)
	}
	return &Registry{Address: address, Bump: bump, Metas: metas}, nil
}

// remember inserts the registry into the catalog. Failures are logged only;
// the RPC result is authoritative.
func (r *Resolver) remember(ctx context.Context, mint, address solana.PublicKey, bump uint8, n int, data []byte) {
	slot, err := r.rpc.GetSlot(ctx)
	if err != nil {
		r.logger.WithError(err).Warn("get slot for catalog record")
	}

	rec := &domain.RegistryRecord{
		Mint:          mint.String(),
		Address:       address.String(),
		HookProgram:   r.programID.String(),
		Bump:          bump,
		ExtraAccounts: n,
		Data:          append([]byte(nil), data...),
		Slot:          slot,
		CreatedAt:     r.now().UnixMilli(),
	}
	err = r.catalog.Insert(ctx, rec)
	switch {
	case err == nil:
		r.logger.WithField("mint", rec.Mint).Debug("registry cataloged")
	case errors.Is(err, storage.ErrDuplicateKey):
	default:
		r.logger.WithError(err).WithField("mint", rec.Mint).Warn("catalog insert failed")
	}
}

// TransferAccounts returns the ordered accounts a client appends to
// TransferChecked: [registry, extras..., hook program].
func (r *Resolver) TransferAccounts(
	ctx context.Context,
	mint, source, destination, authority solana.PublicKey,
	amount uint64,
) ([]solana.AccountMeta, error) {
	reg, err := r.Resolve(ctx, mint)
	if err != nil {
		return nil, err
	}
	return hook.TransferAccounts(r.programID, mint, source, destination, authority, amount, reg.Metas, r.accountData(ctx))
}

func (r *Resolver) accountData(ctx context.Context) hook.AccountDataFunc {
	return func(key solana.PublicKey) ([]byte, error) {
		info, err := r.rpc.GetAccountInfo(ctx, key)
		if err != nil {
			return nil, err
		}
		if info == nil {
			return nil, fmt.Errorf("account %s not found", key)
		}
		return info.Data, nil
	}
}
