package resolver

import (
	"context"
	"fmt"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/hook"
	"solana-burn-hook/internal/solana"
)

// Mint reads and decodes a Token-2022 mint. A missing account or one not
// owned by the token program yields hook.ErrInvalidMint.
func (r *Resolver) Mint(ctx context.Context, address solana.PublicKey) (*domain.Mint, error) {
	data, err := r.tokenAccountData(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hook.ErrInvalidMint, err)
	}
	m, err := solana.DecodeMint(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", hook.ErrInvalidMint, err)
	}

	out := &domain.Mint{
		Address:  address.String(),
		Decimals: m.Decimals,
		Supply:   m.Supply,
	}
	if m.TransferHookProgram != nil {
		out.HookProgram = m.TransferHookProgram.String()
	}
	if m.PermanentDelegate != nil {
		out.PermanentDelegate = m.PermanentDelegate.String()
	}
	return out, nil
}

// TokenAccount reads the balance of a Token-2022 token account.
func (r *Resolver) TokenAccount(ctx context.Context, address solana.PublicKey) (*domain.TokenAccount, error) {
	data, err := r.tokenAccountData(ctx, address)
	if err != nil {
		return nil, err
	}
	a, err := solana.DecodeTokenAccount(data)
	if err != nil {
		return nil, fmt.Errorf("decode token account %s: %w", address, err)
	}
	return &domain.TokenAccount{
		Address: address.String(),
		Mint:    a.Mint.String(),
		Owner:   a.Owner.String(),
		Amount:  a.Amount,
	}, nil
}

func (r *Resolver) tokenAccountData(ctx context.Context, address solana.PublicKey) ([]byte, error) {
	info, err := r.rpc.GetAccountInfo(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", address, err)
	}
	if info == nil {
		return nil, fmt.Errorf("account %s not found", address)
	}
	if info.Owner != solana.Token2022ProgramID {
		return nil, fmt.Errorf("account %s owned by %s", address, info.Owner)
	}
	return info.Data, nil
}
