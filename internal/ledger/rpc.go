package ledger

import (
	"context"
	"errors"

	"solana-burn-hook/internal/domain"
	"solana-burn-hook/internal/solana"
)

// RPC exposes the ledger through the read-only RPC client interface, so
// off-chain components run unchanged against the simulator.
func (l *Ledger) RPC() solana.RPCClient {
	return rpcView{l: l}
}

type rpcView struct {
	l *Ledger
}

func (v rpcView) GetAccountInfo(ctx context.Context, pubkey solana.PublicKey) (*solana.AccountInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	info, err := v.l.Account(pubkey)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, nil
	}
	return info, err
}

func (v rpcView) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*solana.AccountInfo, error) {
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, k := range pubkeys {
		info, err := v.GetAccountInfo(ctx, k)
		if err != nil {
			return nil, err
		}
		out[i] = info
	}
	return out, nil
}

func (v rpcView) GetMinimumBalanceForRentExemption(_ context.Context, space int) (uint64, error) {
	return v.l.RentExemptMinimum(space), nil
}

func (v rpcView) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*solana.TokenAmount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a, err := v.l.TokenAccount(account)
	if err != nil {
		return nil, err
	}
	m, err := v.l.Mint(a.Mint)
	if err != nil {
		return nil, err
	}
	return &solana.TokenAmount{
		Amount:   a.Amount,
		Decimals: m.Decimals,
		UIAmount: domain.FormatUIAmount(a.Amount, m.Decimals),
	}, nil
}

func (v rpcView) GetSlot(context.Context) (int64, error) {
	return v.l.Slot(), nil
}
