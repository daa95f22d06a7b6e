package stub

import (
	"context"
	"sync"

	"solana-burn-hook/internal/solana"
)

// RPCClient implements solana.RPCClient over in-memory accounts for testing.
type RPCClient struct {
	mu       sync.RWMutex
	Accounts map[solana.PublicKey]*solana.AccountInfo
	Slot     int64

	// Err, when set, is returned from every call.
	Err error
}

var _ solana.RPCClient = (*RPCClient)(nil)

// NewRPCClient creates a new stub RPC client.
func NewRPCClient() *RPCClient {
	return &RPCClient{
		Accounts: make(map[solana.PublicKey]*solana.AccountInfo),
	}
}

// SetAccount stores account data owned by owner.
func (c *RPCClient) SetAccount(key, owner solana.PublicKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Accounts[key] = &solana.AccountInfo{
		Lamports: 1,
		Owner:    owner,
		Data:     append([]byte(nil), data...),
	}
}

// GetAccountInfo returns the stored account or nil.
func (c *RPCClient) GetAccountInfo(_ context.Context, pubkey solana.PublicKey) (*solana.AccountInfo, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Accounts[pubkey], nil
}

// GetMultipleAccounts returns stored accounts positionally, nil where missing.
func (c *RPCClient) GetMultipleAccounts(ctx context.Context, pubkeys []solana.PublicKey) ([]*solana.AccountInfo, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	out := make([]*solana.AccountInfo, len(pubkeys))
	for i, k := range pubkeys {
		out[i], _ = c.GetAccountInfo(ctx, k)
	}
	return out, nil
}

// GetMinimumBalanceForRentExemption uses the default cluster rent parameters.
func (c *RPCClient) GetMinimumBalanceForRentExemption(_ context.Context, space int) (uint64, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	return uint64(128+space) * 6960, nil
}

// GetTokenAccountBalance decodes the stored token account amount.
func (c *RPCClient) GetTokenAccountBalance(ctx context.Context, account solana.PublicKey) (*solana.TokenAmount, error) {
	info, err := c.GetAccountInfo(ctx, account)
	if err != nil {
		return nil, err
	}
	if info == nil {
		return &solana.TokenAmount{}, nil
	}
	acct, err := solana.DecodeTokenAccount(info.Data)
	if err != nil {
		return nil, err
	}
	return &solana.TokenAmount{Amount: acct.Amount}, nil
}

// GetSlot returns the configured slot.
func (c *RPCClient) GetSlot(context.Context) (int64, error) {
	if c.Err != nil {
		return 0, c.Err
	}
	return c.Slot, nil
}
