package solana

import "context"

// RPCClient defines the Solana JSON-RPC reads needed to resolve hook accounts.
type RPCClient interface {
	// GetAccountInfo retrieves an account. Returns nil, nil when the account does not exist.
	GetAccountInfo(ctx context.Context, pubkey PublicKey) (*AccountInfo, error)

	// GetMultipleAccounts retrieves several accounts in one call.
	// Missing accounts are returned as nil entries at their position.
	GetMultipleAccounts(ctx context.Context, pubkeys []PublicKey) ([]*AccountInfo, error)

	// GetMinimumBalanceForRentExemption returns the rent-exempt minimum for an account of size space.
	GetMinimumBalanceForRentExemption(ctx context.Context, space int) (uint64, error)

	// GetTokenAccountBalance returns the raw balance of a token account.
	GetTokenAccountBalance(ctx context.Context, account PublicKey) (*TokenAmount, error)

	// GetSlot retrieves the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// AccountInfo represents Solana account information with decoded data.
type AccountInfo struct {
	Lamports   uint64
	Owner      PublicKey
	Data       []byte
	Executable bool
	RentEpoch  uint64
}

// TokenAmount is the result of getTokenAccountBalance.
type TokenAmount struct {
	Amount   uint64
	Decimals uint8
	UIAmount string
}
