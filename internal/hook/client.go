package hook

import (
	"fmt"

	"solana-burn-hook/internal/ledger"
	"solana-burn-hook/internal/solana"
)

// InitializeAccounts returns the account list for InitializeExtraAccountMetaList.
func InitializeAccounts(programID, mint, payer solana.PublicKey) ([]solana.AccountMeta, error) {
	registry, _, err := RegistryAddress(programID, mint)
	if err != nil {
		return nil, err
	}
	return []solana.AccountMeta{
		solana.Writable(registry),
		solana.ReadOnly(mint),
		{PublicKey: payer, IsSigner: true, IsWritable: true},
		solana.ReadOnly(solana.SystemProgramID),
	}, nil
}

// TransferAccounts resolves the accounts a client appends to a TransferChecked
// instruction: [registry, extras..., hook program].
func TransferAccounts(
	programID, mint, source, destination, authority solana.PublicKey,
	amount uint64,
	metas []ExtraAccountMeta,
	readData AccountDataFunc,
) ([]solana.AccountMeta, error) {
	registry, _, err := RegistryAddress(programID, mint)
	if err != nil {
		return nil, err
	}

	data, err := EncodeExecute(amount)
	if err != nil {
		return nil, err
	}

	fixed := []solana.AccountMeta{
		solana.ReadOnly(source),
		solana.Writable(mint),
		solana.Writable(destination),
		solana.ReadOnly(authority),
		solana.ReadOnly(registry),
	}
	extras, err := ResolveMetas(metas, data, programID, fixed, readData)
	if err != nil {
		return nil, err
	}

	out := make([]solana.AccountMeta, 0, len(extras)+2)
	out = append(out, solana.ReadOnly(registry))
	out = append(out, extras...)
	out = append(out, solana.ReadOnly(programID))
	return out, nil
}

// Client drives the hook on a ledger.
type Client struct {
	ledger    *ledger.Ledger
	programID solana.PublicKey
}

// NewClient returns a client for the hook deployed at programID.
func NewClient(l *ledger.Ledger, programID solana.PublicKey) *Client {
	return &Client{ledger: l, programID: programID}
}

// InitializeRegistry creates the extra account meta list for mint.
func (c *Client) InitializeRegistry(mint, payer solana.PublicKey) (*ledger.Receipt, error) {
	accounts, err := InitializeAccounts(c.programID, mint, payer)
	if err != nil {
		return nil, err
	}
	return c.ledger.Invoke(c.programID, accounts, EncodeInitializeExtraAccountMetaList())
}

// Registry reads and decodes the extra account meta list of mint.
func (c *Client) Registry(mint solana.PublicKey) ([]ExtraAccountMeta, error) {
	registry, _, err := RegistryAddress(c.programID, mint)
	if err != nil {
		return nil, err
	}
	info, err := c.ledger.Account(registry)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInitialized, err)
	}
	if info.Owner != c.programID {
		return nil, mismatch("registry owned by %s", info.Owner)
	}
	return DecodeMetaList(info.Data)
}

// Transfer resolves the hook accounts and submits TransferChecked.
func (c *Client) Transfer(source, mint, destination, authority solana.PublicKey, amount uint64, decimals uint8) (*ledger.Receipt, error) {
	metas, err := c.Registry(mint)
	if err != nil {
		return nil, err
	}
	extra, err := TransferAccounts(c.programID, mint, source, destination, authority, amount, metas, c.ledger.AccountData)
	if err != nil {
		return nil, err
	}
	return c.ledger.TransferChecked(ledger.TransferParams{
		Source:             source,
		Mint:               mint,
		Destination:        destination,
		Authority:          authority,
		Amount:             amount,
		Decimals:           decimals,
		Signers:            []solana.PublicKey{authority},
		AdditionalAccounts: extra,
	})
}
