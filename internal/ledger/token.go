package ledger

import (
	"fmt"

	"solana-burn-hook/internal/solana"
)

// MintConfig describes a new Token-2022 mint.
type MintConfig struct {
	Mint            solana.PublicKey
	Payer           solana.PublicKey
	MintAuthority   solana.PublicKey
	FreezeAuthority *solana.PublicKey
	Decimals        uint8

	// TransferHookProgram binds the mint to a hook program. Fixed at creation.
	TransferHookProgram   *solana.PublicKey
	TransferHookAuthority *solana.PublicKey

	// PermanentDelegate may transfer or burn from any account of the mint.
	PermanentDelegate *solana.PublicKey
}

// TransferParams is a TransferChecked instruction.
type TransferParams struct {
	Source      solana.PublicKey
	Mint        solana.PublicKey
	Destination solana.PublicKey
	Authority   solana.PublicKey
	Amount      uint64
	Decimals    uint8

	// Signers are the keys that signed the transaction. Authority must be one of them.
	Signers []solana.PublicKey

	// AdditionalAccounts are forwarded unchanged to the transfer hook after
	// [source, mint, destination, authority]. They must include the hook program.
	AdditionalAccounts []solana.AccountMeta
}

// CreateMint creates and initializes a mint account funded by cfg.Payer.
func (l *Ledger) CreateMint(cfg MintConfig) (*Receipt, error) {
	return l.transact("create_mint", func(tx *txn) error {
		layout := &solana.MintLayout{
			MintAuthority:         &cfg.MintAuthority,
			Decimals:              cfg.Decimals,
			IsInitialized:         true,
			FreezeAuthority:       cfg.FreezeAuthority,
			TransferHookAuthority: cfg.TransferHookAuthority,
			TransferHookProgram:   cfg.TransferHookProgram,
			PermanentDelegate:     cfg.PermanentDelegate,
		}
		data := solana.EncodeMint(layout)

		acct, err := tx.createAccount(cfg.Payer, cfg.Mint, len(data), solana.Token2022ProgramID)
		if err != nil {
			return err
		}
		copy(acct.Data, data)

		tx.logf("Program %s invoke [1]", solana.Token2022ProgramID)
		tx.logf("Program log: Instruction: InitializeMint2")
		tx.logf("Program %s success", solana.Token2022ProgramID)
		return nil
	})
}

// CreateTokenAccount creates a token account at address for owner.
func (l *Ledger) CreateTokenAccount(payer, address, mint, owner solana.PublicKey) (*Receipt, error) {
	return l.transact("create_token_account", func(tx *txn) error {
		return tx.createTokenAccount(payer, address, mint, owner)
	})
}

// CreateAssociatedTokenAccount creates the associated token account of wallet for mint.
func (l *Ledger) CreateAssociatedTokenAccount(payer, wallet, mint solana.PublicKey) (solana.PublicKey, *Receipt, error) {
	address, err := solana.AssociatedTokenAddress(wallet, mint, solana.Token2022ProgramID)
	if err != nil {
		return solana.PublicKey{}, nil, err
	}
	receipt, err := l.transact("create_associated_token_account", func(tx *txn) error {
		tx.logf("Program %s invoke [1]", solana.AssociatedTokenProgramID)
		if err := tx.createTokenAccount(payer, address, mint, wallet); err != nil {
			tx.logf("Program %s failed: %s", solana.AssociatedTokenProgramID, err)
			return err
		}
		tx.logf("Program %s success", solana.AssociatedTokenProgramID)
		return nil
	})
	return address, receipt, err
}

// MintTo mints amount to destination. authority must be the mint authority.
func (l *Ledger) MintTo(mint, destination, authority solana.PublicKey, amount uint64) (*Receipt, error) {
	return l.transact("mint_to", func(tx *txn) error {
		return tx.runToken(1, "MintTo", func() error {
			mintAcct, m, err := tx.loadMint(mint)
			if err != nil {
				return err
			}
			if m.MintAuthority == nil || *m.MintAuthority != authority {
				return fmt.Errorf("%w: mint authority", ErrOwnerMismatch)
			}
			dstAcct, dst, err := tx.loadTokenAccount(destination)
			if err != nil {
				return err
			}
			if dst.Mint != mint {
				return ErrMintMismatch
			}
			if dst.State == solana.TokenAccountFrozen {
				return ErrFrozen
			}
			if m.Supply+amount < m.Supply {
				return fmt.Errorf("%w: supply", ErrOverflow)
			}

			m.Supply += amount
			dst.Amount += amount
			storeMint(mintAcct, m)
			storeTokenAccount(dstAcct, dst)
			return nil
		})
	})
}

// Burn burns amount from account. authority must be the owner or the mint's
// permanent delegate and must be among signers.
func (l *Ledger) Burn(account, mint, authority solana.PublicKey, amount uint64, decimals uint8, signers ...solana.PublicKey) (*Receipt, error) {
	return l.transact("burn", func(tx *txn) error {
		return tx.runToken(1, "BurnChecked", func() error {
			if err := requireSigner(signers, authority); err != nil {
				return err
			}
			return tx.burn(account, mint, authority, amount, decimals)
		})
	})
}

// TransferChecked moves amount between token accounts of one mint. When the
// mint has a transfer hook, the hook runs before the transaction commits and
// any hook failure rolls back the whole transfer.
func (l *Ledger) TransferChecked(p TransferParams) (*Receipt, error) {
	return l.transact("transfer_checked", func(tx *txn) error {
		return tx.runToken(1, "TransferChecked", func() error {
			if err := requireSigner(p.Signers, p.Authority); err != nil {
				return err
			}
			return tx.transferChecked(p)
		})
	})
}

// runToken wraps a token program instruction with its invoke/result log lines.
func (tx *txn) runToken(depth int, instruction string, fn func() error) error {
	if depth > tx.l.maxDepth {
		return fmt.Errorf("%w: %d", ErrCallDepth, depth)
	}
	tx.logf("Program %s invoke [%d]", solana.Token2022ProgramID, depth)
	tx.logf("Program log: Instruction: %s", instruction)
	if err := fn(); err != nil {
		tx.logf("Program %s failed: %s", solana.Token2022ProgramID, describeError(err))
		return err
	}
	tx.logf("Program %s success", solana.Token2022ProgramID)
	return nil
}

func (tx *txn) createTokenAccount(payer, address, mint, owner solana.PublicKey) error {
	_, m, err := tx.loadMint(mint)
	if err != nil {
		return err
	}

	layout := &solana.TokenAccountLayout{
		Mint:                   mint,
		Owner:                  owner,
		State:                  solana.TokenAccountInitialized,
		HasTransferHookAccount: m.TransferHookProgram != nil,
	}
	data := solana.EncodeTokenAccount(layout)

	acct, err := tx.createAccount(payer, address, len(data), solana.Token2022ProgramID)
	if err != nil {
		return err
	}
	copy(acct.Data, data)
	return nil
}

func (tx *txn) transferChecked(p TransferParams) error {
	_, m, err := tx.loadMint(p.Mint)
	if err != nil {
		return err
	}
	if m.Decimals != p.Decimals {
		return fmt.Errorf("%w: got %d, mint has %d", ErrDecimalsMismatch, p.Decimals, m.Decimals)
	}

	srcAcct, src, err := tx.loadTokenAccount(p.Source)
	if err != nil {
		return err
	}
	dstAcct, dst, err := tx.loadTokenAccount(p.Destination)
	if err != nil {
		return err
	}
	if src.Mint != p.Mint || dst.Mint != p.Mint {
		return ErrMintMismatch
	}
	if src.State == solana.TokenAccountFrozen || dst.State == solana.TokenAccountFrozen {
		return ErrFrozen
	}
	if !authorizes(src, m, p.Authority) {
		return fmt.Errorf("%w: %s cannot move funds of %s", ErrOwnerMismatch, p.Authority, p.Source)
	}
	if src.Amount < p.Amount {
		return fmt.Errorf("%w: has %d, needs %d", ErrInsufficientBalance, src.Amount, p.Amount)
	}

	if p.Source != p.Destination {
		src.Amount -= p.Amount
		dst.Amount += p.Amount
	}

	if m.TransferHookProgram == nil {
		storeTokenAccount(srcAcct, src)
		storeTokenAccount(dstAcct, dst)
		return nil
	}

	src.Transferring = src.HasTransferHookAccount
	dst.Transferring = dst.HasTransferHookAccount
	storeTokenAccount(srcAcct, src)
	storeTokenAccount(dstAcct, dst)

	if err := tx.executeHook(*m.TransferHookProgram, p); err != nil {
		return err
	}

	// The hook may have changed balances; clear flags on current state.
	for _, key := range []solana.PublicKey{p.Source, p.Destination} {
		acct, a, err := tx.loadTokenAccount(key)
		if err != nil {
			return err
		}
		a.Transferring = false
		storeTokenAccount(acct, a)
	}
	return nil
}

func (tx *txn) executeHook(hookProgram solana.PublicKey, p TransferParams) error {
	found := false
	for _, m := range p.AdditionalAccounts {
		if m.PublicKey == hookProgram {
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: transfer hook program %s", ErrMissingAccount, hookProgram)
	}

	accounts := make([]solana.AccountMeta, 0, 4+len(p.AdditionalAccounts))
	accounts = append(accounts,
		solana.ReadOnly(p.Source),
		solana.Writable(p.Mint),
		solana.Writable(p.Destination),
		solana.ReadOnly(p.Authority),
	)
	accounts = append(accounts, p.AdditionalAccounts...)

	return tx.invoke(hookProgram, solana.Token2022ProgramID, 2, accounts, solana.ExecuteInstructionData(p.Amount))
}

func (tx *txn) burn(account, mint, authority solana.PublicKey, amount uint64, decimals uint8) error {
	mintAcct, m, err := tx.loadMint(mint)
	if err != nil {
		return err
	}
	if m.Decimals != decimals {
		return fmt.Errorf("%w: got %d, mint has %d", ErrDecimalsMismatch, decimals, m.Decimals)
	}
	acct, a, err := tx.loadTokenAccount(account)
	if err != nil {
		return err
	}
	if a.Mint != mint {
		return ErrMintMismatch
	}
	if a.State == solana.TokenAccountFrozen {
		return ErrFrozen
	}
	if !authorizes(a, m, authority) {
		return fmt.Errorf("%w: %s cannot burn from %s", ErrOwnerMismatch, authority, account)
	}
	if a.Amount < amount {
		return fmt.Errorf("%w: has %d, burning %d", ErrInsufficientBalance, a.Amount, amount)
	}

	a.Amount -= amount
	m.Supply -= amount
	storeTokenAccount(acct, a)
	storeMint(mintAcct, m)
	return nil
}

// requireSigner fails unless key signed the top-level transaction. Program
// signers (PDAs) only exist inside an invocation and are checked there.
func requireSigner(signers []solana.PublicKey, key solana.PublicKey) error {
	for _, s := range signers {
		if s == key {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrMissingSignature, key)
}

// authorizes reports whether authority may move or burn funds of a.
func authorizes(a *solana.TokenAccountLayout, m *solana.MintLayout, authority solana.PublicKey) bool {
	if a.Owner == authority {
		return true
	}
	return m.PermanentDelegate != nil && *m.PermanentDelegate == authority
}

func (tx *txn) loadMint(key solana.PublicKey) (*Account, *solana.MintLayout, error) {
	acct, ok := tx.l.accounts[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: mint %s", ErrAccountNotFound, key)
	}
	if acct.Owner != solana.Token2022ProgramID {
		return nil, nil, fmt.Errorf("%w: mint %s", ErrInvalidAccountOwner, key)
	}
	m, err := solana.DecodeMint(acct.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	if !m.IsInitialized {
		return nil, nil, fmt.Errorf("%w: mint %s not initialized", ErrInvalidAccountData, key)
	}
	return acct, m, nil
}

func (tx *txn) loadTokenAccount(key solana.PublicKey) (*Account, *solana.TokenAccountLayout, error) {
	acct, ok := tx.l.accounts[key]
	if !ok {
		return nil, nil, fmt.Errorf("%w: token account %s", ErrAccountNotFound, key)
	}
	if acct.Owner != solana.Token2022ProgramID {
		return nil, nil, fmt.Errorf("%w: token account %s", ErrInvalidAccountOwner, key)
	}
	a, err := solana.DecodeTokenAccount(acct.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrInvalidAccountData, err)
	}
	if a.State == solana.TokenAccountUninitialized {
		return nil, nil, fmt.Errorf("%w: token account %s not initialized", ErrInvalidAccountData, key)
	}
	return acct, a, nil
}

func storeMint(acct *Account, m *solana.MintLayout) {
	acct.Data = solana.EncodeMint(m)
}

func storeTokenAccount(acct *Account, a *solana.TokenAccountLayout) {
	acct.Data = solana.EncodeTokenAccount(a)
}
