package hook

import (
	"errors"
	"fmt"

	"solana-burn-hook/internal/fee"
	"solana-burn-hook/internal/ledger"
	"solana-burn-hook/internal/solana"
)

// Initialize accounts: [registry (w), mint, payer (s, w), system program].
const initializeAccounts = 4

// initialize creates the mint's extra account meta list. Create-once: a
// second call fails with ErrAlreadyInitialized and changes nothing.
func (p *Program) initialize(rt Runtime, accounts []solana.AccountMeta) error {
	if len(accounts) < initializeAccounts {
		return mismatch("initialize needs %d accounts, got %d", initializeAccounts, len(accounts))
	}
	registry := accounts[0].PublicKey
	mint := accounts[1].PublicKey
	payer := accounts[2].PublicKey

	expected, bump, err := RegistryAddress(p.id, mint)
	if err != nil {
		return mismatch("derive registry: %v", err)
	}
	if registry != expected {
		return mismatch("registry %s, expected %s", registry, expected)
	}
	if !rt.IsSigner(payer) {
		return fmt.Errorf("%w: payer %s did not sign", ErrUnauthorized, payer)
	}

	if err := p.checkMintBinding(rt, mint); err != nil {
		return err
	}

	if existing, err := rt.Account(registry); err == nil {
		if len(existing.Data) > 0 || existing.Owner != solana.SystemProgramID {
			return fmt.Errorf("%w: %s", ErrAlreadyInitialized, registry)
		}
	} else if !errors.Is(err, ledger.ErrAccountNotFound) {
		return err
	}

	metas := ReferenceMetas()
	data := EncodeMetaList(metas)
	seeds := [][]byte{[]byte(RegistrySeed), mint[:], {bump}}

	if err := rt.CreateAccount(payer, registry, len(data), p.id, seeds); err != nil {
		switch {
		case errors.Is(err, ledger.ErrInsufficientLamports):
			return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
		case errors.Is(err, ledger.ErrAccountExists):
			return fmt.Errorf("%w: %w", ErrAlreadyInitialized, err)
		default:
			return err
		}
	}
	if err := rt.WriteData(registry, data); err != nil {
		return err
	}

	rt.Log(fmt.Sprintf("burn-hook: initialized extra account metas mint=%s count=%d", mint, len(metas)))
	return nil
}

// checkMintBinding requires the mint to name this program as its transfer
// hook and the burn-authority PDA as its permanent delegate.
func (p *Program) checkMintBinding(rt Runtime, mint solana.PublicKey) error {
	m, err := loadMint(rt, mint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if m.TransferHookProgram == nil || *m.TransferHookProgram != p.id {
		return fmt.Errorf("%w: transfer hook program is not %s", ErrInvalidMint, p.id)
	}

	burnAuthority, _, err := BurnAuthorityAddress(p.id, mint)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMint, err)
	}
	if m.PermanentDelegate == nil || *m.PermanentDelegate != burnAuthority {
		return fmt.Errorf("%w: permanent delegate must be %s", ErrInvalidMint, burnAuthority)
	}
	return nil
}

// execute validates a hooked transfer and burns the fee from the
// destination's credited balance. No state changes before validation passes.
func (p *Program) execute(rt Runtime, accounts []solana.AccountMeta, data []byte, amount uint64) (*ExecutionLog, error) {
	if len(accounts) < fixedAccounts {
		return nil, mismatch("execute needs at least %d accounts, got %d", fixedAccounts, len(accounts))
	}
	source := accounts[AccountSource].PublicKey
	mint := accounts[AccountMint].PublicKey
	destination := accounts[AccountDestination].PublicKey
	registry := accounts[AccountRegistry].PublicKey

	// Registry must be the PDA for this mint.
	expected, _, err := RegistryAddress(p.id, mint)
	if err != nil {
		return nil, mismatch("derive registry: %v", err)
	}
	if registry != expected {
		return nil, mismatch("registry %s, expected %s", registry, expected)
	}

	// Only the token program may call, and only mid-transfer.
	if rt.Caller() != solana.Token2022ProgramID {
		return nil, fmt.Errorf("%w: caller %s", ErrUnauthorized, rt.Caller())
	}
	src, err := loadTokenAccount(rt, source)
	if err != nil {
		return nil, fmt.Errorf("%w: source: %v", ErrUnauthorized, err)
	}
	if !src.Transferring {
		return nil, fmt.Errorf("%w: source %s is not transferring", ErrUnauthorized, source)
	}

	// Accounts must agree on the mint, and extras must match the registry.
	m, err := loadMint(rt, mint)
	if err != nil {
		return nil, mismatch("mint: %v", err)
	}
	if m.TransferHookProgram == nil || *m.TransferHookProgram != p.id {
		return nil, mismatch("mint %s is not bound to %s", mint, p.id)
	}
	dst, err := loadTokenAccount(rt, destination)
	if err != nil {
		return nil, mismatch("destination: %v", err)
	}
	if src.Mint != mint || dst.Mint != mint {
		return nil, mismatch("source mint %s, destination mint %s, expected %s", src.Mint, dst.Mint, mint)
	}
	if err := p.checkExtraAccounts(rt, accounts, data); err != nil {
		return nil, err
	}

	burn, err := p.policy.BurnAmount(amount)
	if err != nil {
		if errors.Is(err, fee.ErrOverflow) {
			return nil, fmt.Errorf("%w: %v", ErrArithmeticOverflow, err)
		}
		return nil, err
	}

	if burn > 0 {
		authority, bump, err := BurnAuthorityAddress(p.id, mint)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBurnFailed, err)
		}
		seeds := [][]byte{[]byte(BurnAuthoritySeed), mint[:], {bump}}
		if err := rt.BurnChecked(destination, mint, authority, burn, m.Decimals, seeds); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrBurnFailed, err)
		}
	}

	exec := &ExecutionLog{
		Mint:        mint,
		Source:      source,
		Destination: destination,
		Amount:      amount,
		Burn:        burn,
	}
	rt.Log(exec.String())
	return exec, nil
}

// checkExtraAccounts re-derives the registry's metas and requires the
// accounts after the registry to match them in order.
func (p *Program) checkExtraAccounts(rt Runtime, accounts []solana.AccountMeta, data []byte) error {
	registry, err := rt.Account(accounts[AccountRegistry].PublicKey)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			return fmt.Errorf("%w: %s", ErrNotInitialized, accounts[AccountRegistry].PublicKey)
		}
		return mismatch("registry: %v", err)
	}
	if registry.Owner != p.id {
		return mismatch("registry owned by %s", registry.Owner)
	}
	metas, err := DecodeMetaList(registry.Data)
	if err != nil {
		return err
	}

	readData := func(key solana.PublicKey) ([]byte, error) {
		info, err := rt.Account(key)
		if err != nil {
			return nil, err
		}
		return info.Data, nil
	}
	resolved, err := ResolveMetas(metas, data, p.id, accounts[:fixedAccounts], readData)
	if err != nil {
		return err
	}

	extras := accounts[fixedAccounts:]
	if len(extras) < len(resolved) {
		return mismatch("expected %d extra accounts, got %d", len(resolved), len(extras))
	}
	for i, want := range resolved {
		got := extras[i]
		if got.PublicKey != want.PublicKey {
			return mismatch("extra account %d is %s, expected %s", i, got.PublicKey, want.PublicKey)
		}
		if want.IsWritable && !rt.IsWritable(got.PublicKey) {
			return mismatch("extra account %d must be writable", i)
		}
		if want.IsSigner && !rt.IsSigner(got.PublicKey) {
			return mismatch("extra account %d must sign", i)
		}
	}
	return nil
}

func loadMint(rt Runtime, key solana.PublicKey) (*solana.MintLayout, error) {
	info, err := rt.Account(key)
	if err != nil {
		return nil, err
	}
	if info.Owner != solana.Token2022ProgramID {
		return nil, fmt.Errorf("mint %s owned by %s", key, info.Owner)
	}
	return solana.DecodeMint(info.Data)
}

func loadTokenAccount(rt Runtime, key solana.PublicKey) (*solana.TokenAccountLayout, error) {
	info, err := rt.Account(key)
	if err != nil {
		return nil, err
	}
	if info.Owner != solana.Token2022ProgramID {
		return nil, fmt.Errorf("token account %s owned by %s", key, info.Owner)
	}
	return solana.DecodeTokenAccount(info.Data)
}
