package ledger

import (
	"fmt"

	"solana-burn-hook/internal/solana"
)

// Program is an on-ledger program.
type Program interface {
	ID() solana.PublicKey
	Process(inv *Invocation, accounts []solana.AccountMeta, data []byte) error
}

// Invocation is the execution context of one program instruction.
// It only grants access to the accounts passed to the instruction.
type Invocation struct {
	tx       *txn
	program  solana.PublicKey
	caller   solana.PublicKey
	depth    int
	accounts []solana.AccountMeta
}

// ProgramID returns the executing program.
func (inv *Invocation) ProgramID() solana.PublicKey { return inv.program }

// Caller returns the program that issued this instruction, or the zero key
// for a top-level instruction.
func (inv *Invocation) Caller() solana.PublicKey { return inv.caller }

// Depth returns the invocation depth, 1 for top-level.
func (inv *Invocation) Depth() int { return inv.depth }

// Log appends a program log line.
func (inv *Invocation) Log(msg string) {
	inv.tx.logf("Program log: %s", msg)
}

func (inv *Invocation) meta(key solana.PublicKey) (solana.AccountMeta, bool) {
	for _, m := range inv.accounts {
		if m.PublicKey == key {
			return m, true
		}
	}
	return solana.AccountMeta{}, false
}

// IsSigner reports whether key signed this instruction.
func (inv *Invocation) IsSigner(key solana.PublicKey) bool {
	m, ok := inv.meta(key)
	return ok && m.IsSigner
}

// IsWritable reports whether key was passed writable.
func (inv *Invocation) IsWritable(key solana.PublicKey) bool {
	m, ok := inv.meta(key)
	return ok && m.IsWritable
}

// Account returns a copy of an account passed to the instruction.
func (inv *Invocation) Account(key solana.PublicKey) (*solana.AccountInfo, error) {
	if _, ok := inv.meta(key); !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingAccount, key)
	}
	acct, ok := inv.tx.l.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return acct.info(), nil
}

// signedBy checks that key signed the instruction, or that seeds derive key
// from the executing program.
func (inv *Invocation) signedBy(key solana.PublicKey, seeds [][]byte) error {
	if seeds == nil {
		if inv.IsSigner(key) {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrMissingSignature, key)
	}
	derived, err := solana.CreateProgramAddress(seeds, inv.program)
	if err != nil || derived != key {
		return fmt.Errorf("%w: seeds do not derive %s", ErrMissingSignature, key)
	}
	return nil
}

func (inv *Invocation) requireWritable(keys ...solana.PublicKey) error {
	for _, k := range keys {
		if _, ok := inv.meta(k); !ok {
			return fmt.Errorf("%w: %s", ErrMissingAccount, k)
		}
		if !inv.IsWritable(k) {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, k)
		}
	}
	return nil
}

// CreateAccount allocates a rent-exempt account owned by owner through the
// system program. address signs either directly or through seeds.
func (inv *Invocation) CreateAccount(payer, address solana.PublicKey, space int, owner solana.PublicKey, seeds [][]byte) error {
	if err := inv.requireWritable(payer, address); err != nil {
		return err
	}
	if err := inv.signedBy(payer, nil); err != nil {
		return err
	}
	if err := inv.signedBy(address, seeds); err != nil {
		return err
	}

	inv.tx.logf("Program %s invoke [%d]", solana.SystemProgramID, inv.depth+1)
	if _, err := inv.tx.createAccount(payer, address, space, owner); err != nil {
		inv.tx.logf("Program %s failed: %s", solana.SystemProgramID, err)
		return err
	}
	inv.tx.logf("Program %s success", solana.SystemProgramID)
	return nil
}

// WriteData overwrites the data of an account owned by the executing program.
// data must fit the allocated space.
func (inv *Invocation) WriteData(address solana.PublicKey, data []byte) error {
	if err := inv.requireWritable(address); err != nil {
		return err
	}
	acct, ok := inv.tx.l.accounts[address]
	if !ok {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, address)
	}
	if acct.Owner != inv.program {
		return fmt.Errorf("%w: %s owned by %s", ErrInvalidAccountOwner, address, acct.Owner)
	}
	if len(data) > len(acct.Data) {
		return fmt.Errorf("%w: %d bytes into %d-byte account", ErrInvalidAccountData, len(data), len(acct.Data))
	}
	copy(acct.Data, data)
	return nil
}

// BurnChecked burns amount from account through the token program. authority
// signs either directly or through seeds of the executing program.
func (inv *Invocation) BurnChecked(account, mint, authority solana.PublicKey, amount uint64, decimals uint8, seeds [][]byte) error {
	if err := inv.requireWritable(account, mint); err != nil {
		return err
	}
	if err := inv.signedBy(authority, seeds); err != nil {
		return err
	}

	return inv.tx.runToken(inv.depth+1, "BurnChecked", func() error {
		return inv.tx.burn(account, mint, authority, amount, decimals)
	})
}

// Invoke issues a nested instruction to another registered program.
// Signer and writable privileges cannot exceed those of this invocation.
func (inv *Invocation) Invoke(programID solana.PublicKey, accounts []solana.AccountMeta, data []byte) error {
	for _, m := range accounts {
		outer, ok := inv.meta(m.PublicKey)
		if !ok && m.PublicKey != programID {
			return fmt.Errorf("%w: %s", ErrMissingAccount, m.PublicKey)
		}
		if m.IsSigner && !outer.IsSigner {
			return fmt.Errorf("%w: %s", ErrMissingSignature, m.PublicKey)
		}
		if m.IsWritable && !outer.IsWritable {
			return fmt.Errorf("%w: %s", ErrReadonlyAccount, m.PublicKey)
		}
	}
	return inv.tx.invoke(programID, inv.program, inv.depth+1, accounts, data)
}
