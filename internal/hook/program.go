// Package hook implements the burn-on-transfer hook: the extra account meta
// registry, the Execute handler and the client-side helpers around them.
package hook

import (
	"fmt"

	"solana-burn-hook/internal/fee"
	"solana-burn-hook/internal/ledger"
	"solana-burn-hook/internal/solana"
)

// Runtime is what the hook needs from its execution environment.
// *ledger.Invocation satisfies it.
type Runtime interface {
	ProgramID() solana.PublicKey
	Caller() solana.PublicKey
	Account(key solana.PublicKey) (*solana.AccountInfo, error)
	IsSigner(key solana.PublicKey) bool
	IsWritable(key solana.PublicKey) bool
	CreateAccount(payer, address solana.PublicKey, space int, owner solana.PublicKey, seeds [][]byte) error
	WriteData(address solana.PublicKey, data []byte) error
	BurnChecked(account, mint, authority solana.PublicKey, amount uint64, decimals uint8, seeds [][]byte) error
	Log(msg string)
}

// Observer is notified after every Execute. err is nil on success.
type Observer func(exec *ExecutionLog, err error)

// Program is the transfer hook program.
type Program struct {
	id       solana.PublicKey
	policy   fee.Policy
	observer Observer
}

var _ ledger.Program = (*Program)(nil)

// Option configures a Program.
type Option func(*Program)

// WithPolicy overrides the reference 1 bp fee policy.
func WithPolicy(p fee.Policy) Option {
	return func(prog *Program) { prog.policy = p }
}

// WithObserver registers an Execute observer.
func WithObserver(fn Observer) Option {
	return func(prog *Program) { prog.observer = fn }
}

// NewProgram creates the hook program deployed at id.
func NewProgram(id solana.PublicKey, opts ...Option) (*Program, error) {
	p := &Program{id: id, policy: fee.Reference()}
	for _, opt := range opts {
		opt(p)
	}
	if err := p.policy.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// ID returns the program id.
func (p *Program) ID() solana.PublicKey { return p.id }

// Policy returns the fee policy.
func (p *Program) Policy() fee.Policy { return p.policy }

// Process implements ledger.Program.
func (p *Program) Process(inv *ledger.Invocation, accounts []solana.AccountMeta, data []byte) error {
	return p.process(inv, accounts, data)
}

func (p *Program) process(rt Runtime, accounts []solana.AccountMeta, data []byte) error {
	kind, args, err := DecodeInstruction(data)
	if err != nil {
		return err
	}

	switch kind {
	case InstructionInitializeExtraAccountMetaList:
		return p.initialize(rt, accounts)
	case InstructionExecute:
		exec, err := p.execute(rt, accounts, data, args.Amount)
		if p.observer != nil {
			p.observer(exec, err)
		}
		return err
	default:
		return fmt.Errorf("%w: %s", ErrInvalidInstruction, kind)
	}
}
