// Package ledger is an in-memory Token-2022 ledger that runs transfer-hook
// programs as nested invocations inside atomic transactions.
package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"solana-burn-hook/internal/solana"
)

// DefaultMaxDepth matches the runtime's invocation stack limit.
const DefaultMaxDepth = 5

// Rent parameters. Minimum is the rent-exempt balance for an account of space bytes.
type Rent struct {
	LamportsPerByteYear uint64
	ExemptionYears      uint64
}

// DefaultRent is the cluster default: 3480 lamports per byte-year, 2 years.
var DefaultRent = Rent{LamportsPerByteYear: 3480, ExemptionYears: 2}

// accountStorageOverhead is charged on top of the data length.
const accountStorageOverhead = 128

// Minimum returns the rent-exempt minimum balance.
func (r Rent) Minimum(space int) uint64 {
	return uint64(accountStorageOverhead+space) * r.LamportsPerByteYear * r.ExemptionYears
}

// Account is raw ledger state for one address.
type Account struct {
	Lamports   uint64
	Owner      solana.PublicKey
	Data       []byte
	Executable bool
}

func (a *Account) clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

func (a *Account) info() *solana.AccountInfo {
	return &solana.AccountInfo{
		Lamports:   a.Lamports,
		Owner:      a.Owner,
		Data:       append([]byte(nil), a.Data...),
		Executable: a.Executable,
	}
}

// Receipt describes a processed transaction. Failed transactions return a
// receipt too, carrying the logs up to the failure.
type Receipt struct {
	Signature string
	Slot      int64
	Logs      []string
}

// Ledger holds accounts and registered programs.
// All mutations run as transactions serialized by mu.
type Ledger struct {
	mu       sync.Mutex
	accounts map[solana.PublicKey]*Account
	programs map[solana.PublicKey]Program
	slot     int64
	rent     Rent
	maxDepth int
	logger   *log.Entry
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithRent overrides rent parameters.
func WithRent(r Rent) Option {
	return func(l *Ledger) { l.rent = r }
}

// WithLogger sets the logger used for transaction tracing.
func WithLogger(entry *log.Entry) Option {
	return func(l *Ledger) { l.logger = entry }
}

// WithStartSlot sets the slot before the first transaction.
func WithStartSlot(slot int64) Option {
	return func(l *Ledger) { l.slot = slot }
}

// WithMaxDepth overrides the invocation depth limit.
func WithMaxDepth(depth int) Option {
	return func(l *Ledger) { l.maxDepth = depth }
}

// New creates a ledger with the system and token programs deployed.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		accounts: make(map[solana.PublicKey]*Account),
		programs: make(map[solana.PublicKey]Program),
		rent:     DefaultRent,
		maxDepth: DefaultMaxDepth,
		logger:   log.WithField("component", "ledger"),
	}
	for _, opt := range opts {
		opt(l)
	}

	for _, id := range []solana.PublicKey{solana.SystemProgramID, solana.Token2022ProgramID, solana.AssociatedTokenProgramID} {
		l.accounts[id] = &Account{Lamports: 1, Owner: solana.SystemProgramID, Executable: true}
	}
	return l
}

// RegisterProgram deploys p at p.ID().
func (l *Ledger) RegisterProgram(p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := p.ID()
	l.programs[id] = p
	l.accounts[id] = &Account{Lamports: 1, Owner: solana.SystemProgramID, Executable: true}
}

// RentExemptMinimum returns the rent-exempt balance for space bytes.
func (l *Ledger) RentExemptMinimum(space int) uint64 {
	return l.rent.Minimum(space)
}

// Slot returns the slot of the last committed transaction.
func (l *Ledger) Slot() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.slot
}

// Account returns a copy of the account at key.
func (l *Ledger) Account(key solana.PublicKey) (*solana.AccountInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct, ok := l.accounts[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	return acct.info(), nil
}

// AccountData returns a copy of the account data at key.
func (l *Ledger) AccountData(key solana.PublicKey) ([]byte, error) {
	info, err := l.Account(key)
	if err != nil {
		return nil, err
	}
	return info.Data, nil
}

// Lamports returns the balance of key, zero if the account does not exist.
func (l *Ledger) Lamports(key solana.PublicKey) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if acct, ok := l.accounts[key]; ok {
		return acct.Lamports
	}
	return 0
}

// Mint decodes the mint at key.
func (l *Ledger) Mint(key solana.PublicKey) (*solana.MintLayout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, m, err := (&txn{l: l}).loadMint(key)
	return m, err
}

// TokenAccount decodes the token account at key.
func (l *Ledger) TokenAccount(key solana.PublicKey) (*solana.TokenAccountLayout, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	_, a, err := (&txn{l: l}).loadTokenAccount(key)
	return a, err
}

// BalanceOf returns the raw token balance of a token account.
func (l *Ledger) BalanceOf(key solana.PublicKey) (uint64, error) {
	a, err := l.TokenAccount(key)
	if err != nil {
		return 0, err
	}
	return a.Amount, nil
}

// Supply returns the raw supply of a mint.
func (l *Ledger) Supply(mint solana.PublicKey) (uint64, error) {
	m, err := l.Mint(mint)
	if err != nil {
		return 0, err
	}
	return m.Supply, nil
}

// Airdrop credits lamports to a system account, creating it if needed.
func (l *Ledger) Airdrop(to solana.PublicKey, lamports uint64) (*Receipt, error) {
	return l.transact("airdrop", func(tx *txn) error {
		acct, ok := tx.l.accounts[to]
		if !ok {
			acct = &Account{Owner: solana.SystemProgramID}
			tx.l.accounts[to] = acct
		}
		if acct.Lamports+lamports < acct.Lamports {
			return ErrOverflow
		}
		acct.Lamports += lamports
		return nil
	})
}

// Invoke runs a program instruction as a top-level transaction.
func (l *Ledger) Invoke(programID solana.PublicKey, accounts []solana.AccountMeta, data []byte) (*Receipt, error) {
	return l.transact("invoke", func(tx *txn) error {
		return tx.invoke(programID, solana.PublicKey{}, 1, accounts, data)
	})
}

// txn is the state of one in-flight transaction.
type txn struct {
	l    *Ledger
	logs []string
}

func (tx *txn) logf(format string, args ...interface{}) {
	tx.logs = append(tx.logs, fmt.Sprintf(format, args...))
}

// transact runs fn atomically: state is restored if fn fails.
func (l *Ledger) transact(op string, fn func(tx *txn) error) (*Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snapshot := make(map[solana.PublicKey]*Account, len(l.accounts))
	for k, a := range l.accounts {
		snapshot[k] = a.clone()
	}

	tx := &txn{l: l}
	err := fn(tx)

	receipt := &Receipt{Signature: uuid.NewString(), Logs: tx.logs}
	if err != nil {
		l.accounts = snapshot
		receipt.Slot = l.slot
		l.logger.WithFields(log.Fields{"op": op, "signature": receipt.Signature}).WithError(err).Debug("transaction rolled back")
		return receipt, err
	}

	l.slot++
	receipt.Slot = l.slot
	l.logger.WithFields(log.Fields{"op": op, "signature": receipt.Signature, "slot": receipt.Slot}).Debug("transaction committed")
	return receipt, nil
}

// createAccount allocates space bytes owned by owner, funded by payer at the rent-exempt minimum.
func (tx *txn) createAccount(payer, address solana.PublicKey, space int, owner solana.PublicKey) (*Account, error) {
	existing, ok := tx.l.accounts[address]
	if ok && (len(existing.Data) > 0 || existing.Owner != solana.SystemProgramID) {
		return nil, fmt.Errorf("%w: %s", ErrAccountExists, address)
	}

	var funded uint64
	if ok {
		funded = existing.Lamports
	}

	need := tx.l.rent.Minimum(space)
	if need > funded {
		p, found := tx.l.accounts[payer]
		if !found {
			return nil, fmt.Errorf("%w: payer %s", ErrAccountNotFound, payer)
		}
		if p.Lamports < need-funded {
			return nil, fmt.Errorf("%w: payer %s has %d, needs %d", ErrInsufficientLamports, payer, p.Lamports, need-funded)
		}
		p.Lamports -= need - funded
		funded = need
	}

	acct := &Account{Lamports: funded, Owner: owner, Data: make([]byte, space)}
	tx.l.accounts[address] = acct
	return acct, nil
}

// invoke dispatches one instruction to a program at the given depth.
func (tx *txn) invoke(programID, caller solana.PublicKey, depth int, accounts []solana.AccountMeta, data []byte) error {
	if depth > tx.l.maxDepth {
		return fmt.Errorf("%w: %d", ErrCallDepth, depth)
	}
	prog, ok := tx.l.programs[programID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrProgramNotFound, programID)
	}

	tx.logf("Program %s invoke [%d]", programID, depth)

	inv := &Invocation{
		tx:       tx,
		program:  programID,
		caller:   caller,
		depth:    depth,
		accounts: accounts,
	}
	if err := prog.Process(inv, accounts, data); err != nil {
		tx.logf("Program %s failed: %s", programID, describeError(err))
		return fmt.Errorf("program %s: %w", programID, err)
	}

	tx.logf("Program %s success", programID)
	return nil
}

func describeError(err error) string {
	if code, ok := customCode(err); ok {
		return fmt.Sprintf("custom program error: 0x%x", code)
	}
	return err.Error()
}
