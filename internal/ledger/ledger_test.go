package ledger

import (
	"context"
	"crypto/sha256"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-burn-hook/internal/solana"
)

func key(label string) solana.PublicKey {
	return solana.PublicKey(sha256.Sum256([]byte(label)))
}

var (
	payer  = key("payer")
	alice  = key("alice")
	bob    = key("bob")
	mintID = key("mint")
)

// setupMint creates a plain mint and token accounts for alice and bob, with
// alice holding supply.
func setupMint(t *testing.T, l *Ledger, cfg MintConfig, supply uint64) (aliceATA, bobATA solana.PublicKey) {
	t.Helper()

	_, err := l.Airdrop(payer, 10_000_000_000)
	require.NoError(t, err)

	cfg.Mint = mintID
	cfg.Payer = payer
	cfg.MintAuthority = payer
	_, err = l.CreateMint(cfg)
	require.NoError(t, err)

	aliceATA, _, err = l.CreateAssociatedTokenAccount(payer, alice, mintID)
	require.NoError(t, err)
	bobATA, _, err = l.CreateAssociatedTokenAccount(payer, bob, mintID)
	require.NoError(t, err)

	_, err = l.MintTo(mintID, aliceATA, payer, supply)
	require.NoError(t, err)
	return aliceATA, bobATA
}

func TestRent_Minimum(t *testing.T) {
	assert.Equal(t, uint64(890_880), DefaultRent.Minimum(0))
	assert.Equal(t, uint64(1_461_600), DefaultRent.Minimum(solana.MintSize))
	assert.Equal(t, uint64(2_039_280), DefaultRent.Minimum(solana.TokenAccountSize))
}

func TestLedger_TransferWithoutHook(t *testing.T) {
	l := New()
	src, dst := setupMint(t, l, MintConfig{Decimals: 6}, 1_000_000)

	receipt, err := l.TransferChecked(TransferParams{
		Source: src, Mint: mintID, Destination: dst, Authority: alice,
		Amount: 250_000, Decimals: 6, Signers: []solana.PublicKey{alice},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, receipt.Signature)
	assert.Contains(t, receipt.Logs, "Program log: Instruction: TransferChecked")

	srcBal, _ := l.BalanceOf(src)
	dstBal, _ := l.BalanceOf(dst)
	supply, _ := l.Supply(mintID)
	assert.Equal(t, uint64(750_000), srcBal)
	assert.Equal(t, uint64(250_000), dstBal)
	assert.Equal(t, uint64(1_000_000), supply)
}

func TestLedger_TransferValidation(t *testing.T) {
	l := New()
	src, dst := setupMint(t, l, MintConfig{Decimals: 6}, 100)

	tests := []struct {
		name    string
		params  TransferParams
		wantErr error
	}{
		{
			name:    "wrong decimals",
			params:  TransferParams{Source: src, Mint: mintID, Destination: dst, Authority: alice, Amount: 1, Decimals: 9, Signers: []solana.PublicKey{alice}},
			wantErr: ErrDecimalsMismatch,
		},
		{
			name:    "not owner",
			params:  TransferParams{Source: src, Mint: mintID, Destination: dst, Authority: bob, Amount: 1, Decimals: 6, Signers: []solana.PublicKey{bob}},
			wantErr: ErrOwnerMismatch,
		},
		{
			name:    "insufficient balance",
			params:  TransferParams{Source: src, Mint: mintID, Destination: dst, Authority: alice, Amount: 101, Decimals: 6, Signers: []solana.PublicKey{alice}},
			wantErr: ErrInsufficientBalance,
		},
		{
			name:    "unknown destination",
			params:  TransferParams{Source: src, Mint: mintID, Destination: key("nobody"), Authority: alice, Amount: 1, Decimals: 6, Signers: []solana.PublicKey{alice}},
			wantErr: ErrAccountNotFound,
		},
		{
			name:    "authority did not sign",
			params:  TransferParams{Source: src, Mint: mintID, Destination: dst, Authority: alice, Amount: 1, Decimals: 6, Signers: []solana.PublicKey{bob}},
			wantErr: ErrMissingSignature,
		},
		{
			name:    "no signers",
			params:  TransferParams{Source: src, Mint: mintID, Destination: dst, Authority: alice, Amount: 1, Decimals: 6},
			wantErr: ErrMissingSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := l.Slot()
			_, err := l.TransferChecked(tt.params)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			assert.Equal(t, before, l.Slot(), "failed transaction must not advance slot")

			bal, _ := l.BalanceOf(src)
			assert.Equal(t, uint64(100), bal)
		})
	}
}

func TestLedger_CreateMintRequiresRent(t *testing.T) {
	l := New()
	_, err := l.Airdrop(payer, 1_000)
	require.NoError(t, err)

	_, err = l.CreateMint(MintConfig{Mint: mintID, Payer: payer, MintAuthority: payer, Decimals: 9})
	if !errors.Is(err, ErrInsufficientLamports) {
		t.Fatalf("expected ErrInsufficientLamports, got %v", err)
	}
	assert.Equal(t, uint64(1_000), l.Lamports(payer))

	_, err = l.Account(mintID)
	assert.ErrorIs(t, err, ErrAccountNotFound)
}

func TestLedger_CreateMintTwice(t *testing.T) {
	l := New()
	_, err := l.Airdrop(payer, 10_000_000_000)
	require.NoError(t, err)

	cfg := MintConfig{Mint: mintID, Payer: payer, MintAuthority: payer, Decimals: 9}
	_, err = l.CreateMint(cfg)
	require.NoError(t, err)

	_, err = l.CreateMint(cfg)
	assert.ErrorIs(t, err, ErrAccountExists)
}

func TestLedger_PermanentDelegateBurn(t *testing.T) {
	l := New()
	delegate := key("delegate")
	src, _ := setupMint(t, l, MintConfig{Decimals: 0, PermanentDelegate: &delegate}, 50)

	_, err := l.Burn(src, mintID, delegate, 20, 0)
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = l.Burn(src, mintID, delegate, 20, 0, bob)
	assert.ErrorIs(t, err, ErrMissingSignature)

	_, err = l.Burn(src, mintID, delegate, 20, 0, delegate)
	require.NoError(t, err)

	bal, _ := l.BalanceOf(src)
	supply, _ := l.Supply(mintID)
	assert.Equal(t, uint64(30), bal)
	assert.Equal(t, uint64(30), supply)

	_, err = l.Burn(src, mintID, bob, 1, 0, bob)
	assert.ErrorIs(t, err, ErrOwnerMismatch)
}

// pdaBurner burns through a PDA signer when invoked, then optionally fails.
type pdaBurner struct {
	id      solana.PublicKey
	account solana.PublicKey
	mint    solana.PublicKey
	seeds   [][]byte
	failAt  error
}

func (p *pdaBurner) ID() solana.PublicKey { return p.id }

func (p *pdaBurner) Process(inv *Invocation, _ []solana.AccountMeta, data []byte) error {
	inv.Log("burning")
	if err := inv.BurnChecked(p.account, p.mint, p.delegate(), uint64(data[0]), 0, p.seeds); err != nil {
		return err
	}
	return p.failAt
}

func (p *pdaBurner) delegate() solana.PublicKey {
	addr, _ := solana.CreateProgramAddress(p.seeds, p.id)
	return addr
}

type codedErr struct{}

func (codedErr) Error() string            { return "coded" }
func (codedErr) ProgramErrorCode() uint32 { return 6006 }

func TestLedger_InvokeWithPDASigner(t *testing.T) {
	programID := key("burner-program")
	seed, bump, err := solana.FindProgramAddress([][]byte{[]byte("authority")}, programID)
	require.NoError(t, err)

	l := New()
	src, _ := setupMint(t, l, MintConfig{Decimals: 0, PermanentDelegate: &seed}, 10)

	prog := &pdaBurner{id: programID, account: src, mint: mintID, seeds: [][]byte{[]byte("authority"), {bump}}}
	l.RegisterProgram(prog)

	accounts := []solana.AccountMeta{solana.Writable(src), solana.Writable(mintID), solana.ReadOnly(seed)}

	receipt, err := l.Invoke(programID, accounts, []byte{4})
	require.NoError(t, err)
	assert.Contains(t, receipt.Logs, "Program log: burning")

	bal, _ := l.BalanceOf(src)
	assert.Equal(t, uint64(6), bal)

	// A failure after the burn rolls back the burn.
	prog.failAt = codedErr{}
	receipt, err = l.Invoke(programID, accounts, []byte{4})
	require.Error(t, err)
	code, ok := CustomErrorCode(err)
	require.True(t, ok)
	assert.Equal(t, uint32(6006), code)
	assert.Contains(t, strings.Join(receipt.Logs, "\n"), "custom program error: 0x1776")

	bal, _ = l.BalanceOf(src)
	supply, _ := l.Supply(mintID)
	assert.Equal(t, uint64(6), bal)
	assert.Equal(t, uint64(6), supply)

	// Wrong seeds do not sign.
	prog.failAt = nil
	prog.seeds = [][]byte{[]byte("authority"), {bump - 1}}
	_, err = l.Invoke(programID, accounts, []byte{1})
	assert.Error(t, err)

	// Read-only mint cannot be burned against.
	prog.seeds = [][]byte{[]byte("authority"), {bump}}
	_, err = l.Invoke(programID, []solana.AccountMeta{solana.Writable(src), solana.ReadOnly(mintID)}, []byte{1})
	assert.ErrorIs(t, err, ErrReadonlyAccount)
}

func TestLedger_InvokeUnknownProgram(t *testing.T) {
	l := New()
	_, err := l.Invoke(key("missing"), nil, nil)
	assert.ErrorIs(t, err, ErrProgramNotFound)
}

func TestLedger_ConcurrentTransfersConserveSupply(t *testing.T) {
	l := New()
	src, dst := setupMint(t, l, MintConfig{Decimals: 0}, 1_000)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to, auth := src, dst, alice
			if i%2 == 1 {
				from, to, auth = dst, src, bob
			}
			// Some of these fail for insufficient balance; that is fine.
			l.TransferChecked(TransferParams{Source: from, Mint: mintID, Destination: to, Authority: auth, Amount: 7, Signers: []solana.PublicKey{auth}})
		}(i)
	}
	wg.Wait()

	a, _ := l.BalanceOf(src)
	b, _ := l.BalanceOf(dst)
	assert.Equal(t, uint64(1_000), a+b)
}

func TestLedger_RPCView(t *testing.T) {
	l := New()
	src, _ := setupMint(t, l, MintConfig{Decimals: 3}, 12_345)
	rpc := l.RPC()
	ctx := context.Background()

	info, err := rpc.GetAccountInfo(ctx, mintID)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, solana.Token2022ProgramID, info.Owner)

	missing, err := rpc.GetAccountInfo(ctx, key("missing"))
	require.NoError(t, err)
	assert.Nil(t, missing)

	bal, err := rpc.GetTokenAccountBalance(ctx, src)
	require.NoError(t, err)
	assert.Equal(t, uint64(12_345), bal.Amount)
	assert.Equal(t, "12.345", bal.UIAmount)

	rent, err := rpc.GetMinimumBalanceForRentExemption(ctx, solana.MintSize)
	require.NoError(t, err)
	assert.Equal(t, uint64(1_461_600), rent)
}
