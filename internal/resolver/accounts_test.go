package resolver

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-burn-hook/internal/hook"
)

func TestMint(t *testing.T) {
	l, _, _ := setupLedger(t, false)
	r := New(testProgram, l.RPC())

	m, err := r.Mint(context.Background(), testMint)
	require.NoError(t, err)
	assert.Equal(t, testMint.String(), m.Address)
	assert.Equal(t, uint8(9), m.Decimals)
	assert.Equal(t, uint64(1_000_000_000_000), m.Supply)
	assert.Equal(t, testProgram.String(), m.HookProgram)
	assert.Equal(t, "6BRbcYrvvppf7fxJ8adxrotWFHGhjpSAFHdZhG8mon6N", m.PermanentDelegate)
}

func TestMint_Invalid(t *testing.T) {
	l, _, _ := setupLedger(t, false)
	r := New(testProgram, l.RPC())

	_, err := r.Mint(context.Background(), recipient)
	assert.ErrorIs(t, err, hook.ErrInvalidMint, "missing account")

	_, err = r.Mint(context.Background(), testWallet)
	assert.ErrorIs(t, err, hook.ErrInvalidMint, "system-owned wallet")
}

func TestTokenAccount(t *testing.T) {
	l, src, dst := setupLedger(t, false)
	r := New(testProgram, l.RPC())

	a, err := r.TokenAccount(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, testMint.String(), a.Mint)
	assert.Equal(t, testWallet.String(), a.Owner)
	assert.Equal(t, uint64(1_000_000_000_000), a.Amount)

	a, err = r.TokenAccount(context.Background(), dst)
	require.NoError(t, err)
	assert.Equal(t, recipient.String(), a.Owner)
	assert.Zero(t, a.Amount)

	_, err = r.TokenAccount(context.Background(), testMint)
	assert.Error(t, err, "mint data is not a token account")
}
