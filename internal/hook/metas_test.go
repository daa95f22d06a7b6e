package hook

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-burn-hook/internal/solana"
)

func TestMetaList_RoundTripPreservesOrder(t *testing.T) {
	external, err := ExternalPDAMeta(5, []Seed{AccountKeySeed(2), InstructionDataSeed(8, 8)}, false, true)
	require.NoError(t, err)

	in := append(ReferenceMetas(), external, LiteralMeta(testWallet, true, false))
	data := EncodeMetaList(in)
	assert.Len(t, data, MetaListSize(len(in)))

	out, err := DecodeMetaList(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReferenceMetas_Encoding(t *testing.T) {
	data := EncodeMetaList(ReferenceMetas())
	require.Len(t, data, 86)

	assert.Equal(t, solana.ExecuteDiscriminator[:], data[:8])
	assert.Equal(t, uint32(74), binary.LittleEndian.Uint32(data[8:12]))
	assert.Equal(t, uint32(2), binary.LittleEndian.Uint32(data[12:16]))

	// Token program literal, read-only.
	assert.Equal(t, MetaLiteral, data[16])
	assert.Equal(t, solana.Token2022ProgramID[:], data[17:49])
	assert.Equal(t, []byte{0, 0}, data[49:51])

	// Burn authority PDA: literal "burn-authority", account key 1.
	cfg := data[52:84]
	assert.Equal(t, MetaProgramPDA, data[51])
	assert.Equal(t, append([]byte{1, 14}, []byte("burn-authority")...), cfg[:16])
	assert.Equal(t, []byte{3, 1}, cfg[16:18])
	assert.Equal(t, make([]byte, 14), cfg[18:])
}

func TestDecodeMetaList_Rejects(t *testing.T) {
	good := EncodeMetaList(ReferenceMetas())

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"header only truncated", good[:10]},
		{"truncated metas", good[:len(good)-1]},
		{"wrong tag", append([]byte{1, 2, 3, 4, 5, 6, 7, 8}, good[8:]...)},
		{"length disagrees with count", func() []byte {
			d := append([]byte(nil), good...)
			binary.LittleEndian.PutUint32(d[8:12], 5)
			return d
		}()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeMetaList(tt.data)
			if !errors.Is(err, ErrAccountMismatch) {
				t.Fatalf("expected ErrAccountMismatch, got %v", err)
			}
		})
	}
}

func TestPackSeeds(t *testing.T) {
	seeds := []Seed{
		LiteralSeed([]byte("abc")),
		InstructionDataSeed(8, 8),
		AccountKeySeed(1),
		AccountDataSeed(2, 32, 32),
	}
	cfg, err := PackSeeds(seeds)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 3, 'a', 'b', 'c', 2, 8, 8, 3, 1, 4, 2, 32, 32, 0}, cfg[:15])

	out, err := UnpackSeeds(cfg)
	require.NoError(t, err)
	assert.Equal(t, seeds, out)

	_, err = PackSeeds([]Seed{LiteralSeed(make([]byte, 31))})
	assert.Error(t, err, "literal plus header exceeds config")

	_, err = PackSeeds([]Seed{{Kind: 9}})
	assert.Error(t, err)

	var bad [32]byte
	bad[0] = byte(SeedLiteral)
	bad[1] = 40
	_, err = UnpackSeeds(bad)
	assert.ErrorIs(t, err, ErrAccountMismatch)
}

func TestResolveMetas_Reference(t *testing.T) {
	registry, _, err := RegistryAddress(testProgram, testMint)
	require.NoError(t, err)

	fixed := []solana.AccountMeta{
		solana.ReadOnly(testWallet),
		solana.ReadOnly(testMint),
		solana.Writable(testWallet),
		solana.ReadOnly(testWallet),
		solana.ReadOnly(registry),
	}
	extras, err := ResolveMetas(ReferenceMetas(), nil, testProgram, fixed, nil)
	require.NoError(t, err)
	require.Len(t, extras, 2)

	assert.Equal(t, solana.ReadOnly(solana.Token2022ProgramID), extras[0])
	assert.Equal(t, "6BRbcYrvvppf7fxJ8adxrotWFHGhjpSAFHdZhG8mon6N", extras[1].PublicKey.String())
	assert.False(t, extras[1].IsWritable)
}

func TestResolveMetas_DataSeeds(t *testing.T) {
	amountData, err := EncodeExecute(42)
	require.NoError(t, err)

	byAmount, err := ProgramPDAMeta([]Seed{InstructionDataSeed(8, 8)}, false, false)
	require.NoError(t, err)
	byOwner, err := ProgramPDAMeta([]Seed{AccountDataSeed(0, 32, 32)}, false, true)
	require.NoError(t, err)
	// External PDA owned by the program resolved at index 5 (the first extra).
	external, err := ExternalPDAMeta(5, []Seed{AccountKeySeed(1)}, false, false)
	require.NoError(t, err)

	tokenData := solana.EncodeTokenAccount(&solana.TokenAccountLayout{Mint: testMint, Owner: testWallet})
	readData := func(key solana.PublicKey) ([]byte, error) {
		if key == testWallet {
			return tokenData, nil
		}
		return nil, errors.New("unknown")
	}

	fixed := []solana.AccountMeta{
		solana.ReadOnly(testWallet), solana.ReadOnly(testMint), solana.ReadOnly(testWallet),
		solana.ReadOnly(testWallet), solana.ReadOnly(testWallet),
	}
	metas := []ExtraAccountMeta{LiteralMeta(solana.AssociatedTokenProgramID, false, false), byAmount, byOwner, external}
	extras, err := ResolveMetas(metas, amountData, testProgram, fixed, readData)
	require.NoError(t, err)
	require.Len(t, extras, 4)

	wantAmount, _, err := solana.FindProgramAddress([][]byte{amountData[8:16]}, testProgram)
	require.NoError(t, err)
	assert.Equal(t, wantAmount, extras[1].PublicKey)

	wantOwner, _, err := solana.FindProgramAddress([][]byte{testWallet[:]}, testProgram)
	require.NoError(t, err)
	assert.Equal(t, wantOwner, extras[2].PublicKey)
	assert.True(t, extras[2].IsWritable)

	wantExternal, _, err := solana.FindProgramAddress([][]byte{testMint[:]}, solana.AssociatedTokenProgramID)
	require.NoError(t, err)
	assert.Equal(t, wantExternal, extras[3].PublicKey)

	// Out-of-range references are rejected.
	tooFar, err := ProgramPDAMeta([]Seed{InstructionDataSeed(8, 16)}, false, false)
	require.NoError(t, err)
	_, err = ResolveMetas([]ExtraAccountMeta{tooFar}, amountData, testProgram, fixed, readData)
	assert.ErrorIs(t, err, ErrAccountMismatch)

	missingData, err := ProgramPDAMeta([]Seed{AccountDataSeed(1, 0, 1)}, false, false)
	require.NoError(t, err)
	_, err = ResolveMetas([]ExtraAccountMeta{missingData}, amountData, testProgram, fixed, readData)
	assert.ErrorIs(t, err, ErrAccountMismatch)
}
