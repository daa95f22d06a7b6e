package hook

import (
	"solana-burn-hook/internal/solana"
)

// PDA seed prefixes.
const (
	RegistrySeed      = "extra-account-metas"
	BurnAuthoritySeed = "burn-authority"
)

// Fixed account positions in an Execute instruction.
const (
	AccountSource = iota
	AccountMint
	AccountDestination
	AccountAuthority
	AccountRegistry

	fixedAccounts
)

// RegistryAddress derives the extra account meta list address for mint.
func RegistryAddress(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(RegistrySeed), mint[:]}, programID)
}

// BurnAuthorityAddress derives the PDA that must be the mint's permanent
// delegate; the hook signs burns with it.
func BurnAuthorityAddress(programID, mint solana.PublicKey) (solana.PublicKey, uint8, error) {
	return solana.FindProgramAddress([][]byte{[]byte(BurnAuthoritySeed), mint[:]}, programID)
}

// ReferenceMetas is the extra account list the burn hook publishes for every
// mint. Order is part of the contract with clients.
func ReferenceMetas() []ExtraAccountMeta {
	burnAuthority, err := ProgramPDAMeta([]Seed{
		LiteralSeed([]byte(BurnAuthoritySeed)),
		AccountKeySeed(AccountMint),
	}, false, false)
	if err != nil {
		// Static seeds always pack.
		panic(err)
	}

	return []ExtraAccountMeta{
		LiteralMeta(solana.Token2022ProgramID, false, false),
		burnAuthority,
	}
}
