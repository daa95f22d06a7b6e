package solana

import (
	"fmt"

	"github.com/mr-tron/base58"
)

// PublicKeyLength is the size of an ed25519 public key / account address.
const PublicKeyLength = 32

// PublicKey is a Solana account address.
type PublicKey [PublicKeyLength]byte

// Well-known program addresses.
var (
	SystemProgramID          = MustPublicKey("11111111111111111111111111111111")
	Token2022ProgramID       = MustPublicKey("TokenzQdBNbLqP5VEhdkAS6EPFLC1PHnBqCXEpPxuEb")
	AssociatedTokenProgramID = MustPublicKey("ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL")
)

// String returns the base58 form of the key.
func (p PublicKey) String() string {
	return base58.Encode(p[:])
}

// Bytes returns a copy of the key bytes.
func (p PublicKey) Bytes() []byte {
	b := make([]byte, PublicKeyLength)
	copy(b, p[:])
	return b
}

// IsZero reports whether the key is all zeroes.
func (p PublicKey) IsZero() bool {
	return p == PublicKey{}
}

// MarshalText implements encoding.TextMarshaler.
func (p PublicKey) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// ParsePublicKey decodes a base58 address. Used for untrusted input.
func ParsePublicKey(s string) (PublicKey, error) {
	data, err := base58.Decode(s)
	if err != nil {
		return PublicKey{}, fmt.Errorf("decode base58 pubkey %q: %w", s, err)
	}
	if len(data) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("invalid pubkey length: got %d, want %d, input=%q", len(data), PublicKeyLength, s)
	}
	var p PublicKey
	copy(p[:], data)
	return p, nil
}

// MustPublicKey is ParsePublicKey for constants; it panics on bad input.
func MustPublicKey(s string) PublicKey {
	p, err := ParsePublicKey(s)
	if err != nil {
		panic(err)
	}
	return p
}

// PublicKeyFromBytes copies b into a PublicKey. b must be 32 bytes.
func PublicKeyFromBytes(b []byte) (PublicKey, error) {
	if len(b) != PublicKeyLength {
		return PublicKey{}, fmt.Errorf("invalid pubkey length: got %d, want %d", len(b), PublicKeyLength)
	}
	var p PublicKey
	copy(p[:], b)
	return p, nil
}

// AccountMeta describes one account passed to an instruction.
type AccountMeta struct {
	PublicKey  PublicKey
	IsSigner   bool
	IsWritable bool
}

// ReadOnly returns a non-signer, read-only meta for key.
func ReadOnly(key PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key}
}

// Writable returns a non-signer, writable meta for key.
func Writable(key PublicKey) AccountMeta {
	return AccountMeta{PublicKey: key, IsWritable: true}
}
