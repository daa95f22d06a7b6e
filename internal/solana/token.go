package solana

import (
	"encoding/binary"
	"fmt"
)

// Token-2022 account layout sizes.
//
// Mint base layout:
//   - mintAuthority: COption<Pubkey> (36 bytes: 4 + 32)
//   - supply: u64 (8 bytes)
//   - decimals: u8 (1 byte)
//   - isInitialized: bool (1 byte)
//   - freezeAuthority: COption<Pubkey> (36 bytes)
//
// Token account base layout: mint(32) | owner(32) | amount(8) | delegate(36) |
// state(1) | isNative(12) | delegatedAmount(8) | closeAuthority(36).
//
// Extended accounts are padded to TokenAccountSize, followed by one account-type
// byte and a TLV list of extensions: type u16 | length u16 | value.
const (
	MintSize         = 82
	TokenAccountSize = 165

	accountTypeOffset = TokenAccountSize
	tlvOffset         = TokenAccountSize + 1
)

// AccountType tags an extended Token-2022 account.
type AccountType uint8

const (
	AccountTypeUninitialized AccountType = 0
	AccountTypeMint          AccountType = 1
	AccountTypeAccount       AccountType = 2
)

// ExtensionType identifies a Token-2022 TLV extension.
type ExtensionType uint16

// Extensions understood by this package.
const (
	ExtensionPermanentDelegate   ExtensionType = 12
	ExtensionTransferHook        ExtensionType = 14
	ExtensionTransferHookAccount ExtensionType = 15
)

// TokenAccountState is the state byte of a token account.
type TokenAccountState uint8

const (
	TokenAccountUninitialized TokenAccountState = 0
	TokenAccountInitialized   TokenAccountState = 1
	TokenAccountFrozen        TokenAccountState = 2
)

// MintLayout is the decoded form of a Token-2022 mint.
type MintLayout struct {
	MintAuthority   *PublicKey
	Supply          uint64
	Decimals        uint8
	IsInitialized   bool
	FreezeAuthority *PublicKey

	// TransferHook extension.
	TransferHookAuthority *PublicKey
	TransferHookProgram   *PublicKey

	// PermanentDelegate extension.
	PermanentDelegate *PublicKey
}

// TokenAccountLayout is the decoded form of a Token-2022 token account.
type TokenAccountLayout struct {
	Mint   PublicKey
	Owner  PublicKey
	Amount uint64
	State  TokenAccountState

	// TransferHookAccount extension.
	HasTransferHookAccount bool
	Transferring           bool
}

// DecodeMint parses mint account data including supported extensions.
func DecodeMint(data []byte) (*MintLayout, error) {
	if len(data) < MintSize {
		return nil, fmt.Errorf("mint data too short: %d", len(data))
	}

	m := &MintLayout{
		MintAuthority:   readCOptionKey(data[0:36]),
		Supply:          binary.LittleEndian.Uint64(data[36:44]),
		Decimals:        data[44],
		IsInitialized:   data[45] == 1,
		FreezeAuthority: readCOptionKey(data[46:82]),
	}

	if len(data) == MintSize {
		return m, nil
	}
	if len(data) <= accountTypeOffset {
		return nil, fmt.Errorf("invalid extended mint size: %d", len(data))
	}
	if AccountType(data[accountTypeOffset]) != AccountTypeMint {
		return nil, fmt.Errorf("unexpected account type %d for mint", data[accountTypeOffset])
	}

	err := walkTLV(data[tlvOffset:], func(ext ExtensionType, value []byte) error {
		switch ext {
		case ExtensionTransferHook:
			if len(value) != 64 {
				return fmt.Errorf("transfer hook extension length %d", len(value))
			}
			m.TransferHookAuthority = readOptionalNonZeroKey(value[0:32])
			m.TransferHookProgram = readOptionalNonZeroKey(value[32:64])
		case ExtensionPermanentDelegate:
			if len(value) != 32 {
				return fmt.Errorf("permanent delegate extension length %d", len(value))
			}
			m.PermanentDelegate = readOptionalNonZeroKey(value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

// EncodeMint serializes m in the Token-2022 layout. Extensions are emitted only when set.
func EncodeMint(m *MintLayout) []byte {
	base := make([]byte, MintSize)
	writeCOptionKey(base[0:36], m.MintAuthority)
	binary.LittleEndian.PutUint64(base[36:44], m.Supply)
	base[44] = m.Decimals
	if m.IsInitialized {
		base[45] = 1
	}
	writeCOptionKey(base[46:82], m.FreezeAuthority)

	var exts []byte
	if m.TransferHookProgram != nil || m.TransferHookAuthority != nil {
		value := make([]byte, 64)
		writeOptionalNonZeroKey(value[0:32], m.TransferHookAuthority)
		writeOptionalNonZeroKey(value[32:64], m.TransferHookProgram)
		exts = appendTLV(exts, ExtensionTransferHook, value)
	}
	if m.PermanentDelegate != nil {
		value := make([]byte, 32)
		writeOptionalNonZeroKey(value, m.PermanentDelegate)
		exts = appendTLV(exts, ExtensionPermanentDelegate, value)
	}
	if len(exts) == 0 {
		return base
	}

	data := make([]byte, tlvOffset, tlvOffset+len(exts))
	copy(data, base)
	data[accountTypeOffset] = byte(AccountTypeMint)
	return append(data, exts...)
}

// DecodeTokenAccount parses token account data including the TransferHookAccount extension.
func DecodeTokenAccount(data []byte) (*TokenAccountLayout, error) {
	if len(data) < TokenAccountSize {
		return nil, fmt.Errorf("token account data too short: %d", len(data))
	}

	a := &TokenAccountLayout{
		Amount: binary.LittleEndian.Uint64(data[64:72]),
		State:  TokenAccountState(data[108]),
	}
	copy(a.Mint[:], data[0:32])
	copy(a.Owner[:], data[32:64])

	if len(data) == TokenAccountSize {
		return a, nil
	}
	if AccountType(data[accountTypeOffset]) != AccountTypeAccount {
		return nil, fmt.Errorf("unexpected account type %d for token account", data[accountTypeOffset])
	}

	err := walkTLV(data[tlvOffset:], func(ext ExtensionType, value []byte) error {
		if ext == ExtensionTransferHookAccount {
			if len(value) != 1 {
				return fmt.Errorf("transfer hook account extension length %d", len(value))
			}
			a.HasTransferHookAccount = true
			a.Transferring = value[0] == 1
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// EncodeTokenAccount serializes a in the Token-2022 layout.
func EncodeTokenAccount(a *TokenAccountLayout) []byte {
	data := make([]byte, TokenAccountSize)
	copy(data[0:32], a.Mint[:])
	copy(data[32:64], a.Owner[:])
	binary.LittleEndian.PutUint64(data[64:72], a.Amount)
	data[108] = byte(a.State)

	if !a.HasTransferHookAccount {
		return data
	}

	data = append(data, byte(AccountTypeAccount))
	flag := byte(0)
	if a.Transferring {
		flag = 1
	}
	return appendTLV(data, ExtensionTransferHookAccount, []byte{flag})
}

func walkTLV(data []byte, fn func(ExtensionType, []byte) error) error {
	for offset := 0; offset+4 <= len(data); {
		ext := ExtensionType(binary.LittleEndian.Uint16(data[offset:]))
		length := int(binary.LittleEndian.Uint16(data[offset+2:]))
		offset += 4

		// Uninitialized extension marks the end of the list.
		if ext == 0 {
			return nil
		}
		if offset+length > len(data) {
			return fmt.Errorf("extension %d overruns account data", ext)
		}
		if err := fn(ext, data[offset:offset+length]); err != nil {
			return err
		}
		offset += length
	}
	return nil
}

func appendTLV(dst []byte, ext ExtensionType, value []byte) []byte {
	var hdr [4]byte
	binary.LittleEndian.PutUint16(hdr[0:2], uint16(ext))
	binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(value)))
	dst = append(dst, hdr[:]...)
	return append(dst, value...)
}

func readCOptionKey(b []byte) *PublicKey {
	if binary.LittleEndian.Uint32(b[0:4]) == 0 {
		return nil
	}
	var k PublicKey
	copy(k[:], b[4:36])
	return &k
}

func writeCOptionKey(b []byte, k *PublicKey) {
	if k == nil {
		return
	}
	binary.LittleEndian.PutUint32(b[0:4], 1)
	copy(b[4:36], k[:])
}

func readOptionalNonZeroKey(b []byte) *PublicKey {
	var k PublicKey
	copy(k[:], b)
	if k.IsZero() {
		return nil
	}
	return &k
}

func writeOptionalNonZeroKey(b []byte, k *PublicKey) {
	if k != nil {
		copy(b, k[:])
	}
}
