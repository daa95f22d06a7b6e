package hook

import (
	"encoding/binary"
	"fmt"

	"solana-burn-hook/internal/solana"
)

// Extra account meta list layout:
//
//	discriminator [8]byte | length u32 | count u32 | count x ExtraAccountMeta
//
// length covers count and the metas. The discriminator is the Execute
// instruction tag and doubles as the record's format version.
const (
	MetaLength          = 35
	metaListHeaderSize  = solana.DiscriminatorLength + 4 + 4
	addressConfigLength = 32
)

// Meta discriminators.
const (
	MetaLiteral        uint8 = 0
	MetaProgramPDA     uint8 = 1
	metaExternalPDABit uint8 = 1 << 7
)

// SeedKind tags a packed seed.
type SeedKind uint8

const (
	SeedLiteral         SeedKind = 1
	SeedInstructionData SeedKind = 2
	SeedAccountKey      SeedKind = 3
	SeedAccountData     SeedKind = 4
)

// Seed is one PDA seed rule.
type Seed struct {
	Kind SeedKind

	Bytes []byte // SeedLiteral

	// SeedInstructionData: Index is the byte offset, Length the byte count.
	// SeedAccountKey: Index is the account index.
	// SeedAccountData: Index is the account index, DataIndex the offset.
	Index     uint8
	DataIndex uint8
	Length    uint8
}

// LiteralSeed returns a literal byte seed.
func LiteralSeed(b []byte) Seed { return Seed{Kind: SeedLiteral, Bytes: b} }

// AccountKeySeed returns a seed taken from the key of account index.
func AccountKeySeed(index uint8) Seed { return Seed{Kind: SeedAccountKey, Index: index} }

// InstructionDataSeed returns a seed taken from instruction data.
func InstructionDataSeed(offset, length uint8) Seed {
	return Seed{Kind: SeedInstructionData, Index: offset, Length: length}
}

// AccountDataSeed returns a seed taken from another account's data.
func AccountDataSeed(accountIndex, offset, length uint8) Seed {
	return Seed{Kind: SeedAccountData, Index: accountIndex, DataIndex: offset, Length: length}
}

// ExtraAccountMeta describes how to locate one extra account.
type ExtraAccountMeta struct {
	Discriminator uint8
	AddressConfig [addressConfigLength]byte
	IsSigner      bool
	IsWritable    bool
}

// LiteralMeta is a fixed address.
func LiteralMeta(key solana.PublicKey, signer, writable bool) ExtraAccountMeta {
	return ExtraAccountMeta{Discriminator: MetaLiteral, AddressConfig: key, IsSigner: signer, IsWritable: writable}
}

// ProgramPDAMeta is an address derived from seeds and the hook program.
func ProgramPDAMeta(seeds []Seed, signer, writable bool) (ExtraAccountMeta, error) {
	cfg, err := PackSeeds(seeds)
	if err != nil {
		return ExtraAccountMeta{}, err
	}
	return ExtraAccountMeta{Discriminator: MetaProgramPDA, AddressConfig: cfg, IsSigner: signer, IsWritable: writable}, nil
}

// ExternalPDAMeta is an address derived from seeds and the program at account index programIndex.
func ExternalPDAMeta(programIndex uint8, seeds []Seed, signer, writable bool) (ExtraAccountMeta, error) {
	if programIndex >= metaExternalPDABit {
		return ExtraAccountMeta{}, fmt.Errorf("program index %d out of range", programIndex)
	}
	cfg, err := PackSeeds(seeds)
	if err != nil {
		return ExtraAccountMeta{}, err
	}
	return ExtraAccountMeta{
		Discriminator: metaExternalPDABit | programIndex,
		AddressConfig: cfg,
		IsSigner:      signer,
		IsWritable:    writable,
	}, nil
}

// PackSeeds encodes seed rules into a 32-byte address config.
func PackSeeds(seeds []Seed) ([addressConfigLength]byte, error) {
	var out [addressConfigLength]byte
	buf := out[:0]

	for _, s := range seeds {
		var enc []byte
		switch s.Kind {
		case SeedLiteral:
			if len(s.Bytes) > solana.MaxSeedLength {
				return out, fmt.Errorf("literal seed of %d bytes", len(s.Bytes))
			}
			enc = append([]byte{byte(SeedLiteral), byte(len(s.Bytes))}, s.Bytes...)
		case SeedInstructionData:
			enc = []byte{byte(SeedInstructionData), s.Index, s.Length}
		case SeedAccountKey:
			enc = []byte{byte(SeedAccountKey), s.Index}
		case SeedAccountData:
			enc = []byte{byte(SeedAccountData), s.Index, s.DataIndex, s.Length}
		default:
			return out, fmt.Errorf("unknown seed kind %d", s.Kind)
		}
		if len(buf)+len(enc) > addressConfigLength {
			return out, fmt.Errorf("seeds exceed %d bytes", addressConfigLength)
		}
		buf = append(buf, enc...)
	}
	return out, nil
}

// UnpackSeeds decodes an address config. A zero byte ends the list.
func UnpackSeeds(cfg [addressConfigLength]byte) ([]Seed, error) {
	var seeds []Seed
	for i := 0; i < len(cfg); {
		need := func(n int) error {
			if i+n > len(cfg) {
				return mismatch("truncated seed at offset %d", i)
			}
			return nil
		}

		switch SeedKind(cfg[i]) {
		case 0:
			return seeds, nil
		case SeedLiteral:
			if err := need(2); err != nil {
				return nil, err
			}
			n := int(cfg[i+1])
			if err := need(2 + n); err != nil {
				return nil, err
			}
			seeds = append(seeds, LiteralSeed(append([]byte(nil), cfg[i+2:i+2+n]...)))
			i += 2 + n
		case SeedInstructionData:
			if err := need(3); err != nil {
				return nil, err
			}
			seeds = append(seeds, InstructionDataSeed(cfg[i+1], cfg[i+2]))
			i += 3
		case SeedAccountKey:
			if err := need(2); err != nil {
				return nil, err
			}
			seeds = append(seeds, AccountKeySeed(cfg[i+1]))
			i += 2
		case SeedAccountData:
			if err := need(4); err != nil {
				return nil, err
			}
			seeds = append(seeds, AccountDataSeed(cfg[i+1], cfg[i+2], cfg[i+3]))
			i += 4
		default:
			return nil, mismatch("unknown seed kind %d", cfg[i])
		}
	}
	return seeds, nil
}

// MetaListSize is the account size for n metas.
func MetaListSize(n int) int {
	return metaListHeaderSize + n*MetaLength
}

// EncodeMetaList serializes metas in order.
func EncodeMetaList(metas []ExtraAccountMeta) []byte {
	data := make([]byte, MetaListSize(len(metas)))
	copy(data, solana.ExecuteDiscriminator[:])
	binary.LittleEndian.PutUint32(data[8:12], uint32(4+len(metas)*MetaLength))
	binary.LittleEndian.PutUint32(data[12:16], uint32(len(metas)))

	off := metaListHeaderSize
	for _, m := range metas {
		data[off] = m.Discriminator
		copy(data[off+1:off+33], m.AddressConfig[:])
		data[off+33] = boolByte(m.IsSigner)
		data[off+34] = boolByte(m.IsWritable)
		off += MetaLength
	}
	return data
}

// DecodeMetaList parses a registry record.
func DecodeMetaList(data []byte) ([]ExtraAccountMeta, error) {
	if len(data) < metaListHeaderSize {
		return nil, mismatch("meta list of %d bytes", len(data))
	}

	var tag [solana.DiscriminatorLength]byte
	copy(tag[:], data)
	if tag != solana.ExecuteDiscriminator {
		return nil, mismatch("meta list tag %x", tag)
	}

	length := binary.LittleEndian.Uint32(data[8:12])
	count := binary.LittleEndian.Uint32(data[12:16])
	if uint64(length) != 4+uint64(count)*MetaLength {
		return nil, mismatch("meta list length %d for %d metas", length, count)
	}
	if uint64(len(data)) < uint64(metaListHeaderSize)+uint64(count)*MetaLength {
		return nil, mismatch("meta list truncated: %d metas in %d bytes", count, len(data))
	}

	metas := make([]ExtraAccountMeta, count)
	off := metaListHeaderSize
	for i := range metas {
		m := &metas[i]
		m.Discriminator = data[off]
		copy(m.AddressConfig[:], data[off+1:off+33])
		m.IsSigner = data[off+33] == 1
		m.IsWritable = data[off+34] == 1
		off += MetaLength
	}
	return metas, nil
}

// AccountDataFunc reads account data during seed resolution.
type AccountDataFunc func(key solana.PublicKey) ([]byte, error)

// ResolveMetas turns metas into concrete accounts. fixed holds the accounts
// that precede the extras (source, mint, destination, authority, registry);
// seeds index into fixed followed by the extras resolved so far.
func ResolveMetas(
	metas []ExtraAccountMeta,
	instructionData []byte,
	programID solana.PublicKey,
	fixed []solana.AccountMeta,
	readData AccountDataFunc,
) ([]solana.AccountMeta, error) {
	all := make([]solana.AccountMeta, len(fixed), len(fixed)+len(metas))
	copy(all, fixed)

	for i, m := range metas {
		key, err := resolveMeta(m, instructionData, programID, all, readData)
		if err != nil {
			return nil, fmt.Errorf("extra account %d: %w", i, err)
		}
		all = append(all, solana.AccountMeta{PublicKey: key, IsSigner: m.IsSigner, IsWritable: m.IsWritable})
	}
	return all[len(fixed):], nil
}

func resolveMeta(
	m ExtraAccountMeta,
	instructionData []byte,
	programID solana.PublicKey,
	accounts []solana.AccountMeta,
	readData AccountDataFunc,
) (solana.PublicKey, error) {
	if m.Discriminator == MetaLiteral {
		return solana.PublicKey(m.AddressConfig), nil
	}

	owner := programID
	if m.Discriminator&metaExternalPDABit != 0 {
		idx := int(m.Discriminator &^ metaExternalPDABit)
		if idx >= len(accounts) {
			return solana.PublicKey{}, mismatch("program index %d not yet resolved", idx)
		}
		owner = accounts[idx].PublicKey
	} else if m.Discriminator != MetaProgramPDA {
		return solana.PublicKey{}, mismatch("unknown meta discriminator %d", m.Discriminator)
	}

	seeds, err := UnpackSeeds(m.AddressConfig)
	if err != nil {
		return solana.PublicKey{}, err
	}

	raw := make([][]byte, 0, len(seeds))
	for _, s := range seeds {
		b, err := seedBytes(s, instructionData, accounts, readData)
		if err != nil {
			return solana.PublicKey{}, err
		}
		raw = append(raw, b)
	}

	addr, _, err := solana.FindProgramAddress(raw, owner)
	if err != nil {
		return solana.PublicKey{}, mismatch("derive address: %v", err)
	}
	return addr, nil
}

func seedBytes(s Seed, instructionData []byte, accounts []solana.AccountMeta, readData AccountDataFunc) ([]byte, error) {
	switch s.Kind {
	case SeedLiteral:
		return s.Bytes, nil
	case SeedInstructionData:
		end := int(s.Index) + int(s.Length)
		if end > len(instructionData) {
			return nil, mismatch("instruction data seed [%d:%d] of %d bytes", s.Index, end, len(instructionData))
		}
		return instructionData[s.Index:end], nil
	case SeedAccountKey:
		if int(s.Index) >= len(accounts) {
			return nil, mismatch("account key seed index %d", s.Index)
		}
		return accounts[s.Index].PublicKey[:], nil
	case SeedAccountData:
		if int(s.Index) >= len(accounts) {
			return nil, mismatch("account data seed index %d", s.Index)
		}
		if readData == nil {
			return nil, mismatch("account data seed without data source")
		}
		data, err := readData(accounts[s.Index].PublicKey)
		if err != nil {
			return nil, mismatch("read account %s: %v", accounts[s.Index].PublicKey, err)
		}
		end := int(s.DataIndex) + int(s.Length)
		if end > len(data) {
			return nil, mismatch("account data seed [%d:%d] of %d bytes", s.DataIndex, end, len(data))
		}
		return data[s.DataIndex:end], nil
	default:
		return nil, mismatch("unknown seed kind %d", s.Kind)
	}
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
