package solana

import (
	"crypto/sha256"
	"encoding/binary"
)

// DiscriminatorLength is the size of a transfer-hook interface instruction tag.
const DiscriminatorLength = 8

// Transfer-hook interface instruction tags: sha256("spl-transfer-hook-interface:<name>")[:8].
var (
	ExecuteDiscriminator                        = interfaceDiscriminator("execute")
	InitializeExtraAccountMetaListDiscriminator = interfaceDiscriminator("initialize-extra-account-metas")
)

func interfaceDiscriminator(name string) [DiscriminatorLength]byte {
	sum := sha256.Sum256([]byte("spl-transfer-hook-interface:" + name))
	var d [DiscriminatorLength]byte
	copy(d[:], sum[:DiscriminatorLength])
	return d
}

// ExecuteInstructionData is the instruction data the token program sends to a
// transfer hook: discriminator followed by the little-endian amount.
func ExecuteInstructionData(amount uint64) []byte {
	data := make([]byte, DiscriminatorLength+8)
	copy(data, ExecuteDiscriminator[:])
	binary.LittleEndian.PutUint64(data[DiscriminatorLength:], amount)
	return data
}
