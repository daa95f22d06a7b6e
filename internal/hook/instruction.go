package hook

import (
	"fmt"

	"github.com/near/borsh-go"

	"solana-burn-hook/internal/solana"
)

// InstructionKind identifies a hook instruction.
type InstructionKind uint8

const (
	InstructionExecute InstructionKind = iota + 1
	InstructionInitializeExtraAccountMetaList
)

func (k InstructionKind) String() string {
	switch k {
	case InstructionExecute:
		return "Execute"
	case InstructionInitializeExtraAccountMetaList:
		return "InitializeExtraAccountMetaList"
	default:
		return fmt.Sprintf("InstructionKind(%d)", k)
	}
}

// ExecuteArgs are the borsh-encoded arguments of Execute.
type ExecuteArgs struct {
	Amount uint64
}

const executeArgsSize = 8

// EncodeExecute builds Execute instruction data.
func EncodeExecute(amount uint64) ([]byte, error) {
	args, err := borsh.Serialize(ExecuteArgs{Amount: amount})
	if err != nil {
		return nil, fmt.Errorf("serialize execute args: %w", err)
	}
	return append(solana.ExecuteDiscriminator[:], args...), nil
}

// EncodeInitializeExtraAccountMetaList builds the registry initialization
// instruction data. The list contents are fixed by the program.
func EncodeInitializeExtraAccountMetaList() []byte {
	d := solana.InitializeExtraAccountMetaListDiscriminator
	return d[:]
}

// DecodeInstruction identifies the instruction and decodes Execute arguments.
func DecodeInstruction(data []byte) (InstructionKind, *ExecuteArgs, error) {
	if len(data) < solana.DiscriminatorLength {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrInvalidInstruction, len(data))
	}

	var tag [solana.DiscriminatorLength]byte
	copy(tag[:], data)
	body := data[solana.DiscriminatorLength:]

	switch tag {
	case solana.ExecuteDiscriminator:
		if len(body) != executeArgsSize {
			return 0, nil, fmt.Errorf("%w: execute args of %d bytes", ErrInvalidInstruction, len(body))
		}
		var args ExecuteArgs
		if err := borsh.Deserialize(&args, body); err != nil {
			return 0, nil, fmt.Errorf("%w: %v", ErrInvalidInstruction, err)
		}
		return InstructionExecute, &args, nil
	case solana.InitializeExtraAccountMetaListDiscriminator:
		return InstructionInitializeExtraAccountMetaList, nil, nil
	default:
		return 0, nil, fmt.Errorf("%w: unknown discriminator %x", ErrInvalidInstruction, tag)
	}
}
