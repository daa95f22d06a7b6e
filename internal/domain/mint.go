package domain

// Mint is a snapshot of a Token-2022 mint bound to a transfer hook.
type Mint struct {
	Address           string // base58 mint address
	Decimals          uint8  // display precision
	Supply            uint64 // raw units
	HookProgram       string // transfer-hook program id, empty if none
	PermanentDelegate string // empty if none
}

// TokenAccount is a snapshot of a token account balance.
type TokenAccount struct {
	Address string
	Mint    string
	Owner   string
	Amount  uint64 // raw units
}
