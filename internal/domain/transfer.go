package domain

// HookExecution is a successful hook run recovered from transaction logs.
// Corresponds to hook_executions table in ClickHouse.
type HookExecution struct {
	ExecutionID string // sha256(signature|log_index), hex
	Signature   string // transaction signature
	LogIndex    int    // index of the execution line within the transaction logs
	Slot        int64
	Mint        string
	Source      string
	Destination string
	Amount      uint64 // raw transfer amount
	Burned      uint64 // raw burn amount
	ObservedAt  int64  // Unix ms
}

// Net returns the amount the destination kept.
func (e *HookExecution) Net() uint64 {
	return e.Amount - e.Burned
}
