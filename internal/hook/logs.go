package hook

import (
	"fmt"
	"strconv"
	"strings"

	"solana-burn-hook/internal/solana"
)

const (
	programLogPrefix   = "Program log: "
	executionLogPrefix = "burn-hook: execute "
)

// ExecutionLog is the parsed form of the line the hook emits per transfer.
type ExecutionLog struct {
	Mint        solana.PublicKey
	Source      solana.PublicKey
	Destination solana.PublicKey
	Amount      uint64
	Burn        uint64
}

// String formats the log line without the runtime's "Program log: " prefix.
func (e ExecutionLog) String() string {
	return fmt.Sprintf("%smint=%s source=%s destination=%s amount=%d burn=%d",
		executionLogPrefix, e.Mint, e.Source, e.Destination, e.Amount, e.Burn)
}

// ParseExecutionLog parses an execution line, with or without the
// "Program log: " prefix. ok is false for unrelated lines.
func ParseExecutionLog(line string) (entry *ExecutionLog, ok bool, err error) {
	line = strings.TrimPrefix(line, programLogPrefix)
	if !strings.HasPrefix(line, executionLogPrefix) {
		return nil, false, nil
	}

	fields := make(map[string]string, 5)
	for _, kv := range strings.Fields(strings.TrimPrefix(line, executionLogPrefix)) {
		k, v, found := strings.Cut(kv, "=")
		if !found {
			return nil, true, fmt.Errorf("malformed field %q", kv)
		}
		fields[k] = v
	}

	e := &ExecutionLog{}
	for name, dst := range map[string]*solana.PublicKey{
		"mint":        &e.Mint,
		"source":      &e.Source,
		"destination": &e.Destination,
	} {
		key, err := solana.ParsePublicKey(fields[name])
		if err != nil {
			return nil, true, fmt.Errorf("field %s: %w", name, err)
		}
		*dst = key
	}
	for name, dst := range map[string]*uint64{
		"amount": &e.Amount,
		"burn":   &e.Burn,
	} {
		v, err := strconv.ParseUint(fields[name], 10, 64)
		if err != nil {
			return nil, true, fmt.Errorf("field %s: %w", name, err)
		}
		*dst = v
	}
	if e.Burn > e.Amount {
		return nil, true, fmt.Errorf("burn %d exceeds amount %d", e.Burn, e.Amount)
	}
	return e, true, nil
}

// Execution is an execution line together with its index in the transaction logs.
type Execution struct {
	Index int
	ExecutionLog
}

// ParseExecutionLogs returns, in order, the execution lines logged while
// programID was the innermost invoked program. The runtime prefixes every
// program's own output with "Program log: ", so a frame header cannot be
// forged and lines from other frames are skipped unparsed.
func ParseExecutionLogs(logs []string, programID solana.PublicKey) ([]Execution, error) {
	var (
		frames []solana.PublicKey
		out    []Execution
	)
	for i, line := range logs {
		if program, ok := frameStart(line); ok {
			frames = append(frames, program)
			continue
		}
		if program, ok := frameEnd(line); ok {
			if n := len(frames); n > 0 && frames[n-1] == program {
				frames = frames[:n-1]
			}
			continue
		}
		if len(frames) == 0 || frames[len(frames)-1] != programID {
			continue
		}

		e, ok, err := ParseExecutionLog(line)
		if err != nil {
			return nil, fmt.Errorf("log %d: %w", i, err)
		}
		if ok {
			out = append(out, Execution{Index: i, ExecutionLog: *e})
		}
	}
	return out, nil
}

// frameStart matches "Program <id> invoke [<depth>]".
func frameStart(line string) (solana.PublicKey, bool) {
	program, rest, ok := runtimeLine(line)
	if !ok || !strings.HasPrefix(rest, "invoke [") || !strings.HasSuffix(rest, "]") {
		return solana.PublicKey{}, false
	}
	if _, err := strconv.Atoi(rest[len("invoke [") : len(rest)-1]); err != nil {
		return solana.PublicKey{}, false
	}
	return program, true
}

// frameEnd matches "Program <id> success" and "Program <id> failed: ...".
func frameEnd(line string) (solana.PublicKey, bool) {
	program, rest, ok := runtimeLine(line)
	if !ok || (rest != "success" && !strings.HasPrefix(rest, "failed")) {
		return solana.PublicKey{}, false
	}
	return program, true
}

func runtimeLine(line string) (solana.PublicKey, string, bool) {
	rest, ok := strings.CutPrefix(line, "Program ")
	if !ok {
		return solana.PublicKey{}, "", false
	}
	id, rest, ok := strings.Cut(rest, " ")
	if !ok {
		return solana.PublicKey{}, "", false
	}
	program, err := solana.ParsePublicKey(id)
	if err != nil {
		return solana.PublicKey{}, "", false
	}
	return program, rest, true
}
