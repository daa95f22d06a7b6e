// Package idhash derives deterministic record ids.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeExecutionID computes a deterministic execution_id using SHA256.
// Formula: SHA256(tx_signature|log_index)
// Returns hex-encoded hash (64 characters).
func ComputeExecutionID(txSignature string, logIndex int) string {
	data := fmt.Sprintf("%s|%d", txSignature, logIndex)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
