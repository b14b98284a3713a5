package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// DomainOperation prefixes operation hashes. The version suffix allows a
// future change of the hashed fields.
const DomainOperation = "repsync/operation/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// identity is the hashed projection of an Operation. Struct field order fixes
// the JSON key order, so the encoding is deterministic.
type identity struct {
	Seq        int64           `json:"seq"`
	Kind       string          `json:"kind"`
	RoutineID  string          `json:"routine_id"`
	ExerciseID string          `json:"exercise_id"`
	Outcome    Outcome         `json:"outcome"`
	Error      string          `json:"error"`
	Snapshot   json.RawMessage `json:"snapshot"`
	Result     json.RawMessage `json:"result"`
}

// OperationID computes the content-addressed ID of an operation.
// The ID field of op is ignored.
func OperationID(op Operation) (string, error) {
	data, err := json.Marshal(identity{
		Seq:        op.Seq,
		Kind:       op.Kind,
		RoutineID:  op.RoutineID,
		ExerciseID: op.ExerciseID,
		Outcome:    op.Outcome,
		Error:      op.Error,
		Snapshot:   rawOrNull(op.Snapshot),
		Result:     rawOrNull(op.Result),
	})
	if err != nil {
		return "", fmt.Errorf("OperationID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainOperation, data), nil
}
