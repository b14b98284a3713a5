package store

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var jsonNull = json.RawMessage("null")

// rawOrNull substitutes JSON null for an empty payload.
func rawOrNull(raw json.RawMessage) json.RawMessage {
	if len(bytes.TrimSpace(raw)) == 0 {
		return jsonNull
	}
	return raw
}

// MarshalPayload encodes a snapshot or result for storage.
// A nil value is stored as JSON null.
func MarshalPayload(v any) (json.RawMessage, error) {
	if v == nil {
		return jsonNull, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return data, nil
}

// compactPayload normalizes stored JSON so identical payloads hash and
// compare equal regardless of whitespace.
func compactPayload(raw json.RawMessage) (string, error) {
	raw = rawOrNull(raw)
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", fmt.Errorf("compact payload: %w", err)
	}
	return buf.String(), nil
}
