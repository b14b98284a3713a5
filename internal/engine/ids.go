package engine

import "github.com/google/uuid"

// UUIDv7Generator is the default IDGenerator. UUIDv7 carries a millisecond
// timestamp plus random bits, so temporary IDs sort by creation time and two
// adds in the same millisecond still get distinct IDs.
type UUIDv7Generator struct{}

// Generate returns a hyphenated UUIDv7. It panics only if the system's
// random source fails.
func (UUIDv7Generator) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}
