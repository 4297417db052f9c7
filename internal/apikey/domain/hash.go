package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashAPIKey produces the stored digest for a raw key. Lookup and
// creation must always agree on this function.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
