package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashString returns a stable hex digest of the input, used as a cache key
// for embedding lookups.
func HashString(input string) string {
	sum := sha256.Sum256([]byte(input))
	return hex.EncodeToString(sum[:])
}
