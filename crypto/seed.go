package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// GenerateSeed returns a fresh random game seed together with its SHA-256
// commitment, so a seed can be published ahead of time and checked later.
func GenerateSeed() (seed string, hash string, err error) {
	bytes := make([]byte, 32)
	if _, err = rand.Read(bytes); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}

	seed = hex.EncodeToString(bytes)

	h := sha256.Sum256([]byte(seed))
	hash = hex.EncodeToString(h[:])

	return seed, hash, nil
}

// VerifySeed reports whether hash is the SHA-256 commitment of seed.
func VerifySeed(seed, hash string) bool {
	h := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(h[:]) == hash
}
