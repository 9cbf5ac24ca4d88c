package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"strings"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// Algorithm names the digest function H used by the hash chain.
// All supported algorithms produce 256-bit digests.
type Algorithm string

const (
	SHA256    Algorithm = "sha256"
	Keccak256 Algorithm = "keccak256"
	Blake2b   Algorithm = "blake2b-256"

	DefaultAlgorithm = SHA256

	// FingerprintLength is the hex length of a 256-bit digest.
	FingerprintLength = 64
)

// ParseAlgorithm maps a configuration string to an Algorithm.
// An empty string selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultAlgorithm, nil
	case SHA256:
		return SHA256, nil
	case Keccak256:
		return Keccak256, nil
	case Blake2b:
		return Blake2b, nil
	default:
		return "", fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case Keccak256:
		return ethcrypto.NewKeccakState()
	case Blake2b:
		// New256 only fails for keys longer than 64 bytes.
		h, _ := blake2b.New256(nil)
		return h
	default:
		return sha256.New()
	}
}

// Sum returns the lowercase hex digest of data.
func (a Algorithm) Sum(data []byte) string {
	h := a.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// IsFingerprint reports whether s is a well-formed 256-bit hex digest.
func IsFingerprint(s string) bool {
	if len(s) != FingerprintLength {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// NormalizeFingerprint lowercases and trims a client-supplied digest.
func NormalizeFingerprint(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
