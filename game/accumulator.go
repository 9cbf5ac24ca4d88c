package game

import (
	"gameVerifyServer/crypto"
)

// Accumulator folds ordered facts into a running digest. It belongs to one
// game and is not safe for concurrent use.
type Accumulator struct {
	algo   crypto.Algorithm
	digest string
	facts  int
}

// NewAccumulator seeds the chain with H(seed) followed by H(digest || "v" || version).
func NewAccumulator(seed, version string, algo crypto.Algorithm) *Accumulator {
	if algo == "" {
		algo = crypto.DefaultAlgorithm
	}
	digest := algo.Sum([]byte(seed))
	digest = algo.Sum([]byte(digest + "v" + version))
	return &Accumulator{algo: algo, digest: digest}
}

// Fold updates the digest with H(digest || tag || canonical encoding).
func (a *Accumulator) Fold(f OrderedFact) {
	buf := make([]byte, 0, len(a.digest)+96)
	buf = append(buf, a.digest...)
	buf = append(buf, f.Kind()...)
	buf = f.appendCanonical(buf)
	a.digest = a.algo.Sum(buf)
	a.facts++
}

// Digest returns the hash so far. After the game reached a terminal state
// this is the fingerprint.
func (a *Accumulator) Digest() string {
	return a.digest
}

// Facts returns how many facts have been folded.
func (a *Accumulator) Facts() int {
	return a.facts
}

// Algorithm returns the digest function in use.
func (a *Accumulator) Algorithm() crypto.Algorithm {
	return a.algo
}

// Fingerprint folds facts into a fresh accumulator and returns the digest.
func Fingerprint(seed, version string, algo crypto.Algorithm, facts []OrderedFact) string {
	acc := NewAccumulator(seed, version, algo)
	for _, f := range facts {
		acc.Fold(f)
	}
	return acc.Digest()
}
