package game

import (
	"crypto/sha256"
	"encoding/binary"
	"math/rand"

	"gameVerifyServer/config"
)

// NewSeededRNG derives a math/rand generator from the SHA-256 of seed.
func NewSeededRNG(seed string) *rand.Rand {
	hash := sha256.Sum256([]byte(seed))
	seedInt := int64(binary.BigEndian.Uint64(hash[:8]))
	return rand.New(rand.NewSource(seedInt))
}

// Rand is the game's deterministic generator. Every outcome draw is reported
// as a RandomOutcome tagged with the draw type and the current turn, so the
// chain covers all gameplay randomness. Cosmetic draws go through Cosmetic
// and are never reported.
type Rand struct {
	rng      *rand.Rand
	cosmetic *rand.Rand
	turn     int
	record   func(RandomOutcome)
}

// NewRand creates a generator for seed. record may be nil.
func NewRand(seed string, record func(RandomOutcome)) *Rand {
	return &Rand{
		rng:      NewSeededRNG(seed),
		cosmetic: NewSeededRNG(seed + "-cosmetic"),
		turn:     1,
		record:   record,
	}
}

// Float64 draws a value in [0, 1).
func (r *Rand) Float64(tag string) float64 {
	v := r.rng.Float64()
	r.emit(tag, v)
	return v
}

// Intn draws an int in [0, n).
func (r *Rand) Intn(tag string, n int) int {
	v := r.rng.Intn(n)
	r.emit(tag, float64(v))
	return v
}

// Chance reports whether a draw landed below p.
func (r *Rand) Chance(tag string, p float64) bool {
	return r.Float64(tag) < p
}

// Range draws a value in [lo, hi).
func (r *Rand) Range(tag string, lo, hi float64) float64 {
	return lo + r.Float64(tag)*(hi-lo)
}

// Cosmetic returns the generator for presentation-only randomness.
func (r *Rand) Cosmetic() *rand.Rand {
	return r.cosmetic
}

// Turn returns the turn draws are currently tagged with.
func (r *Rand) Turn() int {
	return r.turn
}

func (r *Rand) setTurn(turn int) {
	r.turn = turn
}

func (r *Rand) emit(tag string, v float64) {
	if r.record == nil {
		return
	}
	r.record(RandomOutcome{
		Tag:   tag,
		Value: RoundToDecimal(v, config.DrawPrecision),
		Turn:  r.turn,
	})
}
