package game

import (
	"sync"

	"gameVerifyServer/config"
)

// ScoreWeights are the multipliers of the additive score terms. A changed
// weight set must be registered under a new game version.
type ScoreWeights struct {
	Safety            int64
	Paper             int64
	Researcher        int64
	Turn              int64
	MoneyDivisor      int64
	CleanWinBonus     int64
	CleanWinThreshold float64
}

// CurrentWeights is the weight set used for any version without its own entry.
var CurrentWeights = ScoreWeights{
	Safety:            config.ScoreSafetyWeight,
	Paper:             config.ScorePaperWeight,
	Researcher:        config.ScoreResearcherWeight,
	Turn:              config.ScoreTurnWeight,
	MoneyDivisor:      config.ScoreMoneyDivisor,
	CleanWinBonus:     config.ScoreCleanWinBonus,
	CleanWinThreshold: config.ScoreCleanWinThreshold,
}

var (
	versionWeights   = map[string]ScoreWeights{}
	versionWeightsMu sync.RWMutex
)

// RegisterWeights pins a weight set to a game version.
func RegisterWeights(version string, w ScoreWeights) {
	versionWeightsMu.Lock()
	defer versionWeightsMu.Unlock()
	versionWeights[version] = w
}

// WeightsFor returns the weights for version, falling back to CurrentWeights.
func WeightsFor(version string) ScoreWeights {
	versionWeightsMu.RLock()
	defer versionWeightsMu.RUnlock()
	if w, ok := versionWeights[version]; ok {
		return w
	}
	return CurrentWeights
}

// Score maps a final state to its integer score under the weights of version.
func Score(s StateSnapshot, version string) int64 {
	return ScoreWith(s, WeightsFor(version))
}

// ScoreWith is the score function. It works on hundredths in integer
// arithmetic so every platform produces the same number.
func ScoreWith(s StateSnapshot, w ScoreWeights) int64 {
	doom := centi(s.Doom)

	safety := (10000 - doom) * w.Safety / 100
	research := int64(s.Papers) * w.Paper
	team := int64(s.Researchers) * w.Researcher
	survival := int64(s.Turn) * w.Turn

	var resources int64
	if w.MoneyDivisor > 0 {
		resources = centi(s.Money) / (100 * w.MoneyDivisor)
	}

	var bonus int64
	if doom < centi(w.CleanWinThreshold) {
		bonus = w.CleanWinBonus
	}

	return safety + research + team + survival + resources + bonus
}

// ScoreMatches reports whether a submitted score is within tolerance of the
// recomputed one.
func ScoreMatches(submitted, recomputed int64, tolerance int) bool {
	diff := submitted - recomputed
	if diff < 0 {
		diff = -diff
	}
	return diff <= int64(tolerance)
}
