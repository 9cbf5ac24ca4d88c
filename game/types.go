package game

import (
	"math"
	"strconv"

	"gameVerifyServer/config"
)

// StateSnapshot is the fixed-shape projection of game state that is folded
// into the hash chain and checked by the registry. Float fields are kept at
// config.SnapshotPrecision decimals once normalized.
type StateSnapshot struct {
	Turn        int     `json:"turn"`
	Money       float64 `json:"money"`
	Doom        float64 `json:"doom"`
	Papers      int     `json:"papers"`
	Research    float64 `json:"research"`
	Compute     float64 `json:"compute"`
	Researchers int     `json:"researchers"`
	Reputation  float64 `json:"reputation"`
}

// Normalize rounds every float field to the snapshot precision so that
// platform float noise cannot leak into the chain.
func (s StateSnapshot) Normalize() StateSnapshot {
	s.Money = roundTo(s.Money, config.SnapshotPrecision)
	s.Doom = roundTo(s.Doom, config.SnapshotPrecision)
	s.Research = roundTo(s.Research, config.SnapshotPrecision)
	s.Compute = roundTo(s.Compute, config.SnapshotPrecision)
	s.Reputation = roundTo(s.Reputation, config.SnapshotPrecision)
	return s
}

// RoundToDecimal rounds a float to specified decimal places
func RoundToDecimal(val float64, precision int) float64 {
	return roundTo(val, precision)
}

func roundTo(val float64, precision int) float64 {
	ratio := math.Pow(10, float64(precision))
	r := math.Round(val*ratio) / ratio
	if r == 0 {
		// drop negative zero
		return 0
	}
	return r
}

// centi returns v in hundredths as an integer.
func centi(v float64) int64 {
	return int64(math.Round(v * 100))
}

// formatFixed renders v with exactly places decimals without going through
// float formatting, so "-0.00" and exponent forms can never appear.
func formatFixed(v float64, places int) string {
	scale := int64(1)
	for i := 0; i < places; i++ {
		scale *= 10
	}
	scaled := int64(math.Round(v * float64(scale)))
	neg := scaled < 0
	if neg {
		scaled = -scaled
	}
	whole := strconv.FormatInt(scaled/scale, 10)
	frac := strconv.FormatInt(scaled%scale, 10)
	for len(frac) < places {
		frac = "0" + frac
	}
	out := whole
	if places > 0 {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// TurnPhase is the active step of the per-turn state machine.
type TurnPhase int

const (
	PhaseTurnStart TurnPhase = iota
	PhaseActionSelection
	PhaseTurnProcessing
	PhaseTurnEnd
)

func (p TurnPhase) String() string {
	switch p {
	case PhaseTurnStart:
		return "TURN_START"
	case PhaseActionSelection:
		return "ACTION_SELECTION"
	case PhaseTurnProcessing:
		return "TURN_PROCESSING"
	case PhaseTurnEnd:
		return "TURN_END"
	default:
		return "UNKNOWN"
	}
}

// TriggeredEvent is an event the rule engine raised at the start of a turn.
type TriggeredEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}
