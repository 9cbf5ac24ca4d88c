package game

import (
	"fmt"
	"math"
	"strings"
	"time"

	"gameVerifyServer/config"
)

// Bounds are the plausibility limits a final state must satisfy.
type Bounds struct {
	MaxTurns     int
	MaxClockSkew time.Duration
}

// DefaultBounds returns the limits from config defaults.
func DefaultBounds() Bounds {
	return Bounds{
		MaxTurns:     config.DefaultMaxTurns,
		MaxClockSkew: config.DefaultMaxClockSkew,
	}
}

// Violation describes one out-of-bounds field.
type Violation struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s=%s: %s", v.Field, v.Value, v.Reason)
}

// CheckState returns every plausibility violation in s.
func CheckState(s StateSnapshot, b Bounds) []Violation {
	var out []Violation

	floatRange := func(field string, v, lo, hi float64) {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out = append(out, Violation{field, fmt.Sprint(v), "must be a finite number"})
			return
		}
		if v < lo || v > hi {
			out = append(out, Violation{field, formatFixed(v, config.SnapshotPrecision),
				fmt.Sprintf("must be in [%s, %s]", formatFixed(lo, 0), formatFixed(hi, 0))})
		}
	}
	intRange := func(field string, v, lo, hi int) {
		if v < lo || v > hi {
			out = append(out, Violation{field, fmt.Sprint(v), fmt.Sprintf("must be in [%d, %d]", lo, hi)})
		}
	}

	maxTurns := b.MaxTurns
	if maxTurns < config.MinTurn {
		maxTurns = config.DefaultMaxTurns
	}

	intRange("turn", s.Turn, config.MinTurn, maxTurns)
	floatRange("doom", s.Doom, config.MinDoom, config.MaxDoom)
	floatRange("money", s.Money, config.MinMoney, config.MaxMoney)
	intRange("papers", s.Papers, 0, config.MaxPapers)
	floatRange("research", s.Research, 0, config.MaxResearch)
	floatRange("compute", s.Compute, 0, config.MaxCompute)
	intRange("researchers", s.Researchers, 0, config.MaxResearchers)
	floatRange("reputation", s.Reputation, config.MinReputation, config.MaxReputation)

	return out
}

// CheckSubmission checks the final state plus the submission's timing fields.
func CheckSubmission(sub Submission, b Bounds, now time.Time) []Violation {
	out := CheckState(sub.FinalState, b)

	skew := b.MaxClockSkew
	if skew <= 0 {
		skew = config.DefaultMaxClockSkew
	}
	if sub.Timestamp <= 0 {
		out = append(out, Violation{"timestamp", fmt.Sprint(sub.Timestamp), "must be a positive unix time"})
	} else if time.Unix(sub.Timestamp, 0).After(now.Add(skew)) {
		out = append(out, Violation{"timestamp", fmt.Sprint(sub.Timestamp), "is in the future"})
	}
	if sub.DurationSeconds < 0 || sub.DurationSeconds > config.MaxDurationSeconds {
		out = append(out, Violation{"duration_seconds", fmt.Sprint(sub.DurationSeconds),
			fmt.Sprintf("must be in [0, %d]", config.MaxDurationSeconds)})
	}
	return out
}

// DescribeViolations joins violations into one human-readable reason.
func DescribeViolations(vs []Violation) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = v.String()
	}
	return strings.Join(parts, "; ")
}
