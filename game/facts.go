package game

import (
	"strconv"

	"gameVerifyServer/config"
)

// FactKind is the chain tag of an OrderedFact. Tags end in ':' and no tag is
// a prefix of another.
type FactKind string

const (
	KindActionExecuted FactKind = "action:"
	KindEventTriggered FactKind = "event:"
	KindEventResolved  FactKind = "resolve:"
	KindRandomOutcome  FactKind = "rng:"
	KindTurnEnded      FactKind = "turn:"
)

// OrderedFact is one order-sensitive gameplay fact. The set of
// implementations is closed: only the five types in this file satisfy it.
type OrderedFact interface {
	Kind() FactKind
	appendCanonical(b []byte) []byte
}

// ActionExecuted is emitted after a queued action ran during TURN_PROCESSING.
type ActionExecuted struct {
	ActionID string
	State    StateSnapshot
}

// EventTriggered is emitted for every event raised in TURN_START.
type EventTriggered struct {
	EventID   string
	EventType string
	Turn      int
}

// EventResolved is emitted when the player picks a choice for a pending event.
type EventResolved struct {
	EventID  string
	ChoiceID string
	Turn     int
}

// RandomOutcome is emitted for every outcome-relevant random draw.
type RandomOutcome struct {
	Tag   string
	Value float64
	Turn  int
}

// TurnEnded is emitted after maintenance, before the turn counter advances.
type TurnEnded struct {
	Turn  int
	State StateSnapshot
}

func (ActionExecuted) Kind() FactKind { return KindActionExecuted }
func (EventTriggered) Kind() FactKind { return KindEventTriggered }
func (EventResolved) Kind() FactKind  { return KindEventResolved }
func (RandomOutcome) Kind() FactKind  { return KindRandomOutcome }
func (TurnEnded) Kind() FactKind      { return KindTurnEnded }

func (f ActionExecuted) appendCanonical(b []byte) []byte {
	b = appendString(b, f.ActionID)
	b = append(b, '|')
	return appendSnapshot(b, f.State)
}

func (f EventTriggered) appendCanonical(b []byte) []byte {
	b = appendString(b, f.EventID)
	b = append(b, '|')
	b = appendString(b, f.EventType)
	b = append(b, '|')
	return strconv.AppendInt(b, int64(f.Turn), 10)
}

func (f EventResolved) appendCanonical(b []byte) []byte {
	b = appendString(b, f.EventID)
	b = append(b, '|')
	b = appendString(b, f.ChoiceID)
	b = append(b, '|')
	return strconv.AppendInt(b, int64(f.Turn), 10)
}

func (f RandomOutcome) appendCanonical(b []byte) []byte {
	b = appendString(b, f.Tag)
	b = append(b, '|')
	b = append(b, formatFixed(f.Value, config.DrawPrecision)...)
	b = append(b, '|')
	return strconv.AppendInt(b, int64(f.Turn), 10)
}

func (f TurnEnded) appendCanonical(b []byte) []byte {
	b = strconv.AppendInt(b, int64(f.Turn), 10)
	b = append(b, '|')
	return appendSnapshot(b, f.State)
}

// CanonicalEncoding returns the bytes a fact contributes to the chain,
// tag included.
func CanonicalEncoding(f OrderedFact) []byte {
	b := []byte(f.Kind())
	return f.appendCanonical(b)
}

// appendString writes s length-prefixed so ids containing '|' cannot shift
// field boundaries.
func appendString(b []byte, s string) []byte {
	b = strconv.AppendInt(b, int64(len(s)), 10)
	b = append(b, ':')
	return append(b, s...)
}

func appendSnapshot(b []byte, s StateSnapshot) []byte {
	p := config.SnapshotPrecision
	b = append(b, "t="...)
	b = strconv.AppendInt(b, int64(s.Turn), 10)
	b = append(b, ",m="...)
	b = append(b, formatFixed(s.Money, p)...)
	b = append(b, ",d="...)
	b = append(b, formatFixed(s.Doom, p)...)
	b = append(b, ",p="...)
	b = strconv.AppendInt(b, int64(s.Papers), 10)
	b = append(b, ",r="...)
	b = append(b, formatFixed(s.Research, p)...)
	b = append(b, ",c="...)
	b = append(b, formatFixed(s.Compute, p)...)
	b = append(b, ",h="...)
	b = strconv.AppendInt(b, int64(s.Researchers), 10)
	b = append(b, ",rep="...)
	return append(b, formatFixed(s.Reputation, p)...)
}
