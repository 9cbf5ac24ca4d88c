package game

import (
	"fmt"
)

// fakeEngine is a scripted RuleEngine: events are raised per turn from a
// table, actions are looked up by id, and the game ends after lastTurn.
type fakeEngine struct {
	state    StateSnapshot
	events   map[int][]TriggeredEvent
	lastTurn int
	resolved []string
}

func newFakeEngine(lastTurn int) *fakeEngine {
	return &fakeEngine{
		state:    StateSnapshot{Turn: 1, Money: 1000, Doom: 50, Reputation: 50},
		events:   map[int][]TriggeredEvent{},
		lastTurn: lastTurn,
	}
}

func (e *fakeEngine) Snapshot() StateSnapshot { return e.state }

func (e *fakeEngine) TriggerEvents(turn int, rng *Rand) []TriggeredEvent {
	// one outcome-relevant draw per turn, like a probabilistic event check
	rng.Float64("event_roll")
	return e.events[turn]
}

func (e *fakeEngine) ResolveEvent(ev TriggeredEvent, choiceID string, rng *Rand) error {
	if choiceID == "" {
		return fmt.Errorf("choice required")
	}
	e.resolved = append(e.resolved, ev.ID+"/"+choiceID)
	if choiceID == "accept" {
		e.state.Money += 100
	}
	return nil
}

func (e *fakeEngine) ExecuteAction(actionID string, rng *Rand) error {
	switch actionID {
	case "A":
		e.state.Papers++
		e.state.Doom -= 1.5
	case "B":
		e.state.Researchers++
		e.state.Money -= 250.333
	case "C":
		e.state.Compute += 10
		e.state.Doom += rng.Range("compute_risk", 0, 2)
	default:
		return fmt.Errorf("unknown action %q", actionID)
	}
	return nil
}

func (e *fakeEngine) Maintain(turn int, rng *Rand) {
	e.state.Money -= float64(e.state.Researchers) * 10
	e.state.Research += float64(e.state.Researchers) * 1.25
}

func (e *fakeEngine) AdvanceTurn() { e.state.Turn++ }

func (e *fakeEngine) IsOver() bool { return e.state.Turn >= e.lastTurn }
