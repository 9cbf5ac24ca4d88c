// Package sim is a small reference rule engine for an AI-lab strategy game.
// It exists to drive game.GameSession end to end from the CLI, the
// leaderboard seeder and tests; real clients ship their own rules.
package sim

import (
	"fmt"
	"math"

	"gameVerifyServer/game"
)

const (
	StartMoney       = 100000.0
	StartDoom        = 25.0
	StartCompute     = 100.0
	StartResearchers = 2
	StartReputation  = 50.0

	HireCost         = 10000.0
	ComputeCost      = 5000.0
	ComputeBatch     = 50.0
	LobbyCost        = 15000.0
	PaperResearchReq = 50.0
	Salary           = 2000.0
	ComputeUpkeep    = 0.01 // money per compute unit per turn
	BankruptcyLimit  = -50000.0

	FundingOfferChance = 0.25
	BreakthroughChance = 0.15
	FundingOfferAmount = 30000.0

	DefaultMaxTurns = 30
)

// Action ids.
const (
	ActionHire      = "hire_researcher"
	ActionCompute   = "buy_compute"
	ActionSafety    = "safety_research"
	ActionPublish   = "publish_paper"
	ActionFundraise = "fundraise"
	ActionLobby     = "lobby"
)

// Event ids and their choices.
const (
	EventFundingOffer = "funding_offer"
	EventBreakthrough = "capabilities_breakthrough"

	ChoiceAccept   = "accept"
	ChoiceDecline  = "decline"
	ChoicePublish  = "publish"
	ChoiceSuppress = "suppress"
)

var eventChoices = map[string][]string{
	EventFundingOffer: {ChoiceAccept, ChoiceDecline},
	EventBreakthrough: {ChoicePublish, ChoiceSuppress},
}

// Choices returns the valid choices of an event type, first is the default.
func Choices(eventType string) []string {
	return append([]string(nil), eventChoices[eventType]...)
}

// Engine implements game.RuleEngine.
type Engine struct {
	state    game.StateSnapshot
	maxTurns int
}

// NewEngine returns an engine at the starting state that ends after maxTurns.
func NewEngine(maxTurns int) *Engine {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Engine{
		state: game.StateSnapshot{
			Turn:        1,
			Money:       StartMoney,
			Doom:        StartDoom,
			Compute:     StartCompute,
			Researchers: StartResearchers,
			Reputation:  StartReputation,
		},
		maxTurns: maxTurns,
	}
}

func (e *Engine) Snapshot() game.StateSnapshot {
	return e.state
}

func (e *Engine) TriggerEvents(turn int, rng *game.Rand) []game.TriggeredEvent {
	var events []game.TriggeredEvent
	if rng.Chance("event_roll:"+EventFundingOffer, FundingOfferChance) {
		events = append(events, game.TriggeredEvent{
			ID:   fmt.Sprintf("%s-%d", EventFundingOffer, turn),
			Type: EventFundingOffer,
		})
	}
	if e.state.Compute >= 150 && rng.Chance("event_roll:"+EventBreakthrough, BreakthroughChance) {
		events = append(events, game.TriggeredEvent{
			ID:   fmt.Sprintf("%s-%d", EventBreakthrough, turn),
			Type: EventBreakthrough,
		})
	}
	return events
}

func (e *Engine) ResolveEvent(ev game.TriggeredEvent, choiceID string, rng *game.Rand) error {
	if !validChoice(ev.Type, choiceID) {
		return fmt.Errorf("invalid choice %q for %s", choiceID, ev.Type)
	}
	switch ev.Type + "/" + choiceID {
	case EventFundingOffer + "/" + ChoiceAccept:
		e.state.Money += FundingOfferAmount
		e.state.Doom += 2
	case EventFundingOffer + "/" + ChoiceDecline:
		e.state.Reputation += 1
	case EventBreakthrough + "/" + ChoicePublish:
		e.state.Papers++
		e.state.Reputation += 5
		e.state.Doom += rng.Range("breakthrough_risk", 3, 8)
	case EventBreakthrough + "/" + ChoiceSuppress:
		e.state.Reputation -= 2
	}
	e.clamp()
	return nil
}

func (e *Engine) ExecuteAction(actionID string, rng *game.Rand) error {
	switch actionID {
	case ActionHire:
		if e.state.Money < HireCost {
			return fmt.Errorf("not enough money to hire")
		}
		e.state.Money -= HireCost
		e.state.Researchers++
	case ActionCompute:
		if e.state.Money < ComputeCost {
			return fmt.Errorf("not enough money for compute")
		}
		e.state.Money -= ComputeCost
		e.state.Compute += ComputeBatch
	case ActionSafety:
		if e.state.Researchers == 0 {
			return fmt.Errorf("no researchers")
		}
		e.state.Research += float64(e.state.Researchers) * rng.Range("safety_output", 5, 15)
		e.state.Doom -= rng.Range("safety_progress", 1, 3)
	case ActionPublish:
		if e.state.Research < PaperResearchReq {
			return fmt.Errorf("not enough research to publish")
		}
		e.state.Research -= PaperResearchReq
		e.state.Papers++
		e.state.Reputation += 2
	case ActionFundraise:
		e.state.Money += 20000 * (1 + e.state.Reputation/100) * rng.Range("fundraise_yield", 0.5, 1.5)
	case ActionLobby:
		if e.state.Money < LobbyCost {
			return fmt.Errorf("not enough money to lobby")
		}
		e.state.Money -= LobbyCost
		e.state.Doom -= rng.Range("lobby_effect", 0, 2)
		e.state.Reputation += 1
	default:
		return fmt.Errorf("unknown action %q", actionID)
	}
	e.clamp()
	return nil
}

func (e *Engine) Maintain(turn int, rng *game.Rand) {
	e.state.Money -= float64(e.state.Researchers)*Salary + e.state.Compute*ComputeUpkeep
	// capabilities race: more compute, faster doom
	drift := rng.Range("doom_drift", 0.5, 1.5) * (1 + e.state.Compute/1000)
	e.state.Doom += drift
	e.clamp()
}

func (e *Engine) AdvanceTurn() {
	e.state.Turn++
}

func (e *Engine) IsOver() bool {
	return e.state.Doom >= 100 || e.state.Money <= BankruptcyLimit || e.state.Turn >= e.maxTurns
}

func (e *Engine) clamp() {
	e.state.Doom = math.Max(0, math.Min(100, e.state.Doom))
	e.state.Reputation = math.Max(0, math.Min(100, e.state.Reputation))
	e.state.Research = math.Max(0, e.state.Research)
}

func validChoice(eventType, choiceID string) bool {
	for _, c := range eventChoices[eventType] {
		if c == choiceID {
			return true
		}
	}
	return false
}
