package game

// RuleEngine is the game's rule implementation as seen by a GameSession.
// The session never applies rules itself; it only decides when each hook
// runs and records the resulting facts.
//
// Methods that receive a *Rand must draw outcome randomness through it.
// ResolveEvent and ExecuteAction must validate their input before drawing or
// mutating state, so a rejected call leaves no trace in the chain.
type RuleEngine interface {
	// Snapshot returns the current state projection.
	Snapshot() StateSnapshot

	// TriggerEvents returns the events raised at the start of turn, in the
	// order the player must resolve them.
	TriggerEvents(turn int, rng *Rand) []TriggeredEvent

	// ResolveEvent applies the player's choice for event.
	ResolveEvent(event TriggeredEvent, choiceID string, rng *Rand) error

	// ExecuteAction applies one queued action. A non-nil error means the
	// action was refused and had no effect.
	ExecuteAction(actionID string, rng *Rand) error

	// Maintain applies end-of-turn upkeep and derived effects.
	Maintain(turn int, rng *Rand)

	// AdvanceTurn increments the engine's turn counter.
	AdvanceTurn()

	// IsOver reports whether the turn just processed ends the game. It is
	// checked before AdvanceTurn.
	IsOver() bool
}
