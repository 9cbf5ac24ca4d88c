package game

import (
	"errors"
	"fmt"
	"time"

	"gameVerifyServer/crypto"
)

var (
	// ErrPendingEvents is returned when the player tries to act while
	// triggered events are still unresolved.
	ErrPendingEvents = errors.New("resolve pending events first")

	ErrWrongPhase      = errors.New("operation not allowed in current phase")
	ErrGameOver        = errors.New("game is over")
	ErrGameNotOver     = errors.New("game is still in progress")
	ErrEventOutOfOrder = errors.New("events must be resolved in the order they were triggered")
	ErrUnknownEvent    = errors.New("no such pending event")
	ErrEmptyAction     = errors.New("action id is required")
)

// FactListener is notified of every fact right after it is folded.
type FactListener func(OrderedFact)

// SessionOption configures a GameSession.
type SessionOption func(*GameSession)

// WithAlgorithm selects the chain hash function.
func WithAlgorithm(algo crypto.Algorithm) SessionOption {
	return func(s *GameSession) {
		s.algo = algo
	}
}

// WithListener registers a fact listener.
func WithListener(l FactListener) SessionOption {
	return func(s *GameSession) {
		s.listeners = append(s.listeners, l)
	}
}

// GameSession drives one playthrough through the turn phases and owns its
// hash chain. It is single-threaded: one player, one timeline.
type GameSession struct {
	seed    string
	version string
	algo    crypto.Algorithm

	engine RuleEngine
	rng    *Rand
	acc    *Accumulator

	phase   TurnPhase
	turn    int
	pending []TriggeredEvent
	queue   []string
	over    bool

	listeners []FactListener
}

// TurnReport describes what happened in one TURN_PROCESSING pass.
type TurnReport struct {
	Turn     int
	Executed []string
	Refused  map[string]error
	GameOver bool
}

// NewGameSession starts a game on seed and enters TURN_START of the first turn.
func NewGameSession(seed, version string, engine RuleEngine, opts ...SessionOption) (*GameSession, error) {
	if seed == "" {
		return nil, fmt.Errorf("seed is required")
	}
	if engine == nil {
		return nil, fmt.Errorf("rule engine is required")
	}

	s := &GameSession{
		seed:    seed,
		version: version,
		algo:    crypto.DefaultAlgorithm,
		engine:  engine,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.acc = NewAccumulator(seed, version, s.algo)
	s.rng = NewRand(seed, func(f RandomOutcome) { s.emit(f) })

	s.turn = engine.Snapshot().Turn
	if s.turn < 1 {
		s.turn = 1
	}
	s.beginTurn()
	return s, nil
}

func (s *GameSession) emit(f OrderedFact) {
	s.acc.Fold(f)
	for _, l := range s.listeners {
		l(f)
	}
}

// beginTurn enters TURN_START and blocks there while events are pending.
func (s *GameSession) beginTurn() {
	s.phase = PhaseTurnStart
	s.rng.setTurn(s.turn)

	events := s.engine.TriggerEvents(s.turn, s.rng)
	for _, ev := range events {
		s.emit(EventTriggered{EventID: ev.ID, EventType: ev.Type, Turn: s.turn})
	}
	s.pending = append([]TriggeredEvent(nil), events...)

	if len(s.pending) == 0 {
		s.phase = PhaseActionSelection
	}
}

// ResolveEvent applies the player's choice for the oldest pending event.
func (s *GameSession) ResolveEvent(eventID, choiceID string) error {
	if s.over {
		return ErrGameOver
	}
	if s.phase != PhaseTurnStart || len(s.pending) == 0 {
		return ErrWrongPhase
	}

	head := s.pending[0]
	if head.ID != eventID {
		for _, ev := range s.pending[1:] {
			if ev.ID == eventID {
				return fmt.Errorf("%w: %q is waiting on %q", ErrEventOutOfOrder, eventID, head.ID)
			}
		}
		return fmt.Errorf("%w: %q", ErrUnknownEvent, eventID)
	}

	if err := s.engine.ResolveEvent(head, choiceID, s.rng); err != nil {
		return fmt.Errorf("failed to resolve event %q: %w", eventID, err)
	}
	s.emit(EventResolved{EventID: head.ID, ChoiceID: choiceID, Turn: s.turn})

	s.pending = s.pending[1:]
	if len(s.pending) == 0 {
		s.phase = PhaseActionSelection
	}
	return nil
}

// QueueAction adds an action to run when the turn ends.
func (s *GameSession) QueueAction(actionID string) error {
	switch {
	case s.over:
		return ErrGameOver
	case s.phase == PhaseTurnStart:
		return ErrPendingEvents
	case s.phase != PhaseActionSelection:
		return ErrWrongPhase
	case actionID == "":
		return ErrEmptyAction
	}
	s.queue = append(s.queue, actionID)
	return nil
}

// ClearQueue drops every queued action.
func (s *GameSession) ClearQueue() error {
	if s.phase != PhaseActionSelection || s.over {
		return ErrWrongPhase
	}
	s.queue = nil
	return nil
}

// EndTurn runs TURN_PROCESSING and TURN_END: queued actions in order,
// maintenance, the TurnEnded fact, then the turn increment. The session
// re-enters TURN_START unless the engine reports an end condition.
func (s *GameSession) EndTurn() (TurnReport, error) {
	switch {
	case s.over:
		return TurnReport{}, ErrGameOver
	case s.phase == PhaseTurnStart:
		return TurnReport{}, ErrPendingEvents
	case s.phase != PhaseActionSelection:
		return TurnReport{}, ErrWrongPhase
	}

	report := TurnReport{Turn: s.turn}
	s.phase = PhaseTurnProcessing

	queue := s.queue
	s.queue = nil
	for _, actionID := range queue {
		if err := s.engine.ExecuteAction(actionID, s.rng); err != nil {
			if report.Refused == nil {
				report.Refused = make(map[string]error)
			}
			report.Refused[actionID] = err
			continue
		}
		s.emit(ActionExecuted{ActionID: actionID, State: s.engine.Snapshot().Normalize()})
		report.Executed = append(report.Executed, actionID)
	}

	s.engine.Maintain(s.turn, s.rng)
	s.emit(TurnEnded{Turn: s.turn, State: s.engine.Snapshot().Normalize()})

	s.phase = PhaseTurnEnd

	// A finished game keeps the turn it ended on in its final snapshot.
	if s.engine.IsOver() {
		s.over = true
		report.GameOver = true
		return report, nil
	}

	s.turn++
	s.engine.AdvanceTurn()

	s.beginTurn()
	return report, nil
}

// Phase returns the active phase.
func (s *GameSession) Phase() TurnPhase { return s.phase }

// Turn returns the current turn number.
func (s *GameSession) Turn() int { return s.turn }

// Over reports whether the game reached a terminal state.
func (s *GameSession) Over() bool { return s.over }

// Seed returns the game seed.
func (s *GameSession) Seed() string { return s.seed }

// Version returns the game version the chain was seeded with.
func (s *GameSession) Version() string { return s.version }

// PendingEvents returns the unresolved events in resolution order.
func (s *GameSession) PendingEvents() []TriggeredEvent {
	return append([]TriggeredEvent(nil), s.pending...)
}

// QueuedActions returns the actions queued for this turn.
func (s *GameSession) QueuedActions() []string {
	return append([]string(nil), s.queue...)
}

// Snapshot returns the engine's current normalized state.
func (s *GameSession) Snapshot() StateSnapshot {
	return s.engine.Snapshot().Normalize()
}

// FinalHash returns the chain digest. Mid-game it is the hash so far, which
// is only useful for debugging.
func (s *GameSession) FinalHash() string {
	return s.acc.Digest()
}

// FactCount returns how many facts were folded.
func (s *GameSession) FactCount() int {
	return s.acc.Facts()
}

// Score returns the score of the current state.
func (s *GameSession) Score() int64 {
	return Score(s.Snapshot(), s.version)
}

// Submission packages a finished game for the registry.
func (s *GameSession) Submission(playerName string, finishedAt time.Time, duration time.Duration) (Submission, error) {
	if !s.over {
		return Submission{}, ErrGameNotOver
	}
	state := s.Snapshot()
	return Submission{
		Seed:            s.seed,
		Fingerprint:     s.acc.Digest(),
		Score:           Score(state, s.version),
		GameVersion:     s.version,
		Timestamp:       finishedAt.Unix(),
		FinalState:      state,
		DurationSeconds: int64(duration / time.Second),
		PlayerName:      playerName,
	}, nil
}
