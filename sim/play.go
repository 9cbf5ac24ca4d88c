package sim

import (
	"fmt"

	"gameVerifyServer/crypto"
	"gameVerifyServer/game"
)

// Strategy decides what the player does each turn.
type Strategy interface {
	// Choose picks a choice for a pending event.
	Choose(turn int, state game.StateSnapshot, ev game.TriggeredEvent) string
	// Actions returns the actions to queue for the turn.
	Actions(turn int, state game.StateSnapshot) []string
}

// Scripted queues the same actions every turn and takes each event's
// default choice unless an override is given.
type Scripted struct {
	PerTurn []string
	Choices map[string]string // event type -> choice
}

func (s Scripted) Choose(turn int, state game.StateSnapshot, ev game.TriggeredEvent) string {
	if c, ok := s.Choices[ev.Type]; ok {
		return c
	}
	if opts := Choices(ev.Type); len(opts) > 0 {
		return opts[0]
	}
	return ""
}

func (s Scripted) Actions(turn int, state game.StateSnapshot) []string {
	return s.PerTurn
}

// Options configures Play.
type Options struct {
	Version   string
	MaxTurns  int
	Algorithm crypto.Algorithm
	Listener  game.FactListener
}

// Play runs a full game on seed with strategy and returns the finished session.
func Play(seed string, strategy Strategy, opts Options) (*game.GameSession, error) {
	sessionOpts := []game.SessionOption{game.WithAlgorithm(opts.Algorithm)}
	if opts.Listener != nil {
		sessionOpts = append(sessionOpts, game.WithListener(opts.Listener))
	}

	s, err := game.NewGameSession(seed, opts.Version, NewEngine(opts.MaxTurns), sessionOpts...)
	if err != nil {
		return nil, err
	}

	for !s.Over() {
		for _, ev := range s.PendingEvents() {
			choice := strategy.Choose(s.Turn(), s.Snapshot(), ev)
			if err := s.ResolveEvent(ev.ID, choice); err != nil {
				return nil, fmt.Errorf("turn %d: %w", s.Turn(), err)
			}
		}
		for _, a := range strategy.Actions(s.Turn(), s.Snapshot()) {
			if err := s.QueueAction(a); err != nil {
				return nil, fmt.Errorf("turn %d: %w", s.Turn(), err)
			}
		}
		if _, err := s.EndTurn(); err != nil {
			return nil, fmt.Errorf("turn %d: %w", s.Turn(), err)
		}
	}
	return s, nil
}
