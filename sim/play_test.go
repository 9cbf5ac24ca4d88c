package sim

import (
	"testing"

	"gameVerifyServer/crypto"
	"gameVerifyServer/game"
)

func TestPlayIsReproducible(t *testing.T) {
	strategy := Scripted{PerTurn: []string{ActionSafety, ActionFundraise}}
	for _, algo := range []crypto.Algorithm{crypto.SHA256, crypto.Keccak256, crypto.Blake2b} {
		a, err := Play("s1", strategy, Options{Version: "1.0.0", Algorithm: algo})
		if err != nil {
			t.Fatalf("%s: Play: %v", algo, err)
		}
		b, err := Play("s1", strategy, Options{Version: "1.0.0", Algorithm: algo})
		if err != nil {
			t.Fatalf("%s: Play: %v", algo, err)
		}
		if a.FinalHash() != b.FinalHash() {
			t.Fatalf("%s: replay diverged", algo)
		}
		if a.Score() != b.Score() {
			t.Fatalf("%s: score diverged", algo)
		}
	}
}

func TestPlayDistinguishesStrategies(t *testing.T) {
	seen := map[string]string{}
	strategies := map[string]Strategy{
		"safety": Scripted{PerTurn: []string{ActionSafety, ActionPublish}},
		"growth": Scripted{PerTurn: []string{ActionHire, ActionCompute}},
		"lobby":  Scripted{PerTurn: []string{ActionLobby, ActionFundraise}, Choices: map[string]string{EventFundingOffer: ChoiceDecline}},
	}
	for name, st := range strategies {
		s, err := Play("weekly-42", st, Options{Version: "1.0.0"})
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if other, ok := seen[s.FinalHash()]; ok {
			t.Fatalf("%s and %s share a fingerprint", name, other)
		}
		seen[s.FinalHash()] = name
	}
}

func TestPlayProducesPlausibleSubmissions(t *testing.T) {
	seeds := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	for _, seed := range seeds {
		s, err := Play(seed, Scripted{PerTurn: []string{ActionHire, ActionSafety, ActionPublish, ActionFundraise}}, Options{Version: "1.0.0", MaxTurns: 20})
		if err != nil {
			t.Fatalf("seed %s: %v", seed, err)
		}
		if !s.Over() {
			t.Fatalf("seed %s: game not over", seed)
		}
		if vs := game.CheckState(s.Snapshot(), game.DefaultBounds()); len(vs) != 0 {
			t.Fatalf("seed %s: implausible final state: %s", seed, game.DescribeViolations(vs))
		}
		if s.Turn() > 20 {
			t.Fatalf("seed %s: ran past max turns (%d)", seed, s.Turn())
		}
	}
}

func TestSurvivedGameEndsOnLastTurn(t *testing.T) {
	const maxTurns = 8
	for _, seed := range []string{"a", "b", "c", "d"} {
		s, err := Play(seed, Scripted{PerTurn: []string{ActionSafety}}, Options{Version: "1.0.0", MaxTurns: maxTurns})
		if err != nil {
			t.Fatalf("seed %s: %v", seed, err)
		}
		final := s.Snapshot()
		if final.Doom >= 100 || final.Money <= BankruptcyLimit {
			t.Fatalf("seed %s: expected a cautious game to survive %d turns, got %+v", seed, maxTurns, final)
		}
		if final.Turn != maxTurns || s.Turn() != maxTurns {
			t.Errorf("seed %s: final turn = %d (session %d), want %d", seed, final.Turn, s.Turn(), maxTurns)
		}
		if vs := game.CheckState(final, game.Bounds{MaxTurns: maxTurns}); len(vs) != 0 {
			t.Errorf("seed %s: rejected under its own turn limit: %s", seed, game.DescribeViolations(vs))
		}
	}
}

func TestEngineRejectsInvalidInput(t *testing.T) {
	e := NewEngine(5)
	rng := game.NewRand("x", nil)
	if err := e.ExecuteAction("warp_drive", rng); err == nil {
		t.Error("unknown action accepted")
	}
	if err := e.ExecuteAction(ActionPublish, rng); err == nil {
		t.Error("publishing without research accepted")
	}
	ev := game.TriggeredEvent{ID: "f-1", Type: EventFundingOffer}
	if err := e.ResolveEvent(ev, ChoicePublish, rng); err == nil {
		t.Error("choice from another event accepted")
	}
	before := e.Snapshot()
	if err := e.ResolveEvent(ev, ChoiceAccept, rng); err != nil {
		t.Fatalf("ResolveEvent: %v", err)
	}
	if e.Snapshot().Money != before.Money+FundingOfferAmount {
		t.Error("funding offer not applied")
	}
}

func TestPresets(t *testing.T) {
	for _, name := range PresetNames() {
		st, err := Preset(name)
		if err != nil {
			t.Fatalf("Preset(%q): %v", name, err)
		}
		if _, err := Play("preset-check", st, Options{Version: "1.0.0"}); err != nil {
			t.Errorf("%s: Play: %v", name, err)
		}
	}
	if _, err := Preset("yolo"); err == nil {
		t.Error("expected unknown preset to fail")
	}
}
