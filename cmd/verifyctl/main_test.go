package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"gameVerifyServer/api"
	"gameVerifyServer/config"
	"gameVerifyServer/db"
	"gameVerifyServer/game"
	"gameVerifyServer/registry"
)

func writeSubmission(t *testing.T, sub game.Submission) string {
	t.Helper()
	raw, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "run.json")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestPlayFlagsAreReproducible(t *testing.T) {
	globalFlags.algo, globalFlags.version = "keccak256", "1.0.0"
	f := playFlags{seed: "cli-seed", strategy: "balanced"}

	_, a, err := f.play(nil)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	_, b, err := f.play(nil)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}
	if a.Fingerprint != b.Fingerprint {
		t.Errorf("Expected identical fingerprints, got %s and %s", a.Fingerprint, b.Fingerprint)
	}
	if a.Score != game.Score(a.FinalState, a.GameVersion) {
		t.Errorf("Expected score %d, got %d", game.Score(a.FinalState, a.GameVersion), a.Score)
	}

	f.strategy = "nope"
	if _, _, err := f.play(nil); err == nil {
		t.Error("Expected unknown strategy to fail")
	}
}

func TestScoreCommand(t *testing.T) {
	globalFlags.algo, globalFlags.version = "", "1.0.0"
	_, sub, err := (&playFlags{seed: "score-seed", strategy: "safety"}).play(nil)
	if err != nil {
		t.Fatalf("play failed: %v", err)
	}

	cmd := scoreCommand()
	cmd.SetArgs([]string{writeSubmission(t, sub)})
	if err := cmd.Execute(); err != nil {
		t.Errorf("Expected honest submission to pass, got %v", err)
	}

	sub.Score += 10_000
	cmd = scoreCommand()
	cmd.SetArgs([]string{writeSubmission(t, sub)})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected inflated score to fail")
	}
}

func TestSubmitCommand(t *testing.T) {
	globalFlags.algo, globalFlags.version = "", "1.0.0"
	cfg := config.Default()
	store := db.NewMemoryStore()
	h := api.NewHandler(registry.NewService(store, registry.OptionsFromConfig(cfg)), cfg)
	mux := http.NewServeMux()
	h.Routes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cmd := submitCommand()
	cmd.SetArgs([]string{"--server", srv.URL, "--user", "cli-user", "--seed", "submit-seed", "--strategy", "growth"})
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	board, err := store.GetLeaderboard(context.Background(), db.LeaderboardQuery{Seed: "submit-seed"})
	if err != nil {
		t.Fatalf("GetLeaderboard failed: %v", err)
	}
	if len(board) != 1 || board[0].SubmitterID != "cli-user" {
		t.Fatalf("Expected one row from cli-user, got %+v", board)
	}

	cmd = submitCommand()
	cmd.SetArgs([]string{"--server", srv.URL, "--seed", "submit-seed"})
	if err := cmd.Execute(); err == nil {
		t.Error("Expected missing --user to fail")
	}
}
