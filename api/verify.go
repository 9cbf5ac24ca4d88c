package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"gameVerifyServer/config"
	"gameVerifyServer/game"
)

/* =========================
   REQUEST/RESPONSE TYPES
========================= */

// SubmitRequest is the body of POST /api/submit and POST /api/score.
// Pointer fields are required and distinguish "missing" from zero.
type SubmitRequest struct {
	Seed             *string             `json:"seed"`
	VerificationHash *string             `json:"verification_hash"`
	Score            *int64              `json:"score"`
	GameVersion      string              `json:"game_version"`
	Timestamp        *int64              `json:"timestamp"`
	FinalState       *game.StateSnapshot `json:"final_state"`
	DurationSeconds  int64               `json:"duration_seconds"`
	PlayerName       string              `json:"player_name"`
}

// ScoreCheckResponse is the body of POST /api/score.
type ScoreCheckResponse struct {
	Success        bool             `json:"success"`
	SubmittedScore int64            `json:"submitted_score"`
	ExpectedScore  int64            `json:"expected_score"`
	Matches        bool             `json:"matches"`
	Plausible      bool             `json:"plausible"`
	Violations     []game.Violation `json:"violations,omitempty"`
}

// decodeSubmission reads and checks a SubmitRequest. requireHash is false
// for the score check, which has no registry side.
func decodeSubmission(w http.ResponseWriter, r *http.Request, requireHash bool) (game.Submission, error) {
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)

	var req SubmitRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		return game.Submission{}, fmt.Errorf("invalid request body: %v", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return game.Submission{}, fmt.Errorf("invalid request body: trailing data")
	}

	var missing []string
	if req.Seed == nil || strings.TrimSpace(*req.Seed) == "" {
		missing = append(missing, "seed")
	}
	if req.Score == nil {
		missing = append(missing, "score")
	}
	if requireHash && (req.VerificationHash == nil || *req.VerificationHash == "") {
		missing = append(missing, "verification_hash")
	}
	if req.Timestamp == nil {
		missing = append(missing, "timestamp")
	}
	if req.FinalState == nil {
		missing = append(missing, "final_state")
	}
	if len(missing) > 0 {
		return game.Submission{}, fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
	}
	if *req.Score < 0 {
		return game.Submission{}, fmt.Errorf("score must not be negative")
	}

	sub := game.Submission{
		Seed:            *req.Seed,
		Score:           *req.Score,
		GameVersion:     req.GameVersion,
		Timestamp:       *req.Timestamp,
		FinalState:      *req.FinalState,
		DurationSeconds: req.DurationSeconds,
		PlayerName:      req.PlayerName,
	}
	if req.VerificationHash != nil {
		sub.Fingerprint = *req.VerificationHash
	}
	if sub.GameVersion == "" {
		sub.GameVersion = config.DefaultGameVersion
	}
	return sub, nil
}

/* =========================
   HTTP ENDPOINTS
========================= */

// HandleSubmit handles POST /api/submit
// The submitter id is read from the configured identity header.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	submitter := strings.TrimSpace(r.Header.Get(h.submitterHeader))
	if submitter == "" {
		sendError(w, http.StatusUnauthorized, "Missing submitter identity")
		return
	}

	sub, err := decodeSubmission(w, r, true)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub.SubmitterID = submitter

	result, err := h.svc.Submit(r.Context(), sub)
	if err != nil {
		sendServiceError(w, err)
		return
	}

	status := http.StatusOK
	if !result.Status.Accepted() {
		status = http.StatusUnprocessableEntity
	}
	sendJSON(w, status, result)
}

// HandleScoreCheck handles POST /api/score
// It recomputes the score and runs plausibility checks without registering.
func (h *Handler) HandleScoreCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	sub, err := decodeSubmission(w, r, false)
	if err != nil {
		sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub.FinalState = sub.FinalState.Normalize()

	violations, expected, matches := h.svc.Check(sub)
	sendJSON(w, http.StatusOK, ScoreCheckResponse{
		Success:        true,
		SubmittedScore: sub.Score,
		ExpectedScore:  expected,
		Matches:        matches,
		Plausible:      len(violations) == 0,
		Violations:     violations,
	})

	log.Printf("📋 Score check - Seed: %s, Submitted: %d, Expected: %d", sub.Seed, sub.Score, expected)
}

