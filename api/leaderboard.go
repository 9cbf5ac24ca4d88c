package api

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"gameVerifyServer/config"
	"gameVerifyServer/crypto"
	"gameVerifyServer/registry"
)

/* =========================
   RESPONSE TYPES
========================= */

// LeaderboardResponse represents the leaderboard API response
type LeaderboardResponse struct {
	Success       bool                        `json:"success"`
	Seed          string                      `json:"seed"`
	OriginalsOnly bool                        `json:"originals_only"`
	Leaderboard   []registry.LeaderboardEntry `json:"leaderboard"`
}

// RegistryEntryResponse represents a registry lookup response
type RegistryEntryResponse struct {
	Success bool                `json:"success"`
	Entry   *registry.EntryView `json:"entry"`
}

// SeedResponse carries a freshly issued seed and its commitment hash.
type SeedResponse struct {
	Success  bool   `json:"success"`
	Seed     string `json:"seed"`
	SeedHash string `json:"seed_hash"`
}

// VerifySeedRequest checks a revealed seed against its published commitment
type VerifySeedRequest struct {
	Seed     string `json:"seed"`
	SeedHash string `json:"seed_hash"`
}

type VerifySeedResponse struct {
	Success bool `json:"success"`
	Valid   bool `json:"valid"`
}

/* =========================
   HTTP ENDPOINTS
========================= */

// HandleGetLeaderboard handles GET /api/leaderboard
// Query params: seed, originals (bool), limit
func (h *Handler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	seed := strings.TrimSpace(query.Get("seed"))

	originalsOnly := false
	if v := query.Get("originals"); v != "" {
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			sendError(w, http.StatusBadRequest, "originals must be a boolean")
			return
		}
		originalsOnly = parsed
	}

	limit := h.leaderboardLimit
	if v := query.Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			sendError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}
	if limit > config.MaxLeaderboardLimit {
		limit = config.MaxLeaderboardLimit
	}

	entries, err := h.svc.Leaderboard(r.Context(), seed, originalsOnly, limit)
	if err != nil {
		log.Printf("❌ Failed to get leaderboard: %v", err)
		sendServiceError(w, err)
		return
	}

	sendJSON(w, http.StatusOK, LeaderboardResponse{
		Success:       true,
		Seed:          seed,
		OriginalsOnly: originalsOnly,
		Leaderboard:   entries,
	})

	log.Printf("📋 Retrieved leaderboard for seed %q with %d entries", seed, len(entries))
}

// HandleGetRegistryEntry handles GET /api/registry/:fingerprint
func (h *Handler) HandleGetRegistryEntry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	fingerprint := crypto.NormalizeFingerprint(strings.TrimPrefix(r.URL.Path, "/api/registry/"))
	if fingerprint == "" {
		sendError(w, http.StatusBadRequest, "Fingerprint is required")
		return
	}
	if !crypto.IsFingerprint(fingerprint) {
		sendError(w, http.StatusBadRequest, "Fingerprint must be 64 hex characters")
		return
	}

	entry, err := h.svc.Entry(r.Context(), fingerprint)
	if err != nil {
		sendServiceError(w, err)
		return
	}
	sendJSON(w, http.StatusOK, RegistryEntryResponse{Success: true, Entry: entry})
}

// HandleNewSeed handles GET /api/seed
func (h *Handler) HandleNewSeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	seed, seedHash, err := crypto.GenerateSeed()
	if err != nil {
		log.Printf("❌ Failed to generate seed: %v", err)
		sendError(w, http.StatusInternalServerError, "Failed to generate seed")
		return
	}
	sendJSON(w, http.StatusOK, SeedResponse{Success: true, Seed: seed, SeedHash: seedHash})
}

// HandleVerifySeed handles POST /api/seed/verify
func (h *Handler) HandleVerifySeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req VerifySeedRequest
	r.Body = http.MaxBytesReader(w, r.Body, config.MaxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Seed == "" || req.SeedHash == "" {
		sendError(w, http.StatusBadRequest, "seed and seed_hash are required")
		return
	}

	valid := crypto.VerifySeed(req.Seed, strings.ToLower(req.SeedHash))
	if !valid {
		log.Printf("⚠️  Seed commitment mismatch for %s...", shortSeed(req.Seed))
	}
	sendJSON(w, http.StatusOK, VerifySeedResponse{Success: true, Valid: valid})
}

func shortSeed(seed string) string {
	if len(seed) > 10 {
		return seed[:10]
	}
	return seed
}
