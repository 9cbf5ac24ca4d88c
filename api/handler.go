package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"sync"

	"gameVerifyServer/config"
	"gameVerifyServer/registry"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Handler serves the verification HTTP API.
type Handler struct {
	svc              *registry.Service
	submitterHeader  string
	leaderboardLimit int

	healthMu sync.RWMutex
	health   map[string]HealthCheck
}

// NewHandler creates a Handler over svc. The registry store is always
// part of the health check.
func NewHandler(svc *registry.Service, cfg *config.Config) *Handler {
	h := &Handler{
		svc:              svc,
		submitterHeader:  cfg.SubmitterHeader,
		leaderboardLimit: cfg.LeaderboardLimit,
		health:           make(map[string]HealthCheck),
	}
	h.AddHealthCheck("store", svc.HealthCheck)
	return h
}

// AddHealthCheck reports the named dependency on GET /api/health.
func (h *Handler) AddHealthCheck(name string, check HealthCheck) {
	h.healthMu.Lock()
	defer h.healthMu.Unlock()
	h.health[name] = check
}

// Routes registers every API endpoint on mux.
func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/api/submit", h.cors(h.HandleSubmit))
	mux.HandleFunc("/api/score", h.cors(h.HandleScoreCheck))
	mux.HandleFunc("/api/leaderboard", h.cors(h.HandleGetLeaderboard))
	mux.HandleFunc("/api/registry/", h.cors(h.HandleGetRegistryEntry)) // Trailing slash for :fingerprint
	mux.HandleFunc("/api/seed", h.cors(h.HandleNewSeed))
	mux.HandleFunc("/api/seed/verify", h.cors(h.HandleVerifySeed))
	mux.HandleFunc("/api/health", h.cors(h.HandleHealthCheck))
}

/* =========================
   HEALTH CHECK ENDPOINT
========================= */

// HandleHealthCheck handles GET /api/health
func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	h.healthMu.RLock()
	names := make([]string, 0, len(h.health))
	for name := range h.health {
		names = append(names, name)
	}
	h.healthMu.RUnlock()
	sort.Strings(names)

	healthy := true
	checks := make(map[string]string, len(names))
	for _, name := range names {
		h.healthMu.RLock()
		check := h.health[name]
		h.healthMu.RUnlock()

		checks[name] = "ok"
		if err := check(r.Context()); err != nil {
			checks[name] = "error: " + err.Error()
			healthy = false
		}
	}

	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	sendJSON(w, status, map[string]interface{}{
		"success": healthy,
		"checks":  checks,
		"message": "Health check completed",
	})
}

/* =========================
   HELPER FUNCTIONS
========================= */

// ErrorResponse is the body of every non-2xx response without a status.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	Retryable bool   `json:"retryable,omitempty"`
}

// sendError sends an error response
func sendError(w http.ResponseWriter, statusCode int, message string) {
	sendJSON(w, statusCode, ErrorResponse{
		Success:   false,
		Error:     message,
		Retryable: statusCode == http.StatusServiceUnavailable,
	})
}

func sendJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v", err)
	}
}

// sendServiceError maps registry errors onto HTTP statuses.
func sendServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrInvalidSubmission):
		sendError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		sendError(w, http.StatusNotFound, "Not found")
	case errors.Is(err, registry.ErrStoreUnavailable):
		sendError(w, http.StatusServiceUnavailable, "Registry temporarily unavailable, retry later")
	default:
		log.Printf("❌ Unexpected registry error: %v", err)
		sendError(w, http.StatusInternalServerError, "Internal error")
	}
}

// cors adds CORS headers to allow frontend requests
func (h *Handler) cors(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With, "+h.submitterHeader)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight OPTIONS request
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		handler(w, r)
	}
}
