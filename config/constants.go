package config

import "time"

/* =========================
   HASH CHAIN
========================= */

const (
	// Decimal places used when folding snapshot fields into the chain
	SnapshotPrecision = 2

	// Decimal places used for RandomOutcome values; uniform draws would alias at 2
	DrawPrecision = 6

	// Default game version when a client omits it
	DefaultGameVersion = "1.0.0"
)

/* =========================
   PLAUSIBILITY BOUNDS
========================= */

const (
	MinDoom = 0.0
	MaxDoom = 100.0

	MinTurn         = 1
	DefaultMaxTurns = 1000

	MinReputation = 0.0
	MaxReputation = 100.0

	// Money may dip below zero through debt, but not without limit
	MinMoney = -1_000_000.0
	MaxMoney = 1_000_000_000.0

	MaxPapers      = 100_000
	MaxResearchers = 10_000
	MaxResearch    = 1_000_000_000.0
	MaxCompute     = 1_000_000_000.0

	// Longest believable wall-clock playthrough (7 days)
	MaxDurationSeconds = 7 * 24 * 60 * 60

	DefaultMaxClockSkew = 5 * time.Minute
)

/* =========================
   SCORING
========================= */

const (
	// Points per doom point below 100
	ScoreSafetyWeight = 1000

	// Points per published paper
	ScorePaperWeight = 5000

	// Points per researcher on staff
	ScoreResearcherWeight = 1000

	// Points per survived turn
	ScoreTurnWeight = 500

	// One point per this many units of residual money
	ScoreMoneyDivisor = 100

	// Flat bonus when final doom is strictly below the threshold
	ScoreCleanWinBonus     = 10000
	ScoreCleanWinThreshold = 20.0

	// Allowed |recomputed - submitted| before a score_mismatch
	DefaultScoreTolerance = 1
)

/* =========================
   REGISTRY
========================= */

const (
	// Trailing sliding window for rapid-duplicate detection
	DefaultRapidDuplicateWindow = 1 * time.Hour

	// Non-self duplicates inside the window strictly above this raise the flag
	DefaultRapidDuplicateThreshold = 10

	DefaultLeaderboardLimit = 50
	MaxLeaderboardLimit     = 200

	// Characters of the submitter id shown when no player name was given
	SubmitterDisplayLength = 8
)

/* =========================
   REDIS KEY PATTERNS
========================= */

const (
	// Sorted set of non-self duplicate arrivals, scored by unix millis
	RedisDuplicateWindowKey = "verify:dupwindow:%s" // verify:dupwindow:{fingerprint}
)

/* =========================
   API CONFIGURATION
========================= */

const (
	DefaultAddr = "0.0.0.0:8080"

	// Submissions larger than this are rejected before decoding
	MaxRequestBodyBytes = 1 << 20

	ReadHeaderTimeout = 10 * time.Second
	ReadTimeout       = 30 * time.Second
	WriteTimeout      = 30 * time.Second
	IdleTimeout       = 60 * time.Second
	ShutdownTimeout   = 5 * time.Second
)

/* =========================
   WEBSOCKET CONFIGURATION
========================= */

const (
	WSReadDeadline  = 60 * time.Second
	WSWriteDeadline = 10 * time.Second
	WSPingInterval  = 30 * time.Second

	WSReadBufferSize  = 1024
	WSWriteBufferSize = 1024
	WSSendBufferSize  = 256

	MaxMessageSize = 512 * 1024 // 512KB
)

/* =========================
   POSTGRESQL CONFIGURATION
========================= */

const (
	PostgresMaxConns        = 25
	PostgresMinConns        = 5
	PostgresMaxConnLifetime = 5 * time.Minute
	PostgresConnectTimeout  = 10 * time.Second
)
