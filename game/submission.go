package game

// Submission is a completed game as sent to the registry. The JSON shape is
// the wire format of POST /api/submit; SubmitterID comes from the auth layer.
type Submission struct {
	Seed            string        `json:"seed"`
	Fingerprint     string        `json:"verification_hash"`
	Score           int64         `json:"score"`
	GameVersion     string        `json:"game_version"`
	Timestamp       int64         `json:"timestamp"`
	FinalState      StateSnapshot `json:"final_state"`
	DurationSeconds int64         `json:"duration_seconds"`
	PlayerName      string        `json:"player_name,omitempty"`
	SubmitterID     string        `json:"-"`
}
