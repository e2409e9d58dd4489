package extract

import "time"

// State names the orchestrator's position in its run lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StateRunning    State = "running"
	StateCompleting State = "completing"
)

// Progress is one immutable snapshot of a background run. The owning run
// goroutine builds a fresh copy for every update and swaps it in atomically;
// readers always observe a complete, consistent record and never a
// half-written one.
type Progress struct {
	State      State  `json:"state"`
	Running    bool   `json:"running"`
	Total      int    `json:"total"`
	Processed  int    `json:"processed"`
	Failed     int    `json:"failed"`
	CurrentID  string `json:"current_id,omitempty"`
	CurrentTitle string `json:"current_title,omitempty"`
	Message    string `json:"message"`
	ActorCount int    `json:"actor_count"`

	// Generation increments on every run start and on Reset. Results
	// produced under a stale generation are discarded.
	Generation uint64    `json:"generation"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	UpdatedAt  time.Time `json:"updated_at,omitzero"`
}
