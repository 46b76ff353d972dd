package model

import "time"

// Run is a finished (or in-progress) simulation as persisted by the store.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Policy     string     `json:"policy"`
	Ticks      int        `json:"ticks"`
	Summary    Summary    `json:"summary"`
	Segments   []Segment  `json:"segments,omitempty"`
	Scenario   string     `json:"scenario,omitempty"` // YAML the run was built from
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Summary aggregates per-client results of a run.
type Summary struct {
	Completed       int     `json:"completed"`
	Blocked         int     `json:"blocked"`
	Pending         int     `json:"pending"`
	IdleTicks       int     `json:"idle_ticks"`
	ContextSwitches int     `json:"context_switches"`
	Promotions      int     `json:"promotions"`
	AvgTurnaround   float64 `json:"avg_turnaround"`
	StdTurnaround   float64 `json:"std_turnaround"`
	P90Turnaround   float64 `json:"p90_turnaround"`
	AvgWaiting      float64 `json:"avg_waiting"`
	AvgResponse     float64 `json:"avg_response"`
	Throughput      float64 `json:"throughput"` // completions per tick
}

// ClientResult is the per-client bookkeeping of a run. Ticks are -1 when the
// event never happened.
type ClientResult struct {
	RunID        string      `json:"run_id,omitempty"`
	ClientID     string      `json:"client_id"`
	Work         int         `json:"work"`
	Remaining    int         `json:"remaining"`
	Priority     *int        `json:"priority,omitempty"`
	Level        int         `json:"level"`
	Arrival      int         `json:"arrival"`
	FirstService int         `json:"first_service"`
	Finish       int         `json:"finish"`
	Turnaround   int         `json:"turnaround"`
	Waiting      int         `json:"waiting"`
	Response     int         `json:"response"`
	State        ClientState `json:"state"`
}

// Segment is one contiguous stretch of service given to a client; a Gantt
// chart row. End is exclusive.
type Segment struct {
	ClientID string `json:"client_id"`
	Level    int    `json:"level"`
	Start    int    `json:"start"`
	End      int    `json:"end"`
}
