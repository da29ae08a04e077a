package result

import (
	"time"

	"github.com/google/uuid"

	"github.com/signalnine/greeksweep/internal/sweep"
)

// RunMeta describes one stored sweep run.
type RunMeta struct {
	RunID      string      `json:"run_id"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Engine     string      `json:"engine"`
	Invoker    string      `json:"invoker"`
	Mode       sweep.Mode  `json:"mode"`
	Range      sweep.Range `json:"range"`
	Fixed      sweep.Fixed `json:"fixed"`
	Epsilon    float64     `json:"epsilon"`
	Requested  int         `json:"requested"`
	Succeeded  int         `json:"succeeded"`
	Skipped    int         `json:"skipped"`
	// Partial counts successes that still skipped one of their records.
	Partial int `json:"partial"`
	// Aborted holds the error that stopped the sweep early, if any.
	Aborted string `json:"aborted,omitempty"`
}

// NewRunMeta starts a run record with a fresh ID.
func NewRunMeta(now time.Time) *RunMeta {
	return &RunMeta{RunID: uuid.NewString(), StartedAt: now.UTC()}
}

// Tally fills the success, skip and partial counts from outcomes.
func (m *RunMeta) Tally(outcomes []sweep.Outcome) {
	m.Succeeded, m.Skipped, m.Partial = 0, 0, 0
	for _, o := range outcomes {
		switch {
		case o.Status != sweep.Success:
			m.Skipped++
		case !o.Complete():
			m.Succeeded++
			m.Partial++
		default:
			m.Succeeded++
		}
	}
}
