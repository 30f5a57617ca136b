package migrate

import (
	"time"

	"github.com/google/uuid"
)

// State is the state of one migration within a run.
type State string

// Migration states. A run moves a migration from pending through running to
// applied or failed; a rollback moves it from applied through running to
// reverted or failed.
const (
	StatePending  State = "pending"
	StateRunning  State = "running"
	StateApplied  State = "applied"
	StateFailed   State = "failed"
	StateReverted State = "reverted"
)

// Step is the outcome of one migration in a run.
type Step struct {
	Name      string
	Timestamp int64
	State     State
	Duration  time.Duration
	Err       error
}

// Report describes one Migrate, Rollback or Status call.
type Report struct {
	RunID uuid.UUID
	Steps []Step
}

func newReport() *Report {
	return &Report{RunID: uuid.New()}
}

// Names returns the names of the steps in state s, in run order.
func (r *Report) Names(s State) []string {
	var names []string
	for _, st := range r.Steps {
		if st.State == s {
			names = append(names, st.Name)
		}
	}
	return names
}
