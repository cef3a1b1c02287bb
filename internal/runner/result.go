package runner

import (
	"time"

	"github.com/kuitang/clinicprobe/internal/errs"
	"github.com/kuitang/clinicprobe/internal/scenario"
)

// State is a scenario lifecycle state.
type State string

const (
	StateInit         State = "INIT"
	StateLaunched     State = "LAUNCHED"
	StateContextReady State = "CONTEXT_READY"
	StateNavigate     State = "NAVIGATE"
	StateInteract     State = "INTERACT"
	StateAssert       State = "ASSERT"
	StateWait         State = "WAIT"
	StatePassed       State = "PASSED"
	StateFailed       State = "FAILED"
	StateTornDown     State = "TORN_DOWN"
)

// Outcome is the terminal result of a scenario.
type Outcome string

const (
	Passed Outcome = "passed"
	Failed Outcome = "failed"
)

// StepStatus is the result of one step.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepFailed  StepStatus = "failed"
	StepSkipped StepStatus = "skipped"
)

// StepResult records the execution of one step.
type StepResult struct {
	Index        int           `json:"index"`
	Kind         scenario.Kind `json:"kind"`
	Description  string        `json:"description"`
	Value        string        `json:"value,omitempty"` // redacted when sensitive
	Status       StepStatus    `json:"status"`
	SoftFailures int           `json:"soft_failures,omitempty"`
	Duration     time.Duration `json:"duration_ns"`
	Error        string        `json:"error,omitempty"`
}

// Result is the outcome of one scenario run.
type Result struct {
	Scenario     string       `json:"scenario"`
	RunID        string       `json:"run_id"`
	Outcome      Outcome      `json:"outcome"`
	Code         errs.Code    `json:"code,omitempty"`
	Message      string       `json:"message,omitempty"`
	States       []State      `json:"states"`
	Steps        []StepResult `json:"steps"`
	SoftFailures int          `json:"soft_failures"`
	StartedAt    time.Time    `json:"started_at"`
	FinishedAt   time.Time    `json:"finished_at"`
	FinalURL     string       `json:"final_url,omitempty"`
	FinalTitle   string       `json:"final_title,omitempty"`
	Screenshot   []byte       `json:"-"`
}

// Passed reports whether the scenario passed.
func (r Result) Passed() bool {
	return r.Outcome == Passed
}

// Duration is the wall time between start and teardown.
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Err returns the scenario failure as a coded error, or nil when it passed.
func (r Result) Err() error {
	if r.Passed() {
		return nil
	}
	return errs.New(r.Code, r.Message)
}

// FailedResult builds the result of a scenario that never started, such as
// one skipped after an earlier failure.
func FailedResult(sc scenario.Scenario, runID string, at time.Time, err error) Result {
	res := Result{
		Scenario:   sc.Name,
		RunID:      runID,
		Outcome:    Failed,
		Code:       errs.CodeOf(err),
		Message:    errs.MessageOf(err),
		States:     []State{StateInit, StateFailed, StateTornDown},
		Steps:      pendingSteps(sc),
		StartedAt:  at,
		FinishedAt: at,
	}
	return res
}

func pendingSteps(sc scenario.Scenario) []StepResult {
	steps := make([]StepResult, len(sc.Steps))
	for i, step := range sc.Steps {
		steps[i] = StepResult{
			Index:       i,
			Kind:        step.Kind,
			Description: step.Describe(),
			Value:       step.DisplayValue(),
			Status:      StepSkipped,
		}
	}
	return steps
}
