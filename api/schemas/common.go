package schemas

import (
	"time"
)

// -- Result Schemas --

// Status is the outcome of a single test invocation.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"  // an assertion did not hold
	StatusError   Status = "error"   // the remote end or transport broke
	StatusSkipped Status = "skipped" // filtered out or a dependency did not pass
)

// TestResult holds the outcome of one leaf of the suite tree.
type TestResult struct {
	Suite    string        `json:"suite"`
	Name     string        `json:"name"`
	Browser  string        `json:"browser,omitempty"`
	Script   string        `json:"script,omitempty"`
	Groups   []string      `json:"groups,omitempty"`
	Status   Status        `json:"status"`
	Message  string        `json:"message,omitempty"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
}

// RunReport is the top level wrapper for all results from one suite run.
type RunReport struct {
	RunID    string        `json:"run_id"`
	Suite    string        `json:"suite"`
	Started  time.Time     `json:"started"`
	Duration time.Duration `json:"duration"`
	Results  []TestResult  `json:"results"`
}

// Counts tallies results by status.
func (r *RunReport) Counts() map[Status]int {
	counts := make(map[Status]int, 4)
	for _, res := range r.Results {
		counts[res.Status]++
	}
	return counts
}

// Succeeded reports whether no test failed or errored.
func (r *RunReport) Succeeded() bool {
	c := r.Counts()
	return c[StatusFailed] == 0 && c[StatusError] == 0
}
