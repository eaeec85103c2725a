package pipeline

import (
	"fmt"
	"time"

	"github.com/couchcryptid/polar-layers/internal/domain"
)

// Status is the outcome of one dataset in a run.
type Status string

const (
	StatusOK     Status = "ok"
	StatusEmpty  Status = "empty"
	StatusFailed Status = "failed"
)

// StageError attributes a failure to a stage and, for per-dataset stages, a
// dataset.
type StageError struct {
	Dataset domain.DatasetID
	Stage   string
	Err     error
}

func (e *StageError) Error() string {
	if e.Dataset == "" {
		return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
	}
	return fmt.Sprintf("%s: %s stage: %v", e.Dataset, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Result describes one dataset in a run.
type Result struct {
	Dataset  domain.DatasetID
	Status   Status
	Path     string
	Cells    int
	Duration time.Duration
	Err      error
}

// Report summarizes a run. Results are in catalog order.
type Report struct {
	RunID    string
	Started  time.Time
	Finished time.Time
	Results  []Result
}

// Count returns how many results have status s.
func (r Report) Count(s Status) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == s {
			n++
		}
	}
	return n
}

// Failed returns the per-dataset errors of the run.
func (r Report) Failed() []error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, res.Err)
		}
	}
	return errs
}
