package model

import (
	"fmt"

	"github.com/google/uuid"
)

// maxReportExamples bounds the number of example inputs kept per report.
const maxReportExamples = 20

// RunReport accumulates counts and examples of non-fatal issues over one
// resolution run, instead of raising them mid-batch.
type RunReport struct {
	RunID          uuid.UUID `json:"run_id"`
	MentionsLoaded int       `json:"mentions_loaded"`
	SkippedInvalid int       `json:"skipped_invalid"`
	ParseFailures  int       `json:"parse_failures"`
	Blocks         int       `json:"blocks"`
	Pairs          int       `json:"pairs"`
	Merged         int       `json:"merged"`
	Review         int       `json:"review"`
	Discarded      int       `json:"discarded"`
	Entities       int       `json:"entities"`
	Suppressed     int       `json:"suppressed"`
	Examples       []string  `json:"examples,omitempty"`
}

// NewRunReport creates an empty report for the given run.
func NewRunReport(runID uuid.UUID) *RunReport {
	return &RunReport{RunID: runID}
}

// AddExample records a bounded example of a skipped or failed input.
func (r *RunReport) AddExample(format string, args ...interface{}) {
	if len(r.Examples) >= maxReportExamples {
		return
	}
	r.Examples = append(r.Examples, fmt.Sprintf(format, args...))
}
