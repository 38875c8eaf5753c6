// Package journal defines the audit trail written while an order pipeline runs.
//
// Every stage transition appends one row carrying the trace and span ids that
// were active at the time, so a row can be joined with the distributed trace
// and a trace can be mapped back to the business outcome.
package journal

import "time"

// Status represents the lifecycle state of a pipeline execution.
type Status string

const (
	StatusStarted   Status = "STARTED"
	StatusStepDone  Status = "STEP_DONE"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

// Entry is a single row of the journal.
type Entry struct {
	// PipelineID identifies one execution of the pipeline.
	PipelineID string

	Status Status

	// CurrentStep is the name of the step that was just executed or failed.
	CurrentStep string

	// Payload is the JSON-serialised request. Written once on STARTED.
	Payload string

	// ErrorMessages is a JSON array of failure details.
	ErrorMessages string

	TraceID string
	SpanID  string

	UpdatedAt time.Time
}
