// Package coordinator runs an ordered list of steps, each inside its own
// child span, stopping at the first failure.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"
)

// Step represents a single unit of work in the pipeline. Name doubles as the
// span name.
type Step interface {
	Name() string
	Execute(ctx context.Context) error
}

// PanicError wraps a value recovered from a panicking step.
type PanicError struct {
	Step  string
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("step %s panicked: %v", e.Step, e.Value)
}

// Orchestrator manages the execution of a collection of Steps.
type Orchestrator struct {
	id      string
	tracer  trace.Tracer
	steps   []Step
	journal journal.Repository
	payload string
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithJournal appends a journal row for every transition. payload is stored
// once on the STARTED row.
func WithJournal(repo journal.Repository, payload string) Option {
	return func(o *Orchestrator) {
		o.journal = repo
		o.payload = payload
	}
}

// NewOrchestrator builds an orchestrator for one pipeline execution
// identified by id.
func NewOrchestrator(id string, tracer trace.Tracer, steps []Step, opts ...Option) *Orchestrator {
	o := &Orchestrator{id: id, tracer: tracer, steps: steps}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start runs the steps sequentially. The first failing step's error is
// returned and the remaining steps are skipped.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.record(ctx, journal.StatusStarted, "", o.payload, nil)

	for _, step := range o.steps {
		slog.DebugContext(ctx, "executing step", "pipeline_id", o.id, "step", step.Name())
		if err := o.runStep(ctx, step); err != nil {
			slog.InfoContext(ctx, "step failed", "pipeline_id", o.id, "step", step.Name(), "error", err)
			return err
		}
	}

	o.record(ctx, journal.StatusCompleted, "", "", nil)
	return nil
}

// runStep opens the step span, runs the step and closes the span on every
// exit path. A panic inside the step is returned as *PanicError.
func (o *Orchestrator) runStep(ctx context.Context, step Step) (err error) {
	ctx, span := o.tracer.Start(ctx, step.Name())
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Step: step.Name(), Value: r}
			span.RecordError(err, trace.WithStackTrace(true))
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			o.record(ctx, journal.StatusFailed, step.Name(), "", []string{err.Error()})
		} else {
			span.SetStatus(codes.Ok, "")
			o.record(ctx, journal.StatusStepDone, step.Name(), "", nil)
		}
		span.End()
	}()

	return step.Execute(ctx)
}

func (o *Orchestrator) record(ctx context.Context, status journal.Status, step, payload string, errs []string) {
	if o.journal == nil {
		return
	}
	entry := journal.NewEntry(ctx, o.id, status, step, payload, errs)
	if err := o.journal.Save(ctx, entry); err != nil {
		slog.WarnContext(ctx, "journal write failed", "pipeline_id", o.id, "status", status, "error", err)
	}
}
