package journal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jcmexdev/otel-orders/internal/pkg/telemetry"
)

// NewEntry builds an Entry with the trace info extracted from ctx.
//
//	entry := journal.NewEntry(ctx, pipelineID, journal.StatusStepDone, "inventory.reserve", "", nil)
//	_ = repo.Save(ctx, entry)
func NewEntry(
	ctx context.Context,
	pipelineID string,
	status Status,
	currentStep string,
	payload string,
	errs []string,
) *Entry {
	ti := telemetry.ExtractTraceInfo(ctx)

	errJSON := "[]"
	if len(errs) > 0 {
		if b, err := json.Marshal(errs); err == nil {
			errJSON = string(b)
		}
	}

	return &Entry{
		PipelineID:    pipelineID,
		Status:        status,
		CurrentStep:   currentStep,
		Payload:       payload,
		ErrorMessages: errJSON,
		TraceID:       ti.TraceID,
		SpanID:        ti.SpanID,
		UpdatedAt:     time.Now().UTC(),
	}
}
