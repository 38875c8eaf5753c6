package httpx

import (
	"encoding/json"
	"time"

	"github.com/jcmexdev/otel-orders/internal/coordinator/journal"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

type StockUpdateResponse struct {
	Success     bool   `json:"success"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	NewStock    int64  `json:"newStock"`
	Message     string `json:"message"`
}

type HealthResponse struct {
	Status        string `json:"status"`
	Timestamp     int64  `json:"timestamp"`
	TraceID       string `json:"traceId"`
	TotalProducts int    `json:"totalProducts"`
	TotalStock    int64  `json:"totalStock"`
}

type JournalEntryResponse struct {
	PipelineID  string    `json:"pipelineId"`
	Status      string    `json:"status"`
	CurrentStep string    `json:"currentStep,omitempty"`
	Payload     string    `json:"payload,omitempty"`
	Errors      []string  `json:"errors"`
	TraceID     string    `json:"traceId"`
	SpanID      string    `json:"spanId"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type PipelineResponse struct {
	PipelineID  string                 `json:"pipelineId"`
	Status      string                 `json:"status"`
	CurrentStep string                 `json:"currentStep,omitempty"`
	UpdatedAt   time.Time              `json:"updatedAt"`
	History     []JournalEntryResponse `json:"history"`
}

func newJournalEntries(entries []*journal.Entry) []JournalEntryResponse {
	out := make([]JournalEntryResponse, 0, len(entries))
	for _, e := range entries {
		errs := []string{}
		_ = json.Unmarshal([]byte(e.ErrorMessages), &errs)
		out = append(out, JournalEntryResponse{
			PipelineID:  e.PipelineID,
			Status:      string(e.Status),
			CurrentStep: e.CurrentStep,
			Payload:     e.Payload,
			Errors:      errs,
			TraceID:     e.TraceID,
			SpanID:      e.SpanID,
			UpdatedAt:   e.UpdatedAt,
		})
	}
	return out
}
