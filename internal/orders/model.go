package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity accepted in a single order.
const MaxQuantity = 100

// Outcome is the terminal tag of one pipeline execution.
type Outcome string

const (
	OutcomeSuccess               Outcome = "success"
	OutcomeValidationFailed      Outcome = "validation_failed"
	OutcomeProductNotFound       Outcome = "product_not_found"
	OutcomePaymentFailed         Outcome = "payment_failed"
	OutcomeInsufficientInventory Outcome = "insufficient_inventory"
	OutcomeInternalError         Outcome = "internal_error"
)

// OrderRequest is an inbound order. Nil pointers mean the field was absent.
type OrderRequest struct {
	ProductID *int64 `json:"productId"`
	Quantity  *int   `json:"quantity"`
	UserID    string `json:"userId,omitempty"`
	Remarks   string `json:"remarks,omitempty"`
}

// OrderResult is produced exactly once per request.
type OrderResult struct {
	Success         bool            `json:"success"`
	Message         string          `json:"message"`
	Outcome         Outcome         `json:"outcome"`
	OrderID         string          `json:"orderId,omitempty"`
	ProductID       int64           `json:"productId,omitempty"`
	ProductName     string          `json:"productName,omitempty"`
	QuantityOrdered int             `json:"quantityOrdered,omitempty"`
	TotalAmount     decimal.Decimal `json:"totalAmount"`
	RemainingStock  int64           `json:"remainingStock"`
	OrderTime       time.Time       `json:"orderTime"`
}

// Failure is an expected, modelled pipeline outcome such as a declined
// payment. Steps return it as an error; the pipeline turns it into an
// OrderResult instead of a fault.
type Failure struct {
	Outcome Outcome
	Message string
}

func (f *Failure) Error() string { return f.Message }

func failure(outcome Outcome, message string) *Failure {
	return &Failure{Outcome: outcome, Message: message}
}

func failedResult(outcome Outcome, message string, at time.Time) OrderResult {
	return OrderResult{
		Success:   false,
		Message:   message,
		Outcome:   outcome,
		OrderTime: at,
	}
}

// OrderPlaced is published after a successful order.
type OrderPlaced struct {
	OrderID     string          `json:"orderId"`
	ProductID   int64           `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
	UserID      string          `json:"userId"`
	PlacedAt    time.Time       `json:"placedAt"`
}
