package orders

import (
	"context"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentReceipt is the outcome of a charge attempt.
type PaymentReceipt struct {
	Approved      bool
	TransactionID string
}

// PaymentProcessor charges an amount. A declined charge is a receipt with
// Approved=false, not an error.
type PaymentProcessor interface {
	Charge(ctx context.Context, amount decimal.Decimal) (PaymentReceipt, error)
}

// PaymentFunc adapts a function to PaymentProcessor.
type PaymentFunc func(ctx context.Context, amount decimal.Decimal) (PaymentReceipt, error)

// Charge calls f.
func (f PaymentFunc) Charge(ctx context.Context, amount decimal.Decimal) (PaymentReceipt, error) {
	return f(ctx, amount)
}

// SimulatedPayments approves each charge independently with a fixed
// probability.
type SimulatedPayments struct {
	successRate float64
}

// NewSimulatedPayments returns a processor approving successRate of charges.
func NewSimulatedPayments(successRate float64) *SimulatedPayments {
	return &SimulatedPayments{successRate: successRate}
}

// Charge draws the outcome; no retries.
func (p *SimulatedPayments) Charge(_ context.Context, _ decimal.Decimal) (PaymentReceipt, error) {
	return PaymentReceipt{
		Approved:      rand.Float64() < p.successRate,
		TransactionID: uuid.NewString(),
	}, nil
}

// Latency is a bounded random delay.
type Latency struct {
	Min, Max time.Duration
}

func (l Latency) pick() time.Duration {
	if l.Max <= l.Min {
		return l.Min
	}
	return l.Min + rand.N(l.Max-l.Min)
}
