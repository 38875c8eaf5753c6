package orders

import "context"

// ResultStore keeps successful order results for later lookup by order id.
type ResultStore interface {
	Save(ctx context.Context, result OrderResult) error
	Find(ctx context.Context, orderID string) (OrderResult, bool, error)
}

// Publisher delivers a serialised event. Implementations are expected to
// carry the trace context of ctx along with the message.
type Publisher interface {
	Publish(ctx context.Context, body []byte) error
}
