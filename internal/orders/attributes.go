package orders

import "go.opentelemetry.io/otel/attribute"

// Span names.
const (
	SpanProcess           = "order.process"
	SpanProcessAsync      = "order.process_async"
	SpanValidate          = "order.validate"
	SpanCheckAvailability = "product.check_availability"
	SpanPayment           = "payment.process"
	SpanInventoryReserve  = "inventory.reserve"
)

// Span attribute keys.
var (
	AttrOrderID         = attribute.Key("order.id")
	AttrPipelineID      = attribute.Key("pipeline.id")
	AttrProductID       = attribute.Key("product.id")
	AttrProductName     = attribute.Key("product.name")
	AttrQuantity        = attribute.Key("order.quantity")
	AttrUserID          = attribute.Key("user.id")
	AttrOperationResult = attribute.Key("operation.result")
	AttrErrorMessage    = attribute.Key("error.message")
	AttrPaymentAmount   = attribute.Key("payment.amount")
	AttrPaymentCurrency = attribute.Key("payment.currency")
	AttrPaymentTxID     = attribute.Key("payment.transaction_id")
)

// Baggage keys established at pipeline entry.
const (
	BaggageUserID           = "user.id"
	BaggageOperationType    = "operation.type"
	BaggageRequestTimestamp = "request.timestamp"

	operationTypeProductOrder = "product_order"
	anonymousUser             = "anonymous"
)
