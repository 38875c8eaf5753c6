package telemetry

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel/baggage"
)

// WithBaggage returns a context whose baggage is the baggage of ctx plus the
// given key/value pairs. The parent baggage is never modified. Pairs that the
// W3C rules reject are logged and skipped.
func WithBaggage(ctx context.Context, kv ...string) context.Context {
	bag := baggage.FromContext(ctx)
	for i := 0; i+1 < len(kv); i += 2 {
		member, err := baggage.NewMemberRaw(kv[i], kv[i+1])
		if err != nil {
			slog.WarnContext(ctx, "invalid baggage member", "key", kv[i], "error", err)
			continue
		}
		next, err := bag.SetMember(member)
		if err != nil {
			slog.WarnContext(ctx, "baggage member rejected", "key", kv[i], "error", err)
			continue
		}
		bag = next
	}
	return baggage.ContextWithBaggage(ctx, bag)
}

// BaggageValue returns the baggage value stored under key, or "".
func BaggageValue(ctx context.Context, key string) string {
	return baggage.FromContext(ctx).Member(key).Value()
}
