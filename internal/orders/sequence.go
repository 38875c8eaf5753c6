package orders

import (
	"fmt"
	"sync/atomic"
	"time"
)

// OrderIDs hands out process-unique order ids of the form ORD<millis>_<seq>.
type OrderIDs struct{ seq atomic.Uint64 }

// Next returns the next order id. The sequence starts at 1.
func (g *OrderIDs) Next(now time.Time) string {
	return fmt.Sprintf("ORD%d_%d", now.UnixMilli(), g.seq.Add(1))
}
