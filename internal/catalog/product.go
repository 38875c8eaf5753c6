package catalog

import "github.com/shopspring/decimal"

// Product is the immutable catalog metadata plus a mirror of the live stock
// level taken when the snapshot was made.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Stock       int64           `json:"stock"`
}
