// Package ledger holds the aggregation primitives behind every availability
// number this service reports. All functions are pure: they operate on stock
// rows plus per-stock allocation and reservation sums already scoped by the
// caller (candidate stocks for a variant set and country, reservation sums
// filtered for expiry and excluded checkout lines at query time).
package ledger

import "github.com/yzy0806/saleor/internal/models"

// TotalQuantity sums the on-hand quantity of the given stocks.
func TotalQuantity(stocks []models.Stock) int {
	total := 0
	for _, s := range stocks {
		total += s.Quantity
	}
	return total
}

// AllocatedQuantity sums committed order allocations over the given stocks.
func AllocatedQuantity(stocks []models.Stock, allocatedByStock map[int64]int) int {
	total := 0
	for _, s := range stocks {
		total += allocatedByStock[s.ID]
	}
	return total
}

// ReservedQuantity sums live checkout holds over the given stocks. The map
// must already exclude expired reservations and any checkout lines the caller
// asked to ignore.
func ReservedQuantity(stocks []models.Stock, reservedByStock map[int64]int) int {
	total := 0
	for _, s := range stocks {
		total += reservedByStock[s.ID]
	}
	return total
}

// AvailableQuantity is total minus allocated minus reserved, clamped at zero.
// The clamp matters: allocations are written by an external flow and can
// transiently exceed on-hand quantity.
func AvailableQuantity(stocks []models.Stock, allocatedByStock, reservedByStock map[int64]int) int {
	available := TotalQuantity(stocks) - AllocatedQuantity(stocks, allocatedByStock) - ReservedQuantity(stocks, reservedByStock)
	if available < 0 {
		return 0
	}
	return available
}

// AvailableInStock is the per-stock form of AvailableQuantity, used when
// splitting one requested quantity across a variant's stocks.
func AvailableInStock(stock models.Stock, allocatedByStock, reservedByStock map[int64]int) int {
	available := stock.Quantity - allocatedByStock[stock.ID] - reservedByStock[stock.ID]
	if available < 0 {
		return 0
	}
	return available
}
