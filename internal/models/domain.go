package models

import (
	"time"

	"github.com/google/uuid"
)

// ReservationTTL is the lifetime of a checkout-line reservation. Once
// reserved_until passes, the row stops counting against availability; rows are
// never deleted on expiry, every query carries the time predicate instead.
const ReservationTTL = 15 * time.Minute

// Event types published through the outbox.
const (
	EventTypeReservationsCreated  = "reservations_created"
	EventTypeReservationsReleased = "reservations_released"
)

// Warehouse is an inventory location. Country routing (which warehouses serve
// which countries) is owned by warehouse management; this service only reads
// the mapping when selecting candidate stocks.
type Warehouse struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// Variant is a purchasable SKU. A variant with TracksInventory=false is
// exempt from every availability check and never holds reservations.
type Variant struct {
	ID              int64  `db:"id" json:"id"`
	ProductID       int64  `db:"product_id" json:"product_id"`
	SKU             string `db:"sku" json:"sku"`
	TracksInventory bool   `db:"tracks_inventory" json:"tracks_inventory"`
}

// Stock is the on-hand quantity of one variant in one warehouse. Rows are
// created and resized by warehouse management; this service only reads and
// locks them. The ascending ID is the global lock-acquisition order.
type Stock struct {
	ID          int64 `db:"id" json:"id"`
	WarehouseID int64 `db:"warehouse_id" json:"warehouse_id"`
	VariantID   int64 `db:"variant_id" json:"variant_id"`
	Quantity    int   `db:"quantity" json:"quantity"`
}

// Allocation is a permanent hold against a confirmed order line. Read-only
// input here; the order-confirmation flow owns the rows.
type Allocation struct {
	ID                int64     `db:"id" json:"id"`
	StockID           int64     `db:"stock_id" json:"stock_id"`
	OrderLineID       uuid.UUID `db:"order_line_id" json:"order_line_id"`
	QuantityAllocated int       `db:"quantity_allocated" json:"quantity_allocated"`
}

// Reservation is a temporary hold of stock for an in-progress checkout line.
type Reservation struct {
	ID               uuid.UUID `db:"id" json:"id"`
	CheckoutLineID   uuid.UUID `db:"checkout_line_id" json:"checkout_line_id"`
	StockID          int64     `db:"stock_id" json:"stock_id"`
	QuantityReserved int       `db:"quantity_reserved" json:"quantity_reserved"`
	ReservedUntil    time.Time `db:"reserved_until" json:"reserved_until"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// Expired reports whether the reservation no longer counts against
// availability at the given instant.
func (r Reservation) Expired(now time.Time) bool {
	return !r.ReservedUntil.After(now)
}

// CheckoutLineRequest is one line of a reservation batch. Transient input,
// never persisted.
type CheckoutLineRequest struct {
	CheckoutLineID uuid.UUID
	VariantID      int64
	Quantity       int
}

// StockEvent is the payload written to the outbox and relayed to Kafka when
// reservations change.
type StockEvent struct {
	EventID     string         `json:"event_id"`
	EventType   string         `json:"event_type"`
	CountryCode string         `json:"country_code"`
	Lines       []ReservedLine `json:"lines,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// ReservedLine summarizes one checkout line's holds inside a StockEvent.
type ReservedLine struct {
	CheckoutLineID uuid.UUID `json:"checkout_line_id"`
	VariantID      int64     `json:"variant_id"`
	Quantity       int       `json:"quantity"`
}
