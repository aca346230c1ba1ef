package models

import (
	"time"

	"github.com/google/uuid"
)

// API request models

// ReserveLineRequest is one line of a reservation batch as posted over HTTP.
type ReserveLineRequest struct {
	CheckoutLineID uuid.UUID `json:"checkout_line_id" binding:"required"`
	VariantID      int64     `json:"variant_id" binding:"required"`
	Quantity       int       `json:"quantity" binding:"required,min=1"`
}

// ReserveStocksRequest is the body of POST /reservations.
type ReserveStocksRequest struct {
	CountryCode string               `json:"country_code" binding:"required,len=2"`
	Lines       []ReserveLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// StockCheckLine is one variant/quantity pair of a bulk stock check. Quantity
// zero is allowed; a tracked variant with no stock rows still fails the check.
type StockCheckLine struct {
	VariantID int64 `json:"variant_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"min=0"`
}

// StockCheckRequest is the body of POST /stock-checks.
type StockCheckRequest struct {
	CountryCode string           `json:"country_code" binding:"required,len=2"`
	Lines       []StockCheckLine `json:"lines" binding:"required,min=1,dive"`
}

// API response models

// AvailabilityResponse reports the purchasable quantity of a variant in a
// country at the time of the read.
type AvailabilityResponse struct {
	VariantID         int64     `json:"variant_id"`
	CountryCode       string    `json:"country_code"`
	AvailableQuantity int       `json:"available_quantity"`
	CheckedAt         time.Time `json:"checked_at"`
}

// ProductStockResponse reports whether any variant of a product is in stock.
type ProductStockResponse struct {
	ProductID   int64  `json:"product_id"`
	CountryCode string `json:"country_code"`
	InStock     bool   `json:"in_stock"`
}

// ReservationLineResponse is one persisted reservation row.
type ReservationLineResponse struct {
	ReservationID  uuid.UUID `json:"reservation_id"`
	CheckoutLineID uuid.UUID `json:"checkout_line_id"`
	StockID        int64     `json:"stock_id"`
	Quantity       int       `json:"quantity"`
	ReservedUntil  time.Time `json:"reserved_until"`
}

// ReserveStocksResponse is the 201 body of POST /reservations.
type ReserveStocksResponse struct {
	CountryCode  string                    `json:"country_code"`
	Reservations []ReservationLineResponse `json:"reservations"`
}
