package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yzy0806/saleor/internal/models"
)

// StockRepository defines the data operations of the availability and
// reservation engine. Methods are transaction-aware: inside WithTx the same
// repository runs every call on the transaction carried by the context, so a
// reservation batch locks, reads, and writes through one atomic unit.
type StockRepository interface {
	// WithTx runs fn inside a database transaction. The transaction commits
	// when fn returns nil and rolls back otherwise. Nested calls join the
	// surrounding transaction.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	// CandidateStocks returns every stock row able to serve the given
	// variants in the given country, in ascending stock id order. One query
	// regardless of how many variants are asked for.
	CandidateStocks(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error)

	// CandidateStocksForUpdate is CandidateStocks with exclusive row locks,
	// acquired in ascending stock id order for the duration of the
	// surrounding transaction. Must be called inside WithTx.
	CandidateStocksForUpdate(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error)

	// AllocatedByStock sums committed order allocations per stock.
	AllocatedByStock(ctx context.Context, stockIDs []int64) (map[int64]int, error)

	// ReservedByStock sums non-expired reservations per stock, skipping any
	// reservation belonging to one of excludedLines.
	ReservedByStock(ctx context.Context, stockIDs []int64, excludedLines []uuid.UUID, now time.Time) (map[int64]int, error)

	// DeleteReservationsForLines removes every reservation held by the given
	// checkout lines.
	DeleteReservationsForLines(ctx context.Context, lineIDs []uuid.UUID) (int64, error)

	// InsertReservations bulk-inserts newly computed reservations.
	InsertReservations(ctx context.Context, reservations []models.Reservation) error

	// InsertOutboxEvent records an event for the relay to publish. Joins the
	// surrounding transaction when called inside WithTx.
	InsertOutboxEvent(ctx context.Context, eventType, key string, payload interface{}) error
}

// VariantRepository reads variant catalog data.
type VariantRepository interface {
	// GetVariants returns the variants with the given ids in one query.
	// Missing ids are simply absent from the result.
	GetVariants(ctx context.Context, ids []int64) ([]models.Variant, error)

	// GetProductVariants returns all variants of a product.
	GetProductVariants(ctx context.Context, productID int64) ([]models.Variant, error)
}

// CacheRepository caches variant catalog rows. Stock quantities are never
// cached: availability must always come from a fresh snapshot.
type CacheRepository interface {
	GetVariant(ctx context.Context, id int64) (*models.Variant, error)
	SetVariant(ctx context.Context, variant *models.Variant) error
	DeleteVariant(ctx context.Context, id int64) error
	Close() error
}
