package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/models"
)

// StockRepository handles database operations for stocks, allocations and
// reservations. All methods run on the transaction carried by the context
// when called inside WithTx.
type StockRepository struct {
	db *sqlx.DB
}

// NewStockRepository creates a new stock repository.
func NewStockRepository(db *sqlx.DB) *StockRepository {
	return &StockRepository{db: db}
}

// WithTx runs fn inside a database transaction.
func (r *StockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

// candidateStocksQuery selects the stock rows able to serve the given
// variants in a country, routed through the warehouse/country mapping owned
// by warehouse management. Ascending stock id is load-bearing: it is both the
// lock-acquisition order and the order demand is split across stocks.
const candidateStocksQuery = `
	SELECT s.id, s.warehouse_id, s.variant_id, s.quantity
	FROM stocks s
	JOIN warehouse_countries wc ON wc.warehouse_id = s.warehouse_id
	WHERE wc.country_code = $1 AND s.variant_id = ANY($2)
	ORDER BY s.id ASC`

// CandidateStocks returns every stock row serving the given variants in the
// given country, in ascending stock id order.
func (r *StockRepository) CandidateStocks(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error) {
	if len(variantIDs) == 0 {
		return nil, nil
	}

	var stocks []models.Stock
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &stocks, candidateStocksQuery, countryCode, pq.Array(variantIDs))
	if err != nil {
		log.Error().Err(err).Str("country_code", countryCode).Msg("Failed to get candidate stocks")
		return nil, fmt.Errorf("failed to get candidate stocks: %w", err)
	}

	return stocks, nil
}

// CandidateStocksForUpdate is CandidateStocks with exclusive row locks held
// until the surrounding transaction ends. ORDER BY id ASC fixes the lock
// acquisition order globally, which is what rules out circular waits between
// concurrent reservation batches.
func (r *StockRepository) CandidateStocksForUpdate(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error) {
	if txFromContext(ctx) == nil {
		return nil, fmt.Errorf("candidate stocks for update requires a transaction")
	}
	if len(variantIDs) == 0 {
		return nil, nil
	}

	query := candidateStocksQuery + `
	FOR UPDATE OF s`

	var stocks []models.Stock
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &stocks, query, countryCode, pq.Array(variantIDs))
	if err != nil {
		log.Error().Err(err).Str("country_code", countryCode).Msg("Failed to lock candidate stocks")
		return nil, fmt.Errorf("failed to lock candidate stocks: %w", err)
	}

	return stocks, nil
}

type stockSum struct {
	StockID  int64 `db:"stock_id"`
	Quantity int   `db:"quantity"`
}

// AllocatedByStock sums committed order allocations per stock in one query.
func (r *StockRepository) AllocatedByStock(ctx context.Context, stockIDs []int64) (map[int64]int, error) {
	allocated := make(map[int64]int, len(stockIDs))
	if len(stockIDs) == 0 {
		return allocated, nil
	}

	query := `
		SELECT stock_id, COALESCE(SUM(quantity_allocated), 0) AS quantity
		FROM allocations
		WHERE stock_id = ANY($1) AND quantity_allocated > 0
		GROUP BY stock_id`

	var sums []stockSum
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &sums, query, pq.Array(stockIDs))
	if err != nil {
		log.Error().Err(err).Msg("Failed to sum allocations")
		return nil, fmt.Errorf("failed to sum allocations: %w", err)
	}

	for _, s := range sums {
		allocated[s.StockID] = s.Quantity
	}
	return allocated, nil
}

// ReservedByStock sums non-expired reservations per stock in one query,
// skipping reservations held by the excluded checkout lines. Expiry is a
// predicate on reserved_until, never a background job.
func (r *StockRepository) ReservedByStock(ctx context.Context, stockIDs []int64, excludedLines []uuid.UUID, now time.Time) (map[int64]int, error) {
	reserved := make(map[int64]int, len(stockIDs))
	if len(stockIDs) == 0 {
		return reserved, nil
	}

	query := `
		SELECT stock_id, COALESCE(SUM(quantity_reserved), 0) AS quantity
		FROM reservations
		WHERE stock_id = ANY($1)
		  AND quantity_reserved > 0
		  AND reserved_until > $2
		  AND NOT (checkout_line_id = ANY($3))
		GROUP BY stock_id`

	var sums []stockSum
	err := sqlx.SelectContext(ctx, ext(ctx, r.db), &sums, query, pq.Array(stockIDs), now, pq.Array(uuidStrings(excludedLines)))
	if err != nil {
		log.Error().Err(err).Msg("Failed to sum reservations")
		return nil, fmt.Errorf("failed to sum reservations: %w", err)
	}

	for _, s := range sums {
		reserved[s.StockID] = s.Quantity
	}
	return reserved, nil
}

// DeleteReservationsForLines removes every reservation held by the given
// checkout lines and returns the number of rows dropped.
func (r *StockRepository) DeleteReservationsForLines(ctx context.Context, lineIDs []uuid.UUID) (int64, error) {
	if len(lineIDs) == 0 {
		return 0, nil
	}

	query := `DELETE FROM reservations WHERE checkout_line_id = ANY($1)`

	result, err := ext(ctx, r.db).ExecContext(ctx, query, pq.Array(uuidStrings(lineIDs)))
	if err != nil {
		log.Error().Err(err).Msg("Failed to delete reservations")
		return 0, fmt.Errorf("failed to delete reservations: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rowsAffected, nil
}

// InsertReservations bulk-inserts newly computed reservations.
func (r *StockRepository) InsertReservations(ctx context.Context, reservations []models.Reservation) error {
	if len(reservations) == 0 {
		return nil
	}

	query := `
		INSERT INTO reservations (id, checkout_line_id, stock_id, quantity_reserved, reserved_until, created_at)
		VALUES (:id, :checkout_line_id, :stock_id, :quantity_reserved, :reserved_until, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, ext(ctx, r.db), query, reservations); err != nil {
		log.Error().Err(err).Int("count", len(reservations)).Msg("Failed to insert reservations")
		return fmt.Errorf("failed to insert reservations: %w", err)
	}
	return nil
}

// InsertOutboxEvent records an event for the relay, joining the surrounding
// transaction when there is one.
func (r *StockRepository) InsertOutboxEvent(ctx context.Context, eventType, key string, payload interface{}) error {
	return insertOutboxEvent(ctx, ext(ctx, r.db), eventType, key, payload)
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
