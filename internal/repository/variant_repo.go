package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/models"
)

// VariantRepository reads variant catalog data owned by product management.
type VariantRepository struct {
	db *sqlx.DB
}

// NewVariantRepository creates a new variant repository.
func NewVariantRepository(db *sqlx.DB) *VariantRepository {
	return &VariantRepository{db: db}
}

// GetVariants returns the variants with the given ids in one query. Missing
// ids are simply absent from the result.
func (r *VariantRepository) GetVariants(ctx context.Context, ids []int64) ([]models.Variant, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, product_id, sku, tracks_inventory
		FROM variants
		WHERE id = ANY($1)`

	var variants []models.Variant
	if err := r.db.SelectContext(ctx, &variants, query, pq.Array(ids)); err != nil {
		log.Error().Err(err).Msg("Failed to get variants")
		return nil, fmt.Errorf("failed to get variants: %w", err)
	}

	return variants, nil
}

// GetProductVariants returns all variants of a product.
func (r *VariantRepository) GetProductVariants(ctx context.Context, productID int64) ([]models.Variant, error) {
	query := `
		SELECT id, product_id, sku, tracks_inventory
		FROM variants
		WHERE product_id = $1
		ORDER BY id ASC`

	var variants []models.Variant
	if err := r.db.SelectContext(ctx, &variants, query, productID); err != nil {
		log.Error().Err(err).Int64("product_id", productID).Msg("Failed to get product variants")
		return nil, fmt.Errorf("failed to get product variants: %w", err)
	}

	return variants, nil
}
