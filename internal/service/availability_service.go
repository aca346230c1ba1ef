package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/clock"
	"github.com/yzy0806/saleor/internal/interfaces"
	"github.com/yzy0806/saleor/internal/ledger"
	"github.com/yzy0806/saleor/internal/models"
)

// AvailabilityService answers "how much of this variant is purchasable in
// this country" without taking locks. Reads are snapshots: they may race with
// an in-flight reservation commit and transiently under-report, but they use
// the same expiry-aware aggregation as writes and never over-report.
type AvailabilityService struct {
	stocks   interfaces.StockRepository
	variants interfaces.VariantRepository
	cache    interfaces.CacheRepository
	clock    clock.Clock
}

// NewAvailabilityService creates a new availability service.
func NewAvailabilityService(
	stocks interfaces.StockRepository,
	variants interfaces.VariantRepository,
	cache interfaces.CacheRepository,
	clk clock.Clock,
) *AvailabilityService {
	return &AvailabilityService{
		stocks:   stocks,
		variants: variants,
		cache:    cache,
		clock:    clk,
	}
}

// GetAvailableQuantity returns the purchasable quantity of a variant in a
// country: on-hand stock minus committed allocations minus other shoppers'
// live holds, clamped at zero. Reservations held by excludedLines are ignored
// so a line can ask "how much is available as if my own hold didn't exist".
func (s *AvailabilityService) GetAvailableQuantity(ctx context.Context, variantID int64, countryCode string, excludedLines []uuid.UUID) (int, error) {
	stocks, err := s.stocks.CandidateStocks(ctx, countryCode, []int64{variantID})
	if err != nil {
		return 0, err
	}
	if len(stocks) == 0 {
		return 0, nil
	}

	allocated, reserved, err := s.stockBaselines(ctx, stocks, excludedLines)
	if err != nil {
		return 0, err
	}

	return ledger.AvailableQuantity(stocks, allocated, reserved), nil
}

// IsProductInStock reports whether any variant of the product has a positive
// available quantity in the given country.
func (s *AvailabilityService) IsProductInStock(ctx context.Context, productID int64, countryCode string) (bool, error) {
	variants, err := s.variants.GetProductVariants(ctx, productID)
	if err != nil {
		return false, err
	}
	if len(variants) == 0 {
		return false, models.ErrProductNotFound
	}

	variantIDs := make([]int64, 0, len(variants))
	for _, v := range variants {
		variantIDs = append(variantIDs, v.ID)
	}

	stocks, err := s.stocks.CandidateStocks(ctx, countryCode, variantIDs)
	if err != nil {
		return false, err
	}
	if len(stocks) == 0 {
		return false, nil
	}

	allocated, reserved, err := s.stockBaselines(ctx, stocks, nil)
	if err != nil {
		return false, err
	}

	for variantID, variantStocks := range groupStocksByVariant(stocks) {
		if ledger.AvailableQuantity(variantStocks, allocated, reserved) > 0 {
			log.Debug().Int64("product_id", productID).Int64("variant_id", variantID).Msg("Product in stock")
			return true, nil
		}
	}
	return false, nil
}

// CheckStockQuantity validates that the requested quantity of a variant is
// available in the given country. Variants that do not track inventory always
// pass. Zero candidate stocks or a shortfall fail with the aggregated fault.
func (s *AvailabilityService) CheckStockQuantity(ctx context.Context, variantID int64, countryCode string, quantity int, excludedLines []uuid.UUID) error {
	variant, err := s.getVariant(ctx, variantID)
	if err != nil {
		return err
	}
	if !variant.TracksInventory {
		return nil
	}

	stocks, err := s.stocks.CandidateStocks(ctx, countryCode, []int64{variantID})
	if err != nil {
		return err
	}
	if len(stocks) == 0 {
		return &models.InsufficientStockError{Items: []models.InsufficientStockData{{VariantID: variantID}}}
	}

	allocated, reserved, err := s.stockBaselines(ctx, stocks, excludedLines)
	if err != nil {
		return err
	}

	if quantity > ledger.AvailableQuantity(stocks, allocated, reserved) {
		return &models.InsufficientStockError{Items: []models.InsufficientStockData{{VariantID: variantID}}}
	}
	return nil
}

// CheckStockQuantityBulk validates every (variant, quantity) pair against the
// given country with one batched round of aggregation queries, not one round
// per variant. Every pair is evaluated; all shortfalls come back in a single
// aggregated fault. A tracked variant with zero candidate stocks is always
// insufficient, even for a requested quantity of zero.
func (s *AvailabilityService) CheckStockQuantityBulk(ctx context.Context, variantIDs []int64, countryCode string, quantities []int, excludedLines []uuid.UUID) error {
	if len(variantIDs) != len(quantities) {
		return fmt.Errorf("variant and quantity counts do not match: %d != %d", len(variantIDs), len(quantities))
	}
	if len(variantIDs) == 0 {
		return nil
	}

	variants, err := s.variants.GetVariants(ctx, variantIDs)
	if err != nil {
		return err
	}
	variantsByID := make(map[int64]models.Variant, len(variants))
	for _, v := range variants {
		variantsByID[v.ID] = v
	}
	for _, id := range variantIDs {
		if _, ok := variantsByID[id]; !ok {
			return fmt.Errorf("variant %d: %w", id, models.ErrVariantNotFound)
		}
	}

	stocks, err := s.stocks.CandidateStocks(ctx, countryCode, variantIDs)
	if err != nil {
		return err
	}

	allocated, reserved, err := s.stockBaselines(ctx, stocks, excludedLines)
	if err != nil {
		return err
	}
	stocksByVariant := groupStocksByVariant(stocks)

	var insufficient []models.InsufficientStockData
	for i, variantID := range variantIDs {
		variant := variantsByID[variantID]
		if !variant.TracksInventory {
			continue
		}

		variantStocks := stocksByVariant[variantID]
		available := ledger.AvailableQuantity(variantStocks, allocated, reserved)

		if len(variantStocks) == 0 || quantities[i] > available {
			availableCopy := available
			insufficient = append(insufficient, models.InsufficientStockData{
				VariantID:         variantID,
				AvailableQuantity: &availableCopy,
			})
		}
	}

	if len(insufficient) > 0 {
		return &models.InsufficientStockError{Items: insufficient}
	}
	return nil
}

// stockBaselines runs the two per-country aggregation queries behind every
// availability number: one for committed allocations, one for live holds.
func (s *AvailabilityService) stockBaselines(ctx context.Context, stocks []models.Stock, excludedLines []uuid.UUID) (map[int64]int, map[int64]int, error) {
	stockIDs := make([]int64, 0, len(stocks))
	for _, st := range stocks {
		stockIDs = append(stockIDs, st.ID)
	}

	allocated, err := s.stocks.AllocatedByStock(ctx, stockIDs)
	if err != nil {
		return nil, nil, err
	}

	reserved, err := s.stocks.ReservedByStock(ctx, stockIDs, excludedLines, s.clock.Now())
	if err != nil {
		return nil, nil, err
	}

	return allocated, reserved, nil
}

// getVariant resolves one variant, consulting the catalog cache first.
func (s *AvailabilityService) getVariant(ctx context.Context, variantID int64) (*models.Variant, error) {
	if cached, err := s.cache.GetVariant(ctx, variantID); err != nil {
		log.Debug().Err(err).Int64("variant_id", variantID).Msg("Variant cache unavailable, falling back to database")
	} else if cached != nil {
		return cached, nil
	}

	variants, err := s.variants.GetVariants(ctx, []int64{variantID})
	if err != nil {
		return nil, err
	}
	if len(variants) == 0 {
		return nil, fmt.Errorf("variant %d: %w", variantID, models.ErrVariantNotFound)
	}

	variant := variants[0]
	if err := s.cache.SetVariant(ctx, &variant); err != nil {
		log.Debug().Err(err).Int64("variant_id", variantID).Msg("Failed to cache variant")
	}
	return &variant, nil
}

// groupStocksByVariant buckets stocks per variant, preserving the ascending
// stock id order of the input.
func groupStocksByVariant(stocks []models.Stock) map[int64][]models.Stock {
	byVariant := make(map[int64][]models.Stock)
	for _, st := range stocks {
		byVariant[st.VariantID] = append(byVariant[st.VariantID], st)
	}
	return byVariant
}
