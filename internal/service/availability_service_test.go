package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/yzy0806/saleor/internal/clock"
	"github.com/yzy0806/saleor/internal/models"
)

type availabilityFixture struct {
	stockRepo   *MockStockRepository
	variantRepo *MockVariantRepository
	cache       *MockCacheRepository
	service     *AvailabilityService
	now         time.Time
}

func newAvailabilityFixture(t *testing.T) *availabilityFixture {
	t.Helper()

	stockRepo := new(MockStockRepository)
	variantRepo := new(MockVariantRepository)
	cache := new(MockCacheRepository)
	now := time.Date(2024, 5, 14, 12, 0, 0, 0, time.UTC)

	return &availabilityFixture{
		stockRepo:   stockRepo,
		variantRepo: variantRepo,
		cache:       cache,
		service:     NewAvailabilityService(stockRepo, variantRepo, cache, clock.NewFixed(now)),
		now:         now,
	}
}

func TestGetAvailableQuantity(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).
		Return([]models.Stock{
			{ID: 1, VariantID: 10, Quantity: 10},
			{ID: 2, VariantID: 10, Quantity: 5},
		}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1, 2}).
		Return(map[int64]int{1: 3}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1, 2}, []uuid.UUID(nil), f.now).
		Return(map[int64]int{2: 4}, nil)

	quantity, err := f.service.GetAvailableQuantity(context.Background(), 10, "US", nil)

	require.NoError(t, err)
	assert.Equal(t, 8, quantity)
}

func TestGetAvailableQuantity_NoStocks(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.stockRepo.On("CandidateStocks", mock.Anything, "DE", []int64{10}).Return([]models.Stock(nil), nil)

	quantity, err := f.service.GetAvailableQuantity(context.Background(), 10, "DE", nil)

	require.NoError(t, err)
	assert.Equal(t, 0, quantity)
	f.stockRepo.AssertNotCalled(t, "AllocatedByStock", mock.Anything, mock.Anything)
}

func TestIsProductInStock(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.variantRepo.On("GetProductVariants", mock.Anything, int64(1)).
		Return([]models.Variant{{ID: 10, ProductID: 1, TracksInventory: true}}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).
		Return([]models.Stock{{ID: 1, VariantID: 10, Quantity: 1}}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1}).Return(map[int64]int{}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1}, []uuid.UUID(nil), f.now).Return(map[int64]int{}, nil)

	inStock, err := f.service.IsProductInStock(context.Background(), 1, "US")

	require.NoError(t, err)
	assert.True(t, inStock)
}

func TestIsProductInStock_FullyHeld(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.variantRepo.On("GetProductVariants", mock.Anything, int64(1)).
		Return([]models.Variant{{ID: 10, ProductID: 1, TracksInventory: true}}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).
		Return([]models.Stock{{ID: 1, VariantID: 10, Quantity: 5}}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1}).Return(map[int64]int{1: 2}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1}, []uuid.UUID(nil), f.now).Return(map[int64]int{1: 3}, nil)

	inStock, err := f.service.IsProductInStock(context.Background(), 1, "US")

	require.NoError(t, err)
	assert.False(t, inStock)
}

func TestIsProductInStock_UnknownProduct(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.variantRepo.On("GetProductVariants", mock.Anything, int64(99)).Return([]models.Variant(nil), nil)

	_, err := f.service.IsProductInStock(context.Background(), 99, "US")

	assert.ErrorIs(t, err, models.ErrProductNotFound)
}

func TestCheckStockQuantity_UntrackedVariantPasses(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.cache.On("GetVariant", mock.Anything, int64(10)).
		Return(&models.Variant{ID: 10, TracksInventory: false}, nil)

	err := f.service.CheckStockQuantity(context.Background(), 10, "US", 1_000_000, nil)

	assert.NoError(t, err)
	f.stockRepo.AssertNotCalled(t, "CandidateStocks", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStockQuantity_NoStocksIsInsufficient(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.cache.On("GetVariant", mock.Anything, int64(10)).
		Return(&models.Variant{ID: 10, TracksInventory: true}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).Return([]models.Stock(nil), nil)

	err := f.service.CheckStockQuantity(context.Background(), 10, "US", 0, nil)

	// A tracked variant with no stocks in the country fails even at zero.
	ise, ok := models.IsInsufficientStock(err)
	require.True(t, ok)
	require.Len(t, ise.Items, 1)
	assert.Equal(t, int64(10), ise.Items[0].VariantID)
}

func TestCheckStockQuantity_Shortfall(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.cache.On("GetVariant", mock.Anything, int64(10)).
		Return(&models.Variant{ID: 10, TracksInventory: true}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).
		Return([]models.Stock{{ID: 1, VariantID: 10, Quantity: 4}}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1}).Return(map[int64]int{}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1}, []uuid.UUID(nil), f.now).Return(map[int64]int{1: 2}, nil)

	err := f.service.CheckStockQuantity(context.Background(), 10, "US", 3, nil)

	_, ok := models.IsInsufficientStock(err)
	assert.True(t, ok)
}

func TestCheckStockQuantityBulk(t *testing.T) {
	f := newAvailabilityFixture(t)
	variantIDs := []int64{10, 20, 30}
	quantities := []int{2, 5, 99}

	f.variantRepo.On("GetVariants", mock.Anything, variantIDs).
		Return([]models.Variant{
			{ID: 10, TracksInventory: true},
			{ID: 20, TracksInventory: true},
			{ID: 30, TracksInventory: false},
		}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", variantIDs).
		Return([]models.Stock{
			{ID: 1, VariantID: 10, Quantity: 5},
			{ID: 2, VariantID: 20, Quantity: 3},
		}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1, 2}).Return(map[int64]int{}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1, 2}, []uuid.UUID(nil), f.now).Return(map[int64]int{}, nil)

	err := f.service.CheckStockQuantityBulk(context.Background(), variantIDs, "US", quantities, nil)

	// Variant 20 falls short, variant 30 is untracked and exempt despite the
	// absurd quantity, variant 10 passes.
	ise, ok := models.IsInsufficientStock(err)
	require.True(t, ok)
	require.Len(t, ise.Items, 1)
	assert.Equal(t, int64(20), ise.Items[0].VariantID)
	require.NotNil(t, ise.Items[0].AvailableQuantity)
	assert.Equal(t, 3, *ise.Items[0].AvailableQuantity)

	// One query per concern for the whole batch, not one per variant.
	f.variantRepo.AssertNumberOfCalls(t, "GetVariants", 1)
	f.stockRepo.AssertNumberOfCalls(t, "CandidateStocks", 1)
	f.stockRepo.AssertNumberOfCalls(t, "AllocatedByStock", 1)
	f.stockRepo.AssertNumberOfCalls(t, "ReservedByStock", 1)
}

func TestCheckStockQuantityBulk_ZeroQuantityZeroStocks(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.variantRepo.On("GetVariants", mock.Anything, []int64{10}).
		Return([]models.Variant{{ID: 10, TracksInventory: true}}, nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "FR", []int64{10}).Return([]models.Stock(nil), nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{}).Return(map[int64]int{}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{}, []uuid.UUID(nil), f.now).Return(map[int64]int{}, nil)

	err := f.service.CheckStockQuantityBulk(context.Background(), []int64{10}, "FR", []int{0}, nil)

	ise, ok := models.IsInsufficientStock(err)
	require.True(t, ok)
	require.Len(t, ise.Items, 1)
	assert.Equal(t, 0, *ise.Items[0].AvailableQuantity)
}

func TestCheckStockQuantityBulk_UnknownVariant(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.variantRepo.On("GetVariants", mock.Anything, []int64{10, 99}).
		Return([]models.Variant{{ID: 10, TracksInventory: true}}, nil)

	err := f.service.CheckStockQuantityBulk(context.Background(), []int64{10, 99}, "US", []int{1, 1}, nil)

	assert.ErrorIs(t, err, models.ErrVariantNotFound)
	f.stockRepo.AssertNotCalled(t, "CandidateStocks", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStockQuantityBulk_LengthMismatch(t *testing.T) {
	f := newAvailabilityFixture(t)

	err := f.service.CheckStockQuantityBulk(context.Background(), []int64{10}, "US", []int{1, 2}, nil)

	assert.Error(t, err)
	f.variantRepo.AssertNotCalled(t, "GetVariants", mock.Anything, mock.Anything)
}

func TestGetVariant_CacheMissFallsBack(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.cache.On("GetVariant", mock.Anything, int64(10)).Return((*models.Variant)(nil), nil)
	f.variantRepo.On("GetVariants", mock.Anything, []int64{10}).
		Return([]models.Variant{{ID: 10, TracksInventory: true}}, nil)
	f.cache.On("SetVariant", mock.Anything, mock.Anything).Return(nil)
	f.stockRepo.On("CandidateStocks", mock.Anything, "US", []int64{10}).
		Return([]models.Stock{{ID: 1, VariantID: 10, Quantity: 5}}, nil)
	f.stockRepo.On("AllocatedByStock", mock.Anything, []int64{1}).Return(map[int64]int{}, nil)
	f.stockRepo.On("ReservedByStock", mock.Anything, []int64{1}, []uuid.UUID(nil), f.now).Return(map[int64]int{}, nil)

	err := f.service.CheckStockQuantity(context.Background(), 10, "US", 1, nil)

	assert.NoError(t, err)
	f.cache.AssertCalled(t, "SetVariant", mock.Anything, mock.Anything)
}

func TestGetVariant_CacheErrorIsNotFatal(t *testing.T) {
	f := newAvailabilityFixture(t)

	f.cache.On("GetVariant", mock.Anything, int64(10)).
		Return((*models.Variant)(nil), errors.New("redis: connection refused"))
	f.variantRepo.On("GetVariants", mock.Anything, []int64{10}).
		Return([]models.Variant{{ID: 10, TracksInventory: false}}, nil)
	f.cache.On("SetVariant", mock.Anything, mock.Anything).Return(nil)

	err := f.service.CheckStockQuantity(context.Background(), 10, "US", 1, nil)

	assert.NoError(t, err)
}
