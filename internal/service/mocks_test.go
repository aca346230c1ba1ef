package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/yzy0806/saleor/internal/models"
)

// MockStockRepository implements interfaces.StockRepository for testing.
type MockStockRepository struct {
	mock.Mock
}

func (m *MockStockRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	args := m.Called(ctx, fn)
	if err := args.Error(0); err != nil {
		return err
	}
	return fn(ctx)
}

func (m *MockStockRepository) CandidateStocks(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error) {
	args := m.Called(ctx, countryCode, variantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Stock), args.Error(1)
}

func (m *MockStockRepository) CandidateStocksForUpdate(ctx context.Context, countryCode string, variantIDs []int64) ([]models.Stock, error) {
	args := m.Called(ctx, countryCode, variantIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Stock), args.Error(1)
}

func (m *MockStockRepository) AllocatedByStock(ctx context.Context, stockIDs []int64) (map[int64]int, error) {
	args := m.Called(ctx, stockIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int), args.Error(1)
}

func (m *MockStockRepository) ReservedByStock(ctx context.Context, stockIDs []int64, excludedLines []uuid.UUID, now time.Time) (map[int64]int, error) {
	args := m.Called(ctx, stockIDs, excludedLines, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]int), args.Error(1)
}

func (m *MockStockRepository) DeleteReservationsForLines(ctx context.Context, lineIDs []uuid.UUID) (int64, error) {
	args := m.Called(ctx, lineIDs)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockStockRepository) InsertReservations(ctx context.Context, reservations []models.Reservation) error {
	args := m.Called(ctx, reservations)
	return args.Error(0)
}

func (m *MockStockRepository) InsertOutboxEvent(ctx context.Context, eventType, key string, payload interface{}) error {
	args := m.Called(ctx, eventType, key, payload)
	return args.Error(0)
}

// MockVariantRepository implements interfaces.VariantRepository for testing.
type MockVariantRepository struct {
	mock.Mock
}

func (m *MockVariantRepository) GetVariants(ctx context.Context, ids []int64) ([]models.Variant, error) {
	args := m.Called(ctx, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Variant), args.Error(1)
}

func (m *MockVariantRepository) GetProductVariants(ctx context.Context, productID int64) ([]models.Variant, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Variant), args.Error(1)
}

// MockCacheRepository implements interfaces.CacheRepository for testing.
type MockCacheRepository struct {
	mock.Mock
}

func (m *MockCacheRepository) GetVariant(ctx context.Context, id int64) (*models.Variant, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Variant), args.Error(1)
}

func (m *MockCacheRepository) SetVariant(ctx context.Context, variant *models.Variant) error {
	args := m.Called(ctx, variant)
	return args.Error(0)
}

func (m *MockCacheRepository) DeleteVariant(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockCacheRepository) Close() error {
	args := m.Called()
	return args.Error(0)
}
