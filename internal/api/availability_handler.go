package api

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/models"
)

// AvailabilityChecker is the read side consumed by the availability handler.
type AvailabilityChecker interface {
	GetAvailableQuantity(ctx context.Context, variantID int64, countryCode string, excludedLines []uuid.UUID) (int, error)
	IsProductInStock(ctx context.Context, productID int64, countryCode string) (bool, error)
	CheckStockQuantityBulk(ctx context.Context, variantIDs []int64, countryCode string, quantities []int, excludedLines []uuid.UUID) error
}

// AvailabilityHandler handles HTTP requests for availability reads and stock
// checks. Reads take no locks and mutate nothing.
type AvailabilityHandler struct {
	availability AvailabilityChecker
}

// NewAvailabilityHandler creates a new availability handler.
func NewAvailabilityHandler(availability AvailabilityChecker) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability}
}

// getVariantAvailability handles GET /variants/:id/availability.
func (h *AvailabilityHandler) getVariantAvailability(c *gin.Context) {
	variantID, ok := pathID(c, "id")
	if !ok {
		return
	}
	countryCode, ok := countryParam(c)
	if !ok {
		return
	}

	available, err := h.availability.GetAvailableQuantity(c.Request.Context(), variantID, countryCode, nil)
	if err != nil {
		log.Error().Err(err).Int64("variant_id", variantID).Msg("Failed to get availability")
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, models.AvailabilityResponse{
		VariantID:         variantID,
		CountryCode:       countryCode,
		AvailableQuantity: available,
		CheckedAt:         nowUTC(),
	})
}

// getProductInStock handles GET /products/:id/in-stock.
func (h *AvailabilityHandler) getProductInStock(c *gin.Context) {
	productID, ok := pathID(c, "id")
	if !ok {
		return
	}
	countryCode, ok := countryParam(c)
	if !ok {
		return
	}

	inStock, err := h.availability.IsProductInStock(c.Request.Context(), productID, countryCode)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			Response.NotFound(c, "Product")
			return
		}
		log.Error().Err(err).Int64("product_id", productID).Msg("Failed to check product stock")
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, models.ProductStockResponse{
		ProductID:   productID,
		CountryCode: countryCode,
		InStock:     inStock,
	})
}

// checkStocks handles POST /stock-checks: one batched check over every line,
// reporting all shortfalls at once.
func (h *AvailabilityHandler) checkStocks(c *gin.Context) {
	var req models.StockCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	variantIDs := make([]int64, 0, len(req.Lines))
	quantities := make([]int, 0, len(req.Lines))
	for _, line := range req.Lines {
		variantIDs = append(variantIDs, line.VariantID)
		quantities = append(quantities, line.Quantity)
	}

	err := h.availability.CheckStockQuantityBulk(c.Request.Context(), variantIDs, req.CountryCode, quantities, nil)
	if err != nil {
		if ise, ok := models.IsInsufficientStock(err); ok {
			Response.InsufficientStock(c, ise)
			return
		}
		if errors.Is(err, models.ErrVariantNotFound) {
			Response.NotFound(c, "Variant")
			return
		}
		log.Error().Err(err).Str("country_code", req.CountryCode).Msg("Failed to check stocks")
		Response.InternalError(c, err)
		return
	}

	Response.NoContent(c)
}

func nowUTC() time.Time {
	return time.Now().UTC()
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		Response.ValidationError(c, name, "Must be a positive integer")
		return 0, false
	}
	return id, true
}

func countryParam(c *gin.Context) (string, bool) {
	countryCode := c.Query("country")
	if len(countryCode) != 2 {
		Response.ValidationError(c, "country", "Must be a two-letter country code")
		return "", false
	}
	return countryCode, true
}
