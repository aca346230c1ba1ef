package api

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/models"
)

// StockReserver is the write side consumed by the reservation handler.
type StockReserver interface {
	ReserveStocks(ctx context.Context, lines []models.CheckoutLineRequest, countryCode string) ([]models.Reservation, error)
	ReleaseLine(ctx context.Context, lineID uuid.UUID) error
}

// ReservationHandler handles HTTP requests that create and drop holds.
type ReservationHandler struct {
	reservations StockReserver
}

// NewReservationHandler creates a new reservation handler.
func NewReservationHandler(reservations StockReserver) *ReservationHandler {
	return &ReservationHandler{reservations: reservations}
}

// reserveStocks handles POST /reservations. The whole batch succeeds with new
// holds or fails with the aggregated fault and no change at all.
func (h *ReservationHandler) reserveStocks(c *gin.Context) {
	var req models.ReserveStocksRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BindingError(c, err)
		return
	}

	lines := make([]models.CheckoutLineRequest, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, models.CheckoutLineRequest{
			CheckoutLineID: line.CheckoutLineID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
		})
	}

	created, err := h.reservations.ReserveStocks(c.Request.Context(), lines, req.CountryCode)
	if err != nil {
		if ise, ok := models.IsInsufficientStock(err); ok {
			Response.InsufficientStock(c, ise)
			return
		}
		if errors.Is(err, models.ErrVariantNotFound) {
			Response.NotFound(c, "Variant")
			return
		}
		log.Error().Err(err).Str("country_code", req.CountryCode).Msg("Failed to reserve stocks")
		Response.InternalError(c, err)
		return
	}

	reservations := make([]models.ReservationLineResponse, 0, len(created))
	for _, r := range created {
		reservations = append(reservations, models.ReservationLineResponse{
			ReservationID:  r.ID,
			CheckoutLineID: r.CheckoutLineID,
			StockID:        r.StockID,
			Quantity:       r.QuantityReserved,
			ReservedUntil:  r.ReservedUntil,
		})
	}

	Response.Created(c, models.ReserveStocksResponse{
		CountryCode:  req.CountryCode,
		Reservations: reservations,
	})
}

// releaseLine handles DELETE /checkout-lines/:id/reservations.
func (h *ReservationHandler) releaseLine(c *gin.Context) {
	lineID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		Response.ValidationError(c, "id", "Must be a valid UUID")
		return
	}

	if err := h.reservations.ReleaseLine(c.Request.Context(), lineID); err != nil {
		log.Error().Err(err).Str("checkout_line_id", lineID.String()).Msg("Failed to release reservations")
		Response.InternalError(c, err)
		return
	}

	Response.NoContent(c)
}
