package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/yzy0806/saleor/internal/clock"
	"github.com/yzy0806/saleor/internal/interfaces"
	"github.com/yzy0806/saleor/internal/ledger"
	"github.com/yzy0806/saleor/internal/models"
)

// ReservationService converts a batch of checkout-line requests into
// time-bounded holds, or fails the whole batch with the aggregated fault.
// Each call runs in one transaction with exclusive row locks on every
// candidate stock, acquired in ascending stock id order. The fixed order is
// what makes deadlock between overlapping batches structurally impossible.
type ReservationService struct {
	stocks   interfaces.StockRepository
	variants interfaces.VariantRepository
	clock    clock.Clock
	ttl      time.Duration
}

// NewReservationService creates a new reservation service. An invalid TTL is
// rejected rather than silently defaulted.
func NewReservationService(
	stocks interfaces.StockRepository,
	variants interfaces.VariantRepository,
	clk clock.Clock,
	ttl time.Duration,
) (*ReservationService, error) {
	if ttl < time.Minute {
		return nil, fmt.Errorf("reservation TTL must be at least 1 minute, got %v", ttl)
	}
	return &ReservationService{
		stocks:   stocks,
		variants: variants,
		clock:    clk,
		ttl:      ttl,
	}, nil
}

// ReserveStocks reserves stock for every request or changes nothing.
//
// Variants that do not track inventory are discarded up front: they need no
// hold and never contend for locks. For the rest, the call locks every
// candidate stock row for the requested variants in the target country,
// computes per-stock baselines from committed allocations and other lines'
// live holds (the batch's own lines are excluded, so re-reserving a line is
// never penalized by its own prior hold), then splits each request across its
// variant's stocks in ascending stock id order. If any request cannot be
// fully satisfied the transaction rolls back and the aggregated fault lists
// every failing line. Otherwise the batch's previous reservations are deleted
// and the new ones inserted in the same transaction, so no reader ever sees a
// line transiently without its hold.
func (s *ReservationService) ReserveStocks(ctx context.Context, lines []models.CheckoutLineRequest, countryCode string) ([]models.Reservation, error) {
	tracked, err := s.trackedLines(ctx, lines)
	if err != nil {
		return nil, err
	}
	if len(tracked) == 0 {
		return nil, nil
	}

	variantIDs := distinctVariantIDs(tracked)
	lineIDs := make([]uuid.UUID, 0, len(tracked))
	for _, line := range tracked {
		lineIDs = append(lineIDs, line.CheckoutLineID)
	}

	var created []models.Reservation
	err = s.stocks.WithTx(ctx, func(ctx context.Context) error {
		now := s.clock.Now()

		stocks, err := s.stocks.CandidateStocksForUpdate(ctx, countryCode, variantIDs)
		if err != nil {
			return err
		}

		stockIDs := make([]int64, 0, len(stocks))
		for _, st := range stocks {
			stockIDs = append(stockIDs, st.ID)
		}

		allocated, err := s.stocks.AllocatedByStock(ctx, stockIDs)
		if err != nil {
			return err
		}
		reserved, err := s.stocks.ReservedByStock(ctx, stockIDs, lineIDs, now)
		if err != nil {
			return err
		}

		stocksByVariant := groupStocksByVariant(stocks)
		reservedUntil := now.Add(s.ttl)

		var insufficient []models.InsufficientStockData
		var reservations []models.Reservation
		for _, line := range tracked {
			lineReservations, satisfied := packLine(line, stocksByVariant[line.VariantID], allocated, reserved, reservedUntil, now)
			if !satisfied {
				lineID := line.CheckoutLineID
				insufficient = append(insufficient, models.InsufficientStockData{
					VariantID:      line.VariantID,
					CheckoutLineID: &lineID,
				})
				continue
			}
			reservations = append(reservations, lineReservations...)
		}

		if len(insufficient) > 0 {
			return &models.InsufficientStockError{Items: insufficient}
		}
		if len(reservations) == 0 {
			return nil
		}

		// Delete-then-insert in one transaction: a line that already held a
		// reservation is superseded without ever being observable as empty.
		if _, err := s.stocks.DeleteReservationsForLines(ctx, lineIDs); err != nil {
			return err
		}
		if err := s.stocks.InsertReservations(ctx, reservations); err != nil {
			return err
		}

		event := s.reservationEvent(models.EventTypeReservationsCreated, countryCode, tracked, now)
		if err := s.stocks.InsertOutboxEvent(ctx, event.EventType, countryCode, event); err != nil {
			return err
		}

		created = reservations
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("country_code", countryCode).
		Int("lines", len(tracked)).
		Int("reservations", len(created)).
		Msg("Reserved stocks")

	return created, nil
}

// ReleaseLine drops every hold of one checkout line, recording a release
// event when anything was actually removed.
func (s *ReservationService) ReleaseLine(ctx context.Context, lineID uuid.UUID) error {
	return s.stocks.WithTx(ctx, func(ctx context.Context) error {
		deleted, err := s.stocks.DeleteReservationsForLines(ctx, []uuid.UUID{lineID})
		if err != nil {
			return err
		}
		if deleted == 0 {
			return nil
		}

		event := &models.StockEvent{
			EventID:   uuid.New().String(),
			EventType: models.EventTypeReservationsReleased,
			Lines:     []models.ReservedLine{{CheckoutLineID: lineID}},
			Timestamp: s.clock.Now(),
		}
		return s.stocks.InsertOutboxEvent(ctx, event.EventType, lineID.String(), event)
	})
}

// packLine splits one request across its variant's stocks: first fit in
// ascending stock id order, taking min(remaining, available here) at each
// stock. The reserved baseline is bumped as quantities are taken so two lines
// of the same variant in one batch cannot book the same units. Returns the
// planned rows and whether the request was fully satisfied; an unsatisfied
// request contributes no rows at all.
func packLine(
	line models.CheckoutLineRequest,
	stocks []models.Stock,
	allocated map[int64]int,
	reserved map[int64]int,
	reservedUntil time.Time,
	now time.Time,
) ([]models.Reservation, bool) {
	remaining := line.Quantity
	var reservations []models.Reservation

	for _, st := range stocks {
		if remaining == 0 {
			break
		}

		available := ledger.AvailableInStock(st, allocated, reserved)
		take := min(remaining, available)
		if take <= 0 {
			continue
		}

		reservations = append(reservations, models.Reservation{
			ID:               uuid.New(),
			CheckoutLineID:   line.CheckoutLineID,
			StockID:          st.ID,
			QuantityReserved: take,
			ReservedUntil:    reservedUntil,
			CreatedAt:        now,
		})
		reserved[st.ID] += take
		remaining -= take
	}

	if remaining > 0 {
		// Roll the baseline back; the failed line keeps nothing.
		for _, r := range reservations {
			reserved[r.StockID] -= r.QuantityReserved
		}
		return nil, false
	}
	return reservations, true
}

// trackedLines validates the batch and drops lines whose variant does not
// track inventory.
func (s *ReservationService) trackedLines(ctx context.Context, lines []models.CheckoutLineRequest) ([]models.CheckoutLineRequest, error) {
	if len(lines) == 0 {
		return nil, nil
	}

	variantIDs := make([]int64, 0, len(lines))
	for _, line := range lines {
		if line.Quantity < 0 {
			return nil, fmt.Errorf("quantity must not be negative, got %d for line %s", line.Quantity, line.CheckoutLineID)
		}
		variantIDs = append(variantIDs, line.VariantID)
	}

	variants, err := s.variants.GetVariants(ctx, variantIDs)
	if err != nil {
		return nil, err
	}
	variantsByID := make(map[int64]models.Variant, len(variants))
	for _, v := range variants {
		variantsByID[v.ID] = v
	}

	tracked := make([]models.CheckoutLineRequest, 0, len(lines))
	for _, line := range lines {
		variant, ok := variantsByID[line.VariantID]
		if !ok {
			return nil, fmt.Errorf("variant %d: %w", line.VariantID, models.ErrVariantNotFound)
		}
		if variant.TracksInventory {
			tracked = append(tracked, line)
		}
	}
	return tracked, nil
}

func (s *ReservationService) reservationEvent(eventType, countryCode string, lines []models.CheckoutLineRequest, now time.Time) *models.StockEvent {
	eventLines := make([]models.ReservedLine, 0, len(lines))
	for _, line := range lines {
		eventLines = append(eventLines, models.ReservedLine{
			CheckoutLineID: line.CheckoutLineID,
			VariantID:      line.VariantID,
			Quantity:       line.Quantity,
		})
	}
	return &models.StockEvent{
		EventID:     uuid.New().String(),
		EventType:   eventType,
		CountryCode: countryCode,
		Lines:       eventLines,
		Timestamp:   now,
	}
}

func distinctVariantIDs(lines []models.CheckoutLineRequest) []int64 {
	seen := make(map[int64]struct{}, len(lines))
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		if _, ok := seen[line.VariantID]; ok {
			continue
		}
		seen[line.VariantID] = struct{}{}
		ids = append(ids, line.VariantID)
	}
	return ids
}
