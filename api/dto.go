/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMAL BOUNDARY:
  Every quantity and cost crosses this boundary as a decimal string, never
  as a JSON number. JSON numbers are binary floating point on the wire and
  would lose precision exactly where the engine guarantees none.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/larder/lot-engine/inventory"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// LotDTO represents a lot in API responses.
type LotDTO struct {
	ID                string `json:"id"`
	GoodID            string `json:"good_id"`
	AcquiredAt        string `json:"acquired_at"`
	OriginalQuantity  string `json:"original_quantity"`
	UnitCost          string `json:"unit_cost"`
	RemainingQuantity string `json:"remaining_quantity"`
	ConsumedQuantity  string `json:"consumed_quantity"`
	CreatedAt         string `json:"created_at,omitempty"`
}

// RecordLotRequest is the request to record a purchase.
type RecordLotRequest struct {
	GoodID     string `json:"good_id"`
	Quantity   string `json:"quantity"`
	UnitCost   string `json:"unit_cost"`
	AcquiredAt string `json:"acquired_at"` // YYYY-MM-DD
}

// EditLotRequest is a partial lot update. Nil fields are untouched.
type EditLotRequest struct {
	Quantity *string `json:"quantity,omitempty"`
	UnitCost *string `json:"unit_cost,omitempty"`
}

// ConsumeRequest asks to draw a quantity of a good.
type ConsumeRequest struct {
	Quantity         string `json:"quantity"`
	ContextReference string `json:"context_reference,omitempty"`
}

// LotDrawDTO is one element of a consumption breakdown.
type LotDrawDTO struct {
	LotID      string `json:"lot_id"`
	Quantity   string `json:"quantity"`
	AcquiredAt string `json:"acquired_at"`
}

// ConsumptionResultDTO reports the outcome of a consume call.
// A non-zero shortfall is a normal result, not an error.
type ConsumptionResultDTO struct {
	Requested string       `json:"requested"`
	Consumed  string       `json:"consumed"`
	Shortfall string       `json:"shortfall"`
	Breakdown []LotDrawDTO `json:"breakdown"`
}

// EntryDTO represents a consumption ledger entry.
type EntryDTO struct {
	ID               string `json:"id"`
	LotID            string `json:"lot_id"`
	QuantityDrawn    string `json:"quantity_drawn"`
	UnitCostAtDraw   string `json:"unit_cost_at_draw"`
	DrawnAt          string `json:"drawn_at"`
	ContextReference string `json:"context_reference,omitempty"`
}

// PredicateDTO is the response of the advisory guard predicates.
type PredicateDTO struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// RemainingDTO reports total availability of a good.
type RemainingDTO struct {
	GoodID    string `json:"good_id"`
	Remaining string `json:"remaining"`
}

// SummaryDTO aggregates lot state for a good.
type SummaryDTO struct {
	GoodID         string `json:"good_id"`
	LotCount       int    `json:"lot_count"`
	OpenLotCount   int    `json:"open_lot_count"`
	TotalRemaining string `json:"total_remaining"`
	TotalValue     string `json:"total_value"`
}

// ErrorResponse is the standard error body.
type ErrorResponse struct {
	Error      string `json:"error"`
	Details    string `json:"details,omitempty"`
	EntryCount int    `json:"blocking_entries,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func lotDTO(lot inventory.Lot) LotDTO {
	return LotDTO{
		ID:                string(lot.ID),
		GoodID:            string(lot.GoodID),
		AcquiredAt:        lot.AcquiredAt.Format("2006-01-02"),
		OriginalQuantity:  lot.OriginalQuantity.String(),
		UnitCost:          lot.UnitCost.String(),
		RemainingQuantity: lot.RemainingQuantity.String(),
		ConsumedQuantity:  lot.Consumed().String(),
		CreatedAt:         lot.CreatedAt.Format(time.RFC3339),
	}
}

func resultDTO(result inventory.ConsumptionResult) ConsumptionResultDTO {
	breakdown := make([]LotDrawDTO, len(result.Breakdown))
	for i, draw := range result.Breakdown {
		breakdown[i] = LotDrawDTO{
			LotID:      string(draw.LotID),
			Quantity:   draw.Quantity.String(),
			AcquiredAt: draw.AcquiredAt.Format("2006-01-02"),
		}
	}
	return ConsumptionResultDTO{
		Requested: result.Requested.String(),
		Consumed:  result.Consumed.String(),
		Shortfall: result.Shortfall.String(),
		Breakdown: breakdown,
	}
}

func entryDTO(entry inventory.ConsumptionEntry) EntryDTO {
	return EntryDTO{
		ID:               string(entry.ID),
		LotID:            string(entry.LotID),
		QuantityDrawn:    entry.QuantityDrawn.String(),
		UnitCostAtDraw:   entry.UnitCostAtDraw.String(),
		DrawnAt:          entry.DrawnAt.Format(time.RFC3339),
		ContextReference: entry.ContextReference,
	}
}
