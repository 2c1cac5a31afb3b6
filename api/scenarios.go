/*
scenarios.go - Demo scenarios for development and manual testing

PURPOSE:
  Loads self-contained demo datasets through the normal engine write path,
  so everything seeded here went through the same validation, FIFO draws,
  and guard checks as real traffic.

SCENARIOS:
  bakery:     Three flour lots at different prices, partially consumed
  shortfall:  A good with less inventory than demand
  repricing:  A lot repriced after part of it was drawn

SEE ALSO:
  - handlers.go: Shares the Handler struct
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/larder/lot-engine/inventory"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// LoadScenarioRequest names the scenario to load.
type LoadScenarioRequest struct {
	Name string `json:"name"`
}

type scenarioLoader func(ctx context.Context, engine *inventory.Engine) error

var scenarios = []struct {
	name        string
	description string
	load        scenarioLoader
}{
	{
		name:        "bakery",
		description: "Three flour lots at rising prices, one partial consumption",
		load:        loadBakeryScenario,
	},
	{
		name:        "shortfall",
		description: "Demand exceeding available inventory (partial fill committed)",
		load:        loadShortfallScenario,
	},
	{
		name:        "repricing",
		description: "A lot repriced after part of it was drawn (cost basis frozen)",
		load:        loadRepricingScenario,
	},
}

func loadBakeryScenario(ctx context.Context, engine *inventory.Engine) error {
	day := func(d int) time.Time {
		return time.Date(2025, time.March, d, 0, 0, 0, 0, time.UTC)
	}

	lots := []struct {
		quantity string
		cost     string
		acquired time.Time
	}{
		{"10", "0.50", day(1)},
		{"5", "0.55", day(8)},
		{"8", "0.60", day(15)},
	}
	for _, l := range lots {
		if _, err := engine.RecordLot(ctx, "flour",
			inventory.MustDecimal(l.quantity), inventory.MustDecimal(l.cost), l.acquired); err != nil {
			return err
		}
	}

	_, err := engine.Consume(ctx, "flour", inventory.MustDecimal("12"), "batch-2025-03-20")
	return err
}

func loadShortfallScenario(ctx context.Context, engine *inventory.Engine) error {
	acquired := time.Date(2025, time.April, 2, 0, 0, 0, 0, time.UTC)
	if _, err := engine.RecordLot(ctx, "saffron",
		inventory.MustDecimal("1.5"), inventory.MustDecimal("900"), acquired); err != nil {
		return err
	}

	// Requests 4, only 1.5 available: partial fill commits, shortfall 2.5.
	_, err := engine.Consume(ctx, "saffron", inventory.MustDecimal("4"), "paella-night")
	return err
}

func loadRepricingScenario(ctx context.Context, engine *inventory.Engine) error {
	acquired := time.Date(2025, time.May, 5, 0, 0, 0, 0, time.UTC)
	lot, err := engine.RecordLot(ctx, "butter",
		inventory.MustDecimal("20"), inventory.MustDecimal("7.25"), acquired)
	if err != nil {
		return err
	}

	if _, err := engine.Consume(ctx, "butter", inventory.MustDecimal("6"), "croissants-week-19"); err != nil {
		return err
	}

	// Purchase record corrected after the fact: only the unconsumed
	// remainder is revalued, the 6 drawn units keep their 7.25 basis.
	if _, err := engine.RepriceLot(ctx, lot.ID, inventory.MustDecimal("6.90")); err != nil {
		return err
	}

	_, err = engine.Consume(ctx, "butter", inventory.MustDecimal("3"), "croissants-week-20")
	return err
}

// =============================================================================
// SCENARIO HANDLERS
// =============================================================================

// ListScenarios returns the available demo scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = ScenarioDTO{Name: s.name, Description: s.description}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the most recently loaded scenario name.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	name := h.currentScenario
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

// LoadScenario resets the database and loads the named scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Scenarios are not enabled", nil)
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	for _, s := range scenarios {
		if s.name != req.Name {
			continue
		}
		if err := h.Store.Reset(r.Context()); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
			return
		}
		if err := s.load(r.Context(), h.Engine); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
			return
		}
		h.mu.Lock()
		h.currentScenario = s.name
		h.mu.Unlock()
		writeJSON(w, http.StatusOK, map[string]string{"loaded": s.name})
		return
	}

	writeError(w, http.StatusNotFound, fmt.Sprintf("Unknown scenario %q", req.Name), nil)
}

// ResetDatabase clears all data.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, http.StatusNotFound, "Reset is not enabled", nil)
		return
	}
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
