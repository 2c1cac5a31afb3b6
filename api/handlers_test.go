package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/larder/lot-engine/inventory"
	"github.com/larder/lot-engine/inventory/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	mem := store.NewTxMemory()
	handler := NewHandler(inventory.NewEngine(mem), mem)
	server := httptest.NewServer(NewRouter(handler))
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, buf.Bytes()
}

func recordLotHTTP(t *testing.T, server *httptest.Server, good, quantity, cost, acquired string) LotDTO {
	t.Helper()
	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/lots", RecordLotRequest{
		GoodID:     good,
		Quantity:   quantity,
		UnitCost:   cost,
		AcquiredAt: acquired,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	var dto LotDTO
	require.NoError(t, json.Unmarshal(body, &dto))
	return dto
}

// =============================================================================
// LOT LIFECYCLE
// =============================================================================

func TestRecordLot_HTTP(t *testing.T) {
	server := newTestServer(t)

	dto := recordLotHTTP(t, server, "flour", "10.50", "0.55", "2025-03-01")

	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "flour", dto.GoodID)
	assert.Equal(t, "10.5", dto.OriginalQuantity, "decimal string, not a float")
	assert.Equal(t, "10.5", dto.RemainingQuantity)
	assert.Equal(t, "2025-03-01", dto.AcquiredAt)
}

func TestRecordLot_RejectsFloatNoise(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/lots", RecordLotRequest{
		GoodID:     "flour",
		Quantity:   "not-a-number",
		UnitCost:   "1",
		AcquiredAt: "2025-03-01",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetLot_NotFound(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodGet, server.URL+"/api/lots/lot-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEditLot_RepriceOnly(t *testing.T) {
	server := newTestServer(t)
	dto := recordLotHTTP(t, server, "butter", "20", "7.25", "2025-03-01")

	cost := "6.90"
	resp, body := doJSON(t, http.MethodPatch, server.URL+"/api/lots/"+dto.ID, EditLotRequest{UnitCost: &cost})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var updated LotDTO
	require.NoError(t, json.Unmarshal(body, &updated))
	assert.Equal(t, "6.9", updated.UnitCost)
	assert.Equal(t, "20", updated.RemainingQuantity)
}

func TestDeleteLot_GuardConflict(t *testing.T) {
	server := newTestServer(t)
	dto := recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{
		Quantity:         "4",
		ContextReference: "order-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodDelete, server.URL+"/api/lots/"+dto.ID, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	assert.Equal(t, 1, errResp.EntryCount)
	assert.Contains(t, errResp.Details, "order-1")
}

func TestDeleteLot_Untouched(t *testing.T) {
	server := newTestServer(t)
	dto := recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")

	resp, _ := doJSON(t, http.MethodDelete, server.URL+"/api/lots/"+dto.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, server.URL+"/api/lots/"+dto.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// CONSUMPTION
// =============================================================================

func TestConsume_FIFOAcrossLots(t *testing.T) {
	server := newTestServer(t)

	lot1 := recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")
	lot2 := recordLotHTTP(t, server, "flour", "5", "0.55", "2025-03-08")
	recordLotHTTP(t, server, "flour", "8", "0.60", "2025-03-15")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{
		Quantity:         "12",
		ContextReference: "batch-1",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	var result ConsumptionResultDTO
	require.NoError(t, json.Unmarshal(body, &result))

	assert.Equal(t, "12", result.Consumed)
	assert.Equal(t, "0", result.Shortfall)
	require.Len(t, result.Breakdown, 2)
	assert.Equal(t, lot1.ID, result.Breakdown[0].LotID)
	assert.Equal(t, "10", result.Breakdown[0].Quantity)
	assert.Equal(t, lot2.ID, result.Breakdown[1].LotID)
	assert.Equal(t, "2", result.Breakdown[1].Quantity)
}

func TestConsume_ShortfallIsHTTP200(t *testing.T) {
	server := newTestServer(t)
	recordLotHTTP(t, server, "saffron", "1.5", "900", "2025-04-02")

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/goods/saffron/consume", ConsumeRequest{
		Quantity: "4",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "shortfall is a normal result")

	var result ConsumptionResultDTO
	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "1.5", result.Consumed)
	assert.Equal(t, "2.5", result.Shortfall)
}

func TestConsume_BadQuantity(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{
		Quantity: "-3",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

// =============================================================================
// QUERIES
// =============================================================================

func TestRemainingAndSummary(t *testing.T) {
	server := newTestServer(t)

	recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")
	recordLotHTTP(t, server, "flour", "8", "0.60", "2025-03-15")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{Quantity: "10"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/goods/flour/remaining", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var remaining RemainingDTO
	require.NoError(t, json.Unmarshal(body, &remaining))
	assert.Equal(t, "8", remaining.Remaining)

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/goods/flour/summary", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var summary SummaryDTO
	require.NoError(t, json.Unmarshal(body, &summary))
	assert.Equal(t, 2, summary.LotCount)
	assert.Equal(t, 1, summary.OpenLotCount)
	assert.Equal(t, "4.8", summary.TotalValue)
}

func TestHistoryEndpoint(t *testing.T) {
	server := newTestServer(t)
	dto := recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")

	for _, ref := range []string{"order-1", "order-2"} {
		resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{
			Quantity:         "2",
			ContextReference: ref,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/lots/"+dto.ID+"/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var entries []EntryDTO
	require.NoError(t, json.Unmarshal(body, &entries))
	require.Len(t, entries, 2)
	assert.Equal(t, "order-1", entries[0].ContextReference)
	assert.Equal(t, "order-2", entries[1].ContextReference)
	assert.Equal(t, "0.5", entries[0].UnitCostAtDraw)
}

func TestCanEditQuantityEndpoint(t *testing.T) {
	server := newTestServer(t)
	dto := recordLotHTTP(t, server, "flour", "10", "0.50", "2025-03-01")

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/goods/flour/consume", ConsumeRequest{Quantity: "4"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	url := fmt.Sprintf("%s/api/lots/%s/can-edit-quantity?quantity=3", server.URL, dto.ID)
	resp, body := doJSON(t, http.MethodGet, url, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var predicate PredicateDTO
	require.NoError(t, json.Unmarshal(body, &predicate))
	assert.False(t, predicate.Allowed)
	assert.Contains(t, predicate.Reason, "4")
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestLoadScenario_Bakery(t *testing.T) {
	server := newTestServer(t)

	resp, body := doJSON(t, http.MethodPost, server.URL+"/api/scenarios/load", LoadScenarioRequest{Name: "bakery"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = doJSON(t, http.MethodGet, server.URL+"/api/goods/flour/remaining", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var remaining RemainingDTO
	require.NoError(t, json.Unmarshal(body, &remaining))
	assert.Equal(t, "11", remaining.Remaining, "23 purchased, 12 consumed")
}

func TestScenarioState_ConcurrentReadsAndLoads(t *testing.T) {
	// Readers of the current scenario run concurrently with loads; the
	// race detector keeps this honest.
	server := newTestServer(t)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				resp, err := http.Get(server.URL + "/api/scenarios/current")
				if err != nil {
					return
				}
				resp.Body.Close()
			}
		}()
	}

	for i := 0; i < 10; i++ {
		resp, body := doJSON(t, http.MethodPost, server.URL+"/api/scenarios/load", LoadScenarioRequest{Name: "shortfall"})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	}
	wg.Wait()

	resp, body := doJSON(t, http.MethodGet, server.URL+"/api/scenarios/current", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var current map[string]string
	require.NoError(t, json.Unmarshal(body, &current))
	assert.Equal(t, "shortfall", current["name"])
}

func TestLoadScenario_Unknown(t *testing.T) {
	server := newTestServer(t)

	resp, _ := doJSON(t, http.MethodPost, server.URL+"/api/scenarios/load", LoadScenarioRequest{Name: "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
