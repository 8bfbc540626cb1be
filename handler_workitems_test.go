package main

import (
	"net/http/httptest"
	"testing"
)

func newWorkItemPayload(woID string) map[string]interface{} {
	return map[string]interface{}{
		"refdate":     "2025-03-12",
		"woid":        woID,
		"tdspid":      "U010",
		"tskgrl1":     "T1",
		"tskgrl2":     "T101",
		"description": "Modeled the housing",
		"time_qty":    4.0,
		"time_um":     "H",
	}
}

func setupWorkOrderWithItems(t *testing.T) string {
	t.Helper()
	seedReferenceData(t)
	reqID := createRequestForTest(t)
	return saveWorkOrderForTest(t, reqID)
}

func TestCreateWorkItem(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	assertStatus(t, w, 201)

	resp := decodeAPIResponse(t, w)
	item := resp.Data.(map[string]interface{})
	if item["status"] != "ACTIVE" {
		t.Errorf("status = %v, want ACTIVE", item["status"])
	}
	if item["tdsp_name"] != "VERDI LUCA" {
		t.Errorf("tdsp_name = %v", item["tdsp_name"])
	}
}

func TestCreateWorkItemRejectsNonPositiveTime(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	payload := newWorkItemPayload(woID)
	payload["time_qty"] = 0.0
	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", payload, ""))
	assertStatus(t, w, 400)

	payload["time_qty"] = -2.5
	w = httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", payload, ""))
	assertStatus(t, w, 400)

	var count int
	db.QueryRow("SELECT COUNT(*) FROM torp_workitems").Scan(&count)
	if count != 0 {
		t.Errorf("work items written = %d, want 0", count)
	}
}

func TestCreateWorkItemValidation(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	// Unknown work order.
	payload := newWorkItemPayload("W99-0001")
	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", payload, ""))
	assertStatus(t, w, 400)

	// Missing task group.
	payload = newWorkItemPayload(woID)
	payload["tskgrl2"] = ""
	w = httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", payload, ""))
	assertStatus(t, w, 400)

	// Bad unit.
	payload = newWorkItemPayload(woID)
	payload["time_um"] = "W"
	w = httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", payload, ""))
	assertStatus(t, w, 400)
}

func TestListWorkItemsRollup(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	assertStatus(t, w, 201)

	// One day of work counts as 8 hours in the rollup.
	dayItem := newWorkItemPayload(woID)
	dayItem["time_qty"] = 1.0
	dayItem["time_um"] = "D"
	w = httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", dayItem, ""))
	assertStatus(t, w, 201)

	w = httptest.NewRecorder()
	handleListWorkItems(w, httptest.NewRequest("GET", "/api/v1/workitems?woid="+woID, nil))
	assertStatus(t, w, 200)

	resp := decodeAPIResponse(t, w)
	data := resp.Data.(map[string]interface{})
	items := data["items"].([]interface{})
	if len(items) != 2 {
		t.Fatalf("items = %d, want 2", len(items))
	}
	if total := data["total_hours"].(float64); total != 12 {
		t.Errorf("total_hours = %v, want 12", total)
	}
	byWo := data["hours_by_wo"].(map[string]interface{})
	if byWo[woID].(float64) != 12 {
		t.Errorf("hours_by_wo = %v", byWo)
	}
	byDay := data["hours_by_day"].(map[string]interface{})
	if byDay["2025-03-12"].(float64) != 12 {
		t.Errorf("hours_by_day = %v", byDay)
	}
}

func TestUpdateWorkItem(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	item := decodeAPIResponse(t, w).Data.(map[string]interface{})
	id := int(item["id"].(float64))

	payload := newWorkItemPayload(woID)
	payload["time_qty"] = 6.0
	w = httptest.NewRecorder()
	handleUpdateWorkItem(w, authedJSONRequest("PUT", "/api/v1/workitems/1", payload, ""), "1")
	assertStatus(t, w, 200)

	var qty float64
	db.QueryRow("SELECT time_qty FROM torp_workitems WHERE id = ?", id).Scan(&qty)
	if qty != 6 {
		t.Errorf("time_qty = %v, want 6", qty)
	}

	// Updates must also respect the positive-time rule.
	payload["time_qty"] = 0.0
	w = httptest.NewRecorder()
	handleUpdateWorkItem(w, authedJSONRequest("PUT", "/api/v1/workitems/1", payload, ""), "1")
	assertStatus(t, w, 400)
}

func TestDeleteWorkItemSoftDeletes(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	assertStatus(t, w, 201)

	w = httptest.NewRecorder()
	handleDeleteWorkItem(w, authedRequest("DELETE", "/api/v1/workitems/1", nil, ""), "1")
	assertStatus(t, w, 200)

	var status string
	db.QueryRow("SELECT status FROM torp_workitems WHERE id = 1").Scan(&status)
	if status != "DISABLED" {
		t.Errorf("status = %q, want DISABLED", status)
	}

	// Disabled items drop out of listings and rollups.
	w = httptest.NewRecorder()
	handleListWorkItems(w, httptest.NewRequest("GET", "/api/v1/workitems?woid="+woID, nil))
	data := decodeAPIResponse(t, w).Data.(map[string]interface{})
	if items, ok := data["items"].([]interface{}); ok && len(items) != 0 {
		t.Errorf("items after delete = %d, want 0", len(items))
	}

	// Deleting twice is a 404.
	w = httptest.NewRecorder()
	handleDeleteWorkItem(w, authedRequest("DELETE", "/api/v1/workitems/1", nil, ""), "1")
	assertStatus(t, w, 404)
}
