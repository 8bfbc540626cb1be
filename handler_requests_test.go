package main

import (
	"net/http/httptest"
	"testing"
)

func newRequestPayload() map[string]interface{} {
	return map[string]interface{}{
		"dept":        "DTD",
		"requester":   "U001",
		"pline":       "PTO",
		"pfamily":     "PF01",
		"type":        "PRD",
		"category":    "C01",
		"detail":      "D05",
		"title":       "Feasibility for new PTO",
		"description": "Check feasibility of the new gearbox PTO",
		"insdate":     "2025-03-01",
		"tdtl":        []string{"U004"},
	}
}

func createRequestForTest(t *testing.T) string {
	t.Helper()
	w := httptest.NewRecorder()
	req := authedJSONRequest("POST", "/api/v1/requests", newRequestPayload(), "")
	handleCreateRequest(w, req)
	assertStatus(t, w, 201)
	resp := decodeAPIResponse(t, w)
	data := resp.Data.(map[string]interface{})
	return data["reqid"].(string)
}

func TestCreateRequest(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	reqID := createRequestForTest(t)
	if reqID != "R25-0001" {
		t.Errorf("reqid = %q, want R25-0001", reqID)
	}

	var status, priority string
	if err := db.QueryRow("SELECT status, priority FROM torp_requests WHERE reqid = ?", reqID).
		Scan(&status, &priority); err != nil {
		t.Fatalf("request not stored: %v", err)
	}
	if status != "NEW" {
		t.Errorf("status = %q, want NEW", status)
	}
	if priority != "Medium" {
		t.Errorf("default priority = %q, want Medium", priority)
	}

	var assignStatus string
	if err := db.QueryRow("SELECT status FROM torp_reqassignedto WHERE reqid = ? AND tdtlid = 'U004'", reqID).
		Scan(&assignStatus); err != nil {
		t.Fatalf("assignment not stored: %v", err)
	}
	if assignStatus != "ACTIVE" {
		t.Errorf("assignment status = %q, want ACTIVE", assignStatus)
	}

	// Ids stay sequential within the (year, pline) bucket.
	w := httptest.NewRecorder()
	handleCreateRequest(w, authedJSONRequest("POST", "/api/v1/requests", newRequestPayload(), ""))
	assertStatus(t, w, 201)
	second := decodeAPIResponse(t, w).Data.(map[string]interface{})
	if second["reqid"] != "R25-0002" {
		t.Errorf("second reqid = %v, want R25-0002", second["reqid"])
	}
}

func TestCreateRequestValidation(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	// Missing title.
	payload := newRequestPayload()
	payload["title"] = ""
	w := httptest.NewRecorder()
	handleCreateRequest(w, authedJSONRequest("POST", "/api/v1/requests", payload, ""))
	assertStatus(t, w, 400)

	// No team lead.
	payload = newRequestPayload()
	payload["tdtl"] = []string{}
	w = httptest.NewRecorder()
	handleCreateRequest(w, authedJSONRequest("POST", "/api/v1/requests", payload, ""))
	assertStatus(t, w, 400)

	// Unknown category code.
	payload = newRequestPayload()
	payload["category"] = "C99"
	w = httptest.NewRecorder()
	handleCreateRequest(w, authedJSONRequest("POST", "/api/v1/requests", payload, ""))
	assertStatus(t, w, 400)

	// Bad priority.
	payload = newRequestPayload()
	payload["priority"] = "Urgent"
	w = httptest.NewRecorder()
	handleCreateRequest(w, authedJSONRequest("POST", "/api/v1/requests", payload, ""))
	assertStatus(t, w, 400)

	// Nothing was written.
	var count int
	db.QueryRow("SELECT COUNT(*) FROM torp_requests").Scan(&count)
	if count != 0 {
		t.Errorf("requests written = %d, want 0", count)
	}
}

func TestUpdateRequestReassignment(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)

	// Reassign from U004 to U005.
	payload := newRequestPayload()
	payload["tdtl"] = []string{"U005"}
	w := httptest.NewRecorder()
	handleUpdateRequest(w, authedJSONRequest("PUT", "/api/v1/requests/"+reqID, payload, ""), reqID)
	assertStatus(t, w, 200)

	var s4, s5 string
	db.QueryRow("SELECT status FROM torp_reqassignedto WHERE reqid=? AND tdtlid='U004'", reqID).Scan(&s4)
	db.QueryRow("SELECT status FROM torp_reqassignedto WHERE reqid=? AND tdtlid='U005'", reqID).Scan(&s5)
	if s4 != "DISABLED" {
		t.Errorf("old assignment = %q, want DISABLED", s4)
	}
	if s5 != "ACTIVE" {
		t.Errorf("new assignment = %q, want ACTIVE", s5)
	}

	// Reassigning back reactivates the old row instead of duplicating it.
	payload["tdtl"] = []string{"U004"}
	w = httptest.NewRecorder()
	handleUpdateRequest(w, authedJSONRequest("PUT", "/api/v1/requests/"+reqID, payload, ""), reqID)
	assertStatus(t, w, 200)

	var rowCount int
	db.QueryRow("SELECT COUNT(*) FROM torp_reqassignedto WHERE reqid=? AND tdtlid='U004'", reqID).Scan(&rowCount)
	if rowCount != 1 {
		t.Errorf("U004 assignment rows = %d, want 1", rowCount)
	}
	db.QueryRow("SELECT status FROM torp_reqassignedto WHERE reqid=? AND tdtlid='U004'", reqID).Scan(&s4)
	if s4 != "ACTIVE" {
		t.Errorf("reactivated assignment = %q, want ACTIVE", s4)
	}
}

func TestUpdateRequestRejectsDirectDelete(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)

	payload := newRequestPayload()
	payload["status"] = "DELETED"
	w := httptest.NewRecorder()
	handleUpdateRequest(w, authedJSONRequest("PUT", "/api/v1/requests/"+reqID, payload, ""), reqID)
	assertStatus(t, w, 400)
}

func TestDeleteRequestSoftDeletes(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)

	w := httptest.NewRecorder()
	handleDeleteRequest(w, authedRequest("DELETE", "/api/v1/requests/"+reqID, nil, ""), reqID)
	assertStatus(t, w, 200)

	// Row survives with DELETED status.
	var status string
	if err := db.QueryRow("SELECT status FROM torp_requests WHERE reqid = ?", reqID).Scan(&status); err != nil {
		t.Fatalf("deleted request gone from table: %v", err)
	}
	if status != "DELETED" {
		t.Errorf("status = %q, want DELETED", status)
	}

	// Hidden from the default list.
	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests", nil))
	resp := decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 0 {
		t.Errorf("default list = %d requests, want 0", len(list))
	}

	// Visible when asked for explicitly.
	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?status=DELETED", nil))
	resp = decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 1 {
		t.Errorf("DELETED list = %d requests, want 1", len(list))
	}
}

func TestListRequestsFilters(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	createRequestForTest(t)

	// Filter by assigned team lead.
	w := httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?tdtl=U004", nil))
	resp := decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 1 {
		t.Errorf("tdtl=U004 list = %d, want 1", len(list))
	}

	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?tdtl=U005", nil))
	resp = decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 0 {
		t.Errorf("tdtl=U005 list = %d, want 0", len(list))
	}

	// Text search matches title.
	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?search=Feasibility", nil))
	resp = decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 1 {
		t.Errorf("search list = %d, want 1", len(list))
	}

	// Date window on insdate.
	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?from=2025-03-01&to=2025-03-31", nil))
	resp = decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 1 {
		t.Errorf("date window list = %d, want 1", len(list))
	}

	w = httptest.NewRecorder()
	handleListRequests(w, httptest.NewRequest("GET", "/api/v1/requests?from=2025-04-01", nil))
	resp = decodeAPIResponse(t, w)
	if list := resp.Data.([]interface{}); len(list) != 0 {
		t.Errorf("out-of-window list = %d, want 0", len(list))
	}
}

func TestGetRequestDecoration(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)

	w := httptest.NewRecorder()
	handleGetRequest(w, httptest.NewRequest("GET", "/api/v1/requests/"+reqID, nil), reqID)
	assertStatus(t, w, 200)

	resp := decodeAPIResponse(t, w)
	data := resp.Data.(map[string]interface{})
	req := data["request"].(map[string]interface{})
	if req["pline_name"] != "POWER TAKE OFFs" {
		t.Errorf("pline_name = %v", req["pline_name"])
	}
	if req["requester_name"] != "COMELLINI GIORGIO" {
		t.Errorf("requester_name = %v", req["requester_name"])
	}
	leads := req["tdtl_names"].([]interface{})
	if len(leads) != 1 || leads[0] != "CARLINI MICHELE" {
		t.Errorf("tdtl_names = %v", leads)
	}
}
