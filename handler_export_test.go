package main

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestStripHTML(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plain text", "plain text"},
		{"<b>bold</b> text", "bold text"},
		{"<p>multi</p><p>paragraph</p>", "multiparagraph"},
		{"  padded  ", "padded"},
		{"", ""},
	}
	for _, c := range cases {
		if got := stripHTML(c.in); got != c.want {
			t.Errorf("stripHTML(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestExportRequestsCSV(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	createRequestForTest(t)

	w := httptest.NewRecorder()
	handleExportRequests(w, httptest.NewRequest("GET", "/api/v1/requests/export?format=csv", nil))
	assertStatus(t, w, 200)

	if ct := w.Header().Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}

	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("CSV lines = %d, want 2", len(lines))
	}
	if !strings.HasPrefix(lines[0], "Request ID;Status;") {
		t.Errorf("header row = %q", lines[0])
	}
	if !strings.Contains(lines[1], "R25-0001") {
		t.Errorf("data row missing reqid: %q", lines[1])
	}
	// Codes are resolved to display names in the export.
	if !strings.Contains(lines[1], "POWER TAKE OFFs") {
		t.Errorf("data row missing product line name: %q", lines[1])
	}
}

func TestExportRequestsExcludesDeleted(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)

	w := httptest.NewRecorder()
	handleDeleteRequest(w, authedRequest("DELETE", "/api/v1/requests/"+reqID, nil, ""), reqID)

	w = httptest.NewRecorder()
	handleExportRequests(w, httptest.NewRequest("GET", "/api/v1/requests/export", nil))
	lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
	if len(lines) != 1 {
		t.Errorf("CSV lines = %d, want header only", len(lines))
	}
}

func TestExportWorkItemsCSV(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	assertStatus(t, w, 201)

	w = httptest.NewRecorder()
	handleExportWorkItems(w, httptest.NewRequest("GET", "/api/v1/workitems/export?from=2025-03-01&to=2025-03-31", nil))
	assertStatus(t, w, 200)

	body := w.Body.String()
	if !strings.Contains(body, "VERDI LUCA") {
		t.Errorf("export missing specialist name:\n%s", body)
	}
	if !strings.Contains(body, "4.00;H;4.00") {
		t.Errorf("export missing time columns:\n%s", body)
	}
}

func TestExportRequestsXLSX(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	createRequestForTest(t)

	w := httptest.NewRecorder()
	handleExportRequests(w, httptest.NewRequest("GET", "/api/v1/requests/export?format=xlsx", nil))
	assertStatus(t, w, 200)

	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "spreadsheetml") {
		t.Errorf("Content-Type = %q", ct)
	}
	// XLSX files are zip archives.
	if body := w.Body.Bytes(); len(body) < 4 || body[0] != 'P' || body[1] != 'K' {
		t.Error("response is not a zip archive")
	}
}

func TestRequestReport(t *testing.T) {
	useTestDB(t)
	woID := setupWorkOrderWithItems(t)

	w := httptest.NewRecorder()
	handleCreateWorkItem(w, authedJSONRequest("POST", "/api/v1/workitems", newWorkItemPayload(woID), ""))
	assertStatus(t, w, 201)

	w = httptest.NewRecorder()
	handleRequestReport(w, httptest.NewRequest("GET", "/api/v1/requests/R25-0001/report", nil), "R25-0001")
	assertStatus(t, w, 200)

	body := w.Body.String()
	if !strings.Contains(body, "R25-0001") {
		t.Error("report missing request id")
	}
	if !strings.Contains(body, "Work Order W25-0001") {
		t.Error("report missing work-order section")
	}
	if !strings.Contains(body, "window.print()") {
		t.Error("report missing print trigger")
	}
	if !strings.Contains(body, "CARLINI MICHELE") {
		t.Error("report missing team lead name")
	}

	w = httptest.NewRecorder()
	handleRequestReport(w, httptest.NewRequest("GET", "/api/v1/requests/R99-9999/report", nil), "R99-9999")
	assertStatus(t, w, 404)
}
