package main

import (
	"net/http/httptest"
	"testing"
)

func TestWritesAreAudited(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)
	saveWorkOrderForTest(t, reqID)

	rows, err := db.Query("SELECT action, module, record_id FROM audit_log ORDER BY id")
	if err != nil {
		t.Fatalf("query audit_log: %v", err)
	}
	defer rows.Close()

	type entry struct{ action, module, recordID string }
	var entries []entry
	for rows.Next() {
		var e entry
		rows.Scan(&e.action, &e.module, &e.recordID)
		entries = append(entries, e)
	}

	if len(entries) != 2 {
		t.Fatalf("audit entries = %d, want 2", len(entries))
	}
	if entries[0].action != "CREATE" || entries[0].module != "requests" || entries[0].recordID != reqID {
		t.Errorf("first entry = %+v", entries[0])
	}
	if entries[1].module != "workorders" {
		t.Errorf("second entry = %+v", entries[1])
	}
}

func TestAuditLogFilters(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)
	reqID := createRequestForTest(t)
	saveWorkOrderForTest(t, reqID)

	w := httptest.NewRecorder()
	handleAuditLog(w, httptest.NewRequest("GET", "/api/v1/audit?module=requests", nil))
	assertStatus(t, w, 200)

	resp := decodeAPIResponse(t, w)
	list := resp.Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("filtered entries = %d, want 1", len(list))
	}
	if e := list[0].(map[string]interface{}); e["module"] != "requests" {
		t.Errorf("module = %v", e["module"])
	}
	if resp.Meta == nil || resp.Meta.Total != 1 {
		t.Errorf("meta = %+v", resp.Meta)
	}
}
