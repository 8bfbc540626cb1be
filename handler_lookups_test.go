package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"
)

func listLen(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	resp := decodeAPIResponse(t, w)
	list, ok := resp.Data.([]interface{})
	if !ok {
		t.Fatalf("expected list data, got %T", resp.Data)
	}
	return len(list)
}

func TestListCategoriesCascade(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	// No parent filter: every category.
	w := httptest.NewRecorder()
	handleListCategories(w, httptest.NewRequest("GET", "/api/v1/categories", nil))
	assertStatus(t, w, 200)
	if n := listLen(t, w); n != 2 {
		t.Errorf("unfiltered categories = %d, want 2", n)
	}

	// Parent filter narrows through the link table.
	w = httptest.NewRecorder()
	handleListCategories(w, httptest.NewRequest("GET", "/api/v1/categories?type=PRD", nil))
	assertStatus(t, w, 200)
	resp := decodeAPIResponse(t, w)
	list := resp.Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("PRD categories = %d, want 1", len(list))
	}
	cat := list[0].(map[string]interface{})
	if cat["code"] != "C01" {
		t.Errorf("PRD category = %v, want C01", cat["code"])
	}

	// Unknown parent: empty list, still 200.
	w = httptest.NewRecorder()
	handleListCategories(w, httptest.NewRequest("GET", "/api/v1/categories?type=NOPE", nil))
	assertStatus(t, w, 200)
	if n := listLen(t, w); n != 0 {
		t.Errorf("unknown type categories = %d, want 0", n)
	}
}

func TestListDetailsCascade(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	w := httptest.NewRecorder()
	handleListDetails(w, httptest.NewRequest("GET", "/api/v1/details?category=C06", nil))
	assertStatus(t, w, 200)
	resp := decodeAPIResponse(t, w)
	list := resp.Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("C06 details = %d, want 1", len(list))
	}
	if d := list[0].(map[string]interface{}); d["code"] != "D02" {
		t.Errorf("C06 detail = %v, want D02", d["code"])
	}
}

func TestListTeamLeadsByLine(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	w := httptest.NewRecorder()
	handleListTeamLeads(w, httptest.NewRequest("GET", "/api/v1/teamleads?pline=PTO", nil))
	assertStatus(t, w, 200)
	resp := decodeAPIResponse(t, w)
	list := resp.Data.([]interface{})
	if len(list) != 1 {
		t.Fatalf("PTO team leads = %d, want 1", len(list))
	}
	if p := list[0].(map[string]interface{}); p["code"] != "U004" {
		t.Errorf("PTO team lead = %v, want U004", p["code"])
	}

	// Without a line filter, every configured lead appears once.
	w = httptest.NewRecorder()
	handleListTeamLeads(w, httptest.NewRequest("GET", "/api/v1/teamleads", nil))
	if n := listLen(t, w); n != 2 {
		t.Errorf("all team leads = %d, want 2", n)
	}
}

func TestListSpecialistsByLead(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	w := httptest.NewRecorder()
	handleListSpecialists(w, httptest.NewRequest("GET", "/api/v1/specialists?tdtl=U004", nil))
	assertStatus(t, w, 200)
	if n := listLen(t, w); n != 2 {
		t.Errorf("U004 specialists = %d, want 2", n)
	}

	w = httptest.NewRecorder()
	handleListSpecialists(w, httptest.NewRequest("GET", "/api/v1/specialists?tdtl=U999", nil))
	assertStatus(t, w, 200)
	if n := listLen(t, w); n != 0 {
		t.Errorf("unknown lead specialists = %d, want 0", n)
	}
}

func TestListUsersByDept(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	w := httptest.NewRecorder()
	handleListUsers(w, httptest.NewRequest("GET", "/api/v1/users?dept=DTD", nil))
	assertStatus(t, w, 200)
	if n := listLen(t, w); n != 5 {
		t.Errorf("DTD users = %d, want 5", n)
	}
}

func TestRefCacheRoundTrip(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	if got := refCache.Name("torp_pline", "PTO"); got != "POWER TAKE OFFs" {
		t.Errorf("Name(PTO) = %q", got)
	}
	if got := refCache.Code("torp_pline", "POWER TAKE OFFs"); got != "PTO" {
		t.Errorf("Code(POWER TAKE OFFs) = %q", got)
	}

	// Misses resolve to empty string, never an error.
	if got := refCache.Name("torp_pline", "XXX"); got != "" {
		t.Errorf("Name(XXX) = %q, want empty", got)
	}
	if got := refCache.Code("torp_pline", "NO SUCH LINE"); got != "" {
		t.Errorf("Code(NO SUCH LINE) = %q, want empty", got)
	}

	// Invalidate picks up subsequent writes.
	db.Exec("INSERT INTO torp_pline (code,name) VALUES ('CYL','CYLINDERS')")
	refCache.Invalidate()
	if got := refCache.Name("torp_pline", "CYL"); got != "CYLINDERS" {
		t.Errorf("Name(CYL) after invalidate = %q", got)
	}
}

func TestLookupEnvelope(t *testing.T) {
	useTestDB(t)
	seedReferenceData(t)

	w := httptest.NewRecorder()
	handleListProductLines(w, httptest.NewRequest("GET", "/api/v1/plines", nil))

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(w.Body.Bytes(), &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["data"]; !ok {
		t.Error("response missing data envelope")
	}
}
