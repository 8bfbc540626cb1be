package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

// useTestDB swaps the global db for a fresh in-memory database with
// the full schema, restoring the old one when the test finishes.
func useTestDB(t *testing.T) *sql.DB {
	t.Helper()
	testDB, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test DB: %v", err)
	}
	// :memory: gives each connection its own database
	testDB.SetMaxOpenConns(1)
	if _, err := testDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("Failed to enable foreign keys: %v", err)
	}

	oldDB := db
	db = testDB
	if err := runMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	refCache.Invalidate()

	t.Cleanup(func() {
		testDB.Close()
		db = oldDB
		refCache.Invalidate()
	})
	return testDB
}

// seedReferenceData inserts the minimal lookup rows most handler tests
// need: one department, a requester, a team lead with one specialist,
// a product line and family, one full type/category/detail chain, and
// a task-group pair.
func seedReferenceData(t *testing.T) {
	t.Helper()
	stmts := []struct {
		sql  string
		args []interface{}
	}{
		{"INSERT INTO torp_departments (code,name,mngrcode,rprofcode) VALUES (?,?,?,?)", []interface{}{"DTD", "DESIGN TECHNICAL DEPARTMENT", "U004", ""}},
		{"INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", []interface{}{"U001", "COMELLINI GIORGIO", "DTD"}},
		{"INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", []interface{}{"U004", "CARLINI MICHELE", "DTD"}},
		{"INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", []interface{}{"U005", "FENARA GABRIELE", "DTD"}},
		{"INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", []interface{}{"U010", "VERDI LUCA", "DTD"}},
		{"INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", []interface{}{"U011", "BIANCHI SARA", "DTD"}},
		{"INSERT INTO torp_pline (code,name) VALUES (?,?)", []interface{}{"PTO", "POWER TAKE OFFs"}},
		{"INSERT INTO torp_pline (code,name) VALUES (?,?)", []interface{}{"HYD", "HYDRAULICS"}},
		{"INSERT INTO torp_pfamily (code,name,pcode) VALUES (?,?,?)", []interface{}{"PF01", "GEARBOX PTO", "PTO"}},
		{"INSERT INTO torp_pfamily (code,name,pcode) VALUES (?,?,?)", []interface{}{"PF05", "PUMPS", "HYD"}},
		{"INSERT INTO torp_type (code,name) VALUES (?,?)", []interface{}{"PRD", "PRODUCT"}},
		{"INSERT INTO torp_type (code,name) VALUES (?,?)", []interface{}{"DOC", "DOCUMENTATION"}},
		{"INSERT INTO torp_category (code,name) VALUES (?,?)", []interface{}{"C01", "NEW PRODUCT"}},
		{"INSERT INTO torp_category (code,name) VALUES (?,?)", []interface{}{"C06", "DRAWING"}},
		{"INSERT INTO torp_link_type_category (typecode,categorycode) VALUES (?,?)", []interface{}{"PRD", "C01"}},
		{"INSERT INTO torp_link_type_category (typecode,categorycode) VALUES (?,?)", []interface{}{"DOC", "C06"}},
		{"INSERT INTO torp_detail (code,name) VALUES (?,?)", []interface{}{"D05", "FEASIBILITY STUDY"}},
		{"INSERT INTO torp_detail (code,name) VALUES (?,?)", []interface{}{"D02", "2D DRAWING"}},
		{"INSERT INTO torp_link_category_detail (categorycode,detailcode) VALUES (?,?)", []interface{}{"C01", "D05"}},
		{"INSERT INTO torp_link_category_detail (categorycode,detailcode) VALUES (?,?)", []interface{}{"C06", "D02"}},
		{"INSERT INTO torp_link_pline_tdtl (plinecode,usercode) VALUES (?,?)", []interface{}{"PTO", "U004"}},
		{"INSERT INTO torp_link_pline_tdtl (plinecode,usercode) VALUES (?,?)", []interface{}{"HYD", "U005"}},
		{"INSERT INTO torp_link_tdtl_tdsp (tdtlcode,tdspcode) VALUES (?,?)", []interface{}{"U004", "U010"}},
		{"INSERT INTO torp_link_tdtl_tdsp (tdtlcode,tdspcode) VALUES (?,?)", []interface{}{"U004", "U011"}},
		{"INSERT INTO torp_taskgrp_l1 (code,name) VALUES (?,?)", []interface{}{"T1", "DESIGN"}},
		{"INSERT INTO torp_taskgrp_l2 (code,name,pcode) VALUES (?,?,?)", []interface{}{"T101", "3D MODELING", "T1"}},
	}
	for _, s := range stmts {
		if _, err := db.Exec(s.sql, s.args...); err != nil {
			t.Fatalf("Failed to seed reference data: %v\nSQL: %s", err, s.sql)
		}
	}
	refCache.Invalidate()
}

// createTestUser creates a login account with the given credentials.
func createTestUser(t *testing.T, db *sql.DB, username, password, role string, active bool) int {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("Failed to hash password: %v", err)
	}

	activeInt := 0
	if active {
		activeInt = 1
	}

	result, err := db.Exec(
		"INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, ?)",
		username, string(hash), username+" Display", role, activeInt,
	)
	if err != nil {
		t.Fatalf("Failed to create test user: %v", err)
	}

	id, _ := result.LastInsertId()
	return int(id)
}

// createTestSession creates a session token for the given user with a 24h expiry.
func createTestSession(t *testing.T, db *sql.DB, userID int) string {
	t.Helper()
	token := "test-session-token-" + time.Now().Format("20060102150405.000000")
	expiresAt := time.Now().Add(24 * time.Hour)

	_, err := db.Exec(
		"INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
		token, userID, expiresAt.UTC().Format("2006-01-02 15:04:05"),
	)
	if err != nil {
		t.Fatalf("Failed to create test session: %v", err)
	}

	return token
}

// loginAdmin creates an admin user and returns their session token.
func loginAdmin(t *testing.T, db *sql.DB) string {
	t.Helper()
	adminID := createTestUser(t, db, "admin", "password", "admin", true)
	return createTestSession(t, db, adminID)
}

// authedRequest creates an HTTP request carrying a session cookie.
func authedRequest(method, path string, body []byte, sessionToken string) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}

	if sessionToken != "" {
		req.AddCookie(&http.Cookie{Name: "torp_session", Value: sessionToken})
	}

	return req
}

// authedJSONRequest creates an authenticated request with a JSON body.
func authedJSONRequest(method, path string, body interface{}, sessionToken string) *http.Request {
	var bodyBytes []byte
	if body != nil {
		bodyBytes, _ = json.Marshal(body)
	}

	req := authedRequest(method, path, bodyBytes, sessionToken)
	req.Header.Set("Content-Type", "application/json")

	return req
}

// decodeAPIResponse decodes the standard envelope from a recorder.
func decodeAPIResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var response APIResponse
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode API response: %v", err)
	}
	return response
}

// assertStatus checks that the HTTP status code matches expected.
func assertStatus(t *testing.T, w *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if w.Code != expected {
		t.Errorf("Expected status %d, got %d. Body: %s", expected, w.Code, w.Body.String())
	}
}
