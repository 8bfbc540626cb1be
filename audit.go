package main

import (
	"database/sql"
	"net/http"
	"strconv"

	"torp/internal/audit"
)

const (
	AuditActionCreate = audit.ActionCreate
	AuditActionUpdate = audit.ActionUpdate
	AuditActionDelete = audit.ActionDelete
	AuditActionExport = audit.ActionExport
)

// logAudit records a write, injecting the global db and hub.
func logAudit(db *sql.DB, username, action, module, recordID, summary string) {
	audit.Log(db, wsHub, username, action, module, recordID, summary)
}

// getUsername resolves the acting user for audit rows: the id requireAuth
// put on the context when present, otherwise a session-cookie lookup.
func getUsername(r *http.Request) string {
	if name := currentUsername(r); name != "system" {
		return name
	}
	return audit.GetUsername(db, r)
}

func handleAuditLog(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}

	entries, total, err := audit.Query(db, q.Get("module"), q.Get("user"), q.Get("search"),
		q.Get("from"), q.Get("to"), limit, (page-1)*limit)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	jsonRespMeta(w, entries, total, page, limit)
}
