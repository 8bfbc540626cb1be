package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func scanRequest(scanner interface{ Scan(...interface{}) error }) (Request, error) {
	var req Request
	err := scanner.Scan(&req.ReqID, &req.Status, &req.InsDate, &req.DeptCode, &req.Requester,
		&req.UserID, &req.Priority, &req.PlineCode, &req.PfamilyCode, &req.TypeCode,
		&req.CatCode, &req.DetailCode, &req.Title, &req.Description, &req.NoteTD, &req.WoID)
	return req, err
}

const requestCols = `reqid, status, insdate, dept, requester, COALESCE(user,''), priority,
	pline, pfamily, type, category, detail, title, COALESCE(description,''),
	COALESCE(note_td,''), COALESCE(woid,'')`

// decorateRequest fills the display-name fields from the reference cache.
func decorateRequest(req *Request) {
	req.DeptName = refCache.Name("torp_departments", req.DeptCode)
	req.RequesterName = refCache.Name("torp_users", req.Requester)
	req.PlineName = refCache.Name("torp_pline", req.PlineCode)
	req.PfamilyName = refCache.Name("torp_pfamily", req.PfamilyCode)
	req.TypeName = refCache.Name("torp_type", req.TypeCode)
	req.CatName = refCache.Name("torp_category", req.CatCode)
	req.DetailName = refCache.Name("torp_detail", req.DetailCode)
}

// loadTeamLeads returns the ACTIVE team-lead assignments for a request.
func loadTeamLeads(reqID string) ([]string, []string, error) {
	rows, err := db.Query(
		"SELECT tdtlid FROM torp_reqassignedto WHERE reqid = ? AND status = 'ACTIVE' ORDER BY tdtlid", reqID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var codes, names []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, nil, err
		}
		codes = append(codes, code)
		names = append(names, refCache.Name("torp_users", code))
	}
	return codes, names, nil
}

func handleListRequests(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var conditions []string
	var args []interface{}

	// Soft-deleted requests are hidden unless explicitly asked for.
	if status := q.Get("status"); status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	} else {
		conditions = append(conditions, "status != 'DELETED'")
	}
	if dept := q.Get("dept"); dept != "" {
		conditions = append(conditions, "dept = ?")
		args = append(args, dept)
	}
	if pline := q.Get("pline"); pline != "" {
		conditions = append(conditions, "pline = ?")
		args = append(args, pline)
	}
	if priority := q.Get("priority"); priority != "" {
		conditions = append(conditions, "priority = ?")
		args = append(args, priority)
	}
	if requester := q.Get("requester"); requester != "" {
		conditions = append(conditions, "requester = ?")
		args = append(args, requester)
	}
	if from := q.Get("from"); from != "" {
		conditions = append(conditions, "insdate >= ?")
		args = append(args, from)
	}
	if to := q.Get("to"); to != "" {
		conditions = append(conditions, "insdate <= ?")
		args = append(args, to)
	}
	if tdtl := q.Get("tdtl"); tdtl != "" {
		conditions = append(conditions,
			"reqid IN (SELECT reqid FROM torp_reqassignedto WHERE tdtlid = ? AND status = 'ACTIVE')")
		args = append(args, tdtl)
	}
	if search := q.Get("search"); search != "" {
		conditions = append(conditions, "(title LIKE ? OR description LIKE ? OR reqid LIKE ?)")
		s := "%" + search + "%"
		args = append(args, s, s, s)
	}

	whereClause := " WHERE " + strings.Join(conditions, " AND ")

	limit := 50
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		limit = n
	}
	page := 1
	if n, err := strconv.Atoi(q.Get("page")); err == nil && n > 0 {
		page = n
	}

	var total int
	db.QueryRow("SELECT COUNT(*) FROM torp_requests"+whereClause, args...).Scan(&total)

	query := "SELECT " + requestCols + " FROM torp_requests" + whereClause +
		" ORDER BY insdate DESC, reqid DESC LIMIT ? OFFSET ?"
	rows, err := db.Query(query, append(args, limit, (page-1)*limit)...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	requests := []Request{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		decorateRequest(&req)
		requests = append(requests, req)
	}
	rows.Close()

	for i := range requests {
		codes, names, err := loadTeamLeads(requests[i].ReqID)
		if err == nil {
			requests[i].TeamLeads = codes
			requests[i].TeamLeadNames = names
		}
	}

	jsonRespMeta(w, requests, total, page, limit)
}

func validateRequestPayload(req *Request, ve *ValidationErrors) {
	requireField(ve, "dept", req.DeptCode)
	requireField(ve, "requester", req.Requester)
	requireField(ve, "pline", req.PlineCode)
	requireField(ve, "pfamily", req.PfamilyCode)
	requireField(ve, "type", req.TypeCode)
	requireField(ve, "category", req.CatCode)
	requireField(ve, "detail", req.DetailCode)
	requireField(ve, "title", req.Title)
	validateEnum(ve, "priority", req.Priority, validPriorities)
	validateDate(ve, "insdate", req.InsDate)
	validateMaxLength(ve, "title", req.Title, 200)
	validateCode(ve, "dept", "torp_departments", req.DeptCode)
	validateCode(ve, "requester", "torp_users", req.Requester)
	validateCode(ve, "pline", "torp_pline", req.PlineCode)
	validateCode(ve, "pfamily", "torp_pfamily", req.PfamilyCode)
	validateCode(ve, "type", "torp_type", req.TypeCode)
	validateCode(ve, "category", "torp_category", req.CatCode)
	validateCode(ve, "detail", "torp_detail", req.DetailCode)
	for _, tl := range req.TeamLeads {
		validateCode(ve, "tdtl", "torp_users", tl)
	}
}

func handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	if req.DeptCode == "" {
		req.DeptCode = cfg.DefaultDept
	}
	if req.Priority == "" {
		req.Priority = defaultPriority
	}
	if req.InsDate == "" {
		req.InsDate = time.Now().Format("2006-01-02")
	}

	ve := &ValidationErrors{}
	validateRequestPayload(&req, ve)
	if len(req.TeamLeads) == 0 {
		ve.Add("tdtl", "at least one team lead is required")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer tx.Rollback()

	reqID, err := nextObjectID(tx, objClassRequest, req.InsDate[:4], req.PlineCode)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	_, err = tx.Exec(`INSERT INTO torp_requests
		(reqid, status, insdate, dept, requester, user, priority, pline, pfamily, type, category, detail, title, description, note_td, woid)
		VALUES (?, 'NEW', ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '')`,
		reqID, req.InsDate, req.DeptCode, req.Requester, req.UserID, req.Priority,
		req.PlineCode, req.PfamilyCode, req.TypeCode, req.CatCode, req.DetailCode,
		req.Title, req.Description, req.NoteTD)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	for _, tl := range req.TeamLeads {
		if _, err := tx.Exec(
			"INSERT INTO torp_reqassignedto (reqid, tdtlid, status) VALUES (?, ?, 'ACTIVE')",
			reqID, tl); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
	}

	if err := tx.Commit(); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	logAudit(db, getUsername(r), AuditActionCreate, "requests", reqID, "Created request: "+req.Title)
	broadcast("requests", "created", reqID)

	req.ReqID = reqID
	req.Status = "NEW"
	decorateRequest(&req)
	w.WriteHeader(201)
	jsonResp(w, req)
}

func handleGetRequest(w http.ResponseWriter, r *http.Request, reqID string) {
	row := db.QueryRow("SELECT "+requestCols+" FROM torp_requests WHERE reqid = ?", reqID)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		jsonErr(w, "Request not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	decorateRequest(&req)
	codes, names, err := loadTeamLeads(reqID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	req.TeamLeads = codes
	req.TeamLeadNames = names

	attachments, err := listAttachmentMeta(reqID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	resp := map[string]interface{}{
		"request":     req,
		"attachments": attachments,
	}

	if req.WoID != "" {
		wo, err := loadWorkOrder(req.WoID)
		if err == nil {
			resp["workorder"] = wo
		}
	}

	jsonResp(w, resp)
}

func handleUpdateRequest(w http.ResponseWriter, r *http.Request, reqID string) {
	var req Request
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	var current string
	err := db.QueryRow("SELECT status FROM torp_requests WHERE reqid = ?", reqID).Scan(&current)
	if err == sql.ErrNoRows {
		jsonErr(w, "Request not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	if req.Priority == "" {
		req.Priority = defaultPriority
	}
	if req.Status == "" {
		req.Status = current
	}

	ve := &ValidationErrors{}
	validateRequestPayload(&req, ve)
	validateEnum(ve, "status", req.Status, validRequestStatuses)
	// DELETED is only reachable through the delete endpoint.
	if req.Status == "DELETED" && current != "DELETED" {
		ve.Add("status", "cannot be set to DELETED directly")
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`UPDATE torp_requests SET status=?, dept=?, requester=?, user=?, priority=?,
		pline=?, pfamily=?, type=?, category=?, detail=?, title=?, description=?, note_td=?
		WHERE reqid=?`,
		req.Status, req.DeptCode, req.Requester, req.UserID, req.Priority,
		req.PlineCode, req.PfamilyCode, req.TypeCode, req.CatCode, req.DetailCode,
		req.Title, req.Description, req.NoteTD, reqID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	// Rewrite team-lead assignments: disable everything, then
	// reactivate or insert the submitted set. History rows survive
	// as DISABLED instead of being deleted.
	if req.TeamLeads != nil {
		if _, err := tx.Exec(
			"UPDATE torp_reqassignedto SET status='DISABLED' WHERE reqid=?", reqID); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		for _, tl := range req.TeamLeads {
			res, err := tx.Exec(
				"UPDATE torp_reqassignedto SET status='ACTIVE' WHERE reqid=? AND tdtlid=?", reqID, tl)
			if err != nil {
				jsonErr(w, "Database error", 500)
				return
			}
			if n, _ := res.RowsAffected(); n == 0 {
				if _, err := tx.Exec(
					"INSERT INTO torp_reqassignedto (reqid, tdtlid, status) VALUES (?, ?, 'ACTIVE')",
					reqID, tl); err != nil {
					jsonErr(w, "Database error", 500)
					return
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	logAudit(db, getUsername(r), AuditActionUpdate, "requests", reqID,
		fmt.Sprintf("Updated request (status: %s)", req.Status))
	broadcast("requests", "updated", reqID)

	handleGetRequest(w, r, reqID)
}

func handleDeleteRequest(w http.ResponseWriter, r *http.Request, reqID string) {
	var status string
	err := db.QueryRow("SELECT status FROM torp_requests WHERE reqid = ?", reqID).Scan(&status)
	if err == sql.ErrNoRows {
		jsonErr(w, "Request not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer tx.Rollback()

	if _, err := tx.Exec("UPDATE torp_requests SET status='DELETED' WHERE reqid=?", reqID); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if _, err := tx.Exec("UPDATE torp_reqassignedto SET status='DISABLED' WHERE reqid=?", reqID); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if err := tx.Commit(); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	logAudit(db, getUsername(r), AuditActionDelete, "requests", reqID, "Soft-deleted request")
	broadcast("requests", "deleted", reqID)
	jsonResp(w, map[string]string{"status": "deleted"})
}
