package main

import (
	"database/sql"
	"net/http"
	"strings"
)

const workOrderCols = `woid, tdtlid, type, status, title, COALESCE(description,''),
	COALESCE(time_qty,0), COALESCE(time_um,'H'), COALESCE(startdate,''), COALESCE(enddate,''), reqid`

func scanWorkOrder(scanner interface{ Scan(...interface{}) error }) (WorkOrder, error) {
	var wo WorkOrder
	err := scanner.Scan(&wo.WoID, &wo.TdtlID, &wo.Type, &wo.Status, &wo.Title, &wo.Description,
		&wo.TimeQty, &wo.TimeUM, &wo.StartDate, &wo.EndDate, &wo.ReqID)
	return wo, err
}

// loadWorkOrder fetches one work order with its ACTIVE specialists.
func loadWorkOrder(woID string) (WorkOrder, error) {
	row := db.QueryRow("SELECT "+workOrderCols+" FROM torp_workorders WHERE woid = ?", woID)
	wo, err := scanWorkOrder(row)
	if err != nil {
		return wo, err
	}
	wo.TdtlName = refCache.Name("torp_users", wo.TdtlID)

	rows, err := db.Query(
		"SELECT tdspid FROM torp_woassignedto WHERE woid = ? AND status = 'ACTIVE' ORDER BY tdspid", woID)
	if err != nil {
		return wo, err
	}
	defer rows.Close()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return wo, err
		}
		wo.Specialists = append(wo.Specialists, code)
		wo.SpecNames = append(wo.SpecNames, refCache.Name("torp_users", code))
	}
	return wo, nil
}

func handleListWorkOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var conditions []string
	var args []interface{}
	if tdtl := q.Get("tdtl"); tdtl != "" {
		conditions = append(conditions, "tdtlid = ?")
		args = append(args, tdtl)
	}
	if status := q.Get("status"); status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, status)
	}
	if reqid := q.Get("reqid"); reqid != "" {
		conditions = append(conditions, "reqid = ?")
		args = append(args, reqid)
	}
	if woType := q.Get("type"); woType != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, woType)
	}
	if tdsp := q.Get("tdsp"); tdsp != "" {
		conditions = append(conditions,
			"woid IN (SELECT woid FROM torp_woassignedto WHERE tdspid = ? AND status = 'ACTIVE')")
		args = append(args, tdsp)
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := db.Query(
		"SELECT "+workOrderCols+" FROM torp_workorders"+whereClause+" ORDER BY woid DESC", args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	orders := []WorkOrder{}
	for rows.Next() {
		wo, err := scanWorkOrder(rows)
		if err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		wo.TdtlName = refCache.Name("torp_users", wo.TdtlID)
		orders = append(orders, wo)
	}
	rows.Close()

	for i := range orders {
		specRows, err := db.Query(
			"SELECT tdspid FROM torp_woassignedto WHERE woid = ? AND status = 'ACTIVE' ORDER BY tdspid",
			orders[i].WoID)
		if err != nil {
			continue
		}
		for specRows.Next() {
			var code string
			if specRows.Scan(&code) == nil {
				orders[i].Specialists = append(orders[i].Specialists, code)
				orders[i].SpecNames = append(orders[i].SpecNames, refCache.Name("torp_users", code))
			}
		}
		specRows.Close()
	}

	jsonResp(w, orders)
}

func handleGetWorkOrder(w http.ResponseWriter, r *http.Request, woID string) {
	wo, err := loadWorkOrder(woID)
	if err == sql.ErrNoRows {
		jsonErr(w, "Work order not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	var loggedHours float64
	db.QueryRow(`SELECT COALESCE(SUM(CASE WHEN time_um='D' THEN time_qty*8 ELSE time_qty END),0)
		FROM torp_workitems WHERE woid = ? AND status = 'ACTIVE'`, woID).Scan(&loggedHours)

	jsonResp(w, map[string]interface{}{
		"workorder":    wo,
		"logged_hours": loggedHours,
	})
}

// handleSaveWorkOrder creates or updates the work order for a request.
// The id in the path is derived from the parent request id, so the
// same PUT serves first save and every later edit.
func handleSaveWorkOrder(w http.ResponseWriter, r *http.Request, woID string) {
	var wo WorkOrder
	if err := decodeBody(r, &wo); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	if wo.Type == "" {
		wo.Type = "Standard"
	}
	if wo.TimeUM == "" {
		wo.TimeUM = defaultTimeUnit
	}
	if wo.Status == "" {
		wo.Status = "ACTIVE"
	}

	ve := &ValidationErrors{}
	requireField(ve, "reqid", wo.ReqID)
	requireField(ve, "tdtlid", wo.TdtlID)
	requireField(ve, "title", wo.Title)
	validateEnum(ve, "type", wo.Type, validWorkOrderTypes)
	validateEnum(ve, "status", wo.Status, validAssignmentStatuses)
	validateEnum(ve, "time_um", wo.TimeUM, validTimeUnits)
	validateDate(ve, "startdate", wo.StartDate)
	validateDate(ve, "enddate", wo.EndDate)
	validateCode(ve, "tdtlid", "torp_users", wo.TdtlID)
	validatePositiveFloat(ve, "time_qty", wo.TimeQty)
	if wo.StartDate != "" && wo.EndDate != "" && wo.EndDate < wo.StartDate {
		ve.Add("enddate", "must not precede startdate")
	}
	if len(wo.Specialists) > maxSpecialists {
		ve.Add("tdsp", "at most 3 specialists per work order")
	}
	for _, sp := range wo.Specialists {
		validateCode(ve, "tdsp", "torp_users", sp)
	}
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	expected, err := workOrderID(wo.ReqID)
	if err != nil || expected != woID {
		jsonErr(w, "Work order id does not match its request", 400)
		return
	}

	var reqStatus string
	err = db.QueryRow("SELECT status FROM torp_requests WHERE reqid = ?", wo.ReqID).Scan(&reqStatus)
	if err == sql.ErrNoRows {
		jsonErr(w, "Request not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if reqStatus == "DELETED" {
		jsonErr(w, "Request is deleted", 409)
		return
	}

	tx, err := db.Begin()
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRow("SELECT COUNT(*) FROM torp_workorders WHERE woid = ?", woID).Scan(&exists); err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	action := AuditActionUpdate
	event := "updated"
	if exists == 0 {
		action = AuditActionCreate
		event = "created"
		_, err = tx.Exec(`INSERT INTO torp_workorders
			(woid, tdtlid, type, status, title, description, time_qty, time_um, startdate, enddate, reqid)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			woID, wo.TdtlID, wo.Type, wo.Status, wo.Title, wo.Description, wo.TimeQty, wo.TimeUM,
			wo.StartDate, wo.EndDate, wo.ReqID)
	} else {
		_, err = tx.Exec(`UPDATE torp_workorders SET tdtlid=?, type=?, status=?, title=?, description=?,
			time_qty=?, time_um=?, startdate=?, enddate=? WHERE woid=?`,
			wo.TdtlID, wo.Type, wo.Status, wo.Title, wo.Description, wo.TimeQty, wo.TimeUM,
			wo.StartDate, wo.EndDate, woID)
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	// First save links the work order back to its request and moves a
	// freshly triaged request into ASSIGNED. Later stages stay put.
	if reqStatus == "NEW" || reqStatus == "PENDING" {
		_, err = tx.Exec("UPDATE torp_requests SET woid=?, status='ASSIGNED' WHERE reqid=?", woID, wo.ReqID)
	} else {
		_, err = tx.Exec("UPDATE torp_requests SET woid=? WHERE reqid=?", woID, wo.ReqID)
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	// Specialist assignments follow the same rewrite as team leads on
	// requests: disable the full set, reactivate or insert the new one.
	if wo.Specialists != nil {
		if _, err := tx.Exec("UPDATE torp_woassignedto SET status='DISABLED' WHERE woid=?", woID); err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		for _, sp := range wo.Specialists {
			res, err := tx.Exec(
				"UPDATE torp_woassignedto SET status='ACTIVE', tdtlid=? WHERE woid=? AND tdspid=?",
				wo.TdtlID, woID, sp)
			if err != nil {
				jsonErr(w, "Database error", 500)
				return
			}
			if n, _ := res.RowsAffected(); n == 0 {
				if _, err := tx.Exec(
					"INSERT INTO torp_woassignedto (woid, tdtlid, tdspid, status) VALUES (?, ?, ?, 'ACTIVE')",
					woID, wo.TdtlID, sp); err != nil {
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

	logAudit(db, getUsername(r), action, "workorders", woID, "Saved work order: "+wo.Title)
	broadcast("workorders", event, woID)

	saved, err := loadWorkOrder(woID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if exists == 0 {
		w.WriteHeader(201)
	}
	jsonResp(w, saved)
}
