package main

import (
	"database/sql"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const workItemCols = `i.id, i.refdate, i.woid, i.tdspid, i.status, i.tskgrl1, i.tskgrl2,
	COALESCE(i.description,''), COALESCE(i.note,''), i.time_qty, i.time_um`

func scanWorkItem(scanner interface{ Scan(...interface{}) error }) (WorkItem, error) {
	var wi WorkItem
	err := scanner.Scan(&wi.ID, &wi.RefDate, &wi.WoID, &wi.TdspID, &wi.Status,
		&wi.TaskGrpL1, &wi.TaskGrpL2, &wi.Description, &wi.Note, &wi.TimeQty, &wi.TimeUM)
	return wi, err
}

func decorateWorkItem(wi *WorkItem) {
	wi.TdspName = refCache.Name("torp_users", wi.TdspID)
	wi.TgL1Name = refCache.Name("torp_taskgrp_l1", wi.TaskGrpL1)
	wi.TgL2Name = refCache.Name("torp_taskgrp_l2", wi.TaskGrpL2)
}

// hoursOf normalizes a time entry to hours. A day counts as 8 hours.
func hoursOf(qty float64, um string) float64 {
	if um == "D" {
		return qty * 8
	}
	return qty
}

func validateWorkItemPayload(wi *WorkItem, ve *ValidationErrors) {
	requireField(ve, "refdate", wi.RefDate)
	requireField(ve, "woid", wi.WoID)
	requireField(ve, "tdspid", wi.TdspID)
	requireField(ve, "tskgrl1", wi.TaskGrpL1)
	requireField(ve, "tskgrl2", wi.TaskGrpL2)
	validateDate(ve, "refdate", wi.RefDate)
	validateEnum(ve, "time_um", wi.TimeUM, validTimeUnits)
	validatePositiveFloat(ve, "time_qty", wi.TimeQty)
	validateCode(ve, "tdspid", "torp_users", wi.TdspID)
	validateCode(ve, "tskgrl1", "torp_taskgrp_l1", wi.TaskGrpL1)
	validateCode(ve, "tskgrl2", "torp_taskgrp_l2", wi.TaskGrpL2)
	validateMaxLength(ve, "description", wi.Description, 2000)
	validateMaxLength(ve, "note", wi.Note, 2000)

	if wi.WoID != "" {
		var count int
		db.QueryRow("SELECT COUNT(*) FROM torp_workorders WHERE woid=?", wi.WoID).Scan(&count)
		if count == 0 {
			ve.Add("woid", "references non-existent work order: "+wi.WoID)
		}
	}
}

func handleListWorkItems(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	conditions := []string{"i.status = 'ACTIVE'"}
	var args []interface{}
	if woid := q.Get("woid"); woid != "" {
		conditions = append(conditions, "i.woid = ?")
		args = append(args, woid)
	}
	if tdsp := q.Get("tdsp"); tdsp != "" {
		conditions = append(conditions, "i.tdspid = ?")
		args = append(args, tdsp)
	}
	if from := q.Get("from"); from != "" {
		conditions = append(conditions, "i.refdate >= ?")
		args = append(args, from)
	}
	if to := q.Get("to"); to != "" {
		conditions = append(conditions, "i.refdate <= ?")
		args = append(args, to)
	}
	if tg := q.Get("tskgrl1"); tg != "" {
		conditions = append(conditions, "i.tskgrl1 = ?")
		args = append(args, tg)
	}

	query := "SELECT " + workItemCols + `, COALESCE(o.reqid,''), COALESCE(o.title,'')
		FROM torp_workitems i LEFT JOIN torp_workorders o ON o.woid = i.woid
		WHERE ` + strings.Join(conditions, " AND ") + " ORDER BY i.refdate DESC, i.id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	defer rows.Close()

	items := []WorkItem{}
	var totalHours float64
	hoursByWo := map[string]float64{}
	hoursByDay := map[string]float64{}
	for rows.Next() {
		var wi WorkItem
		err := rows.Scan(&wi.ID, &wi.RefDate, &wi.WoID, &wi.TdspID, &wi.Status,
			&wi.TaskGrpL1, &wi.TaskGrpL2, &wi.Description, &wi.Note, &wi.TimeQty, &wi.TimeUM,
			&wi.ReqID, &wi.WoTitle)
		if err != nil {
			jsonErr(w, "Database error", 500)
			return
		}
		decorateWorkItem(&wi)
		h := hoursOf(wi.TimeQty, wi.TimeUM)
		totalHours += h
		hoursByWo[wi.WoID] += h
		hoursByDay[wi.RefDate] += h
		items = append(items, wi)
	}

	jsonResp(w, map[string]interface{}{
		"items":        items,
		"total_hours":  totalHours,
		"hours_by_wo":  hoursByWo,
		"hours_by_day": hoursByDay,
	})
}

func handleCreateWorkItem(w http.ResponseWriter, r *http.Request) {
	var wi WorkItem
	if err := decodeBody(r, &wi); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	if wi.TimeUM == "" {
		wi.TimeUM = defaultTimeUnit
	}

	ve := &ValidationErrors{}
	validateWorkItemPayload(&wi, ve)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	res, err := db.Exec(`INSERT INTO torp_workitems
		(refdate, woid, tdspid, status, tskgrl1, tskgrl2, description, note, time_qty, time_um)
		VALUES (?, ?, ?, 'ACTIVE', ?, ?, ?, ?, ?, ?)`,
		wi.RefDate, wi.WoID, wi.TdspID, wi.TaskGrpL1, wi.TaskGrpL2,
		wi.Description, wi.Note, wi.TimeQty, wi.TimeUM)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	id, _ := res.LastInsertId()
	wi.ID = int(id)
	wi.Status = "ACTIVE"
	decorateWorkItem(&wi)

	logAudit(db, getUsername(r), AuditActionCreate, "workitems", strconv.Itoa(wi.ID),
		fmt.Sprintf("Logged %.1f%s on %s", wi.TimeQty, wi.TimeUM, wi.WoID))
	broadcast("workitems", "created", wi.ID)

	w.WriteHeader(201)
	jsonResp(w, wi)
}

func handleUpdateWorkItem(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid work item id", 400)
		return
	}

	row := db.QueryRow("SELECT "+workItemCols+" FROM torp_workitems i WHERE i.id = ?", id)
	current, err := scanWorkItem(row)
	if err == sql.ErrNoRows {
		jsonErr(w, "Work item not found", 404)
		return
	}
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if current.Status != "ACTIVE" {
		jsonErr(w, "Work item is disabled", 409)
		return
	}

	var wi WorkItem
	if err := decodeBody(r, &wi); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}
	if wi.TimeUM == "" {
		wi.TimeUM = defaultTimeUnit
	}

	ve := &ValidationErrors{}
	validateWorkItemPayload(&wi, ve)
	if ve.HasErrors() {
		jsonErr(w, ve.Error(), 400)
		return
	}

	_, err = db.Exec(`UPDATE torp_workitems SET refdate=?, woid=?, tdspid=?, tskgrl1=?, tskgrl2=?,
		description=?, note=?, time_qty=?, time_um=? WHERE id=?`,
		wi.RefDate, wi.WoID, wi.TdspID, wi.TaskGrpL1, wi.TaskGrpL2,
		wi.Description, wi.Note, wi.TimeQty, wi.TimeUM, id)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}

	wi.ID = id
	wi.Status = "ACTIVE"
	decorateWorkItem(&wi)

	logAudit(db, getUsername(r), AuditActionUpdate, "workitems", idStr, "Updated work item")
	broadcast("workitems", "updated", id)
	jsonResp(w, wi)
}

func handleDeleteWorkItem(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid work item id", 400)
		return
	}

	res, err := db.Exec("UPDATE torp_workitems SET status='DISABLED' WHERE id=? AND status='ACTIVE'", id)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "Work item not found", 404)
		return
	}

	logAudit(db, getUsername(r), AuditActionDelete, "workitems", idStr, "Disabled work item")
	broadcast("workitems", "deleted", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
