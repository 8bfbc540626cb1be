package main

import (
	"database/sql"
	"encoding/csv"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
)

var htmlTagRe = regexp.MustCompile(`<[^>]*>`)

// stripHTML removes markup from free-text fields before export so
// spreadsheet cells stay readable.
func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagRe.ReplaceAllString(s, ""))
}

// exportCSV writes a semicolon-separated CSV, the delimiter the office
// tooling here expects.
func exportCSV(w http.ResponseWriter, filename string, headers []string, data [][]string) {
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))

	writer := csv.NewWriter(w)
	writer.Comma = ';'
	defer writer.Flush()

	if err := writer.Write(headers); err != nil {
		http.Error(w, "Failed to write CSV headers", 500)
		return
	}
	for _, row := range data {
		if err := writer.Write(row); err != nil {
			http.Error(w, "Failed to write CSV row", 500)
			return
		}
	}
}

func exportExcel(w http.ResponseWriter, sheetName string, headers []string, data [][]string) {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		http.Error(w, "Failed to create Excel sheet", 500)
		return
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#D3D3D3"}, Pattern: 1},
	})
	if err != nil {
		http.Error(w, "Failed to create header style", 500)
		return
	}

	for i, header := range headers {
		cell := fmt.Sprintf("%s1", string(rune('A'+i)))
		f.SetCellValue(sheetName, cell, header)
		f.SetCellStyle(sheetName, cell, cell, headerStyle)
	}

	for rowIdx, row := range data {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%s%d", string(rune('A'+colIdx)), rowIdx+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	for i := range headers {
		col := string(rune('A' + i))
		f.SetColWidth(sheetName, col, col, 15)
	}

	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s.xlsx", strings.ToLower(sheetName)))

	if err := f.Write(w); err != nil {
		http.Error(w, "Failed to write Excel file", 500)
		return
	}
}

func handleExportRequests(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	query := "SELECT " + requestCols + " FROM torp_requests WHERE status != 'DELETED'"
	var args []interface{}
	if status := r.URL.Query().Get("status"); status != "" {
		query = "SELECT " + requestCols + " FROM torp_requests WHERE status = ?"
		args = append(args, status)
	}
	query += " ORDER BY insdate DESC, reqid DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		http.Error(w, "Database error", 500)
		return
	}
	defer rows.Close()

	headers := []string{"Request ID", "Status", "Date", "Department", "Requester", "Priority",
		"Product Line", "Product Family", "Type", "Category", "Detail", "Title", "Description", "Work Order"}
	var data [][]string

	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			http.Error(w, "Database error", 500)
			return
		}
		data = append(data, []string{
			req.ReqID, req.Status, req.InsDate,
			refCache.Name("torp_departments", req.DeptCode),
			refCache.Name("torp_users", req.Requester),
			req.Priority,
			refCache.Name("torp_pline", req.PlineCode),
			refCache.Name("torp_pfamily", req.PfamilyCode),
			refCache.Name("torp_type", req.TypeCode),
			refCache.Name("torp_category", req.CatCode),
			refCache.Name("torp_detail", req.DetailCode),
			stripHTML(req.Title), stripHTML(req.Description), req.WoID,
		})
	}

	logAudit(db, getUsername(r), AuditActionExport, "requests", format,
		fmt.Sprintf("Exported %d requests", len(data)))

	if format == "xlsx" {
		exportExcel(w, "Requests", headers, data)
	} else {
		exportCSV(w, "requests.csv", headers, data)
	}
}

func handleExportWorkItems(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}

	conditions := []string{"i.status = 'ACTIVE'"}
	var args []interface{}
	if from := r.URL.Query().Get("from"); from != "" {
		conditions = append(conditions, "i.refdate >= ?")
		args = append(args, from)
	}
	if to := r.URL.Query().Get("to"); to != "" {
		conditions = append(conditions, "i.refdate <= ?")
		args = append(args, to)
	}
	if tdsp := r.URL.Query().Get("tdsp"); tdsp != "" {
		conditions = append(conditions, "i.tdspid = ?")
		args = append(args, tdsp)
	}

	query := `SELECT i.refdate, i.woid, COALESCE(o.title,''), i.tdspid, i.tskgrl1, i.tskgrl2,
		COALESCE(i.description,''), i.time_qty, i.time_um
		FROM torp_workitems i LEFT JOIN torp_workorders o ON o.woid = i.woid
		WHERE ` + strings.Join(conditions, " AND ") + " ORDER BY i.refdate DESC, i.id DESC"

	rows, err := db.Query(query, args...)
	if err != nil {
		http.Error(w, "Database error", 500)
		return
	}
	defer rows.Close()

	headers := []string{"Date", "Work Order", "WO Title", "Specialist", "Task Group", "Task",
		"Description", "Qty", "Unit", "Hours"}
	var data [][]string

	for rows.Next() {
		var refdate, woid, woTitle, tdsp, tg1, tg2, desc, um string
		var qty float64
		if err := rows.Scan(&refdate, &woid, &woTitle, &tdsp, &tg1, &tg2, &desc, &qty, &um); err != nil {
			http.Error(w, "Database error", 500)
			return
		}
		data = append(data, []string{
			refdate, woid, stripHTML(woTitle),
			refCache.Name("torp_users", tdsp),
			refCache.Name("torp_taskgrp_l1", tg1),
			refCache.Name("torp_taskgrp_l2", tg2),
			stripHTML(desc),
			fmt.Sprintf("%.2f", qty), um,
			fmt.Sprintf("%.2f", hoursOf(qty, um)),
		})
	}

	logAudit(db, getUsername(r), AuditActionExport, "workitems", format,
		fmt.Sprintf("Exported %d work items", len(data)))

	if format == "xlsx" {
		exportExcel(w, "Workitems", headers, data)
	} else {
		exportCSV(w, "workitems.csv", headers, data)
	}
}

// handleRequestReport renders a print-ready HTML view of one request
// with its work order and logged time. The page calls window.print()
// on load so the browser's PDF output is one click away.
func handleRequestReport(w http.ResponseWriter, r *http.Request, reqID string) {
	row := db.QueryRow("SELECT "+requestCols+" FROM torp_requests WHERE reqid = ?", reqID)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		http.Error(w, "Request not found", 404)
		return
	}
	if err != nil {
		http.Error(w, "Database error", 500)
		return
	}
	decorateRequest(&req)
	_, leadNames, _ := loadTeamLeads(reqID)

	esc := html.EscapeString

	woSection := ""
	itemRows := ""
	if req.WoID != "" {
		wo, err := loadWorkOrder(req.WoID)
		if err == nil {
			woSection = fmt.Sprintf(`<h2>Work Order %s</h2>
<div class="info-grid">
  <dt>Team Lead:</dt><dd>%s</dd>
  <dt>Type:</dt><dd>%s</dd>
  <dt>Estimate:</dt><dd>%.1f %s</dd>
  <dt>Schedule:</dt><dd>%s &ndash; %s</dd>
  <dt>Title:</dt><dd>%s</dd>
</div>`,
				esc(wo.WoID), esc(wo.TdtlName), esc(wo.Type), wo.TimeQty, esc(wo.TimeUM),
				esc(wo.StartDate), esc(wo.EndDate), esc(wo.Title))
		}

		rows, err := db.Query(`SELECT refdate, tdspid, tskgrl1, tskgrl2, COALESCE(description,''), time_qty, time_um
			FROM torp_workitems WHERE woid = ? AND status = 'ACTIVE' ORDER BY refdate`, req.WoID)
		if err == nil {
			var totalHours float64
			for rows.Next() {
				var refdate, tdsp, tg1, tg2, desc, um string
				var qty float64
				if rows.Scan(&refdate, &tdsp, &tg1, &tg2, &desc, &qty, &um) == nil {
					totalHours += hoursOf(qty, um)
					itemRows += fmt.Sprintf(
						`<tr><td>%s</td><td>%s</td><td>%s / %s</td><td>%s</td><td style="text-align:right">%.1f %s</td></tr>`,
						esc(refdate), esc(refCache.Name("torp_users", tdsp)),
						esc(refCache.Name("torp_taskgrp_l1", tg1)), esc(refCache.Name("torp_taskgrp_l2", tg2)),
						esc(desc), qty, esc(um))
				}
			}
			rows.Close()
			if itemRows != "" {
				itemRows += fmt.Sprintf(
					`<tr class="total-row"><td colspan="4" style="text-align:right;border-top:2px solid #000">Total hours:</td><td style="text-align:right;border-top:2px solid #000">%.1f</td></tr>`,
					totalHours)
			}
		}
	}
	if itemRows == "" {
		itemRows = `<tr><td colspan="5" style="text-align:center;color:#999">No work logged</td></tr>`
	}

	page := fmt.Sprintf(`<!DOCTYPE html>
<html><head><meta charset="UTF-8"><title>Request &mdash; %s</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: Arial, Helvetica, sans-serif; font-size: 11pt; color: #000; padding: 0.5in; }
  h1 { font-size: 18pt; margin-bottom: 2pt; }
  h2 { font-size: 13pt; margin: 16pt 0 6pt; border-bottom: 2px solid #000; padding-bottom: 3pt; }
  table { width: 100%%; border-collapse: collapse; margin-bottom: 12pt; }
  th, td { border: 1px solid #000; padding: 4pt 6pt; text-align: left; font-size: 10pt; }
  th { background: #eee; font-weight: bold; }
  .header { display: flex; justify-content: space-between; align-items: flex-start; border-bottom: 3px solid #000; padding-bottom: 8pt; margin-bottom: 12pt; }
  .info-grid { display: grid; grid-template-columns: auto 1fr; gap: 4pt 12pt; margin-bottom: 12pt; font-size: 10pt; }
  .info-grid dt { font-weight: bold; }
  .total-row td { font-weight: bold; font-size: 11pt; }
  @media print { body { padding: 0; } @page { margin: 0.5in; } }
</style>
</head><body>
<div class="header">
  <div>
    <h1>TORP &mdash; Request</h1>
    <div style="font-size:10pt;color:#555">%s</div>
  </div>
  <div style="text-align:right;font-size:10pt">
    <div><strong>Request:</strong> %s</div>
    <div><strong>Date:</strong> %s</div>
    <div><strong>Status:</strong> %s</div>
    <div><strong>Priority:</strong> %s</div>
  </div>
</div>

<h2>Details</h2>
<div class="info-grid">
  <dt>Department:</dt><dd>%s</dd>
  <dt>Requester:</dt><dd>%s</dd>
  <dt>Product Line:</dt><dd>%s</dd>
  <dt>Product Family:</dt><dd>%s</dd>
  <dt>Classification:</dt><dd>%s / %s / %s</dd>
  <dt>Team Leads:</dt><dd>%s</dd>
  <dt>Title:</dt><dd>%s</dd>
  <dt>Description:</dt><dd>%s</dd>
</div>

%s

<h2>Logged Work</h2>
<table>
  <thead><tr><th>Date</th><th>Specialist</th><th>Task</th><th>Description</th><th style="text-align:right">Time</th></tr></thead>
  <tbody>%s</tbody>
</table>

<script>window.onload = () => window.print()</script>
</body></html>`,
		esc(req.ReqID), esc(cfg.CompanyName),
		esc(req.ReqID), esc(req.InsDate), esc(req.Status), esc(req.Priority),
		esc(req.DeptName), esc(req.RequesterName), esc(req.PlineName), esc(req.PfamilyName),
		esc(req.TypeName), esc(req.CatName), esc(req.DetailName),
		esc(strings.Join(leadNames, ", ")),
		esc(stripHTML(req.Title)), esc(stripHTML(req.Description)),
		woSection, itemRows)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(page))
}
