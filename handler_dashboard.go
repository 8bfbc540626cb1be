package main

import (
	"net/http"
	"time"
)

func handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	from := q.Get("from")
	if from == "" {
		from = time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	}
	to := q.Get("to")
	if to == "" {
		to = time.Now().Format("2006-01-02")
	}

	data := DashboardData{
		ByStatus: map[string]int{},
		ByLine:   map[string]int{},
		ByDay:    map[string]map[string]int{},
	}

	rows, err := db.Query("SELECT status, COUNT(*) FROM torp_requests WHERE status != 'DELETED' GROUP BY status")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	for rows.Next() {
		var status string
		var n int
		if rows.Scan(&status, &n) == nil {
			data.ByStatus[status] = n
			data.Total += n
		}
	}
	rows.Close()

	rows, err = db.Query("SELECT pline, COUNT(*) FROM torp_requests WHERE status != 'DELETED' GROUP BY pline")
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	for rows.Next() {
		var pline string
		var n int
		if rows.Scan(&pline, &n) == nil {
			name := refCache.Name("torp_pline", pline)
			if name == "" {
				name = pline
			}
			data.ByLine[name] = n
		}
	}
	rows.Close()

	rows, err = db.Query(`SELECT insdate, status, COUNT(*) FROM torp_requests
		WHERE status != 'DELETED' AND insdate >= ? AND insdate <= ?
		GROUP BY insdate, status`, from, to)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	for rows.Next() {
		var day, status string
		var n int
		if rows.Scan(&day, &status, &n) == nil {
			if data.ByDay[day] == nil {
				data.ByDay[day] = map[string]int{}
			}
			data.ByDay[day][status] = n
		}
	}
	rows.Close()

	db.QueryRow(`SELECT COALESCE(SUM(CASE WHEN time_um='D' THEN time_qty*8 ELSE time_qty END),0)
		FROM torp_workitems WHERE status = 'ACTIVE'`).Scan(&data.ItemHours)

	jsonResp(w, data)
}

type calendarEvent struct {
	Date     string  `json:"date"`
	Kind     string  `json:"kind"`
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Assignee string  `json:"assignee,omitempty"`
	Hours    float64 `json:"hours,omitempty"`
}

// handleCalendar returns work-order spans and logged time for a date
// window, defaulting to the current month.
func handleCalendar(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	now := time.Now()
	from := q.Get("from")
	if from == "" {
		from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}
	to := q.Get("to")
	if to == "" {
		to = time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, time.UTC).Format("2006-01-02")
	}

	events := []calendarEvent{}

	rows, err := db.Query(`SELECT woid, title, tdtlid, startdate, COALESCE(enddate,'')
		FROM torp_workorders
		WHERE startdate != '' AND startdate <= ? AND (enddate = '' OR enddate >= ?)`, to, from)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	for rows.Next() {
		var woid, title, tdtl, start, end string
		if rows.Scan(&woid, &title, &tdtl, &start, &end) == nil {
			events = append(events, calendarEvent{
				Date:     start,
				Kind:     "workorder",
				ID:       woid,
				Title:    title,
				Assignee: refCache.Name("torp_users", tdtl),
			})
			if end != "" && end != start {
				events = append(events, calendarEvent{
					Date:     end,
					Kind:     "workorder_end",
					ID:       woid,
					Title:    title,
					Assignee: refCache.Name("torp_users", tdtl),
				})
			}
		}
	}
	rows.Close()

	rows, err = db.Query(`SELECT i.refdate, i.woid, COALESCE(o.title,''), i.tdspid,
		CASE WHEN i.time_um='D' THEN i.time_qty*8 ELSE i.time_qty END
		FROM torp_workitems i LEFT JOIN torp_workorders o ON o.woid = i.woid
		WHERE i.status = 'ACTIVE' AND i.refdate >= ? AND i.refdate <= ?`, from, to)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	for rows.Next() {
		var ev calendarEvent
		var tdsp string
		if rows.Scan(&ev.Date, &ev.ID, &ev.Title, &tdsp, &ev.Hours) == nil {
			ev.Kind = "workitem"
			ev.Assignee = refCache.Name("torp_users", tdsp)
			events = append(events, ev)
		}
	}
	rows.Close()

	jsonResp(w, map[string]interface{}{
		"from":   from,
		"to":     to,
		"events": events,
	})
}
