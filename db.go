package main

import (
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	_ "modernc.org/sqlite"
)

var db *sql.DB

func initDB(path string) error {
	// Close previous connection if any (prevents goroutine leaks in tests)
	if db != nil {
		db.Close()
	}
	var err error
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	db, err = sql.Open("sqlite", path+sep+"_journal_mode=WAL&_busy_timeout=10000&_foreign_keys=1")
	if err != nil {
		return err
	}

	// SQLite handles 1 writer + multiple readers with WAL mode
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(0)

	// Explicitly set WAL mode (some drivers don't parse connection string params correctly)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=30000"); err != nil {
		return fmt.Errorf("set busy_timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return fmt.Errorf("enable foreign keys: %w", err)
	}

	return runMigrations()
}

func runMigrations() error {
	// Table and column names match the legacy TORP database so an
	// existing data file keeps working unchanged.
	tables := []string{
		`CREATE TABLE IF NOT EXISTS torp_departments (
			code TEXT PRIMARY KEY, name TEXT NOT NULL,
			mngrcode TEXT DEFAULT '', rprofcode TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS torp_users (
			code TEXT PRIMARY KEY, name TEXT NOT NULL,
			deptcode TEXT NOT NULL DEFAULT '',
			FOREIGN KEY (deptcode) REFERENCES torp_departments(code)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_pline (
			code TEXT PRIMARY KEY, name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_pfamily (
			code TEXT PRIMARY KEY, name TEXT NOT NULL,
			pcode TEXT NOT NULL,
			FOREIGN KEY (pcode) REFERENCES torp_pline(code)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_type (
			code TEXT PRIMARY KEY, name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_category (
			code TEXT PRIMARY KEY, name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_detail (
			code TEXT PRIMARY KEY, name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_link_type_category (
			typecode TEXT NOT NULL, categorycode TEXT NOT NULL,
			PRIMARY KEY (typecode, categorycode)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_link_category_detail (
			categorycode TEXT NOT NULL, detailcode TEXT NOT NULL,
			PRIMARY KEY (categorycode, detailcode)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_link_pline_tdtl (
			plinecode TEXT NOT NULL, usercode TEXT NOT NULL,
			PRIMARY KEY (plinecode, usercode)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_link_tdtl_tdsp (
			tdtlcode TEXT NOT NULL, tdspcode TEXT NOT NULL,
			PRIMARY KEY (tdtlcode, tdspcode)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_taskgrp_l1 (
			code TEXT PRIMARY KEY, name TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_taskgrp_l2 (
			code TEXT PRIMARY KEY, name TEXT NOT NULL,
			pcode TEXT NOT NULL,
			FOREIGN KEY (pcode) REFERENCES torp_taskgrp_l1(code)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_objnumerator (
			obj_class TEXT NOT NULL, obj_year TEXT NOT NULL,
			obj_pline TEXT NOT NULL DEFAULT '',
			prefix TEXT NOT NULL, prog INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (obj_class, obj_year, obj_pline)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_requests (
			reqid TEXT PRIMARY KEY,
			status TEXT NOT NULL DEFAULT 'NEW' CHECK(status IN ('NEW','PENDING','ASSIGNED','WIP','COMPLETED','DELETED')),
			insdate TEXT NOT NULL,
			dept TEXT NOT NULL, requester TEXT NOT NULL,
			user TEXT DEFAULT '',
			priority TEXT NOT NULL DEFAULT 'Medium' CHECK(priority IN ('High','Medium','Low')),
			pline TEXT NOT NULL, pfamily TEXT NOT NULL,
			type TEXT NOT NULL, category TEXT NOT NULL, detail TEXT NOT NULL,
			title TEXT NOT NULL, description TEXT DEFAULT '',
			note_td TEXT DEFAULT '', woid TEXT DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS torp_reqassignedto (
			reqid TEXT NOT NULL, tdtlid TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK(status IN ('ACTIVE','DISABLED')),
			PRIMARY KEY (reqid, tdtlid)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_attachments (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			class TEXT DEFAULT 'GENERIC', title TEXT NOT NULL,
			link TEXT DEFAULT '', data BLOB,
			reqid TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK(status IN ('ACTIVE','DISABLED'))
		)`,
		`CREATE TABLE IF NOT EXISTS torp_workorders (
			woid TEXT PRIMARY KEY, tdtlid TEXT NOT NULL,
			type TEXT NOT NULL DEFAULT 'Standard' CHECK(type IN ('Standard','APQP Project')),
			status TEXT NOT NULL DEFAULT 'ACTIVE',
			title TEXT NOT NULL, description TEXT DEFAULT '',
			time_qty REAL DEFAULT 0, time_um TEXT DEFAULT 'H',
			startdate TEXT DEFAULT '', enddate TEXT DEFAULT '',
			reqid TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS torp_woassignedto (
			woid TEXT NOT NULL, tdtlid TEXT NOT NULL, tdspid TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK(status IN ('ACTIVE','DISABLED')),
			PRIMARY KEY (woid, tdspid)
		)`,
		`CREATE TABLE IF NOT EXISTS torp_workitems (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			refdate TEXT NOT NULL, woid TEXT NOT NULL, tdspid TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'ACTIVE' CHECK(status IN ('ACTIVE','DISABLED')),
			tskgrl1 TEXT NOT NULL, tskgrl2 TEXT NOT NULL,
			description TEXT DEFAULT '', note TEXT DEFAULT '',
			time_qty REAL NOT NULL CHECK(time_qty > 0),
			time_um TEXT NOT NULL DEFAULT 'H' CHECK(time_um IN ('H','D'))
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password_hash TEXT NOT NULL,
			display_name TEXT,
			role TEXT DEFAULT 'user',
			active INTEGER DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			last_login DATETIME
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			token TEXT PRIMARY KEY,
			user_id INTEGER NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			expires_at DATETIME NOT NULL,
			FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER,
			username TEXT DEFAULT 'system',
			action TEXT NOT NULL,
			module TEXT NOT NULL,
			record_id TEXT NOT NULL,
			summary TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, t := range tables {
		if _, err := db.Exec(t); err != nil {
			return fmt.Errorf("migration error: %w\nSQL: %s", err, t)
		}
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_requests_status ON torp_requests(status)",
		"CREATE INDEX IF NOT EXISTS idx_requests_insdate ON torp_requests(insdate)",
		"CREATE INDEX IF NOT EXISTS idx_requests_pline ON torp_requests(pline)",
		"CREATE INDEX IF NOT EXISTS idx_reqassignedto_tdtl ON torp_reqassignedto(tdtlid, status)",
		"CREATE INDEX IF NOT EXISTS idx_workorders_reqid ON torp_workorders(reqid)",
		"CREATE INDEX IF NOT EXISTS idx_workorders_tdtl ON torp_workorders(tdtlid)",
		"CREATE INDEX IF NOT EXISTS idx_woassignedto_tdsp ON torp_woassignedto(tdspid, status)",
		"CREATE INDEX IF NOT EXISTS idx_workitems_woid ON torp_workitems(woid)",
		"CREATE INDEX IF NOT EXISTS idx_workitems_tdsp_date ON torp_workitems(tdspid, refdate)",
		"CREATE INDEX IF NOT EXISTS idx_attachments_reqid ON torp_attachments(reqid)",
		"CREATE INDEX IF NOT EXISTS idx_sessions_expires_at ON sessions(expires_at)",
		"CREATE INDEX IF NOT EXISTS idx_audit_log_module ON audit_log(module)",
		"CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON audit_log(created_at)",
	}
	for _, idx := range indexes {
		if _, err := db.Exec(idx); err != nil {
			return fmt.Errorf("index creation: %w\nSQL: %s", err, idx)
		}
	}

	return nil
}

func seedDB(demoData bool) {
	// Always ensure admin user exists
	var userCount int
	db.QueryRow("SELECT COUNT(*) FROM users WHERE username = 'admin'").Scan(&userCount)
	if userCount == 0 {
		hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
		if err != nil {
			log.Printf("Failed to hash admin password: %v", err)
		} else {
			db.Exec("INSERT INTO users (username, password_hash, display_name, role) VALUES (?, ?, ?, ?)",
				"admin", string(hash), "Administrator", "admin")
		}
	}

	// Seed team-lead and viewer accounts
	for _, u := range []struct{ username, display, role string }{
		{"teamlead", "Team Lead", "user"},
		{"viewer", "Viewer", "readonly"},
	} {
		var n int
		db.QueryRow("SELECT COUNT(*) FROM users WHERE username = ?", u.username).Scan(&n)
		if n == 0 {
			hash, err := bcrypt.GenerateFromPassword([]byte("changeme"), bcrypt.DefaultCost)
			if err == nil {
				db.Exec("INSERT INTO users (username, password_hash, display_name, role, active) VALUES (?, ?, ?, ?, 1)",
					u.username, string(hash), u.display, u.role)
			}
		}
	}

	if !demoData {
		return
	}

	// Check if reference data already seeded
	var count int
	db.QueryRow("SELECT COUNT(*) FROM torp_departments").Scan(&count)
	if count > 0 {
		return
	}

	type pair struct{ code, name string }

	for _, d := range []struct{ code, name, mngr string }{
		{"DMN", "ACCOUNTING", "U004"},
		{"DTD", "DESIGN TECHNICAL DEPARTMENT", "U005"},
		{"CAM", "COMMERCIALE AFTER MARKET", "U007"},
	} {
		db.Exec("INSERT INTO torp_departments (code,name,mngrcode,rprofcode) VALUES (?,?,?,?)", d.code, d.name, d.mngr, "")
	}

	for _, u := range []struct{ code, name, dept string }{
		{"U001", "COMELLINI GIORGIO", "DMN"},
		{"U002", "ROMANI CORRADO", "DMN"},
		{"U003", "ROSSI PAOLA", "DMN"},
		{"U004", "CARLINI MICHELE", "DTD"},
		{"U005", "FENARA GABRIELE", "DTD"},
		{"U006", "PALMA NICOLA", "DTD"},
		{"U007", "GIORGI IVAN", "CAM"},
		{"U008", "ANGOTTI FRANCESCO", "CAM"},
		{"U009", "BALDINI ROBERTO", "CAM"},
		{"U010", "VERDI LUCA", "DTD"},
		{"U011", "BIANCHI SARA", "DTD"},
	} {
		db.Exec("INSERT INTO torp_users (code,name,deptcode) VALUES (?,?,?)", u.code, u.name, u.dept)
	}

	for _, p := range []pair{
		{"PTO", "POWER TAKE OFFs"},
		{"HYD", "HYDRAULICS"},
		{"CYL", "CYLINDERS"},
		{"ALL", "ALL"},
	} {
		db.Exec("INSERT INTO torp_pline (code,name) VALUES (?,?)", p.code, p.name)
	}

	for _, f := range []struct{ code, name, line string }{
		{"PF01", "GEARBOX PTO", "PTO"},
		{"PF02", "ENGINE PTO", "PTO"},
		{"PF03", "SPLIT SHAFT PTO", "PTO"},
		{"PF04", "PARALLEL GEARBOXES", "PTO"},
		{"PF05", "PUMPS", "HYD"},
		{"PF06", "MOTORS", "HYD"},
		{"PF07", "VALVES", "HYD"},
		{"PF08", "WET KITS", "HYD"},
		{"PF09", "FRONT-END CYLINDERS", "CYL"},
		{"PF10", "UNDERBODY CYLINDERS", "CYL"},
		{"PF11", "DOUBLE ACTING CYLINDERS", "CYL"},
		{"PF12", "BRACKETS FOR CYLINDERS", "CYL"},
	} {
		db.Exec("INSERT INTO torp_pfamily (code,name,pcode) VALUES (?,?,?)", f.code, f.name, f.line)
	}

	for _, t := range []pair{
		{"DOC", "DOCUMENTATION"},
		{"PRD", "PRODUCT"},
		{"SRV", "SERVICE"},
	} {
		db.Exec("INSERT INTO torp_type (code,name) VALUES (?,?)", t.code, t.name)
	}

	for _, c := range []pair{
		{"C01", "NEW PRODUCT"},
		{"C02", "PRODUCT CHANGE"},
		{"C03", "OBSOLETE PRODUCT"},
		{"C04", "PRODUCT VALIDATION"},
		{"C05", "WEBPTO"},
		{"C06", "DRAWING"},
		{"C07", "IMDS (INTERNATIONAL MATERIAL DATA SYSTEM)"},
		{"C08", "CATALOGUE"},
		{"C09", "VISITING CUSTOMER PLANT"},
		{"C10", "VISITING SUPPLIER PLANT"},
	} {
		db.Exec("INSERT INTO torp_category (code,name) VALUES (?,?)", c.code, c.name)
	}

	for _, l := range [][2]string{
		{"PRD", "C01"}, {"PRD", "C02"}, {"PRD", "C03"}, {"PRD", "C04"},
		{"DOC", "C05"}, {"DOC", "C06"}, {"DOC", "C07"}, {"DOC", "C08"},
		{"SRV", "C09"}, {"SRV", "C10"},
	} {
		db.Exec("INSERT INTO torp_link_type_category (typecode,categorycode) VALUES (?,?)", l[0], l[1])
	}

	for _, d := range []pair{
		{"D01", "BOM"},
		{"D02", "2D DRAWING"},
		{"D03", "3D MODEL"},
		{"D04", "TECHNICAL SHEET"},
		{"D05", "FEASIBILITY STUDY"},
		{"D06", "PROTOTYPE"},
		{"D07", "TEST REPORT"},
	} {
		db.Exec("INSERT INTO torp_detail (code,name) VALUES (?,?)", d.code, d.name)
	}

	for _, l := range [][2]string{
		{"C01", "D05"}, {"C01", "D06"}, {"C02", "D01"}, {"C02", "D02"},
		{"C04", "D07"}, {"C05", "D04"}, {"C06", "D02"}, {"C06", "D03"},
		{"C08", "D04"},
	} {
		db.Exec("INSERT INTO torp_link_category_detail (categorycode,detailcode) VALUES (?,?)", l[0], l[1])
	}

	// Eligible team leads per product line
	for _, l := range [][2]string{
		{"PTO", "U004"}, {"PTO", "U005"},
		{"HYD", "U005"}, {"HYD", "U006"},
		{"CYL", "U004"}, {"CYL", "U006"},
		{"ALL", "U004"}, {"ALL", "U005"}, {"ALL", "U006"},
	} {
		db.Exec("INSERT INTO torp_link_pline_tdtl (plinecode,usercode) VALUES (?,?)", l[0], l[1])
	}

	// Specialists working under each team lead
	for _, l := range [][2]string{
		{"U004", "U010"}, {"U004", "U011"},
		{"U005", "U010"}, {"U005", "U006"},
		{"U006", "U011"},
	} {
		db.Exec("INSERT INTO torp_link_tdtl_tdsp (tdtlcode,tdspcode) VALUES (?,?)", l[0], l[1])
	}

	for _, g := range []pair{
		{"T1", "DESIGN"},
		{"T2", "DOCUMENTATION"},
		{"T3", "TESTING"},
	} {
		db.Exec("INSERT INTO torp_taskgrp_l1 (code,name) VALUES (?,?)", g.code, g.name)
	}

	for _, g := range []struct{ code, name, parent string }{
		{"T101", "3D MODELING", "T1"},
		{"T102", "2D DRAWING", "T1"},
		{"T103", "CALCULATION", "T1"},
		{"T201", "TECHNICAL SHEET", "T2"},
		{"T202", "CATALOGUE UPDATE", "T2"},
		{"T301", "BENCH TEST", "T3"},
		{"T302", "FIELD TEST", "T3"},
	} {
		db.Exec("INSERT INTO torp_taskgrp_l2 (code,name,pcode) VALUES (?,?,?)", g.code, g.name, g.parent)
	}

	// Sample requests so a fresh install has something on the dashboard.
	// The numerator row keeps future mints in sequence with these ids.
	year := time.Now().Format("2006")
	yy := year[2:4]
	db.Exec("INSERT INTO torp_objnumerator (obj_class,obj_year,obj_pline,prefix,prog) VALUES ('REQ',?,'PTO','R',2)", year)

	r1 := "R" + yy + "-0001"
	r2 := "R" + yy + "-0002"
	w1 := "W" + yy + "-0001"

	db.Exec(`INSERT INTO torp_requests
		(reqid, status, insdate, dept, requester, user, priority, pline, pfamily, type, category, detail, title, description, note_td, woid)
		VALUES (?, 'ASSIGNED', ?, 'CAM', 'U007', '', 'High', 'PTO', 'PF01', 'PRD', 'C01', 'D05', ?, ?, '', ?)`,
		r1, year+"-01-10", "New gearbox PTO for refuse truck line",
		"Customer requests a feasibility study for a heavy-duty gearbox PTO.", w1)
	db.Exec("INSERT INTO torp_reqassignedto (reqid, tdtlid, status) VALUES (?, 'U004', 'ACTIVE')", r1)

	db.Exec(`INSERT INTO torp_requests
		(reqid, status, insdate, dept, requester, user, priority, pline, pfamily, type, category, detail, title, description, note_td, woid)
		VALUES (?, 'NEW', ?, 'DMN', 'U001', '', 'Medium', 'PTO', 'PF02', 'DOC', 'C06', 'D02', ?, '', '', '')`,
		r2, year+"-02-03", "Updated 2D drawing for engine PTO flange")
	db.Exec("INSERT INTO torp_reqassignedto (reqid, tdtlid, status) VALUES (?, 'U005', 'ACTIVE')", r2)

	db.Exec(`INSERT INTO torp_workorders
		(woid, tdtlid, type, status, title, description, time_qty, time_um, startdate, enddate, reqid)
		VALUES (?, 'U004', 'Standard', 'ACTIVE', ?, '', 40, 'H', ?, ?, ?)`,
		w1, "Feasibility study: heavy-duty gearbox PTO", year+"-01-15", year+"-02-28", r1)
	db.Exec("INSERT INTO torp_woassignedto (woid, tdtlid, tdspid, status) VALUES (?, 'U004', 'U010', 'ACTIVE')", w1)
	db.Exec("INSERT INTO torp_woassignedto (woid, tdtlid, tdspid, status) VALUES (?, 'U004', 'U011', 'ACTIVE')", w1)

	db.Exec(`INSERT INTO torp_workitems (refdate, woid, tdspid, status, tskgrl1, tskgrl2, description, note, time_qty, time_um)
		VALUES (?, ?, 'U010', 'ACTIVE', 'T1', 'T103', 'Torque capacity calculation', '', 6, 'H')`, year+"-01-20", w1)
	db.Exec(`INSERT INTO torp_workitems (refdate, woid, tdspid, status, tskgrl1, tskgrl2, description, note, time_qty, time_um)
		VALUES (?, ?, 'U011', 'ACTIVE', 'T1', 'T101', 'Housing concept model', '', 1, 'D')`, year+"-01-22", w1)
}
