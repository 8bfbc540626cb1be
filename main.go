package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

func main() {
	port := flag.Int("port", 0, "HTTP port")
	dbPath := flag.String("db", "", "SQLite database path")
	configPath := flag.String("config", "torp.yml", "YAML config file path")
	flag.Parse()

	path := *configPath
	if v := os.Getenv("TORP_CONFIG"); v != "" {
		path = v
		flag.Visit(func(f *flag.Flag) {
			if f.Name == "config" {
				path = *configPath
			}
		})
	}
	c, err := loadConfig(path)
	if err != nil {
		log.Fatal("config load failed:", err)
	}
	if *port != 0 {
		c.Port = *port
	}
	if *dbPath != "" {
		c.DBPath = *dbPath
	}
	cfg = c

	if err := initDB(cfg.DBPath); err != nil {
		log.Fatal("DB init failed:", err)
	}
	seedDB(cfg.SeedDemoData)

	mux := http.NewServeMux()

	// Static files
	mux.Handle("/static/", http.StripPrefix("/static/", http.FileServer(http.Dir("static"))))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "static/index.html")
	})

	// Auth routes
	mux.HandleFunc("/auth/login", handleLogin)
	mux.HandleFunc("/auth/logout", handleLogout)
	mux.HandleFunc("/auth/me", handleMe)

	// WebSocket
	mux.HandleFunc("/ws", handleWS)

	// API routes - using a simple router
	mux.HandleFunc("/api/v1/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api/v1/")
		path = strings.TrimSuffix(path, "/")
		parts := strings.Split(path, "/")

		// Exports and the print report set their own content type.
		switch {
		case parts[0] == "requests" && len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
			handleExportRequests(w, r)
			return
		case parts[0] == "workitems" && len(parts) == 2 && parts[1] == "export" && r.Method == "GET":
			handleExportWorkItems(w, r)
			return
		case parts[0] == "requests" && len(parts) == 3 && parts[2] == "report" && r.Method == "GET":
			handleRequestReport(w, r, parts[1])
			return
		case parts[0] == "attachments" && len(parts) == 3 && parts[2] == "download" && r.Method == "GET":
			handleDownloadAttachment(w, r, parts[1])
			return
		}

		w.Header().Set("Content-Type", "application/json")

		switch {
		// Dashboard and calendar
		case path == "dashboard" && r.Method == "GET":
			handleDashboard(w, r)
		case path == "calendar" && r.Method == "GET":
			handleCalendar(w, r)

		// Audit
		case parts[0] == "audit" && len(parts) == 1 && r.Method == "GET":
			handleAuditLog(w, r)

		// Reference data
		case parts[0] == "departments" && len(parts) == 1 && r.Method == "GET":
			handleListDepartments(w, r)
		case parts[0] == "users" && len(parts) == 1 && r.Method == "GET":
			handleListUsers(w, r)
		case parts[0] == "plines" && len(parts) == 1 && r.Method == "GET":
			handleListProductLines(w, r)
		case parts[0] == "pfamilies" && len(parts) == 1 && r.Method == "GET":
			handleListProductFamilies(w, r)
		case parts[0] == "types" && len(parts) == 1 && r.Method == "GET":
			handleListTypes(w, r)
		case parts[0] == "categories" && len(parts) == 1 && r.Method == "GET":
			handleListCategories(w, r)
		case parts[0] == "details" && len(parts) == 1 && r.Method == "GET":
			handleListDetails(w, r)
		case parts[0] == "teamleads" && len(parts) == 1 && r.Method == "GET":
			handleListTeamLeads(w, r)
		case parts[0] == "specialists" && len(parts) == 1 && r.Method == "GET":
			handleListSpecialists(w, r)
		case parts[0] == "taskgroups1" && len(parts) == 1 && r.Method == "GET":
			handleListTaskGroupsL1(w, r)
		case parts[0] == "taskgroups2" && len(parts) == 1 && r.Method == "GET":
			handleListTaskGroupsL2(w, r)

		// Requests
		case parts[0] == "requests" && len(parts) == 1 && r.Method == "GET":
			handleListRequests(w, r)
		case parts[0] == "requests" && len(parts) == 1 && r.Method == "POST":
			handleCreateRequest(w, r)
		case parts[0] == "requests" && len(parts) == 2 && r.Method == "GET":
			handleGetRequest(w, r, parts[1])
		case parts[0] == "requests" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateRequest(w, r, parts[1])
		case parts[0] == "requests" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteRequest(w, r, parts[1])

		// Attachments
		case parts[0] == "requests" && len(parts) == 3 && parts[2] == "attachments" && r.Method == "GET":
			handleListAttachments(w, r, parts[1])
		case parts[0] == "requests" && len(parts) == 3 && parts[2] == "attachments" && r.Method == "POST":
			handleUploadAttachment(w, r, parts[1])
		case parts[0] == "attachments" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteAttachment(w, r, parts[1])

		// Work orders
		case parts[0] == "workorders" && len(parts) == 1 && r.Method == "GET":
			handleListWorkOrders(w, r)
		case parts[0] == "workorders" && len(parts) == 2 && r.Method == "GET":
			handleGetWorkOrder(w, r, parts[1])
		case parts[0] == "workorders" && len(parts) == 2 && r.Method == "PUT":
			handleSaveWorkOrder(w, r, parts[1])

		// Work items
		case parts[0] == "workitems" && len(parts) == 1 && r.Method == "GET":
			handleListWorkItems(w, r)
		case parts[0] == "workitems" && len(parts) == 1 && r.Method == "POST":
			handleCreateWorkItem(w, r)
		case parts[0] == "workitems" && len(parts) == 2 && r.Method == "PUT":
			handleUpdateWorkItem(w, r, parts[1])
		case parts[0] == "workitems" && len(parts) == 2 && r.Method == "DELETE":
			handleDeleteWorkItem(w, r, parts[1])

		// Config
		case path == "config" && r.Method == "GET":
			handleConfig(w, r)

		default:
			w.WriteHeader(404)
			json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
		}
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("TORP server starting on http://localhost%s", addr)
	log.Fatal(http.ListenAndServe(addr, logging(requireAuth(requireRBAC(mux)))))
}

func handleConfig(w http.ResponseWriter, r *http.Request) {
	jsonResp(w, map[string]string{
		"company_name": cfg.CompanyName,
		"default_dept": cfg.DefaultDept,
	})
}

func jsonResp(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(APIResponse{Data: data})
}

func jsonRespMeta(w http.ResponseWriter, data interface{}, total, page, limit int) {
	json.NewEncoder(w).Encode(APIResponse{Data: data, Meta: &Meta{Total: total, Page: page, Limit: limit}})
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func decodeBody(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}
