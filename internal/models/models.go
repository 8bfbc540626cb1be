// Package models holds the shared data structures for the TORP API.
package models

// APIResponse is the standard JSON envelope for all API responses.
type APIResponse struct {
	Data interface{} `json:"data"`
	Meta *Meta       `json:"meta,omitempty"`
}

// Meta contains pagination metadata.
type Meta struct {
	Total int `json:"total,omitempty"`
	Page  int `json:"page,omitempty"`
	Limit int `json:"limit,omitempty"`
}

// Department is a requesting organizational unit.
type Department struct {
	Code        string `json:"code"`
	Name        string `json:"name"`
	ManagerCode string `json:"mngrcode"`
	RProfCode   string `json:"rprofcode"`
}

// Person is a directory entry from torp_users. Requesters, team leads
// and specialists all come from this table; the role is implied by the
// link table that references the code.
type Person struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	DeptCode string `json:"deptcode"`
}

// ProductLine and ProductFamily form the two-level product hierarchy.
type ProductLine struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ProductFamily struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	LineCode string `json:"pcode"`
}

// ReqType, ReqCategory and ReqDetail classify a request's subject.
// Type→category and category→detail are many-to-many via link tables.
type ReqType struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ReqCategory struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type ReqDetail struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// TaskGroupL1 and TaskGroupL2 classify logged work items.
type TaskGroupL1 struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type TaskGroupL2 struct {
	Code       string `json:"code"`
	Name       string `json:"name"`
	ParentCode string `json:"pcode"`
}

// Request is a submitted work request.
type Request struct {
	ReqID       string `json:"reqid"`
	Status      string `json:"status"`
	InsDate     string `json:"insdate"`
	DeptCode    string `json:"dept"`
	Requester   string `json:"requester"`
	UserID      string `json:"user"`
	Priority    string `json:"priority"`
	PlineCode   string `json:"pline"`
	PfamilyCode string `json:"pfamily"`
	TypeCode    string `json:"type"`
	CatCode     string `json:"category"`
	DetailCode  string `json:"detail"`
	Title       string `json:"title"`
	Description string `json:"description"`
	NoteTD      string `json:"note_td"`
	WoID        string `json:"woid"`

	// Display decoration, filled from the reference cache on reads.
	DeptName      string   `json:"dept_name,omitempty"`
	RequesterName string   `json:"requester_name,omitempty"`
	PlineName     string   `json:"pline_name,omitempty"`
	PfamilyName   string   `json:"pfamily_name,omitempty"`
	TypeName      string   `json:"type_name,omitempty"`
	CatName       string   `json:"category_name,omitempty"`
	DetailName    string   `json:"detail_name,omitempty"`
	TeamLeads     []string `json:"tdtl,omitempty"`
	TeamLeadNames []string `json:"tdtl_names,omitempty"`
}

// WorkOrder is the unit of assigned work under a request. Its id is
// derived from the parent request id, so the relationship is 1:1.
type WorkOrder struct {
	WoID        string  `json:"woid"`
	TdtlID      string  `json:"tdtlid"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	TimeQty     float64 `json:"time_qty"`
	TimeUM      string  `json:"time_um"`
	StartDate   string  `json:"startdate"`
	EndDate     string  `json:"enddate"`
	ReqID       string  `json:"reqid"`

	TdtlName    string   `json:"tdtl_name,omitempty"`
	Specialists []string `json:"tdsp,omitempty"`
	SpecNames   []string `json:"tdsp_names,omitempty"`
}

// WorkItem is a single logged time entry against a work order.
type WorkItem struct {
	ID          int     `json:"id"`
	RefDate     string  `json:"refdate"`
	WoID        string  `json:"woid"`
	TdspID      string  `json:"tdspid"`
	Status      string  `json:"status"`
	TaskGrpL1   string  `json:"tskgrl1"`
	TaskGrpL2   string  `json:"tskgrl2"`
	Description string  `json:"description"`
	Note        string  `json:"note"`
	TimeQty     float64 `json:"time_qty"`
	TimeUM      string  `json:"time_um"`

	TdspName string `json:"tdsp_name,omitempty"`
	TgL1Name string `json:"tskgrl1_name,omitempty"`
	TgL2Name string `json:"tskgrl2_name,omitempty"`
	ReqID    string `json:"reqid,omitempty"`
	WoTitle  string `json:"wo_title,omitempty"`
}

// Attachment is a PDF stored against a request. The blob itself is
// only returned by the download endpoint.
type Attachment struct {
	ID        int    `json:"id"`
	Class     string `json:"class"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	ReqID     string `json:"reqid"`
	SizeBytes int64  `json:"size_bytes"`
}

// AuditEntry is a row from the audit log.
type AuditEntry struct {
	ID        int    `json:"id"`
	UserID    int    `json:"user_id"`
	Username  string `json:"username"`
	Action    string `json:"action"`
	Module    string `json:"module"`
	RecordID  string `json:"record_id"`
	Summary   string `json:"summary"`
	CreatedAt string `json:"created_at"`
}

// DashboardData is the metrics payload for the landing page.
type DashboardData struct {
	Total     int                       `json:"total"`
	ByStatus  map[string]int            `json:"by_status"`
	ByLine    map[string]int            `json:"by_pline"`
	ByDay     map[string]map[string]int `json:"by_day"`
	ItemHours float64                   `json:"item_hours"`
}
