package main

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Attachments are PDFs stored as blobs against a request. Uploads also
// accept a bare link (no file) for documents that live elsewhere.

func listAttachmentMeta(reqID string) ([]Attachment, error) {
	rows, err := db.Query(`SELECT id, class, title, COALESCE(link,''), reqid, COALESCE(LENGTH(data),0)
		FROM torp_attachments WHERE reqid = ? AND status = 'ACTIVE' ORDER BY id`, reqID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	atts := []Attachment{}
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.Class, &a.Title, &a.Link, &a.ReqID, &a.SizeBytes); err != nil {
			return nil, err
		}
		atts = append(atts, a)
	}
	return atts, nil
}

func handleListAttachments(w http.ResponseWriter, r *http.Request, reqID string) {
	atts, err := listAttachmentMeta(reqID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	jsonResp(w, atts)
}

func handleUploadAttachment(w http.ResponseWriter, r *http.Request, reqID string) {
	var count int
	db.QueryRow("SELECT COUNT(*) FROM torp_requests WHERE reqid = ?", reqID).Scan(&count)
	if count == 0 {
		jsonErr(w, "Request not found", 404)
		return
	}

	maxBytes := int64(cfg.MaxUploadMB) << 20
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		jsonErr(w, "Failed to parse form", 400)
		return
	}

	title := r.FormValue("title")
	link := r.FormValue("link")
	class := r.FormValue("class")
	if class == "" {
		class = "GENERIC"
	}

	var data []byte
	file, header, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		if header.Size > maxBytes {
			jsonErr(w, fmt.Sprintf("File exceeds %d MB limit", cfg.MaxUploadMB), 413)
			return
		}
		data, err = io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			jsonErr(w, "Failed to read file", 500)
			return
		}
		if int64(len(data)) > maxBytes {
			jsonErr(w, fmt.Sprintf("File exceeds %d MB limit", cfg.MaxUploadMB), 413)
			return
		}
		if !bytes.HasPrefix(data, []byte("%PDF")) {
			jsonErr(w, "Only PDF files are accepted", 400)
			return
		}
		if title == "" {
			title = header.Filename
		}
	}

	if title == "" {
		jsonErr(w, "title is required", 400)
		return
	}
	if data == nil && link == "" {
		jsonErr(w, "file or link is required", 400)
		return
	}

	res, err := db.Exec("INSERT INTO torp_attachments (class, title, link, data, reqid) VALUES (?, ?, ?, ?, ?)",
		class, title, link, data, reqID)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	id, _ := res.LastInsertId()

	logAudit(db, getUsername(r), AuditActionCreate, "attachments", strconv.FormatInt(id, 10),
		"Attached to "+reqID+": "+title)
	broadcast("attachments", "created", id)

	w.WriteHeader(201)
	jsonResp(w, Attachment{
		ID:        int(id),
		Class:     class,
		Title:     title,
		Link:      link,
		ReqID:     reqID,
		SizeBytes: int64(len(data)),
	})
}

func handleDownloadAttachment(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid attachment id", 400)
		return
	}

	var title, link string
	var data []byte
	err = db.QueryRow("SELECT title, COALESCE(link,''), data FROM torp_attachments WHERE id = ? AND status = 'ACTIVE'", id).
		Scan(&title, &link, &data)
	if err != nil {
		jsonErr(w, "Attachment not found", 404)
		return
	}

	if len(data) == 0 {
		if link != "" {
			http.Redirect(w, r, link, http.StatusFound)
			return
		}
		jsonErr(w, "Attachment has no stored file", 404)
		return
	}

	filename := title
	if !strings.HasSuffix(strings.ToLower(filename), ".pdf") {
		filename += ".pdf"
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Write(data)
}

func handleDeleteAttachment(w http.ResponseWriter, r *http.Request, idStr string) {
	id, err := strconv.Atoi(idStr)
	if err != nil {
		jsonErr(w, "Invalid attachment id", 400)
		return
	}

	// Soft delete, same as every other module.
	res, err := db.Exec("UPDATE torp_attachments SET status = 'DISABLED' WHERE id = ? AND status = 'ACTIVE'", id)
	if err != nil {
		jsonErr(w, "Database error", 500)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		jsonErr(w, "Attachment not found", 404)
		return
	}

	logAudit(db, getUsername(r), AuditActionDelete, "attachments", idStr, "Deleted attachment")
	broadcast("attachments", "deleted", id)
	jsonResp(w, map[string]string{"status": "deleted"})
}
