package main

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"log"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"
)

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		jsonErr(w, "Method not allowed", 405)
		return
	}

	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := decodeBody(r, &req); err != nil {
		jsonErr(w, "Invalid request body", 400)
		return
	}

	var userID int
	var hash, role string
	var active int
	err := db.QueryRow("SELECT id, password_hash, role, active FROM users WHERE username = ?", req.Username).
		Scan(&userID, &hash, &role, &active)
	if err != nil {
		jsonErr(w, "Invalid credentials", 401)
		return
	}
	if active == 0 {
		jsonErr(w, "Account deactivated", 403)
		return
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(req.Password)) != nil {
		jsonErr(w, "Invalid credentials", 401)
		return
	}

	expiry := time.Now().Add(time.Duration(cfg.SessionHours) * time.Hour)
	var token string
	for i := 0; i < 3; i++ {
		t, err := generateToken()
		if err != nil {
			jsonErr(w, "Internal error", 500)
			return
		}
		_, err = db.Exec("INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)",
			t, userID, expiry.UTC().Format("2006-01-02 15:04:05"))
		if err == nil {
			token = t
			break
		}
	}
	if token == "" {
		jsonErr(w, "Internal error", 500)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "torp_session",
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expiry,
	})

	log.Printf("login: %s (%s)", req.Username, role)
	jsonResp(w, map[string]interface{}{
		"username": req.Username,
		"role":     role,
	})
}

func handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		jsonErr(w, "Method not allowed", 405)
		return
	}
	cookie, err := r.Cookie("torp_session")
	if err == nil {
		db.Exec("DELETE FROM sessions WHERE token = ?", cookie.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     "torp_session",
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
	jsonResp(w, map[string]string{"status": "logged out"})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie("torp_session")
	if err != nil {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	var username, role string
	err = db.QueryRow(`SELECT u.username, u.role FROM sessions s JOIN users u ON s.user_id = u.id
		WHERE s.token = ? AND s.expires_at > CURRENT_TIMESTAMP`, cookie.Value).Scan(&username, &role)
	if err == sql.ErrNoRows {
		jsonErr(w, "Unauthorized", 401)
		return
	}
	if err != nil {
		jsonErr(w, "Internal error", 500)
		return
	}
	jsonResp(w, map[string]string{"username": username, "role": role})
}

func currentUsername(r *http.Request) string {
	userID, ok := r.Context().Value(ctxUserID).(int)
	if !ok {
		return "system"
	}
	var username string
	if err := db.QueryRow("SELECT username FROM users WHERE id = ?", userID).Scan(&username); err != nil {
		return "system"
	}
	return username
}
