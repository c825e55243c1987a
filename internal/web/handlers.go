package web

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.renderTemplate(w, "login", map[string]interface{}{})
		return
	}

	if r.Method == http.MethodPost {
		username := r.FormValue("username")
		password := r.FormValue("password")

		if s.auth.ValidateCredentials(username, password) {
			session, err := s.auth.CreateSession(username)
			if err != nil {
				slog.Error("Failed to create session", "error", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			http.SetCookie(w, &http.Cookie{
				Name:     "session",
				Value:    session.ID,
				Path:     "/",
				Expires:  session.ExpiresAt,
				HttpOnly: true,
				SameSite: http.SameSiteStrictMode,
			})

			http.Redirect(w, r, "/", http.StatusSeeOther)
		} else {
			s.renderTemplate(w, "login", map[string]interface{}{
				"Error": "Invalid username or password",
			})
		}
		return
	}

	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	cookie, err := r.Cookie("session")
	if err == nil {
		s.auth.DeleteSession(cookie.Value)
	}

	// Clear the cookie
	http.SetCookie(w, &http.Cookie{
		Name:     "session",
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
	})

	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	data := map[string]interface{}{
		"Status": s.status.Snapshot(),
		"Rules":  s.table,
	}

	s.renderTemplate(w, "dashboard", data)
}

// handleStatus exposes the same counters as JSON for scripted monitoring.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	snap := s.status.Snapshot()

	rules := make([]map[string]interface{}, 0, len(s.table))
	for _, rule := range s.table {
		rules = append(rules, map[string]interface{}{
			"name":    rule.Name,
			"query":   rule.Query,
			"matches": snap.RuleMatches[rule.Name],
		})
	}

	payload := map[string]interface{}{
		"state":        snap.State,
		"connected_at": snap.ConnectedAt,
		"last_wakeup":  snap.LastWakeup,
		"last_error":   snap.LastError,
		"wakeups":      snap.Wakeups,
		"sends":        snap.Sends,
		"rejections":   snap.Rejections,
		"proxied_urls": snap.ProxiedURLs,
		"rules":        rules,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Error("Failed to encode status", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
