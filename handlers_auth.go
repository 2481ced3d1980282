package main

import (
	"net/http"
	"strings"

	"github.com/kidandcat/taskdesk/internal/auth"
)

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		if s.authenticate(r) != nil {
			http.Redirect(w, r, "/tasks", http.StatusFound)
			return
		}
		s.renderTemplate(w, "login.html", nil)
		return
	}

	username := strings.TrimSpace(r.FormValue("username"))
	password := r.FormValue("password")
	u, err := s.store.GetUser(r.Context(), username)
	if err != nil || !auth.CheckPassword(u, password) {
		s.log.WithField("user", username).Info("login failed")
		s.renderTemplate(w, "login.html", map[string]any{
			"Error":    "Invalid credentials",
			"Username": username,
		})
		return
	}

	s.sessions.Login(w, u.Username)
	s.log.WithField("user", u.Username).Info("logged in")
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sessions.Logout(w, r)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
