package main

import (
	"net/http"

	"github.com/kidandcat/taskdesk/internal/db"
)

// userSummary is the public face of a directory entry. Passwords never
// leave the store.
type userSummary struct {
	Username  string   `json:"username"`
	Role      string   `json:"role"`
	Branches  []string `json:"branches"`
	Active    int      `json:"active_tasks,omitempty"`
	Completed int      `json:"past_tasks,omitempty"`
}

// handleUsers lists the directory for mention completion and the
// reassignment picker. Task counts are only shown to privileged callers.
func (s *server) handleUsers(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	dir, err := s.store.LoadUsers(r.Context())
	if err != nil {
		s.log.WithError(err).Error("load users")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	users := make([]userSummary, 0, len(dir))
	for _, name := range dir.SortedNames() {
		users = append(users, summarize(dir[name], u.Privileged()))
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": users})
}

func summarize(u *db.User, withCounts bool) userSummary {
	sum := userSummary{Username: u.Username, Role: u.Role, Branches: u.Branches}
	if sum.Branches == nil {
		sum.Branches = []string{}
	}
	if withCounts {
		sum.Active = len(u.Tasks)
		sum.Completed = len(u.PastTasks)
	}
	return sum
}
