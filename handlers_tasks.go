package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/taskdesk/internal/db"
	"github.com/kidandcat/taskdesk/internal/tasks"
)

func (s *server) handleTasks(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	board, err := s.tasks.Board(r.Context(), u.Username)
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("load board")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, "tasks.html", map[string]any{
		"User":       u,
		"Board":      board,
		"Priorities": []string{db.PriorityHigh, db.PriorityMid, db.PriorityLow},
		"Statuses":   []string{db.StatusIncomplete, db.StatusDone},
	})
}

// handleTasksPost dispatches the board form on which field is present.
// Rejected actions are silent: the caller is sent back to the board.
func (s *server) handleTasksPost(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	owner := strings.TrimSpace(r.PostForm.Get("user"))
	if owner == "" {
		owner = u.Username
	}

	var op string
	var err error
	switch {
	case r.PostForm.Has("task"):
		op = "create"
		_, err = s.tasks.CreateTask(r.Context(), u.Username, tasks.CreateRequest{
			Description: r.PostForm.Get("task"),
			Priority:    r.PostForm.Get("priority"),
			DueDate:     r.PostForm.Get("due_date"),
			Assignee:    strings.TrimSpace(r.PostForm.Get("assignee")),
		})
	case r.PostForm.Has("reassign"):
		op = "reassign"
		err = s.withRef(r, func(ref tasks.Ref) error {
			return s.tasks.Reassign(r.Context(), u.Username, owner, ref, strings.TrimSpace(r.PostForm.Get("reassign")))
		})
	case r.PostForm.Has("note"):
		op = "note"
		err = s.withRef(r, func(ref tasks.Ref) error {
			return s.tasks.AddNote(r.Context(), u.Username, owner, ref, r.PostForm.Get("note"))
		})
	case r.PostForm.Has("status"):
		op = "status"
		err = s.withRef(r, func(ref tasks.Ref) error {
			return s.tasks.UpdateStatus(r.Context(), u.Username, owner, ref, r.PostForm.Get("status"))
		})
	default:
		http.Redirect(w, r, "/tasks", http.StatusSeeOther)
		return
	}

	log := s.log.WithFields(logrus.Fields{"op": op, "user": u.Username, "owner": owner})
	switch {
	case err == nil:
		s.metrics.TaskOps.WithLabelValues(op, "ok").Inc()
	case tasks.IsNoop(err):
		s.metrics.TaskOps.WithLabelValues(op, "noop").Inc()
		log.WithError(err).Debug("task action ignored")
	default:
		s.metrics.TaskOps.WithLabelValues(op, "error").Inc()
		log.WithError(err).Error("task action failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	if back := r.PostForm.Get("next"); strings.HasPrefix(back, "/tasks/") {
		http.Redirect(w, r, back, http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/tasks", http.StatusSeeOther)
}

var errNoRef = errors.New("no task reference")

// withRef reads task_id, falling back to task_index, and runs fn with it.
func (s *server) withRef(r *http.Request, fn func(tasks.Ref) error) error {
	if id := strings.TrimSpace(r.PostForm.Get("task_id")); id != "" {
		return fn(tasks.ByID(id))
	}
	raw := strings.TrimSpace(r.PostForm.Get("task_index"))
	if raw == "" {
		return errors.Join(tasks.ErrInvalid, errNoRef)
	}
	idx, err := strconv.Atoi(raw)
	if err != nil {
		return errors.Join(tasks.ErrInvalid, err)
	}
	return fn(tasks.ByIndex(idx))
}

func (s *server) handleTaskDetail(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	detail, err := s.tasks.Find(r.Context(), u.Username, r.PathValue("user"), tasks.ByID(r.PathValue("id")))
	if err != nil {
		if tasks.IsNoop(err) {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}
		s.log.WithError(err).Error("load task")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	var others []string
	if u.Privileged() {
		dir, err := s.store.LoadUsers(r.Context())
		if err == nil {
			for _, name := range dir.SortedNames() {
				if name != detail.Owner {
					others = append(others, name)
				}
			}
		}
	}
	s.renderTemplate(w, "task.html", map[string]any{
		"User":     u,
		"Detail":   detail,
		"Others":   others,
		"Statuses": []string{db.StatusIncomplete, db.StatusDone},
	})
}
