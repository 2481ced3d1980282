package main

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/kidandcat/taskdesk/internal/db"
	"github.com/kidandcat/taskdesk/internal/stats"
)

// reportsFor returns the caller's own report first, followed by one per
// other user when the caller is privileged.
func (s *server) reportsFor(r *http.Request, u *db.User) ([]stats.Report, error) {
	today := s.now()
	if !u.Privileged() {
		return []stats.Report{stats.NewReport(u, today)}, nil
	}
	dir, err := s.store.LoadUsers(r.Context())
	if err != nil {
		return nil, err
	}
	reports := []stats.Report{stats.NewReport(u, today)}
	for _, name := range dir.SortedNames() {
		if name == u.Username {
			continue
		}
		reports = append(reports, stats.NewReport(dir[name], today))
	}
	return reports, nil
}

func (s *server) handleGraphs(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	reports, err := s.reportsFor(r, u)
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("build reports")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	data := map[string]any{
		"User":    u,
		"Reports": reports,
	}
	if u.Privileged() {
		dir, err := s.store.LoadUsers(r.Context())
		if err == nil {
			team := stats.Team(dir)
			data["Team"] = &team
		}
	}
	s.renderTemplate(w, "graphs.html", data)
}

func (s *server) handleStats(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	reports, err := s.reportsFor(r, u)
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("build reports")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	resp := map[string]any{
		"report": reports[0],
	}
	if u.Privileged() {
		resp["users"] = reports[1:]
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleExport(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	reports, err := s.reportsFor(r, u)
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("build reports")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := stats.WriteWorkbook(&buf, reports); err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("write workbook")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	filename := fmt.Sprintf("taskdesk-stats-%s.xlsx", s.now().Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Write(buf.Bytes())
}
