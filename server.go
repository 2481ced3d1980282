package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/taskdesk/internal/auth"
	"github.com/kidandcat/taskdesk/internal/chat"
	"github.com/kidandcat/taskdesk/internal/config"
	"github.com/kidandcat/taskdesk/internal/db"
	"github.com/kidandcat/taskdesk/internal/metrics"
	"github.com/kidandcat/taskdesk/internal/tasks"
)

type server struct {
	cfg      config.Config
	log      *logrus.Logger
	store    db.Store
	sessions *auth.Sessions
	tasks    *tasks.Service
	chat     *chat.Service
	uploads  *chat.Uploads
	metrics  *metrics.Metrics
	limiter  *postLimiter
	tmpl     *template.Template
	now      func() time.Time
}

func newServer(cfg config.Config, log *logrus.Logger, store db.Store) (*server, error) {
	uploads, err := chat.NewUploads(cfg.UploadDir, cfg.MaxUploadBytes())
	if err != nil {
		return nil, err
	}
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	sessions := auth.NewSessions(cfg.SessionTTL)

	return &server{
		cfg:      cfg,
		log:      log,
		store:    store,
		sessions: sessions,
		tasks:    tasks.NewService(store, log),
		chat:     chat.NewService(store, uploads, log),
		uploads:  uploads,
		metrics:  metrics.New(func() float64 { return float64(sessions.Active()) }),
		limiter:  newPostLimiter(cfg.ChatRatePerMinute),
		tmpl:     tmpl,
		now:      time.Now,
	}, nil
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	staticSub, _ := fs.Sub(staticFS, "static")
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.FS(staticSub))))
	mux.Handle("GET /metrics", s.metrics.Handler())

	// Public
	mux.HandleFunc("GET /login", s.handleLogin)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("GET /logout", s.handleLogout)
	mux.HandleFunc("POST /logout", s.handleLogout)
	mux.HandleFunc("GET /{$}", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/tasks", http.StatusFound)
	})

	// Pages
	mux.Handle("GET /tasks", s.requirePage(s.handleTasks))
	mux.Handle("POST /tasks", s.requirePage(s.handleTasksPost))
	mux.Handle("GET /tasks/{user}/{id}", s.requirePage(s.handleTaskDetail))
	mux.Handle("GET /graphs", s.requirePage(s.handleGraphs))
	mux.Handle("GET /graphs/export.xlsx", s.requirePage(s.handleExport))
	mux.Handle("GET /chat", s.requirePage(s.handleChatPage))

	// Data
	mux.Handle("GET /api/stats", s.requireAPI(s.handleStats))
	mux.Handle("GET /api/users", s.requireAPI(s.handleUsers))
	mux.Handle("GET /chat/messages", s.requireAPI(s.handleListMessages))
	mux.Handle("POST /chat/messages", s.requireAPI(s.handlePostMessage))
	mux.Handle("GET /uploads/{name}", s.requireAPI(s.handleDownload))

	return s.instrument(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
