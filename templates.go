package main

import (
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/kidandcat/taskdesk/internal/db"
)

//go:embed templates/*
var templateFS embed.FS

//go:embed static/*
var staticFS embed.FS

// Raw HTML in user text is dropped by goldmark's default (unsafe off).
var md = goldmark.New(goldmark.WithRendererOptions(html.WithHardWraps()))

func parseTemplates() (*template.Template, error) {
	funcMap := template.FuncMap{
		"markdown": func(content string) template.HTML {
			var buf strings.Builder
			if err := md.Convert([]byte(content), &buf); err != nil {
				return template.HTML("<p>Error rendering markdown</p>")
			}
			return template.HTML(buf.String())
		},
		"priorityClass": priorityClass,
		"formatTime": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return t.Format("2006-01-02 15:04")
		},
		"ago": func(t time.Time) string {
			if t.IsZero() {
				return ""
			}
			return humanize.Time(t)
		},
		"isDone": func(status string) bool {
			return status == db.StatusDone
		},
		"deref": func(s *string) string {
			if s == nil {
				return ""
			}
			return *s
		},
		"dict": func(values ...any) map[string]any {
			d := make(map[string]any)
			for i := 0; i < len(values)-1; i += 2 {
				d[fmt.Sprintf("%v", values[i])] = values[i+1]
			}
			return d
		},
		"barHeight": func(n int) int {
			return min(n*16, 120)
		},
	}
	return template.New("").Funcs(funcMap).ParseFS(templateFS, "templates/*.html")
}

func priorityClass(priority string) string {
	switch priority {
	case db.PriorityHigh:
		return "bg-danger"
	case db.PriorityMid:
		return "bg-warning text-dark"
	case db.PriorityLow:
		return "bg-success"
	}
	return "bg-secondary"
}

func (s *server) renderTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.WithError(err).WithField("template", name).Error("render failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}
