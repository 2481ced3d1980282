package main

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/taskdesk/internal/chat"
	"github.com/kidandcat/taskdesk/internal/db"
)

func (s *server) handleChatPage(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	msgs, err := s.chat.ListVisible(r.Context(), u.Username)
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("load messages")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	s.renderTemplate(w, "chat.html", map[string]any{
		"User":     u,
		"Messages": msgs,
	})
}

func (s *server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)

	var (
		msgs []db.Message
		err  error
	)
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, perr := time.Parse(time.RFC3339, raw)
		if perr != nil {
			writeError(w, http.StatusBadRequest, "invalid since")
			return
		}
		msgs, err = s.chat.ListVisibleSince(r.Context(), u.Username, since)
	} else {
		msgs, err = s.chat.ListVisible(r.Context(), u.Username)
	}
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("load messages")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if msgs == nil {
		msgs = []db.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

func (s *server) handlePostMessage(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	if !s.limiter.Allow(u.Username) {
		s.metrics.ChatRejected.WithLabelValues("rate_limited").Inc()
		writeError(w, http.StatusTooManyRequests, "slow down")
		return
	}

	if limit := s.cfg.MaxUploadBytes(); limit > 0 {
		// Room for the form fields around the attachment.
		r.Body = http.MaxBytesReader(w, r.Body, limit+1<<20)
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			s.metrics.ChatRejected.WithLabelValues("too_large").Inc()
			writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
			return
		}
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}
	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	var att *chat.Attachment
	file, header, err := r.FormFile("file")
	switch {
	case err == nil:
		defer file.Close()
		att = &chat.Attachment{Name: header.Filename, Body: file}
	case errors.Is(err, http.ErrMissingFile), errors.Is(err, http.ErrNotMultipart), errors.Is(err, multipart.ErrMessageTooLarge):
	default:
		writeError(w, http.StatusBadRequest, "bad request")
		return
	}

	msg, err := s.chat.Post(r.Context(), u.Username, r.FormValue("message"), att)
	switch {
	case errors.Is(err, chat.ErrNoContent):
		s.metrics.ChatRejected.WithLabelValues("no_content").Inc()
		writeError(w, http.StatusBadRequest, "no content")
		return
	case errors.Is(err, chat.ErrTooLarge):
		s.metrics.ChatRejected.WithLabelValues("too_large").Inc()
		writeError(w, http.StatusRequestEntityTooLarge, "attachment too large")
		return
	case err != nil:
		s.log.WithError(err).WithFields(logrus.Fields{"op": "chat_post", "user": u.Username}).Error("post failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	s.metrics.ChatMessages.Inc()
	writeJSON(w, http.StatusOK, map[string]any{"message": msg})
}
