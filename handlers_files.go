package main

import (
	"fmt"
	"net/http"
	"os"
	"path"

	"github.com/kidandcat/taskdesk/internal/chat"
)

// handleDownload serves a chat attachment to users who can read a message
// carrying it. Anything else is a 404 so names cannot be probed.
func (s *server) handleDownload(w http.ResponseWriter, r *http.Request) {
	u := currentUser(r)
	name := r.PathValue("name")
	diskPath := s.uploads.Path(name)
	if diskPath == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	ok, err := s.chat.CanSeeAttachment(r.Context(), u.Username, path.Join(chat.UploadPrefix, name))
	if err != nil {
		s.log.WithError(err).WithField("user", u.Username).Error("check attachment")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if _, err := os.Stat(diskPath); err != nil {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, name))
	http.ServeFile(w, r, diskPath)
}
