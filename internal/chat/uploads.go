package chat

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// UploadPrefix is the relative path prefix recorded in message attachments.
const UploadPrefix = "uploads"

var unsafeNameRe = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename reduces a client supplied name to a flat ASCII file
// name: separators become spaces, whitespace runs become underscores and
// anything outside [A-Za-z0-9_.-] is dropped, as are leading and trailing
// dots and underscores. The result may be empty.
func SanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeNameRe.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// Uploads writes attachments into one flat directory. A second upload
// under the same sanitised name replaces the first only when the caller
// allows it; otherwise it is stored under a fresh suffixed name.
type Uploads struct {
	dir      string
	maxBytes int64
}

func NewUploads(dir string, maxBytes int64) (*Uploads, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Uploads{dir: dir, maxBytes: maxBytes}, nil
}

// Save stores r under the sanitised name and returns the relative path
// recorded on the message, e.g. "uploads/note.txt". The bytes land in a
// temp file first, so a rejected upload never touches an existing file.
// replace is asked before an existing file is overwritten; nil means yes.
func (u *Uploads) Save(name string, r io.Reader, replace func(rel string) bool) (string, error) {
	clean := SanitizeFilename(name)
	if clean == "" {
		clean = "attachment-" + uuid.NewString()[:8]
	}

	tmp, err := os.CreateTemp(u.dir, "."+clean+".*")
	if err != nil {
		return "", fmt.Errorf("create %s: %w", clean, err)
	}
	defer os.Remove(tmp.Name())

	src := r
	if u.maxBytes > 0 {
		src = io.LimitReader(r, u.maxBytes+1)
	}
	n, err := io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write %s: %w", clean, err)
	}
	if u.maxBytes > 0 && n > u.maxBytes {
		return "", fmt.Errorf("%w: %s", ErrTooLarge, clean)
	}

	if _, err := os.Stat(filepath.Join(u.dir, clean)); err == nil {
		if replace != nil && !replace(path.Join(UploadPrefix, clean)) {
			clean = uniqueName(clean)
		}
	}
	if err := os.Rename(tmp.Name(), filepath.Join(u.dir, clean)); err != nil {
		return "", fmt.Errorf("store %s: %w", clean, err)
	}
	return path.Join(UploadPrefix, clean), nil
}

// uniqueName turns "note.txt" into "note-1a2b3c4d.txt".
func uniqueName(clean string) string {
	ext := filepath.Ext(clean)
	return strings.TrimSuffix(clean, ext) + "-" + uuid.NewString()[:8] + ext
}

// Path returns the on-disk location of a stored attachment name, or ""
// when the name is not a plain file name.
func (u *Uploads) Path(name string) string {
	if name == "" || SanitizeFilename(name) != name {
		return ""
	}
	return filepath.Join(u.dir, name)
}
