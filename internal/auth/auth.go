package auth

import (
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/kidandcat/taskdesk/internal/db"
)

const sessionCookie = "taskdesk_session"

// Sessions maps opaque cookie tokens to usernames. Entries expire after
// the configured TTL; a restart logs everybody out.
type Sessions struct {
	cache *cache.Cache
	ttl   time.Duration
}

func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		cache: cache.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func generateToken() string {
	b := make([]byte, 32)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// CheckPassword compares against the stored plaintext password.
func CheckPassword(u *db.User, password string) bool {
	return u != nil && password != "" && u.Password == password
}

// Login starts a session for username and sets the cookie.
func (s *Sessions) Login(w http.ResponseWriter, username string) string {
	token := generateToken()
	s.cache.Set(token, username, cache.DefaultExpiration)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.ttl.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return token
}

// CurrentUser returns the username bound to the request's session cookie,
// or "" when there is none.
func (s *Sessions) CurrentUser(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return ""
	}
	v, ok := s.cache.Get(cookie.Value)
	if !ok {
		return ""
	}
	return v.(string)
}

func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookie); err == nil {
		s.cache.Delete(cookie.Value)
	}
	ClearSessionCookie(w)
}

// Active is the number of live sessions.
func (s *Sessions) Active() int {
	return s.cache.ItemCount()
}

func ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   sessionCookie,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
