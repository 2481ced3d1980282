package main

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/kidandcat/taskdesk/internal/db"
)

type contextKey string

const userKey contextKey = "user"

func currentUser(r *http.Request) *db.User {
	if u, ok := r.Context().Value(userKey).(*db.User); ok {
		return u
	}
	return nil
}

// authenticate resolves the session cookie to a user that still exists
// in the store.
func (s *server) authenticate(r *http.Request) *db.User {
	name := s.sessions.CurrentUser(r)
	if name == "" {
		return nil
	}
	u, err := s.store.GetUser(r.Context(), name)
	if err != nil {
		return nil
	}
	return u
}

// requirePage guards HTML pages: anonymous requests go to the login form.
func (s *server) requirePage(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := s.authenticate(r)
		if u == nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

// requireAPI guards data endpoints: anonymous requests get a JSON 401.
func (s *server) requireAPI(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := s.authenticate(r)
		if u == nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey, u)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

// instrument logs each request and feeds the HTTP collectors. The route
// label is the matched ServeMux pattern, so ids in paths do not explode
// label cardinality.
func (s *server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		s.metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.status)).Inc()
		s.metrics.HTTPLatency.WithLabelValues(route).Observe(elapsed.Seconds())
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": elapsed,
		}).Debug("request")
	})
}

// postLimiter throttles chat posts per user.
type postLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
	burst    int
}

// newPostLimiter allows perMinute posts per user; perMinute <= 0 disables
// the limit.
func newPostLimiter(perMinute int) *postLimiter {
	if perMinute <= 0 {
		return &postLimiter{every: rate.Inf}
	}
	return &postLimiter{
		limiters: map[string]*rate.Limiter{},
		every:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    perMinute,
	}
}

func (l *postLimiter) Allow(username string) bool {
	if l.every == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.limiters[username]
	if !ok {
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[username] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
