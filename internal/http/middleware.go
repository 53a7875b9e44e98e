package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_shop/internal/domain"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/sessions"
)

const (
	sessionName    = "shop_session"
	sessionUserKey = "user_id"
	sessionMaxAge  = 7 * 24 * 60 * 60
)

type ctxKey int

const userIDKey ctxKey = iota

// WithUserID returns a context carrying the authenticated user id.
func WithUserID(ctx context.Context, userID int64) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

func getUserIDFromContext(ctx context.Context) int64 {
	if userID, ok := ctx.Value(userIDKey).(int64); ok {
		return userID
	}
	return 0
}

// Sessions keeps the logged-in user id in a signed cookie.
type Sessions struct {
	store sessions.Store
}

func NewSessions(key []byte, secure bool) *Sessions {
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   sessionMaxAge,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return &Sessions{store: store}
}

// Authenticate resolves the session cookie into a context user id. Requests
// without a valid session pass through anonymous.
func (s *Sessions) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.store.Get(r, sessionName)
		if err != nil {
			// tampered or rotated key; treat as logged out
			next.ServeHTTP(w, r)
			return
		}
		if userID, ok := sess.Values[sessionUserKey].(int64); ok && userID > 0 {
			r = r.WithContext(WithUserID(r.Context(), userID))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Sessions) Login(w http.ResponseWriter, r *http.Request, userID int64) error {
	sess, _ := s.store.Get(r, sessionName)
	sess.Values[sessionUserKey] = userID
	return sess.Save(r, w)
}

func (s *Sessions) Logout(w http.ResponseWriter, r *http.Request) error {
	sess, _ := s.store.Get(r, sessionName)
	delete(sess.Values, sessionUserKey)
	sess.Options.MaxAge = -1
	return sess.Save(r, w)
}

// RequireUser rejects anonymous requests with 401.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if getUserIDFromContext(r.Context()) == 0 {
			respondError(w, http.StatusUnauthorized, CodeUnauthorized, "please log in first")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type UserLookup interface {
	Get(ctx context.Context, userID int64) (*domain.User, error)
}

// RequireAdmin lets through only users flagged as administrators. It must
// run after RequireUser.
func RequireAdmin(users UserLookup) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, err := users.Get(r.Context(), getUserIDFromContext(r.Context()))
			if err != nil {
				handleServiceError(w, r, err)
				return
			}
			if !u.IsAdmin {
				respondError(w, http.StatusForbidden, CodeForbidden, "administrator access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog writes one structured line per request.
func AccessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		level := slog.LevelInfo
		if status >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		slog.Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"remote", r.RemoteAddr,
		)
	})
}

// EchoRequestID copies the chi request id into the response headers. Must
// run after middleware.RequestID.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
