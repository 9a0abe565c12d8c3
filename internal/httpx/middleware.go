package httpx

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/auth"
	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/logging"
)

// Middleware decorates an http.Handler.
type Middleware func(http.Handler) http.Handler

// Chain applies mws so that the first one is the outermost.
func Chain(h http.Handler, mws ...Middleware) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Logging logs one line per request with method, path, status and duration.
func Logging(l logging.Logger) Middleware {
	l = logging.OrNop(l).With("module", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			l.Info(r.Context(), "http request",
				"method", r.Method, "path", r.URL.Path,
				"status", rec.status, "duration", time.Since(start))
		})
	}
}

// Recover turns a panic into a 500 envelope.
func Recover(l logging.Logger) Middleware {
	l = logging.OrNop(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					l.Error(r.Context(), "panic in handler", "path", r.URL.Path, "panic", p)
					WriteError(w, errors.New("panic"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// Actor reads "Authorization: Bearer <token>" and stores the actor with
// audit.WithActor. A present token must be valid; a missing one is rejected
// only when required.
func Actor(secretKey []byte, required bool) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearer(r.Header.Get(common.AuthorizationHeaderName))
			if !ok {
				if required {
					WriteError(w, common.ErrUnauthorized)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			actorID, err := auth.ActorIDFromToken(token, secretKey)
			if err != nil {
				WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(audit.WithActor(r.Context(), actorID)))
		})
	}
}

func bearer(h string) (string, bool) {
	const prefix = "bearer "
	if len(h) <= len(prefix) || !strings.EqualFold(h[:len(prefix)], prefix) {
		return "", false
	}
	t := strings.TrimSpace(h[len(prefix):])
	return t, t != ""
}
