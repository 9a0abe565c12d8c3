package httpx

import (
	"net/http"

	"github.com/dmitrijs2005/pgkit/internal/logging"
)

// Handler is an endpoint that returns its payload instead of writing it.
type Handler func(r *http.Request) (any, error)

// Wrap turns h into an http.Handler writing JSON envelopes. Server errors
// are logged through l.
func Wrap(l logging.Logger, h Handler) http.Handler {
	l = logging.OrNop(l)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v, err := h(r)
		if err != nil {
			if StatusFor(err) >= http.StatusInternalServerError {
				l.Error(r.Context(), "handler failed", "method", r.Method, "path", r.URL.Path, "error", err)
			}
			WriteError(w, err)
			return
		}
		WriteJSON(w, success(v))
	})
}
