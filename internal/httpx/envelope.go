// Package httpx wraps plain handlers into JSON response envelopes and
// provides the HTTP middleware used by "pgkit serve".
package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dmitrijs2005/pgkit/internal/common"
)

// Envelope is the body of every JSON response.
type Envelope struct {
	Success    bool      `json:"success"`
	StatusCode int       `json:"statusCode"`
	Message    string    `json:"message,omitempty"`
	Data       any       `json:"data,omitempty"`
	Meta       any       `json:"meta,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Result lets a handler pick the status, message and metadata of a
// successful response. Returning any other value sends it as Data with 200.
type Result struct {
	Status  int
	Message string
	Data    any
	Meta    any
}

// Error carries an explicit status for failures that have no sentinel.
type Error struct {
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

var now = func() time.Time { return time.Now().UTC() }

// StatusFor maps an error to the HTTP status it is reported with.
func StatusFor(err error) int {
	var he *Error
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &he):
		return he.Status
	case errors.Is(err, common.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrUnauthorized),
		errors.Is(err, common.ErrInvalidToken),
		errors.Is(err, common.ErrTokenExpired):
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// WriteJSON sends env with its status code.
func WriteJSON(w http.ResponseWriter, env Envelope) {
	if env.Timestamp.IsZero() {
		env.Timestamp = now()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.StatusCode)
	_ = json.NewEncoder(w).Encode(env)
}

// WriteError sends err as a failed envelope. Internal errors are not echoed
// to the client.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		msg = http.StatusText(status)
	}
	WriteJSON(w, Envelope{Success: false, StatusCode: status, Message: msg})
}

func success(v any) Envelope {
	switch r := v.(type) {
	case Result:
		return resultEnvelope(r)
	case *Result:
		if r != nil {
			return resultEnvelope(*r)
		}
	}
	return Envelope{Success: true, StatusCode: http.StatusOK, Data: v}
}

func resultEnvelope(r Result) Envelope {
	status := r.Status
	if status == 0 {
		status = http.StatusOK
	}
	return Envelope{Success: true, StatusCode: status, Message: r.Message, Data: r.Data, Meta: r.Meta}
}
