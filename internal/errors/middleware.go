package errors

import (
	"net/http"
)

// Handler wraps an http.HandlerFunc with error handling capabilities
type Handler func(w http.ResponseWriter, r *http.Request) error

// ErrorObserver is notified about every error a Handler returns, before it is written.
type ErrorObserver func(r *http.Request, err error)

// HandleFunc converts a Handler to a standard http.HandlerFunc with automatic error handling
func HandleFunc(h Handler, observers ...ErrorObserver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			for _, observe := range observers {
				observe(r, err)
			}
			requestID := GetRequestID(r.Context())
			WriteError(w, requestID, err)
		}
	}
}
