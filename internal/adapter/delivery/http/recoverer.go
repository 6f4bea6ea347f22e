package http

import (
	"net/http"
	"runtime/debug"

	"github.com/go-chi/httplog/v2"
)

// recoverer turns a panicking handler into a JSON server error and records
// the panic on the request log entry.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			httplog.LogEntrySetFields(r.Context(), map[string]any{
				"panic": rec,
				"stack": string(debug.Stack()),
			})

			renderError(w, r, http.StatusInternalServerError, msgServerError)
		}()

		next.ServeHTTP(w, r)
	})
}
