package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/charmbracelet/log"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// Logger writes one structured line per request once it completes. Streamed
// responses are logged when the stream ends.
func Logger(logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()

			defer func() {
				logger.Info("request",
					"method", r.Method,
					"path", r.URL.Path,
					"status", ww.Status(),
					"bytes", ww.BytesWritten(),
					"duration", time.Since(start),
					"remote", r.RemoteAddr,
					"request_id", GetRequestID(r.Context()),
				)
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// Recoverer turns a panic into a 500 JSON response. The panic message is only
// exposed when exposeDetail is set.
func Recoverer(logger *log.Logger, exposeDetail bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rvr := recover()
				if rvr == nil {
					return
				}
				if err, ok := rvr.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					// Let net/http abort the connection silently.
					panic(rvr)
				}

				logger.Error("panic recovered",
					"panic", rvr,
					"path", r.URL.Path,
					"request_id", GetRequestID(r.Context()),
					"stack", string(debug.Stack()),
				)

				detail := "Internal server error"
				if exposeDetail {
					detail = fmt.Sprint(rvr)
				}
				writeError(w, http.StatusInternalServerError, models.ErrorBody{
					Message: "Something broke!",
					Error:   detail,
				})
			}()

			next.ServeHTTP(w, r)
		})
	}
}
