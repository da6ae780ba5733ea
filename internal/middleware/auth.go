package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/models"
)

// Auth validates the bearer token on every request and attaches the
// principal to the context. Failures answer 401 with the failure kind.
// WebSocket upgrades may pass the token as the "token" query parameter
// since browsers cannot set headers on them.
func Auth(a authn.Authenticator, logger *log.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" && isUpgrade(r) {
				if t := r.URL.Query().Get("token"); t != "" {
					header = "Bearer " + t
				}
			}

			token, err := authn.BearerToken(header)
			if err == nil {
				var p authn.Principal
				p, err = a.Authenticate(r.Context(), token)
				if err == nil {
					next.ServeHTTP(w, r.WithContext(authn.WithPrincipal(r.Context(), p)))
					return
				}
			}

			kind := authn.KindOf(err)
			logger.Warn("authentication failed", "kind", kind, "path", r.URL.Path, "request_id", GetRequestID(r.Context()))
			writeError(w, http.StatusUnauthorized, models.ErrorBody{Message: "Unauthorized", Error: string(kind)})
		})
	}
}

func isUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func writeError(w http.ResponseWriter, status int, body models.ErrorBody) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
