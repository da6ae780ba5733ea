package router

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/anshumansp/Business-Consultant-Agent/internal/authn"
	"github.com/anshumansp/Business-Consultant-Agent/internal/handlers"
	"github.com/anshumansp/Business-Consultant-Agent/internal/middleware"
)

// Deps are the components the router wires together. RateLimiter and
// Authenticator are optional.
type Deps struct {
	Logger            *log.Logger
	AllowedOrigins    []string
	ExposePanicDetail bool

	Chat *handlers.ChatHandler
	WS   *handlers.WSHandler

	RateLimiter   *middleware.RateLimiter
	Authenticator authn.Authenticator
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.Logger))
	r.Use(middleware.Recoverer(d.Logger, d.ExposePanicDetail))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:     d.AllowedOrigins,
		AllowedMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:     []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:     []string{middleware.RequestIDHeader},
		AllowCredentials:   true,
		MaxAge:             300,
		OptionsPassthrough: true,
	}))
	r.Use(preflight)

	// Health check
	r.Get("/", handlers.Health)
	r.Get("/health", handlers.Health)

	r.Route("/api/chat", func(r chi.Router) {
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware)
		}
		if d.Authenticator != nil {
			r.Use(middleware.Auth(d.Authenticator, d.Logger))
		}

		r.Post("/", d.Chat.Stream)
		if d.WS != nil {
			r.Get("/ws", d.WS.HandleWebSocket)
		}
	})

	return r
}

// preflight answers CORS preflight requests with 204 once the CORS headers
// are set.
func preflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
