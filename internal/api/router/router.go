package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/spa-desk/internal/appointments"
	"github.com/wolfman30/spa-desk/internal/expenses"
	httpmiddleware "github.com/wolfman30/spa-desk/internal/http/middleware"
	"github.com/wolfman30/spa-desk/internal/webchat"
	"github.com/wolfman30/spa-desk/pkg/logging"
)

// HealthChecker reports whether a dependency is reachable.
type HealthChecker func(r *http.Request) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	Appointments       *appointments.Handler
	Expenses           *expenses.Handler
	WebChat            *webchat.Handler
	ChatLimiter        *httpmiddleware.RateLimiter
	AdminAuthSecret    string
	MetricsHandler     http.Handler
	CORSAllowedOrigins []string
	// Checks run on /health; any failure turns the response into a 503.
	Checks map[string]HealthChecker
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/health", healthHandler(cfg.Checks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.Appointments != nil {
		r.With(middleware.Timeout(15*time.Second)).Route("/api/appointments", cfg.Appointments.Routes)
	}

	// Admin and chat routes are only mounted when a signing secret is
	// configured. Chat can cancel bookings, so it sits behind the same token.
	if cfg.AdminAuthSecret != "" {
		adminAuth := httpmiddleware.AdminJWT(cfg.AdminAuthSecret, appointments.WithActor)

		if cfg.WebChat != nil {
			r.Route("/chat", func(chat chi.Router) {
				if cfg.ChatLimiter != nil {
					chat.Use(httpmiddleware.RateLimit(cfg.ChatLimiter))
				}
				chat.Use(adminAuth)
				chat.Get("/ws", cfg.WebChat.HandleWebSocket)
				chat.Post("/message", cfg.WebChat.HandleMessage)
				chat.Get("/history", cfg.WebChat.HandleHistory)
			})
		}

		r.Route("/api/admin", func(admin chi.Router) {
			admin.Use(adminAuth)
			admin.Use(middleware.Timeout(15 * time.Second))
			if cfg.Appointments != nil {
				admin.Route("/appointments", cfg.Appointments.AdminRoutes)
			}
			if cfg.Expenses != nil {
				admin.Route("/expenses", cfg.Expenses.ExpenseRoutes)
				admin.Route("/expense-categories", cfg.Expenses.CategoryRoutes)
			}
		})
	}

	return r
}

func healthHandler(checks map[string]HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		resp := map[string]string{"status": "ok"}
		for name, check := range checks {
			if err := check(r); err != nil {
				status = http.StatusServiceUnavailable
				resp["status"] = "degraded"
				resp[name] = err.Error()
				continue
			}
			resp[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
