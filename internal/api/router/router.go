package router

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/saludbioskin/chatbot-engine/internal/conversation"
	httpmiddleware "github.com/saludbioskin/chatbot-engine/internal/http/middleware"
	"github.com/saludbioskin/chatbot-engine/internal/storage"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger          *logging.Logger
	WebhookHandler  *conversation.Handler
	AdminHandler    *storage.Handler
	AdminAuthSecret string
	MetricsHandler  http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints (webhook, health checks)
	r.Group(func(public chi.Router) {
		public.Get("/health", healthCheck)
		if cfg.WebhookHandler != nil {
			public.Get("/webhook", cfg.WebhookHandler.Verify())
			public.Post("/webhook", cfg.WebhookHandler.Receive)
		}
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Admin maintenance surface
	if cfg.AdminHandler != nil {
		r.Route("/admin/chatbot", func(admin chi.Router) {
			admin.Use(httpmiddleware.AdminJWT(cfg.AdminAuthSecret))
			admin.Get("/stats", cfg.AdminHandler.Stats)
			admin.Post("/maintenance", cfg.AdminHandler.Maintenance)
			admin.Get("/settings", cfg.AdminHandler.GetSettings)
			admin.Post("/settings", cfg.AdminHandler.UpdateSettings)
		})
	}

	return r
}

func healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
