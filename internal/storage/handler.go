package storage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/saludbioskin/chatbot-engine/internal/conversation"
	"github.com/saludbioskin/chatbot-engine/pkg/logging"
)

// SettingsStore reads and writes the global chatbot switch.
type SettingsStore interface {
	GetSettings(ctx context.Context) (conversation.GlobalSettings, error)
	UpdateSettings(ctx context.Context, settings conversation.GlobalSettings) error
}

// Handler is the admin maintenance surface.
type Handler struct {
	governor *Governor
	settings SettingsStore
	degraded func() bool
	logger   *logging.Logger
}

// NewHandler creates the admin handler.
func NewHandler(governor *Governor, settings SettingsStore, degraded func() bool, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		governor: governor,
		settings: settings,
		degraded: degraded,
		logger:   logger,
	}
}

// Stats reports storage usage, row counts and failover status.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	usage, err := h.governor.CheckUsage(r.Context())
	if err != nil {
		h.logger.Error("storage: stats usage check failed", "error", err)
		http.Error(w, "unable to check storage", http.StatusInternalServerError)
		return
	}
	stats, err := h.governor.Stats(r.Context())
	if err != nil {
		h.logger.Error("storage: stats row count failed", "error", err)
		http.Error(w, "unable to count rows", http.StatusInternalServerError)
		return
	}

	degraded := false
	if h.degraded != nil {
		degraded = h.degraded()
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"storageUsage": usage,
		"database":     stats,
		"degraded":     degraded,
	})
}

type maintenanceRequest struct {
	Action string `json:"action"`
}

// Maintenance runs one of the closed set of admin actions.
func (h *Handler) Maintenance(w http.ResponseWriter, r *http.Request) {
	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	switch req.Action {
	case "maintenance":
		report, err := h.governor.PerformMaintenance(r.Context(), true)
		if err != nil {
			h.logger.Error("storage: forced maintenance failed", "error", err)
			http.Error(w, "maintenance failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case "cleanup":
		report, err := h.governor.PerformMaintenance(r.Context(), false)
		if err != nil {
			h.logger.Error("storage: cleanup failed", "error", err)
			http.Error(w, "cleanup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, report)
	case "check":
		usage, err := h.governor.CheckUsage(r.Context())
		if err != nil {
			h.logger.Error("storage: usage check failed", "error", err)
			http.Error(w, "check failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, usage)
	default:
		http.Error(w, "unknown action", http.StatusBadRequest)
	}
}

// GetSettings reads the chatbot switch.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.settings.GetSettings(r.Context())
	if err != nil {
		h.logger.Error("storage: failed to read settings", "error", err)
		http.Error(w, "unable to read settings", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"chatbotEnabled": settings.ChatbotEnabled})
}

type settingsRequest struct {
	ChatbotEnabled *bool `json:"chatbotEnabled"`
}

// UpdateSettings toggles the chatbot switch.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ChatbotEnabled == nil {
		http.Error(w, "chatbotEnabled is required", http.StatusBadRequest)
		return
	}

	settings := conversation.GlobalSettings{ChatbotEnabled: *req.ChatbotEnabled}
	if err := h.settings.UpdateSettings(r.Context(), settings); err != nil {
		h.logger.Error("storage: failed to update settings", "error", err)
		http.Error(w, "unable to update settings", http.StatusInternalServerError)
		return
	}

	h.logger.Info("storage: chatbot switch updated", "enabled", *req.ChatbotEnabled)
	writeJSON(w, http.StatusOK, map[string]bool{"chatbotEnabled": *req.ChatbotEnabled})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
