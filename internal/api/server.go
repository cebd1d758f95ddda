// Package api implements the REST handlers for the notification service.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nibog-labs/notifyd/internal/config"
	"github.com/nibog-labs/notifyd/internal/eventbus"
	"github.com/nibog-labs/notifyd/internal/health"
	"github.com/nibog-labs/notifyd/internal/notify"
	"github.com/nibog-labs/notifyd/internal/storage"
)

const errInvalidJSONBody = "invalid JSON body"

// Server holds all dependencies for the REST API handlers.
type Server struct {
	notifySvc   *notify.Service
	healthMon   *health.Monitor
	settingsMgr *config.Manager
	store       storage.NotificationStore
	bus         eventbus.EventBus
	logger      *slog.Logger
}

// New creates a new API Server backed by the provided services.
func New(
	notifySvc *notify.Service,
	healthMon *health.Monitor,
	settingsMgr *config.Manager,
	store storage.NotificationStore,
	bus eventbus.EventBus,
	logger *slog.Logger,
) *Server {
	return &Server{
		notifySvc:   notifySvc,
		healthMon:   healthMon,
		settingsMgr: settingsMgr,
		store:       store,
		bus:         bus,
		logger:      logger,
	}
}

// Mount registers all API routes under the given router.
func (s *Server) Mount(r chi.Router) {
	// WhatsApp dispatch
	r.Post("/whatsapp/send-booking-confirmation", s.handleSendBookingConfirmation)
	r.Post("/whatsapp/test", s.handleTestIntegration)
	r.Get("/whatsapp/templates", s.handleListTemplates)
	r.Get("/whatsapp/health", s.handleWhatsAppHealth)

	// Asynchronous trigger used by the booking platform
	r.Post("/events/booking-confirmed", s.handleBookingConfirmedEvent)

	// Notification settings
	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handleUpdateSettings)

	// Delivery log
	r.Get("/notifications", s.handleListNotificationLog)

	r.Get("/version", s.handleVersion)
}

// ─── Shared helpers ───────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// resultStatus maps a send result to an HTTP status code: caller mistakes are
// 4xx, gateway trouble is 5xx, an open circuit is Service Unavailable.
func resultStatus(res notify.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.ErrorKind {
	case notify.KindValidation, notify.KindConfig:
		return http.StatusBadRequest
	case notify.KindCircuitOpen:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}
