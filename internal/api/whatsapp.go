package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nibog-labs/notifyd/internal/eventbus"
	"github.com/nibog-labs/notifyd/internal/notify"
)

// handleSendBookingConfirmation sends a booking-confirmation template message
// and returns the structured result. Validation failures are 400s, an open
// circuit is a 503, gateway failures are 502s.
func (s *Server) handleSendBookingConfirmation(w http.ResponseWriter, r *http.Request) {
	var data notify.BookingData
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	res := s.notifySvc.SendBookingConfirmation(r.Context(), data)
	writeJSON(w, resultStatus(res), res)
}

// handleTestIntegration sends the diagnostic template to the supplied phone.
func (s *Server) handleTestIntegration(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Phone string `json:"phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}
	if req.Phone == "" {
		writeError(w, http.StatusBadRequest, "phone number is required")
		return
	}

	res := s.notifySvc.TestIntegration(r.Context(), req.Phone)
	writeJSON(w, resultStatus(res), res)
}

// handleListTemplates returns the gateway's registered template descriptors.
func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.notifySvc.ListTemplates(r.Context())
	if err != nil {
		var cfgErr *notify.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, cfgErr.Error())
			return
		}
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": templates})
}

// handleWhatsAppHealth returns the consolidated health report: 200 when
// healthy, 503 otherwise, so monitoring can alert on the status code alone.
func (s *Server) handleWhatsAppHealth(w http.ResponseWriter, r *http.Request) {
	report := s.healthMon.Check(r.Context())
	status := http.StatusOK
	if !report.Healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// handleBookingConfirmedEvent accepts a booking-confirmed event and returns
// immediately; the notification is dispatched asynchronously so the booking
// flow is never blocked by a slow or failing gateway.
func (s *Server) handleBookingConfirmedEvent(w http.ResponseWriter, r *http.Request) {
	var payload map[string]string
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeError(w, http.StatusBadRequest, errInvalidJSONBody)
		return
	}

	s.bus.Publish(eventbus.BookingConfirmed, payload)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}
