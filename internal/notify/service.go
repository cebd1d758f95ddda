// Package notify orchestrates WhatsApp notification sends: it validates the
// domain payload, maps it to template parameters, and dispatches through the
// circuit breaker so a degraded gateway cannot pile up blocked callers.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nibog-labs/notifyd/internal/breaker"
	"github.com/nibog-labs/notifyd/internal/config"
	"github.com/nibog-labs/notifyd/internal/gateway"
	"github.com/nibog-labs/notifyd/internal/metrics"
	"github.com/nibog-labs/notifyd/internal/storage"
)

// Send kinds recorded in the delivery log and metrics.
const (
	KindBookingConfirmation = "booking_confirmation"
	KindTest                = "test"
)

// Result is the structured outcome of a send attempt. The service never
// panics across its boundary; every path produces a Result.
type Result struct {
	Success        bool            `json:"success"`
	MessageID      string          `json:"messageId,omitempty"`
	DeliveryStatus string          `json:"deliveryStatus,omitempty"`
	ErrorKind      string          `json:"errorKind,omitempty"`
	Error          string          `json:"error,omitempty"`
	// GatewayResponse preserves the raw gateway payload for diagnostics.
	GatewayResponse json.RawMessage `json:"gatewayResponse,omitempty"`
}

// GatewayClient is the outbound dependency of the service.
type GatewayClient interface {
	SendTemplateMessage(ctx context.Context, phone, templateName, templateLanguage string, params []string) (*gateway.Response, error)
	SendTextMessage(ctx context.Context, phone, message string) (*gateway.Response, error)
	SendTestMessage(ctx context.Context, phone string) (*gateway.Response, error)
	ListTemplates(ctx context.Context) ([]gateway.Template, error)
}

// Service is the single entry point used by domain callers.
type Service struct {
	settings *config.Manager
	catalog  *config.TemplateCatalog
	client   GatewayClient
	breaker  *breaker.Breaker
	store    storage.NotificationStore
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// NewService wires the notification service. It fails when the booking
// template's declared placeholder count does not match the parameter mapping,
// so a catalog/template drift is caught at startup rather than at send time.
func NewService(
	settings *config.Manager,
	catalog *config.TemplateCatalog,
	client GatewayClient,
	brk *breaker.Breaker,
	store storage.NotificationStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) (*Service, error) {
	if spec, ok := catalog.Lookup(settings.Get().TemplateName); ok && spec.ParamCount != bookingParamCount {
		return nil, fmt.Errorf("template %q declares %d parameters but the booking mapping produces %d",
			spec.Name, spec.ParamCount, bookingParamCount)
	}
	return &Service{
		settings: settings,
		catalog:  catalog,
		client:   client,
		breaker:  brk,
		store:    store,
		metrics:  m,
		logger:   logger,
	}, nil
}

// Breaker exposes the circuit breaker for health reporting.
func (s *Service) Breaker() *breaker.Breaker { return s.breaker }

// SendBookingConfirmation validates the booking, maps it to template
// parameters, and dispatches through the circuit breaker. Validation and
// configuration failures never reach the network and never count against the
// breaker's failure budget.
func (s *Service) SendBookingConfirmation(ctx context.Context, data BookingData) Result {
	start := time.Now()

	if err := data.Validate(); err != nil {
		return s.finish(ctx, KindBookingConfirmation, data.Ref(), data.ParentPhone, start,
			failure(KindValidation, err.Error(), nil))
	}

	settings := s.settings.Get()
	if !settings.Enabled {
		s.logger.Info("whatsapp notifications disabled, skipping send",
			slog.String("booking_ref", data.Ref()))
		return s.finish(ctx, KindBookingConfirmation, data.Ref(), data.ParentPhone, start,
			failure(KindConfig, "WhatsApp notifications are disabled", nil))
	}

	phone := FormatPhone(data.ParentPhone)
	if phone == "" {
		err := &ValidationError{Field: "parentPhone", Message: fmt.Sprintf(
			"invalid phone number %q: include a country code, e.g. +91 for India", data.ParentPhone)}
		return s.finish(ctx, KindBookingConfirmation, data.Ref(), data.ParentPhone, start,
			failure(KindValidation, err.Error(), nil))
	}

	params := bookingTemplateParams(data)
	if spec, ok := s.catalog.Lookup(settings.TemplateName); ok && len(params) != spec.ParamCount {
		err := &ValidationError{Field: "parameters", Message: fmt.Sprintf(
			"template %q expects %d parameters, got %d", spec.Name, spec.ParamCount, len(params))}
		return s.finish(ctx, KindBookingConfirmation, data.Ref(), phone, start,
			failure(KindValidation, err.Error(), nil))
	}

	res := s.dispatch(ctx, func(ctx context.Context) (*gateway.Response, error) {
		return s.client.SendTemplateMessage(ctx, phone, settings.TemplateName, settings.TemplateLanguage, params)
	})

	// A parameter-mismatch rejection means the approved template drifted from
	// the mapping; degrade to a plain-text message so the customer still gets
	// their confirmation.
	if !res.Success && res.ErrorKind == KindGateway && settings.FallbackEnabled && isParamMismatch(res) {
		s.logger.Warn("template send rejected for parameter mismatch, falling back to text",
			slog.String("booking_ref", data.Ref()))
		res = s.dispatch(ctx, func(ctx context.Context) (*gateway.Response, error) {
			return s.client.SendTextMessage(ctx, phone, bookingTextMessage(data))
		})
	}

	return s.finish(ctx, KindBookingConfirmation, data.Ref(), phone, start, res)
}

// TestIntegration sends the diagnostic template to verify end-to-end
// connectivity, with the same gating discipline as a real send.
func (s *Service) TestIntegration(ctx context.Context, phone string) Result {
	start := time.Now()

	formatted := FormatPhone(phone)
	if formatted == "" {
		err := &ValidationError{Field: "phone", Message: fmt.Sprintf("invalid phone number %q", phone)}
		return s.finish(ctx, KindTest, "", phone, start, failure(KindValidation, err.Error(), nil))
	}

	if !s.settings.Get().Enabled {
		return s.finish(ctx, KindTest, "", formatted, start,
			failure(KindConfig, "WhatsApp notifications are disabled", nil))
	}

	res := s.dispatch(ctx, func(ctx context.Context) (*gateway.Response, error) {
		return s.client.SendTestMessage(ctx, formatted)
	})
	return s.finish(ctx, KindTest, "", formatted, start, res)
}

// ListTemplates returns the gateway's template descriptors. Informational:
// it respects the enabled flag but bypasses the breaker's failure accounting.
func (s *Service) ListTemplates(ctx context.Context) ([]gateway.Template, error) {
	if !s.settings.Get().Enabled {
		return nil, &ConfigError{Message: "WhatsApp notifications are disabled"}
	}
	return s.client.ListTemplates(ctx)
}

// dispatch runs one breaker-gated gateway call and classifies the outcome.
func (s *Service) dispatch(ctx context.Context, call func(context.Context) (*gateway.Response, error)) Result {
	if !s.breaker.Allow() {
		st := s.breaker.Status()
		s.metrics.Observe(st.Open, st.Failures)
		err := &CircuitOpenError{Failures: st.Failures, ResetIn: st.ResetIn}
		return failure(KindCircuitOpen, err.Error(), nil)
	}

	callStart := time.Now()
	resp, err := call(ctx)
	s.metrics.SendDuration.Observe(time.Since(callStart).Seconds())

	if err != nil {
		// Fail-fast configuration errors never count against the breaker, but
		// the trial permit a half-open Allow may have granted must be released
		// or no later caller could ever attempt the trial.
		if errors.Is(err, gateway.ErrNotConfigured) {
			s.breaker.CancelTrial()
			return failure(KindConfig, err.Error(), nil)
		}

		wasOpen := s.breaker.Status().Open
		s.breaker.RecordFailure()
		st := s.breaker.Status()
		s.metrics.Observe(st.Open, st.Failures)
		if st.Open && !wasOpen {
			s.metrics.BreakerTrips.Inc()
			s.logger.Error("circuit breaker opened",
				slog.Int("failures", st.Failures),
				slog.Duration("reset_in", st.ResetIn))
		}

		var apiErr *gateway.APIError
		if errors.As(err, &apiErr) {
			return failure(KindGateway, apiErr.Reason, apiErr.Raw)
		}
		return failure(KindTransport, fmt.Sprintf("unable to reach notification gateway: %v", err), nil)
	}

	s.breaker.RecordSuccess()
	st := s.breaker.Status()
	s.metrics.Observe(st.Open, st.Failures)

	return Result{
		Success:         true,
		MessageID:       resp.MessageID,
		DeliveryStatus:  resp.DeliveryStatus,
		GatewayResponse: resp.Raw,
	}
}

// finish records metrics and the delivery log entry, then returns the result.
// Log failures are reported but never fail the send.
func (s *Service) finish(ctx context.Context, kind, bookingRef, phone string, start time.Time, res Result) Result {
	outcome := "success"
	status := storage.StatusSent
	if !res.Success {
		outcome = res.ErrorKind
		status = storage.StatusFailed
		if res.ErrorKind == KindConfig || res.ErrorKind == KindCircuitOpen {
			status = storage.StatusSkipped
		}
	}
	s.metrics.SendAttempts.WithLabelValues(kind, outcome).Inc()

	entry := storage.NotificationLogEntry{
		Kind:       kind,
		BookingRef: bookingRef,
		Phone:      storage.MaskPhone(phone),
		Status:     status,
		ErrorKind:  res.ErrorKind,
		MessageID:  res.MessageID,
		ErrorMsg:   res.Error,
		DurationMs: time.Since(start).Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.LogNotification(ctx, entry); err != nil {
		s.logger.Warn("failed to record notification log entry", slog.Any("error", err))
	}

	if res.Success {
		s.logger.Info("whatsapp message sent",
			slog.String("kind", kind),
			slog.String("booking_ref", bookingRef),
			slog.String("message_id", res.MessageID),
			slog.String("delivery_status", res.DeliveryStatus))
	} else {
		s.logger.Warn("whatsapp send failed",
			slog.String("kind", kind),
			slog.String("booking_ref", bookingRef),
			slog.String("error_kind", res.ErrorKind),
			slog.String("error", res.Error))
	}
	return res
}

func failure(kind, msg string, raw json.RawMessage) Result {
	return Result{ErrorKind: kind, Error: msg, GatewayResponse: raw}
}

func isParamMismatch(res Result) bool {
	return gateway.ReasonIsParamMismatch(res.Error)
}
