package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/nibog-labs/notifyd/internal/api"
	"github.com/nibog-labs/notifyd/internal/breaker"
	"github.com/nibog-labs/notifyd/internal/config"
	"github.com/nibog-labs/notifyd/internal/eventbus"
	"github.com/nibog-labs/notifyd/internal/gateway"
	"github.com/nibog-labs/notifyd/internal/health"
	"github.com/nibog-labs/notifyd/internal/metrics"
	"github.com/nibog-labs/notifyd/internal/notify"
	notifymocks "github.com/nibog-labs/notifyd/internal/notify/mocks"
	"github.com/nibog-labs/notifyd/internal/storage"
)

type memSettingsStore struct {
	settings config.Settings
}

func (s *memSettingsStore) Load() (config.Settings, error) { return s.settings, nil }
func (s *memSettingsStore) Save(v config.Settings) error   { s.settings = v; return nil }

type memNotificationStore struct {
	mu      sync.Mutex
	entries []storage.NotificationLogEntry
}

func (s *memNotificationStore) LogNotification(_ context.Context, e storage.NotificationLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *memNotificationStore) ListNotifications(_ context.Context, limit int) ([]storage.NotificationLogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit > len(s.entries) {
		limit = len(s.entries)
	}
	out := make([]storage.NotificationLogEntry, limit)
	copy(out, s.entries[len(s.entries)-limit:])
	return out, nil
}

// testHarness bundles the mocked gateway, real service wiring, and router
// used by every test.
type testHarness struct {
	client  *notifymocks.MockGatewayClient
	store   *memNotificationStore
	breaker *breaker.Breaker
	bus     eventbus.EventBus
	router  chi.Router
}

func newHarness(t *testing.T, enabled bool) *testHarness {
	t.Helper()

	mgr, err := config.NewManager(&memSettingsStore{settings: config.Settings{
		Enabled:         enabled,
		APIToken:        "tok-123",
		FallbackEnabled: true,
	}}, &config.AppConfig{})
	require.NoError(t, err)

	catalog, err := config.LoadTemplateCatalog("")
	require.NoError(t, err)

	client := new(notifymocks.MockGatewayClient)
	store := &memNotificationStore{}
	brk := breaker.New(5, time.Minute, nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc, err := notify.NewService(mgr, catalog, client, brk, store,
		metrics.New(prometheus.NewRegistry()), logger)
	require.NoError(t, err)

	bus := eventbus.New(1, logger)
	t.Cleanup(bus.Close)
	bus.Subscribe(notify.NewBookingListener(svc, logger))

	mon := health.NewMonitor(mgr, brk, nil)
	srv := api.New(svc, mon, mgr, store, bus, logger)

	r := chi.NewRouter()
	srv.Mount(r)

	return &testHarness{
		client:  client,
		store:   store,
		breaker: brk,
		bus:     bus,
		router:  r,
	}
}

func (h *testHarness) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func bookingBody() string {
	return `{
		"bookingId": 4211,
		"parentName": "Priya Sharma",
		"parentPhone": "+916303727148",
		"childName": "Aarav",
		"eventTitle": "Baby Crawl Race",
		"eventDate": "5 Sep 2026",
		"eventVenue": "Hitex Arena, Hyderabad",
		"totalAmount": 1800,
		"paymentMethod": "PhonePe"
	}`
}

// ---------- Booking confirmation ----------

func TestSendBookingConfirmation(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("SendTemplateMessage", mock.Anything, "+916303727148",
			config.DefaultTemplateName, config.DefaultTemplateLanguage, mock.Anything).
			Return(&gateway.Response{MessageID: "9001", WAMID: "wamid.X", DeliveryStatus: "delivered_to_whatsapp"}, nil)

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(bookingBody())))

		assert.Equal(t, http.StatusOK, w.Code)

		var res notify.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "9001", res.MessageID)
		assert.Equal(t, "delivered_to_whatsapp", res.DeliveryStatus)
	})

	t.Run("invalid json", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader("{not json")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		h.client.AssertNotCalled(t, "SendTemplateMessage")
	})

	t.Run("validation failure", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(`{"bookingId": 1}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)

		var res notify.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, notify.KindValidation, res.ErrorKind)
	})

	t.Run("gateway failure", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("SendTemplateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(nil, &gateway.APIError{StatusCode: 200, Reason: "Invalid token"})

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(bookingBody())))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("circuit open", func(t *testing.T) {
		h := newHarness(t, true)
		for i := 0; i < 5; i++ {
			h.breaker.RecordFailure()
		}

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(bookingBody())))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var res notify.Result
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
		assert.Equal(t, notify.KindCircuitOpen, res.ErrorKind)
		h.client.AssertNotCalled(t, "SendTemplateMessage")
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, false)

		w := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(bookingBody())))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		h.client.AssertNotCalled(t, "SendTemplateMessage")
	})
}

// ---------- Test integration ----------

func TestTestIntegrationEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("SendTestMessage", mock.Anything, "+916303727148").
			Return(&gateway.Response{MessageID: "7", DeliveryStatus: "queued_pending_delivery"}, nil)

		w := h.do(httptest.NewRequest(http.MethodPost, "/whatsapp/test",
			strings.NewReader(`{"phone": "6303727148"}`)))

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing phone", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodPost, "/whatsapp/test",
			strings.NewReader(`{}`)))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		h.client.AssertNotCalled(t, "SendTestMessage")
	})
}

// ---------- Templates ----------

func TestListTemplatesEndpoint(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("ListTemplates", mock.Anything).Return([]gateway.Template{
			{Name: "booking_confirmation_nibog", Language: "en_US", Status: "APPROVED"},
		}, nil)

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/templates", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var body struct {
			Templates []gateway.Template `json:"templates"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Templates, 1)
		assert.Equal(t, "booking_confirmation_nibog", body.Templates[0].Name)
	})

	t.Run("disabled", func(t *testing.T) {
		h := newHarness(t, false)

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/templates", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("gateway error", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("ListTemplates", mock.Anything).Return(nil, errors.New("connection refused"))

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/templates", nil))

		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

// ---------- Health ----------

func TestWhatsAppHealthEndpoint(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var report health.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.True(t, report.Healthy)
		assert.True(t, report.Enabled)
	})

	t.Run("disabled is healthy", func(t *testing.T) {
		h := newHarness(t, false)

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)

		var report health.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.True(t, report.Healthy)
		assert.False(t, report.Enabled)
	})

	t.Run("open circuit is 503", func(t *testing.T) {
		h := newHarness(t, true)
		for i := 0; i < 5; i++ {
			h.breaker.RecordFailure()
		}

		w := h.do(httptest.NewRequest(http.MethodGet, "/whatsapp/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var report health.Report
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
		assert.False(t, report.Healthy)
		assert.True(t, report.CircuitOpen)
		assert.Equal(t, 5, report.FailureCount)
	})
}

// ---------- Booking-confirmed event ----------

func TestBookingConfirmedEvent(t *testing.T) {
	t.Run("accepted and dispatched", func(t *testing.T) {
		h := newHarness(t, true)
		done := make(chan struct{})
		h.client.On("SendTemplateMessage", mock.Anything, "+916303727148",
			config.DefaultTemplateName, config.DefaultTemplateLanguage, mock.Anything).
			Run(func(mock.Arguments) { close(done) }).
			Return(&gateway.Response{MessageID: "9001", DeliveryStatus: "queued_pending_delivery"}, nil)

		w := h.do(httptest.NewRequest(http.MethodPost, "/events/booking-confirmed",
			strings.NewReader(`{
				"bookingId": "4211",
				"parentName": "Priya Sharma",
				"parentPhone": "6303727148",
				"childName": "Aarav",
				"eventTitle": "Baby Crawl Race"
			}`)))

		assert.Equal(t, http.StatusAccepted, w.Code)

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("booking event was never dispatched to the gateway")
		}
	})

	t.Run("invalid json", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodPost, "/events/booking-confirmed",
			strings.NewReader("nope")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// ---------- Settings ----------

func TestGetSettings(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(httptest.NewRequest(http.MethodGet, "/settings", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Settings config.Settings `json:"settings"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, config.MaskedToken, body.Settings.APIToken)
	assert.True(t, body.Settings.Enabled)
}

func TestUpdateSettings(t *testing.T) {
	t.Run("sentinel keeps existing token", func(t *testing.T) {
		h := newHarness(t, true)
		h.client.On("SendTemplateMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&gateway.Response{MessageID: "1"}, nil)

		w := h.do(httptest.NewRequest(http.MethodPut, "/settings",
			strings.NewReader(`{"enabled": true, "api_token": "***", "timeout_ms": 5000}`)))

		assert.Equal(t, http.StatusOK, w.Code)

		// The token survived the sentinel round trip, so a send still works.
		sw := h.do(httptest.NewRequest(http.MethodPost,
			"/whatsapp/send-booking-confirmation", strings.NewReader(bookingBody())))
		assert.Equal(t, http.StatusOK, sw.Code)
	})

	t.Run("invalid json", func(t *testing.T) {
		h := newHarness(t, true)

		w := h.do(httptest.NewRequest(http.MethodPut, "/settings",
			strings.NewReader("{")))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

// ---------- Delivery log ----------

func TestListNotificationLog(t *testing.T) {
	h := newHarness(t, true)
	require.NoError(t, h.store.LogNotification(context.Background(), storage.NotificationLogEntry{
		ID:         "n-1",
		Kind:       notify.KindBookingConfirmation,
		BookingRef: "B0004211",
		Phone:      "***7148",
		Status:     storage.StatusSent,
	}))

	w := h.do(httptest.NewRequest(http.MethodGet, "/notifications?limit=10", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var entries []storage.NotificationLogEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "B0004211", entries[0].BookingRef)
	assert.Equal(t, "***7148", entries[0].Phone)
}

func TestVersionEndpoint(t *testing.T) {
	h := newHarness(t, true)

	w := h.do(httptest.NewRequest(http.MethodGet, "/version", nil))

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body, "version")
}
