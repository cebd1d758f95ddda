// Package gateway implements the Zaptra wpbox API client used to deliver
// WhatsApp template and text messages. It normalizes transport failures and
// application-level gateway errors into a single error channel so callers can
// treat "could not reach the gateway" and "the gateway said no" uniformly.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/nibog-labs/notifyd/internal/config"
)

// ErrNotConfigured is returned when a call is attempted without an API token
// or gateway URL. No network I/O happens in that case.
var ErrNotConfigured = errors.New("whatsapp gateway is not configured")

// APIError is an application-level gateway failure: the HTTP exchange
// completed but the gateway reported an error. The raw payload is preserved
// because it often carries actionable detail (template mismatch, invalid
// phone format, quota exceeded).
type APIError struct {
	StatusCode int
	Reason     string
	Raw        json.RawMessage
}

func (e *APIError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("gateway error: %s", e.Reason)
	}
	return fmt.Sprintf("gateway returned status %d", e.StatusCode)
}

// IsParamMismatch reports whether the gateway rejected the send because the
// parameter list did not match the template's placeholder count (Meta error
// #132000). Callers may fall back to a plain-text message in that case.
func (e *APIError) IsParamMismatch() bool {
	return ReasonIsParamMismatch(e.Reason)
}

// ReasonIsParamMismatch reports whether a gateway failure reason is the
// template parameter-count mismatch error (#132000).
func ReasonIsParamMismatch(reason string) bool {
	return strings.Contains(reason, "132000")
}

// Response is the normalized result of a successful gateway call.
type Response struct {
	MessageID string `json:"message_id"`
	// WAMID is the WhatsApp server message id. When present the message
	// reached WhatsApp servers; when absent it is queued pending delivery.
	WAMID          string          `json:"message_wamid,omitempty"`
	DeliveryStatus string          `json:"delivery_status"`
	Raw            json.RawMessage `json:"raw,omitempty"`
}

// Template describes a gateway-side message template.
type Template struct {
	Name       string          `json:"name"`
	Language   string          `json:"language"`
	Status     string          `json:"status"`
	Category   string          `json:"category"`
	Components json.RawMessage `json:"components,omitempty"`
}

// SettingsFunc returns the current notification settings. It is called on
// every request so configuration changes take effect without a restart.
type SettingsFunc func() config.Settings

// Client talks to the Zaptra wpbox API.
type Client struct {
	settings   SettingsFunc
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a gateway Client. The per-call timeout comes from settings, not
// from the http.Client, so it always reflects the current configuration.
func New(settings SettingsFunc, logger *slog.Logger) *Client {
	return &Client{
		settings:   settings,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

// wire format for POST /sendtemplatemessage
type templateRequest struct {
	Token            string      `json:"token"`
	Phone            string      `json:"phone"`
	TemplateName     string      `json:"template_name"`
	TemplateLanguage string      `json:"template_language"`
	Components       []component `json:"components"`
}

type component struct {
	Type       string      `json:"type"`
	Parameters []parameter `json:"parameters"`
}

type parameter struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// wire format for POST /sendmessage
type textRequest struct {
	Token   string `json:"token"`
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// envelope covers the response shapes the gateway produces. message_id is
// sometimes a number and sometimes a string.
type envelope struct {
	Status    string          `json:"status"`
	MessageID json.RawMessage `json:"message_id"`
	WAMID     string          `json:"message_wamid"`
	Message   string          `json:"message"`
	Error     string          `json:"error"`
}

// SendTemplateMessage delivers a templated message. The params slice is
// position-significant: params[0] fills {{1}}, params[1] fills {{2}}, and so
// on, so its length must match the template's declared placeholder count.
func (c *Client) SendTemplateMessage(ctx context.Context, phone, templateName, templateLanguage string, params []string) (*Response, error) {
	s := c.settings()
	if err := checkConfigured(s); err != nil {
		return nil, err
	}

	parameters := make([]parameter, len(params))
	for i, p := range params {
		parameters[i] = parameter{Type: "text", Text: p}
	}

	body := templateRequest{
		Token:            s.APIToken,
		Phone:            phone,
		TemplateName:     templateName,
		TemplateLanguage: templateLanguage,
		Components: []component{
			{Type: "body", Parameters: parameters},
		},
	}

	c.logger.Debug("sending template message",
		slog.String("template", templateName),
		slog.String("language", templateLanguage),
		slog.Int("params", len(params)),
	)

	return c.post(ctx, s, "/sendtemplatemessage", body)
}

// SendTextMessage delivers a plain-text message.
func (c *Client) SendTextMessage(ctx context.Context, phone, message string) (*Response, error) {
	s := c.settings()
	if err := checkConfigured(s); err != nil {
		return nil, err
	}
	return c.post(ctx, s, "/sendmessage", textRequest{Token: s.APIToken, Phone: phone, Message: message})
}

// SendTestMessage sends the fixed diagnostic template with the destination
// phone as its single parameter, validating end-to-end connectivity.
func (c *Client) SendTestMessage(ctx context.Context, phone string) (*Response, error) {
	s := c.settings()
	return c.SendTemplateMessage(ctx, phone, config.TestTemplateName, s.TemplateLanguage, []string{phone})
}

// ListTemplates fetches the template descriptors registered with the gateway.
// The endpoint returns either a bare array or an object wrapping a
// "templates" array; both shapes are handled.
func (c *Client) ListTemplates(ctx context.Context) ([]Template, error) {
	s := c.settings()
	if err := checkConfigured(s); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	u := strings.TrimSuffix(s.GatewayBaseURL, "/") + "/getTemplates?token=" + url.QueryEscape(s.APIToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("building template list request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling whatsapp gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env envelope
		_ = json.Unmarshal(raw, &env)
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: failureReason(env, resp.StatusCode), Raw: raw}
	}

	var templates []Template
	if err := json.Unmarshal(raw, &templates); err == nil {
		return templates, nil
	}

	var wrapped struct {
		Templates []Template `json:"templates"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("decoding template list: %w", err)
	}
	return wrapped.Templates, nil
}

// post issues a JSON POST and normalizes the response.
func (c *Client) post(ctx context.Context, s config.Settings, endpoint string, body any) (*Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encoding gateway request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout())
	defer cancel()

	u := strings.TrimSuffix(s.GatewayBaseURL, "/") + endpoint
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling whatsapp gateway: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading gateway response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, &APIError{StatusCode: resp.StatusCode, Reason: "unparseable gateway response", Raw: raw}
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 && env.Status == "success" {
		r := &Response{
			MessageID: messageID(env.MessageID),
			WAMID:     env.WAMID,
			Raw:       raw,
		}
		// A missing WAMID means the message was accepted but not yet
		// handed to WhatsApp servers (opt-in pending, still processing).
		if r.WAMID != "" {
			r.DeliveryStatus = "delivered_to_whatsapp"
		} else {
			r.DeliveryStatus = "queued_pending_delivery"
		}
		return r, nil
	}

	return nil, &APIError{StatusCode: resp.StatusCode, Reason: failureReason(env, resp.StatusCode), Raw: raw}
}

func checkConfigured(s config.Settings) error {
	if s.APIToken == "" || s.GatewayBaseURL == "" {
		return ErrNotConfigured
	}
	return nil
}

// messageID stringifies the gateway's message_id, which may arrive as a JSON
// string or number. An absent id becomes "unknown", matching the gateway's
// own dashboard behavior.
func messageID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return "unknown"
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func failureReason(env envelope, statusCode int) string {
	if env.Message != "" {
		return env.Message
	}
	if env.Error != "" {
		return env.Error
	}
	return fmt.Sprintf("API returned status: %d", statusCode)
}
