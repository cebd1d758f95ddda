package notify

import (
	"fmt"
	"time"
)

// Error kinds carried on Result so callers can decide whether a retry makes
// sense without string matching. Retrying a validation or config failure is
// never useful; retrying a circuit-open rejection immediately is discouraged.
const (
	KindConfig      = "config"
	KindValidation  = "validation"
	KindTransport   = "transport"
	KindGateway     = "gateway"
	KindCircuitOpen = "circuit_open"
)

// ValidationError is returned when booking data fails validation. The send is
// rejected before any network or circuit-breaker interaction.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for %q: %s", e.Field, e.Message)
	}
	return e.Message
}

// CircuitOpenError signals that the send was not attempted because the
// gateway circuit breaker is open. Distinct from an attempted-and-failed
// send so operators can tell systemic outage from a one-off failure.
type CircuitOpenError struct {
	Failures int
	ResetIn  time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("whatsapp gateway temporarily unavailable (circuit open, %d failures, retry in %s)",
		e.Failures, e.ResetIn.Round(time.Second))
}

// ConfigError is returned when the feature is disabled or misconfigured.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string { return e.Message }
