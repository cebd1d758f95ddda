package notify

import (
	"fmt"
	"strings"
	"time"
)

// GameDetail is a single game slot inside a booking.
type GameDetail struct {
	GameName  string  `json:"gameName"`
	GameTime  string  `json:"gameTime"`
	GamePrice float64 `json:"gamePrice"`
}

// AddOn is an optional extra purchased with a booking.
type AddOn struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// BookingData is the domain payload for a booking-confirmation send. Field
// names mirror the booking platform's JSON contract.
type BookingData struct {
	BookingID     int          `json:"bookingId"`
	BookingRef    string       `json:"bookingRef,omitempty"`
	ParentName    string       `json:"parentName"`
	ParentPhone   string       `json:"parentPhone"`
	ChildName     string       `json:"childName"`
	EventTitle    string       `json:"eventTitle"`
	EventDate     string       `json:"eventDate"`
	EventVenue    string       `json:"eventVenue"`
	TotalAmount   float64      `json:"totalAmount"`
	PaymentMethod string       `json:"paymentMethod"`
	TransactionID string       `json:"transactionId"`
	GameDetails   []GameDetail `json:"gameDetails,omitempty"`
	AddOns        []AddOn      `json:"addOns,omitempty"`
}

// Validate checks the fields the booking-confirmation template requires.
// A failure identifies the offending field and must never reach the network
// or count against the circuit breaker.
func (d BookingData) Validate() error {
	if d.BookingID <= 0 {
		return &ValidationError{Field: "bookingId", Message: "must be a positive integer"}
	}
	required := []struct {
		field, value string
	}{
		{"parentName", d.ParentName},
		{"parentPhone", d.ParentPhone},
		{"childName", d.ChildName},
		{"eventTitle", d.EventTitle},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return &ValidationError{Field: r.field, Message: "is required"}
		}
	}
	return nil
}

// Ref returns the booking reference, deriving the B-prefixed padded form from
// the booking id when none was supplied.
func (d BookingData) Ref() string {
	if d.BookingRef != "" {
		return d.BookingRef
	}
	return fmt.Sprintf("B%07d", d.BookingID)
}

// FormatPhone normalizes a phone number for WhatsApp delivery. Ten-digit
// numbers are assumed to be Indian and get the +91 country code; longer
// numbers keep their digits with a + prefix. Returns "" when the number
// cannot be normalized to 10-15 digits.
func FormatPhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case strings.HasPrefix(digits, "91") && len(digits) == 12:
		return "+" + digits
	case len(digits) == 10:
		return "+91" + digits
	case len(digits) >= 10 && len(digits) <= 15:
		return "+" + digits
	default:
		return ""
	}
}

// bookingParamCount is the placeholder count of the booking-confirmation
// template, v1 of the mapping below. Checked against the template catalog at
// startup and in tests; changing the template requires bumping both together.
const bookingParamCount = 8

// bookingTemplateParams maps a booking to the template's positional
// parameters in placeholder order:
//
//	{{1}} parent name   {{2}} event title  {{3}} event date  {{4}} venue
//	{{5}} child name    {{6}} booking ref  {{7}} amount      {{8}} payment method
//
// Blank fields get neutral fallbacks so the parameter count never varies.
func bookingTemplateParams(d BookingData) []string {
	params := []string{
		fallback(d.ParentName, "Customer"),
		fallback(d.EventTitle, "NIBOG Event"),
		fallback(d.EventDate, time.Now().Format("2 Jan 2006")),
		fallback(d.EventVenue, "Event Venue"),
		fallback(d.ChildName, "Child"),
		d.Ref(),
		formatAmount(d.TotalAmount),
		fallback(d.PaymentMethod, "Payment"),
	}
	return params
}

func fallback(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return v
}

// formatAmount renders the amount without a currency symbol; the template
// body supplies it.
func formatAmount(amount float64) string {
	if amount == float64(int64(amount)) {
		return fmt.Sprintf("%d", int64(amount))
	}
	return fmt.Sprintf("%.2f", amount)
}

// bookingTextMessage renders the plain-text fallback used when a template
// send fails with a parameter-mismatch error.
func bookingTextMessage(d BookingData) string {
	games := make([]string, 0, len(d.GameDetails))
	for _, g := range d.GameDetails {
		games = append(games, fmt.Sprintf("• %s - %s - ₹%s", g.GameName, g.GameTime, formatAmount(g.GamePrice)))
	}

	var addOns string
	if len(d.AddOns) > 0 {
		items := make([]string, 0, len(d.AddOns))
		for _, a := range d.AddOns {
			items = append(items, fmt.Sprintf("• %s (Qty: %d) - ₹%s", a.Name, a.Quantity, formatAmount(a.Price)))
		}
		addOns = "\n\n*Add-ons:*\n" + strings.Join(items, "\n")
	}

	return fmt.Sprintf(`🎉 *Booking Confirmed!*

Hi %s,

Your booking has been confirmed:

📅 *Event:* %s
🗓️ *Date:* %s
📍 *Venue:* %s
👶 *Child:* %s
🎫 *Booking ID:* %s

*Games Booked:*
%s%s

💰 *Total Amount:* ₹%s
💳 *Payment:* %s
🔗 *Transaction ID:* %s

Thank you for choosing NIBOG! 🎈

_Powered by Zaptra_ 📱`,
		d.ParentName, d.EventTitle, d.EventDate, d.EventVenue, d.ChildName, d.Ref(),
		strings.Join(games, "\n"), addOns, formatAmount(d.TotalAmount), d.PaymentMethod, d.TransactionID)
}
