package eventbus

import "time"

// BookingConfirmed is published when the booking platform reports a confirmed
// booking; the notification listener turns it into a WhatsApp send.
const BookingConfirmed = "booking.confirmed"

// Event represents an application event published to the bus.
type Event struct {
	Type      string            `json:"type"`
	Timestamp time.Time         `json:"timestamp"`
	Payload   map[string]string `json:"payload"`
}

// Listener is a function that handles an event.
type Listener func(Event)
