package notify

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/nibog-labs/notifyd/internal/eventbus"
)

// listenerTimeout bounds a single event-driven send, independent of the
// gateway's own per-call timeout.
const listenerTimeout = 30 * time.Second

// NewBookingListener returns an event-bus listener that sends a booking
// confirmation for every booking.confirmed event. Send failures are logged
// and recorded but never propagate: the parent booking flow has already
// completed by the time the event is handled.
func NewBookingListener(svc *Service, logger *slog.Logger) eventbus.Listener {
	return func(e eventbus.Event) {
		if e.Type != eventbus.BookingConfirmed {
			return
		}

		data := bookingFromPayload(e.Payload)

		ctx, cancel := context.WithTimeout(context.Background(), listenerTimeout)
		defer cancel()

		res := svc.SendBookingConfirmation(ctx, data)
		if !res.Success {
			logger.Warn("booking confirmation notification failed",
				slog.String("booking_ref", data.Ref()),
				slog.String("error_kind", res.ErrorKind),
				slog.String("error", res.Error))
		}
	}
}

// bookingFromPayload reconstructs BookingData from the flat string payload
// carried on the bus. Missing or malformed numeric fields become zero values
// and are caught by validation.
func bookingFromPayload(p map[string]string) BookingData {
	id, _ := strconv.Atoi(p["bookingId"])
	amount, _ := strconv.ParseFloat(p["totalAmount"], 64)
	return BookingData{
		BookingID:     id,
		BookingRef:    p["bookingRef"],
		ParentName:    p["parentName"],
		ParentPhone:   p["parentPhone"],
		ChildName:     p["childName"],
		EventTitle:    p["eventTitle"],
		EventDate:     p["eventDate"],
		EventVenue:    p["eventVenue"],
		TotalAmount:   amount,
		PaymentMethod: p["paymentMethod"],
		TransactionID: p["transactionId"],
	}
}
