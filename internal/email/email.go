package email

import (
	"context"
	"fmt"
	"strings"

	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/sirupsen/logrus"
)

// Sender renders booking notifications. Delivery is a log line; a mail gateway can be
// placed behind the same method.
type Sender struct {
	log logrus.FieldLogger
}

func NewSender(log logrus.FieldLogger) *Sender {
	return &Sender{log: log}
}

// Compose returns the subject and body for an event.
func Compose(event kafka.BookingEvent) (string, string, error) {
	switch event.Type {
	case kafka.EventBookingCreated:
		return "Your booking is confirmed",
			fmt.Sprintf("Booking %s on flight %d is confirmed for seats %s.", event.BookingID, event.FlightID, strings.Join(event.Seats, ", ")),
			nil
	case kafka.EventBookingCancelled:
		return "Your booking was cancelled",
			fmt.Sprintf("Booking %s on flight %d was cancelled. Seats %s were released.", event.BookingID, event.FlightID, strings.Join(event.Seats, ", ")),
			nil
	case kafka.EventTicketCheckedIn:
		return "Check-in complete",
			fmt.Sprintf("Ticket %s of booking %s is checked in for flight %d.", event.TicketID, event.BookingID, event.FlightID),
			nil
	}
	return "", "", fmt.Errorf("unknown event type %q", event.Type)
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	if event.Email == "" {
		s.log.WithField("booking_id", event.BookingID).Debug("No recipient, notification skipped")
		return nil
	}
	subject, body, err := Compose(event)
	if err != nil {
		return err
	}
	s.log.WithFields(logrus.Fields{
		"to":         event.Email,
		"subject":    subject,
		"booking_id": event.BookingID,
	}).Info(body)
	return nil
}
