// Package notify turns booking events into emails for studio staff. Link
// secrets are never part of an event, so they can never reach a mailbox.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diagnosis/inkstudio-bookings/pkg/events"
	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

type Notifier struct {
	mailer      Mailer
	studioEmail string
	adminURL    string
}

// NewNotifier sends to studioEmail. adminURL, when set, is used to link each
// email to the booking in the admin app.
func NewNotifier(mailer Mailer, studioEmail, adminURL string) *Notifier {
	return &Notifier{mailer: mailer, studioEmail: studioEmail, adminURL: strings.TrimRight(adminURL, "/")}
}

// Subjects lists the events the notifier reacts to.
func (n *Notifier) Subjects() []string {
	return []string{events.BookingCreated, events.BookingUploadAdded}
}

// Handle builds and sends the email for one event. Subjects it does not know
// are ignored.
func (n *Notifier) Handle(ctx context.Context, subject string, data []byte) error {
	var msg Message
	switch subject {
	case events.BookingCreated:
		var e events.BookingCreatedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		msg = Message{
			Subject: "New booking request",
			Text: fmt.Sprintf("A new booking request arrived at %s.\nSource: %s\n%s",
				e.CreatedAt.Format("2006-01-02 15:04 MST"), e.Source, n.bookingRef(e.BookingRequestID)),
		}
	case events.BookingUploadAdded:
		var e events.BookingUploadAddedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return fmt.Errorf("decode %s: %w", subject, err)
		}
		msg = Message{
			Subject: "New reference upload",
			Text: fmt.Sprintf("A client added a file (%s, %d bytes) through a booking link.\n%s",
				e.MimeType, e.Bytes, n.bookingRef(e.BookingRequestID)),
		}
	default:
		return nil
	}

	msg.To = n.studioEmail
	id, err := n.mailer.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("send %s notification: %w", subject, err)
	}
	logger.InfoContext(ctx, "Studio notified", "subject", subject, "message_id", id)
	return nil
}

func (n *Notifier) bookingRef(id string) string {
	if n.adminURL == "" {
		return "Booking: " + id
	}
	return fmt.Sprintf("Booking: %s/bookings/%s", n.adminURL, id)
}
