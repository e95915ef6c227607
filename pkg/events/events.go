package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type NATSPublisher struct {
	conn *nats.Conn
}

func NewNATSPublisher(url string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url,
		nats.Name("inkstudio-bookings"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSPublisher{conn: conn}, nil
}

func (n *NATSPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject)

	return n.conn.Publish(subject, payload)
}

// Handler processes one delivered event.
type Handler func(ctx context.Context, subject string, data []byte) error

// Subscribe delivers subject to h. Subscribers sharing queue split the stream
// between them. Handler errors are logged; the message is not redelivered.
func (n *NATSPublisher) Subscribe(subject, queue string, h Handler) (*nats.Subscription, error) {
	return n.conn.QueueSubscribe(subject, queue, func(m *nats.Msg) {
		ctx := context.WithValue(context.Background(), logger.ServiceKey, queue)
		if err := h(ctx, m.Subject, m.Data); err != nil {
			logger.ErrorContext(ctx, "Event handler failed", "subject", m.Subject, "error", err)
		}
	})
}

// Ping reports whether the connection to the broker is up.
func (n *NATSPublisher) Ping(_ context.Context) error {
	if !n.conn.IsConnected() {
		return fmt.Errorf("nats connection status %s", n.conn.Status())
	}
	return nil
}

func (n *NATSPublisher) Close() error {
	if err := n.conn.Drain(); err != nil {
		n.conn.Close()
		return err
	}
	return nil
}

const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingLinkIssued    = "booking_link.issued"
	BookingLinkRevoked   = "booking_link.revoked"
	BookingUploadAdded   = "booking.upload_added"
)

type BookingCreatedEvent struct {
	BookingRequestID string    `json:"booking_request_id"`
	ClientID         string    `json:"client_id"`
	Source           string    `json:"source"`
	CreatedAt        time.Time `json:"created_at"`
}

type BookingStatusChangedEvent struct {
	BookingRequestID string    `json:"booking_request_id"`
	From             string    `json:"from"`
	To               string    `json:"to"`
	AdminID          string    `json:"admin_id"`
	Reviewed         bool      `json:"reviewed"`
	ChangedAt        time.Time `json:"changed_at"`
}

// BookingLinkIssuedEvent never carries the secret or the URL.
type BookingLinkIssuedEvent struct {
	TokenID          string    `json:"token_id"`
	BookingRequestID string    `json:"booking_request_id"`
	Scopes           []string  `json:"scopes"`
	ExpiresAt        time.Time `json:"expires_at"`
	AdminID          string    `json:"admin_id,omitempty"`
}

type BookingLinkRevokedEvent struct {
	TokenID          string    `json:"token_id"`
	BookingRequestID string    `json:"booking_request_id"`
	Reason           string    `json:"reason,omitempty"`
	RevokedAt        time.Time `json:"revoked_at"`
}

type BookingUploadAddedEvent struct {
	BookingRequestID string `json:"booking_request_id"`
	UploadID         string `json:"upload_id"`
	TokenID          string `json:"token_id"`
	MimeType         string `json:"mime_type"`
	Bytes            int64  `json:"bytes"`
}
