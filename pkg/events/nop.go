package events

import (
	"context"

	"github.com/diagnosis/inkstudio-bookings/pkg/logger"
)

// NopPublisher drops events. It stands in when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, subject string, _ interface{}) error {
	logger.DebugContext(ctx, "Event dropped, no broker configured", "subject", subject)
	return nil
}

func (NopPublisher) Close() error { return nil }

var (
	_ Publisher = (*NATSPublisher)(nil)
	_ Publisher = NopPublisher{}
)
