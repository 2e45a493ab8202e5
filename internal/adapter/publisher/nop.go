package publisher

import (
	"context"

	"go.uber.org/zap"

	"github.com/srgjo27/tour_booking/internal/core/domain"
	"github.com/srgjo27/tour_booking/internal/core/ports"
)

// Nop drops events. It is used when no broker is configured.
type Nop struct {
	log *zap.Logger
}

func NewNop(log *zap.Logger) *Nop {
	return &Nop{log: log}
}

func (n *Nop) Publish(ctx context.Context, event domain.BookingEvent) error {
	n.log.Debug("booking event dropped, no broker configured",
		zap.String("type", string(event.Type)),
		zap.String("booking_id", event.BookingID.String()))
	return nil
}

func (n *Nop) Close() error { return nil }

var _ ports.EventPublisher = (*Nop)(nil)
