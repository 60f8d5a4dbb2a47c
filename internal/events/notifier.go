package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-matcher/internal/logger"
)

// Ключи маршрутизации событий жизненного цикла брони.
const (
	KeyOfferCreated     = "booking.offer.created"
	KeyOfferAccepted    = "booking.offer.accepted"
	KeyOfferRejected    = "booking.offer.rejected"
	KeyOfferExpired     = "booking.offer.expired"
	KeyBookingClaimed   = "booking.claimed"
	KeyBookingUnmatched = "booking.unmatched"
	KeyBookingCancelled = "booking.cancelled"
	KeyBookingStarted   = "booking.started"
	KeyBookingCompleted = "booking.completed"

	// Входящая команда: запустить подбор для брони.
	KeyMatchRequested = "booking.match.requested"
)

type Notification struct {
	Type         string         `json:"type"`
	BookingID    uuid.UUID      `json:"bookingId"`
	AssignmentID *uuid.UUID     `json:"assignmentId,omitempty"`
	FreelancerID *uuid.UUID     `json:"freelancerId,omitempty"`
	OccurredAt   time.Time      `json:"occurredAt"`
	Details      map[string]any `json:"details,omitempty"`
}

// Notifier: fire-and-forget: ответ не нужен, ошибки доставки только логируются.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// BrokerNotifier публикует уведомления в брокер.
type BrokerNotifier struct {
	pub  JSONPublisher
	logg *logger.Logger
}

func NewBrokerNotifier(pub JSONPublisher, logg *logger.Logger) *BrokerNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &BrokerNotifier{pub: pub, logg: logg}
}

func (n *BrokerNotifier) Notify(ctx context.Context, note Notification) {
	if note.OccurredAt.IsZero() {
		note.OccurredAt = time.Now().UTC()
	}
	if err := n.pub.PublishJSON(ctx, note.Type, note); err != nil {
		n.logg.Error(n.logg.WithField(ctx, "event", note.Type), "publish notification failed", err)
	}
}

// LogNotifier пишет уведомления в лог, когда брокер не настроен.
type LogNotifier struct {
	logg *logger.Logger
}

func NewLogNotifier(logg *logger.Logger) *LogNotifier {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogNotifier{logg: logg}
}

func (n *LogNotifier) Notify(ctx context.Context, note Notification) {
	fields := map[string]any{
		"event":      note.Type,
		"booking_id": note.BookingID.String(),
	}
	if note.AssignmentID != nil {
		fields["assignment_id"] = note.AssignmentID.String()
	}
	if note.FreelancerID != nil {
		fields["freelancer_id"] = note.FreelancerID.String()
	}
	for k, v := range note.Details {
		fields[k] = v
	}
	n.logg.Info(n.logg.WithFields(ctx, fields), "notification")
}
