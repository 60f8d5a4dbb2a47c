package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/logger"
)

var validate = validator.New()

// MatchRequest: тело сообщения booking.match.requested.
type MatchRequest struct {
	BookingID string `json:"bookingId" validate:"required,uuid"`
}

type Matcher interface {
	RequestMatch(ctx context.Context, bookingID uuid.UUID) (assignment.MatchResult, error)
}

// MatchListener запускает подбор по сообщениям из очереди.
// Битые сообщения и доменные отказы отбрасываются, сбои хранилища возвращаются в очередь.
type MatchListener struct {
	matcher Matcher
	logg    *logger.Logger
}

func NewMatchListener(matcher Matcher, logg *logger.Logger) *MatchListener {
	if logg == nil {
		logg = logger.Nop()
	}
	return &MatchListener{matcher: matcher, logg: logg}
}

// Run обрабатывает сообщения до отмены ctx или закрытия канала.
func (l *MatchListener) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errors.New("match request deliveries closed")
			}
			l.Handle(ctx, d)
		}
	}
}

func (l *MatchListener) Handle(ctx context.Context, d amqp.Delivery) {
	ctx = l.logg.WithFields(ctx, map[string]any{
		"routing_key":  d.RoutingKey,
		"delivery_tag": d.DeliveryTag,
	})

	bookingID, err := decodeMatchRequest(d.Body)
	if err != nil {
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "drop malformed match request")
		l.settle(ctx, d.Nack(false, false))
		return
	}
	ctx = l.logg.WithBookingID(ctx, bookingID.String())

	res, err := l.matcher.RequestMatch(ctx, bookingID)
	switch {
	case err == nil:
		l.logg.Info(l.logg.WithField(ctx, "outcome", string(res.Outcome)), "match request handled")
		l.settle(ctx, d.Ack(false))
	case retryable(err):
		l.logg.Error(ctx, "match request failed, requeue", err)
		l.settle(ctx, d.Nack(false, true))
	default:
		l.logg.Warn(l.logg.WithField(ctx, "error", err.Error()), "match request rejected")
		l.settle(ctx, d.Nack(false, false))
	}
}

func (l *MatchListener) settle(ctx context.Context, err error) {
	if err != nil {
		l.logg.Error(ctx, "settle delivery", err)
	}
}

func decodeMatchRequest(body []byte) (uuid.UUID, error) {
	var req MatchRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return uuid.Nil, fmt.Errorf("decode match request: %w", err)
	}
	if err := validate.Struct(req); err != nil {
		return uuid.Nil, fmt.Errorf("validate match request: %w", err)
	}
	return uuid.Parse(req.BookingID)
}
