package events

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Leganyst/booking-matcher/internal/logger"
)

const (
	KeyEscrowCreate  = "escrow.create"
	KeyEscrowRelease = "escrow.release"
	KeyEscrowRefund  = "escrow.refund"
)

// Escrow: внешний сервис удержания средств по брони.
type Escrow interface {
	CreateEscrow(ctx context.Context, bookingID, storeID, freelancerID uuid.UUID, amount decimal.Decimal) error
	ReleaseEscrow(ctx context.Context, bookingID uuid.UUID) error
	RefundEscrow(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal) error
}

type EscrowCommand struct {
	Command      string           `json:"command"`
	BookingID    uuid.UUID        `json:"bookingId"`
	StoreID      *uuid.UUID       `json:"storeId,omitempty"`
	FreelancerID *uuid.UUID       `json:"freelancerId,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	IssuedAt     time.Time        `json:"issuedAt"`
}

// BrokerEscrow отправляет команды эскроу-сервису через брокер.
type BrokerEscrow struct {
	pub JSONPublisher
	now func() time.Time
}

func NewBrokerEscrow(pub JSONPublisher) *BrokerEscrow {
	return &BrokerEscrow{pub: pub, now: func() time.Time { return time.Now().UTC() }}
}

func (e *BrokerEscrow) CreateEscrow(ctx context.Context, bookingID, storeID, freelancerID uuid.UUID, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("escrow amount must not be negative: %s", amount)
	}
	return e.send(ctx, EscrowCommand{
		Command:      KeyEscrowCreate,
		BookingID:    bookingID,
		StoreID:      &storeID,
		FreelancerID: &freelancerID,
		Amount:       &amount,
	})
}

func (e *BrokerEscrow) ReleaseEscrow(ctx context.Context, bookingID uuid.UUID) error {
	return e.send(ctx, EscrowCommand{Command: KeyEscrowRelease, BookingID: bookingID})
}

func (e *BrokerEscrow) RefundEscrow(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal) error {
	return e.send(ctx, EscrowCommand{Command: KeyEscrowRefund, BookingID: bookingID, Amount: &amount})
}

func (e *BrokerEscrow) send(ctx context.Context, cmd EscrowCommand) error {
	cmd.IssuedAt = e.now()
	if err := e.pub.PublishJSON(ctx, cmd.Command, cmd); err != nil {
		return fmt.Errorf("%s: %w", cmd.Command, err)
	}
	return nil
}

// LogEscrow только логирует команды (локальный запуск без брокера).
type LogEscrow struct {
	logg *logger.Logger
}

func NewLogEscrow(logg *logger.Logger) *LogEscrow {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogEscrow{logg: logg}
}

func (e *LogEscrow) CreateEscrow(ctx context.Context, bookingID, storeID, freelancerID uuid.UUID, amount decimal.Decimal) error {
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"booking_id":    bookingID.String(),
		"store_id":      storeID.String(),
		"freelancer_id": freelancerID.String(),
		"amount":        amount.StringFixed(2),
	}), KeyEscrowCreate)
	return nil
}

func (e *LogEscrow) ReleaseEscrow(ctx context.Context, bookingID uuid.UUID) error {
	e.logg.Info(e.logg.WithBookingID(ctx, bookingID.String()), KeyEscrowRelease)
	return nil
}

func (e *LogEscrow) RefundEscrow(ctx context.Context, bookingID uuid.UUID, amount decimal.Decimal) error {
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"booking_id": bookingID.String(),
		"amount":     amount.StringFixed(2),
	}), KeyEscrowRefund)
	return nil
}
