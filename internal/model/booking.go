package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending    BookingStatus = "pending"
	BookingStatusAssigned   BookingStatus = "assigned"
	BookingStatusAccepted   BookingStatus = "accepted"
	BookingStatusInProgress BookingStatus = "in_progress"
	BookingStatusCompleted  BookingStatus = "completed"
	BookingStatusCancelled  BookingStatus = "cancelled"
)

// ActiveBookingStatuses: статусы, при которых бронь занимает время исполнителя.
var ActiveBookingStatuses = []BookingStatus{
	BookingStatusAssigned,
	BookingStatusAccepted,
	BookingStatusInProgress,
}

func (s BookingStatus) IsActive() bool {
	for _, a := range ActiveBookingStatuses {
		if s == a {
			return true
		}
	}
	return false
}

func (s BookingStatus) IsTerminal() bool {
	return s == BookingStatusCompleted || s == BookingStatusCancelled
}

// Допустимые переходы. assigned → pending: возврат брони в поиск после отказа или истечения оффера.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:    {BookingStatusAssigned, BookingStatusAccepted},
	BookingStatusAssigned:   {BookingStatusAccepted, BookingStatusPending},
	BookingStatusAccepted:   {BookingStatusInProgress},
	BookingStatusInProgress: {BookingStatusCompleted},
}

// CanTransition проверяет переход статуса брони; отмена доступна из любого нетерминального статуса.
func (s BookingStatus) CanTransition(to BookingStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if to == BookingStatusCancelled {
		return true
	}
	for _, next := range bookingTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// bookings
type Booking struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	StoreID   uuid.UUID `gorm:"type:uuid;not null;index"`
	ServiceID uuid.UUID `gorm:"type:uuid;not null;index"`

	StartAt     time.Time `gorm:"not null;index"`
	EndAt       time.Time `gorm:"not null"`
	DurationMin int       `gorm:"not null"`

	Status       BookingStatus `gorm:"type:varchar(32);not null;default:'pending';index"`
	FreelancerID *uuid.UUID    `gorm:"type:uuid;index"`
	AllowClaim   bool          `gorm:"not null;default:false"`

	// Стоимость на момент создания брони, с неё открывается эскроу.
	Amount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	CancelledAt *time.Time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`

	Store   *Store   `gorm:"foreignKey:StoreID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
	Service *Service `gorm:"foreignKey:ServiceID;constraint:OnUpdate:CASCADE,OnDelete:RESTRICT"`
}

func (b *Booking) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}

// DurationConsistent: durationMin должен совпадать с endAt − startAt.
func (b *Booking) DurationConsistent() bool {
	return b.DurationMin > 0 && b.EndAt.Sub(b.StartAt) == time.Duration(b.DurationMin)*time.Minute
}
