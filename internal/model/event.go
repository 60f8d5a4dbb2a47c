package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Тип события аудита.
type EventType string

const (
	EventTypeOfferCreated     EventType = "offer_created"
	EventTypeOfferAccepted    EventType = "offer_accepted"
	EventTypeOfferRejected    EventType = "offer_rejected"
	EventTypeOfferExpired     EventType = "offer_expired"
	EventTypeBookingClaimed   EventType = "booking_claimed"
	EventTypeBookingUnmatched EventType = "booking_unmatched"
	EventTypeBookingCancelled EventType = "booking_cancelled"
	EventTypeBookingStarted   EventType = "booking_started"
	EventTypeBookingCompleted EventType = "booking_completed"
)

// events: события аудита, пишутся в той же транзакции, что и переход.
type Event struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	EventType EventType `gorm:"type:varchar(64);not null;index"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`

	BookingID    *uuid.UUID `gorm:"type:uuid;index"`
	AssignmentID *uuid.UUID `gorm:"type:uuid;index"`
	FreelancerID *uuid.UUID `gorm:"type:uuid"`

	Details datatypes.JSON
}

func (e *Event) BeforeCreate(*gorm.DB) error {
	ensureID(&e.ID)
	return nil
}
