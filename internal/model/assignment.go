package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AssignmentStatus string

const (
	AssignmentStatusOffered  AssignmentStatus = "offered"
	AssignmentStatusAccepted AssignmentStatus = "accepted"
	AssignmentStatusRejected AssignmentStatus = "rejected"
	AssignmentStatusExpired  AssignmentStatus = "expired"
)

// booking_assignments: одно предложение брони исполнителю.
// Частичный уникальный индекс не даёт двум офферам одной брони висеть одновременно.
// Отклонённые и истёкшие строки не удаляются.
type BookingAssignment struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	BookingID    uuid.UUID `gorm:"type:uuid;not null;index;uniqueIndex:ux_booking_assignments_offered,where:status = 'offered'"`
	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index"`

	Status AssignmentStatus `gorm:"type:varchar(16);not null;index"`

	OfferedAt   time.Time `gorm:"not null"`
	ExpiresAt   time.Time `gorm:"not null;index"`
	RespondedAt *time.Time

	Booking *Booking `gorm:"foreignKey:BookingID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (a *BookingAssignment) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
