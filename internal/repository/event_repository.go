package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/model"
)

type EventRepository interface {
	Append(ctx context.Context, eventType model.EventType, bookingID, assignmentID, freelancerID *uuid.UUID, details any) error
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error)
}

type GormEventRepository struct {
	db *gorm.DB
}

func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

func (r *GormEventRepository) Append(
	ctx context.Context,
	eventType model.EventType,
	bookingID, assignmentID, freelancerID *uuid.UUID,
	details any,
) error {
	var payload datatypes.JSON
	if details != nil {
		raw, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("marshal event details: %w", err)
		}
		payload = datatypes.JSON(raw)
	}
	return r.db.WithContext(ctx).Create(&model.Event{
		EventType:    eventType,
		BookingID:    bookingID,
		AssignmentID: assignmentID,
		FreelancerID: freelancerID,
		Details:      payload,
	}).Error
}

func (r *GormEventRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.Event, error) {
	var out []model.Event
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}
