package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/model"
)

type AvailabilityRepository interface {
	// Окна исполнителя, начинающиеся в [from, to).
	ListByFreelancerStartingIn(ctx context.Context, freelancerID uuid.UUID, from, to time.Time) ([]model.Availability, error)
	Create(ctx context.Context, a *model.Availability) error
}

type GormAvailabilityRepository struct {
	db *gorm.DB
}

func NewGormAvailabilityRepository(db *gorm.DB) *GormAvailabilityRepository {
	return &GormAvailabilityRepository{db: db}
}

func (r *GormAvailabilityRepository) ListByFreelancerStartingIn(
	ctx context.Context,
	freelancerID uuid.UUID,
	from, to time.Time,
) ([]model.Availability, error) {
	var out []model.Availability
	err := r.db.WithContext(ctx).
		Where("freelancer_id = ?", freelancerID).
		Where("start_at >= ? AND start_at < ?", from.UTC(), to.UTC()).
		Order("start_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormAvailabilityRepository) Create(ctx context.Context, a *model.Availability) error {
	return r.db.WithContext(ctx).Create(a).Error
}
