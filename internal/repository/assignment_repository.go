package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/booking-matcher/internal/model"
)

type AssignmentRepository interface {
	Create(ctx context.Context, a *model.BookingAssignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.BookingAssignment, error)
	LockByID(ctx context.Context, id uuid.UUID) (*model.BookingAssignment, error)
	// Текущий висящий оффер брони, gorm.ErrRecordNotFound если его нет.
	FindOfferedByBooking(ctx context.Context, bookingID uuid.UUID) (*model.BookingAssignment, error)
	// Вся история офферов брони, новые сверху.
	ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.BookingAssignment, error)
	// Исполнители, которым бронь уже предлагалась и которые отказали или не ответили.
	ListExhaustedFreelancers(ctx context.Context, bookingID uuid.UUID) ([]uuid.UUID, error)
	// Офферы в статусе offered с истёкшим дедлайном.
	ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]model.BookingAssignment, error)
	Resolve(ctx context.Context, id uuid.UUID, status model.AssignmentStatus, respondedAt time.Time) error
}

type GormAssignmentRepository struct {
	db *gorm.DB
}

func NewGormAssignmentRepository(db *gorm.DB) *GormAssignmentRepository {
	return &GormAssignmentRepository{db: db}
}

func (r *GormAssignmentRepository) Create(ctx context.Context, a *model.BookingAssignment) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *GormAssignmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.BookingAssignment, error) {
	var a model.BookingAssignment
	if err := r.db.WithContext(ctx).First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAssignmentRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.BookingAssignment, error) {
	var a model.BookingAssignment
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAssignmentRepository) FindOfferedByBooking(ctx context.Context, bookingID uuid.UUID) (*model.BookingAssignment, error) {
	var a model.BookingAssignment
	err := r.db.WithContext(ctx).
		Where("booking_id = ? AND status = ?", bookingID, model.AssignmentStatusOffered).
		Take(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *GormAssignmentRepository) ListByBooking(ctx context.Context, bookingID uuid.UUID) ([]model.BookingAssignment, error) {
	var out []model.BookingAssignment
	err := r.db.WithContext(ctx).
		Where("booking_id = ?", bookingID).
		Order("offered_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormAssignmentRepository) ListExhaustedFreelancers(ctx context.Context, bookingID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&model.BookingAssignment{}).
		Where("booking_id = ?", bookingID).
		Where("status IN ?", []model.AssignmentStatus{model.AssignmentStatusRejected, model.AssignmentStatusExpired}).
		Distinct().
		Pluck("freelancer_id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormAssignmentRepository) ListExpiredOffers(ctx context.Context, now time.Time, limit int) ([]model.BookingAssignment, error) {
	var out []model.BookingAssignment
	q := r.db.WithContext(ctx).
		Where("status = ?", model.AssignmentStatusOffered).
		Where("expires_at <= ?", now.UTC()).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *GormAssignmentRepository) Resolve(
	ctx context.Context,
	id uuid.UUID,
	status model.AssignmentStatus,
	respondedAt time.Time,
) error {
	res := r.db.WithContext(ctx).
		Model(&model.BookingAssignment{}).
		Where("id = ? AND status = ?", id, model.AssignmentStatusOffered).
		Updates(map[string]any{
			"status":       status,
			"responded_at": respondedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
