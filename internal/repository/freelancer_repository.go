package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Leganyst/booking-matcher/internal/model"
)

type FreelancerRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Freelancer, error)
	// Исполнители с навыком code, вместе с привязками к магазинам.
	ListBySkillCode(ctx context.Context, code string) ([]model.Freelancer, error)
	// Блокирует строку исполнителя до конца транзакции (SELECT ... FOR UPDATE).
	LockByID(ctx context.Context, id uuid.UUID) (*model.Freelancer, error)
}

type GormFreelancerRepository struct {
	db *gorm.DB
}

func NewGormFreelancerRepository(db *gorm.DB) *GormFreelancerRepository {
	return &GormFreelancerRepository{db: db}
}

func (r *GormFreelancerRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Freelancer, error) {
	var f model.Freelancer
	err := r.db.WithContext(ctx).
		Preload("Stores", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, store_id ASC")
		}).
		Preload("Stores.Store").
		First(&f, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *GormFreelancerRepository) ListBySkillCode(ctx context.Context, code string) ([]model.Freelancer, error) {
	var freelancers []model.Freelancer
	err := r.db.WithContext(ctx).
		Model(&model.Freelancer{}).
		Joins("JOIN freelancer_skills ON freelancer_skills.freelancer_id = freelancers.id").
		Joins("JOIN skills ON skills.id = freelancer_skills.skill_id").
		Where("skills.code = ?", code).
		Preload("Stores", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, store_id ASC")
		}).
		Preload("Stores.Store").
		Order("freelancers.id ASC").
		Find(&freelancers).Error
	if err != nil {
		return nil, err
	}
	return freelancers, nil
}

func (r *GormFreelancerRepository) LockByID(ctx context.Context, id uuid.UUID) (*model.Freelancer, error) {
	var f model.Freelancer
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&f, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}
