package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type WorkMode string

const (
	WorkModeHome  WorkMode = "home"
	WorkModeStore WorkMode = "store"
	WorkModeBoth  WorkMode = "both"
)

// Freelancer: независимый исполнитель услуг (мастер).
type Freelancer struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string `gorm:"type:varchar(255);not null"`

	// Максимальная дистанция обслуживания, в метрах.
	HomeRadiusMeters int `gorm:"not null;default:0"`

	// Собственные координаты; nil: берём координаты первого одобренного магазина.
	LocationLat *float64
	LocationLng *float64

	WorkMode WorkMode `gorm:"type:varchar(16);not null;default:'both'"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`

	Skills         []FreelancerSkill `gorm:"foreignKey:FreelancerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Stores         []FreelancerStore `gorm:"foreignKey:FreelancerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Availabilities []Availability    `gorm:"foreignKey:FreelancerID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (f *Freelancer) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}

// freelancer_stores: привязка исполнителя к магазину с флагом одобрения.
type FreelancerStore struct {
	FreelancerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	StoreID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Approved     bool      `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	Store *Store `gorm:"foreignKey:StoreID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// availabilities: окна, в которые исполнитель готов работать.
type Availability struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	FreelancerID uuid.UUID `gorm:"type:uuid;not null;index"`

	StartAt time.Time `gorm:"not null;index"`
	EndAt   time.Time `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (a *Availability) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
