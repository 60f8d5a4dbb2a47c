package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// services
type Service struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name        string `gorm:"type:varchar(255);not null"`
	Description string `gorm:"type:text"`

	// Код навыка, которым должен владеть исполнитель. Пустой код: услугу нельзя сматчить.
	Code string `gorm:"type:varchar(64);index"`

	// В минутах, может быть nil, если услуга не фиксирована по времени.
	DefaultDurationMin *int64 `gorm:"type:bigint"`

	Price decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0"`

	IsActive bool `gorm:"not null;default:true;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (s *Service) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// skills
type Skill struct {
	ID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	Code string    `gorm:"type:varchar(64);not null;uniqueIndex"`
	Name string    `gorm:"type:varchar(255)"`
}

func (s *Skill) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// freelancer_skills: join-таблица исполнитель ↔ навык.
type FreelancerSkill struct {
	FreelancerID uuid.UUID `gorm:"type:uuid;primaryKey"`
	SkillID      uuid.UUID `gorm:"type:uuid;primaryKey;index"`

	CreatedAt time.Time `gorm:"autoCreateTime"`

	Skill *Skill `gorm:"foreignKey:SkillID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}
