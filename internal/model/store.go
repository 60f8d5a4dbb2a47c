package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// stores: точка оказания услуг.
type Store struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`

	Name string  `gorm:"type:varchar(255);not null"`
	Lat  float64 `gorm:"not null"`
	Lng  float64 `gorm:"not null"`

	// IANA-зона магазина; пустая строка: используется зона планирования из конфига.
	TimeZone string `gorm:"type:varchar(64)"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (s *Store) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
