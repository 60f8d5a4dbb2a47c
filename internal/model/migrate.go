package model

import "gorm.io/gorm"

// AutoMigrate выполняет миграцию всех сущностей ядра матчинга.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Store{},
		&Skill{},
		&Service{},
		&Freelancer{},
		&FreelancerSkill{},
		&FreelancerStore{},
		&Availability{},
		&Booking{},
		&BookingAssignment{},
		&Event{},
	)
}
