package repository

import "gorm.io/gorm"

// Set: все репозитории поверх одного *gorm.DB (обычного соединения или транзакции).
type Set struct {
	Stores         StoreRepository
	Services       ServiceRepository
	Freelancers    FreelancerRepository
	Availabilities AvailabilityRepository
	Bookings       BookingRepository
	Assignments    AssignmentRepository
	Events         EventRepository
}

func NewSet(db *gorm.DB) Set {
	return Set{
		Stores:         NewGormStoreRepository(db),
		Services:       NewGormServiceRepository(db),
		Freelancers:    NewGormFreelancerRepository(db),
		Availabilities: NewGormAvailabilityRepository(db),
		Bookings:       NewGormBookingRepository(db),
		Assignments:    NewGormAssignmentRepository(db),
		Events:         NewGormEventRepository(db),
	}
}
