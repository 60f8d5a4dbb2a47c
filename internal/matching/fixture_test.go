package matching

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/db"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

// Центр Москвы; смещение по широте на d/kmPerDegree даёт ровно d км по меридиану.
const (
	originLat   = 55.7558
	originLng   = 37.6173
	kmPerDegree = 2 * 3.141592653589793 * 6371.0 / 360
)

type fixture struct {
	t       *testing.T
	ctx     context.Context
	db      *gorm.DB
	skill   model.Skill
	service model.Service
	store   model.Store
	finder  *CandidateFinder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gdb, err := db.NewMemoryDB(strings.ReplaceAll(t.Name(), "/", "_"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := model.AutoMigrate(gdb); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	fx := &fixture{t: t, ctx: context.Background(), db: gdb}
	fx.skill = model.Skill{Code: "haircut", Name: "Haircut"}
	fx.mustCreate(&fx.skill)
	fx.service = model.Service{Name: "Haircut", Code: "haircut", IsActive: true}
	fx.mustCreate(&fx.service)
	fx.store = model.Store{Name: "Tverskaya", Lat: originLat, Lng: originLng}
	fx.mustCreate(&fx.store)

	fx.finder = NewCandidateFinder(FinderParams{
		Services:     repository.NewGormServiceRepository(gdb),
		Freelancers:  repository.NewGormFreelancerRepository(gdb),
		Availability: NewAvailabilityIndex(repository.NewGormAvailabilityRepository(gdb)),
		Conflicts:    NewConflictChecker(repository.NewGormBookingRepository(gdb)),
	})
	return fx
}

func (fx *fixture) mustCreate(v any) {
	fx.t.Helper()
	if err := fx.db.Create(v).Error; err != nil {
		fx.t.Fatalf("create %T: %v", v, err)
	}
}

// addFreelancer: исполнитель с навыком услуги в distKm к северу от магазина.
func (fx *fixture) addFreelancer(name string, distKm float64, radiusMeters int) model.Freelancer {
	fx.t.Helper()
	lat := originLat + distKm/kmPerDegree
	lng := originLng
	f := model.Freelancer{
		Name:             name,
		HomeRadiusMeters: radiusMeters,
		LocationLat:      &lat,
		LocationLng:      &lng,
		WorkMode:         model.WorkModeBoth,
	}
	fx.mustCreate(&f)
	fx.mustCreate(&model.FreelancerSkill{FreelancerID: f.ID, SkillID: fx.skill.ID})
	return f
}

func (fx *fixture) addAvailability(freelancerID uuid.UUID, start, end time.Time) {
	fx.t.Helper()
	fx.mustCreate(&model.Availability{FreelancerID: freelancerID, StartAt: start.UTC(), EndAt: end.UTC()})
}

func (fx *fixture) addBooking(freelancerID uuid.UUID, start, end time.Time, status model.BookingStatus) model.Booking {
	fx.t.Helper()
	b := model.Booking{
		StoreID:      fx.store.ID,
		ServiceID:    fx.service.ID,
		StartAt:      start.UTC(),
		EndAt:        end.UTC(),
		DurationMin:  int(end.Sub(start) / time.Minute),
		Status:       status,
		FreelancerID: &freelancerID,
	}
	fx.mustCreate(&b)
	return b
}

func (fx *fixture) request(startMinute, durationMin int) CandidateRequest {
	return CandidateRequest{
		Date:        may1,
		StartMinute: startMinute,
		DurationMin: durationMin,
		Lat:         originLat,
		Lng:         originLng,
		ServiceID:   fx.service.ID,
		StoreID:     fx.store.ID,
		Location:    time.UTC,
	}
}

func may1At(hour, min int) time.Time {
	return time.Date(2024, time.May, 1, hour, min, 0, 0, time.UTC)
}
