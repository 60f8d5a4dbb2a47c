package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/assignment"
	"github.com/Leganyst/booking-matcher/internal/db"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

const (
	storeLat    = 55.7558
	storeLng    = 37.6173
	kmPerDegree = 2 * 3.141592653589793 * 6371.0 / 360
)

var testNow = time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)

type fixture struct {
	t     *testing.T
	ctx   context.Context
	db    *gorm.DB
	skill model.Skill
	svc   model.Service
	store model.Store
	coord *assignment.Coordinator
	api   *MatchingService
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
	fx.skill = model.Skill{Code: "manicure"}
	fx.mustCreate(&fx.skill)
	fx.svc = model.Service{Name: "Manicure", Code: "manicure", Price: decimal.NewFromInt(2000), IsActive: true}
	fx.mustCreate(&fx.svc)
	fx.store = model.Store{Name: "Arbat", Lat: storeLat, Lng: storeLng}
	fx.mustCreate(&fx.store)

	repos := repository.NewSet(gdb)
	finder := matching.NewCandidateFinder(matching.FinderParams{
		Services:     repos.Services,
		Freelancers:  repos.Freelancers,
		Availability: matching.NewAvailabilityIndex(repos.Availabilities),
		Conflicts:    matching.NewConflictChecker(repos.Bookings),
	})
	fx.coord, err = assignment.NewCoordinator(assignment.Params{
		DB:               gdb,
		Finder:           finder,
		OfferTTL:         10 * time.Minute,
		MaxOfferAttempts: 2,
		Now:              func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	fx.api = NewMatchingService(MatchingServiceParams{Coordinator: fx.coord, Finder: finder})
	fx.api.now = func() time.Time { return testNow }
	return fx
}

func (fx *fixture) mustCreate(v any) {
	fx.t.Helper()
	if err := fx.db.Create(v).Error; err != nil {
		fx.t.Fatalf("create %T: %v", v, err)
	}
}

func (fx *fixture) addFreelancer(name string, distKm float64) model.Freelancer {
	fx.t.Helper()
	lat := storeLat + distKm/kmPerDegree
	lng := storeLng
	f := model.Freelancer{Name: name, HomeRadiusMeters: 5000, LocationLat: &lat, LocationLng: &lng}
	fx.mustCreate(&f)
	fx.mustCreate(&model.FreelancerSkill{FreelancerID: f.ID, SkillID: fx.skill.ID})
	fx.mustCreate(&model.Availability{
		FreelancerID: f.ID,
		StartAt:      time.Date(2024, time.May, 1, 9, 0, 0, 0, time.UTC),
		EndAt:        time.Date(2024, time.May, 1, 18, 0, 0, 0, time.UTC),
	})
	return f
}

func (fx *fixture) addBooking(allowClaim bool) model.Booking {
	fx.t.Helper()
	start := time.Date(2024, time.May, 1, 10, 0, 0, 0, time.UTC)
	b := model.Booking{
		StoreID:     fx.store.ID,
		ServiceID:   fx.svc.ID,
		StartAt:     start,
		EndAt:       start.Add(time.Hour),
		DurationMin: 60,
		Status:      model.BookingStatusPending,
		AllowClaim:  allowClaim,
		Amount:      decimal.NewFromInt(2000),
	}
	fx.mustCreate(&b)
	return b
}

func (fx *fixture) bookingStatus(id uuid.UUID) model.BookingStatus {
	fx.t.Helper()
	var b model.Booking
	if err := fx.db.First(&b, "id = ?", id).Error; err != nil {
		fx.t.Fatalf("load booking: %v", err)
	}
	return b.Status
}
