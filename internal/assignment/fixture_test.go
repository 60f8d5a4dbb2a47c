package assignment

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/db"
	"github.com/Leganyst/booking-matcher/internal/events"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

const (
	originLat   = 55.7558
	originLng   = 37.6173
	kmPerDegree = 2 * 3.141592653589793 * 6371.0 / 360
)

type recordingNotifier struct {
	mu    sync.Mutex
	notes []events.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note events.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notes = append(n.notes, note)
}

func (n *recordingNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.notes))
	for _, note := range n.notes {
		out = append(out, note.Type)
	}
	return out
}

type escrowCall struct {
	op        string
	bookingID uuid.UUID
	amount    decimal.Decimal
}

type recordingEscrow struct {
	mu    sync.Mutex
	calls []escrowCall
}

func (e *recordingEscrow) CreateEscrow(_ context.Context, bookingID, _, _ uuid.UUID, amount decimal.Decimal) error {
	e.record(escrowCall{op: "create", bookingID: bookingID, amount: amount})
	return nil
}

func (e *recordingEscrow) ReleaseEscrow(_ context.Context, bookingID uuid.UUID) error {
	e.record(escrowCall{op: "release", bookingID: bookingID})
	return nil
}

func (e *recordingEscrow) RefundEscrow(_ context.Context, bookingID uuid.UUID, amount decimal.Decimal) error {
	e.record(escrowCall{op: "refund", bookingID: bookingID, amount: amount})
	return nil
}

func (e *recordingEscrow) record(c escrowCall) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls = append(e.calls, c)
}

func (e *recordingEscrow) ops() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.calls))
	for _, c := range e.calls {
		out = append(out, c.op)
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	t        *testing.T
	ctx      context.Context
	db       *gorm.DB
	skill    model.Skill
	service  model.Service
	store    model.Store
	clock    *clock
	notifier *recordingNotifier
	escrow   *recordingEscrow
	coord    *Coordinator
}

const offerTTL = 15 * time.Minute

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

	fx := &fixture{
		t:        t,
		ctx:      context.Background(),
		db:       gdb,
		clock:    &clock{now: time.Date(2024, time.April, 30, 12, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
		escrow:   &recordingEscrow{},
	}
	fx.skill = model.Skill{Code: "haircut"}
	fx.mustCreate(&fx.skill)
	fx.service = model.Service{Name: "Haircut", Code: "haircut", Price: decimal.NewFromInt(1500), IsActive: true}
	fx.mustCreate(&fx.service)
	fx.store = model.Store{Name: "Tverskaya", Lat: originLat, Lng: originLng}
	fx.mustCreate(&fx.store)

	repos := repository.NewSet(gdb)
	finder := matching.NewCandidateFinder(matching.FinderParams{
		Services:     repos.Services,
		Freelancers:  repos.Freelancers,
		Availability: matching.NewAvailabilityIndex(repos.Availabilities),
		Conflicts:    matching.NewConflictChecker(repos.Bookings),
	})
	fx.coord, err = NewCoordinator(Params{
		DB:               gdb,
		Finder:           finder,
		Notifier:         fx.notifier,
		Escrow:           fx.escrow,
		OfferTTL:         offerTTL,
		MaxOfferAttempts: 2,
		Now:              fx.clock.Now,
	})
	if err != nil {
		t.Fatalf("new coordinator: %v", err)
	}
	return fx
}

func (fx *fixture) mustCreate(v any) {
	fx.t.Helper()
	if err := fx.db.Create(v).Error; err != nil {
		fx.t.Fatalf("create %T: %v", v, err)
	}
}

// addFreelancer: исполнитель в distKm к северу от магазина, свободный 1 мая с 09:00 до 18:00.
func (fx *fixture) addFreelancer(name string, distKm float64) model.Freelancer {
	fx.t.Helper()
	lat := originLat + distKm/kmPerDegree
	lng := originLng
	f := model.Freelancer{Name: name, HomeRadiusMeters: 5000, LocationLat: &lat, LocationLng: &lng}
	fx.mustCreate(&f)
	fx.mustCreate(&model.FreelancerSkill{FreelancerID: f.ID, SkillID: fx.skill.ID})
	fx.mustCreate(&model.Availability{FreelancerID: f.ID, StartAt: may1At(9, 0), EndAt: may1At(18, 0)})
	return f
}

func (fx *fixture) addBooking(startHour, durationMin int, allowClaim bool) model.Booking {
	fx.t.Helper()
	start := may1At(startHour, 0)
	b := model.Booking{
		StoreID:     fx.store.ID,
		ServiceID:   fx.service.ID,
		StartAt:     start,
		EndAt:       start.Add(time.Duration(durationMin) * time.Minute),
		DurationMin: durationMin,
		Status:      model.BookingStatusPending,
		AllowClaim:  allowClaim,
		Amount:      decimal.NewFromInt(1500),
	}
	fx.mustCreate(&b)
	return b
}

func (fx *fixture) booking(id uuid.UUID) model.Booking {
	fx.t.Helper()
	var b model.Booking
	if err := fx.db.First(&b, "id = ?", id).Error; err != nil {
		fx.t.Fatalf("load booking: %v", err)
	}
	return b
}

func (fx *fixture) assignments(bookingID uuid.UUID) []model.BookingAssignment {
	fx.t.Helper()
	var out []model.BookingAssignment
	if err := fx.db.Where("booking_id = ?", bookingID).Order("offered_at ASC").Find(&out).Error; err != nil {
		fx.t.Fatalf("load assignments: %v", err)
	}
	return out
}

func (fx *fixture) eventTypes(bookingID uuid.UUID) []model.EventType {
	fx.t.Helper()
	var out []model.Event
	if err := fx.db.Where("booking_id = ?", bookingID).Find(&out).Error; err != nil {
		fx.t.Fatalf("load events: %v", err)
	}
	types := make([]model.EventType, 0, len(out))
	for _, e := range out {
		types = append(types, e.EventType)
	}
	return types
}

func may1At(hour, min int) time.Time {
	return time.Date(2024, time.May, 1, hour, min, 0, 0, time.UTC)
}
