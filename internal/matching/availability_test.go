package matching

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

var may1 = calendar.Date{Year: 2024, Month: time.May, Day: 1}

func TestResolveLocation_Order(t *testing.T) {
	lat, lng := 10.0, 20.0
	early := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	late := early.Add(time.Hour)

	first := model.Store{ID: uuid.New(), Lat: 1, Lng: 1}
	second := model.Store{ID: uuid.New(), Lat: 2, Lng: 2}
	unapproved := model.Store{ID: uuid.New(), Lat: 3, Lng: 3}

	stores := []model.FreelancerStore{
		{StoreID: unapproved.ID, Approved: false, CreatedAt: early.Add(-time.Hour), Store: &unapproved},
		{StoreID: second.ID, Approved: true, CreatedAt: late, Store: &second},
		{StoreID: first.ID, Approved: true, CreatedAt: early, Store: &first},
	}

	own := &model.Freelancer{LocationLat: &lat, LocationLng: &lng}
	p, err := ResolveLocation(own, stores)
	if err != nil || p.Lat != 10 || p.Lng != 20 {
		t.Fatalf("expected own location, got %+v err=%v", p, err)
	}

	// только широта без долготы: своих координат нет
	half := &model.Freelancer{LocationLat: &lat}
	p, err = ResolveLocation(half, stores)
	if err != nil || p.Lat != 1 {
		t.Fatalf("expected first approved store, got %+v err=%v", p, err)
	}

	_, err = ResolveLocation(&model.Freelancer{}, stores[:1])
	if !errors.Is(err, ErrNotLocatable) {
		t.Fatalf("expected ErrNotLocatable, got %v", err)
	}
}

func TestCoversWindow_ScenarioA(t *testing.T) {
	fx := newFixture(t)
	f := fx.addFreelancer("Anna", 1, 5000)
	fx.addAvailability(f.ID, may1At(9, 0), may1At(18, 0))

	idx := NewAvailabilityIndex(repository.NewGormAvailabilityRepository(fx.db))
	want := calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660}

	ok, err := idx.CoversWindow(fx.ctx, f.ID, want, time.UTC)
	if err != nil {
		t.Fatalf("CoversWindow: %v", err)
	}
	if !ok {
		t.Fatalf("09:00-18:00 must cover 10:00-11:00")
	}
}

func TestCoversWindow_Boundaries(t *testing.T) {
	fx := newFixture(t)
	f := fx.addFreelancer("Anna", 1, 5000)
	fx.addAvailability(f.ID, may1At(9, 0), may1At(18, 0))
	idx := NewAvailabilityIndex(repository.NewGormAvailabilityRepository(fx.db))

	const availStart, availEnd = 9 * 60, 18 * 60
	cases := []struct {
		name       string
		start, end int
		date       calendar.Date
		want       bool
	}{
		{"exact window", availStart, availEnd, may1, true},
		{"starts at availability start", availStart, availStart + 30, may1, true},
		{"ends at availability end", availEnd - 30, availEnd, may1, true},
		{"ends one minute late", availEnd - 30, availEnd + 1, may1, false},
		{"starts one minute early", availStart - 1, availStart + 30, may1, false},
		{"partial overlap", 17 * 60, 19 * 60, may1, false},
		{"other date", 600, 660, calendar.Date{Year: 2024, Month: time.May, Day: 2}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, err := idx.CoversWindow(fx.ctx, f.ID, calendar.Window{Date: c.date, StartMinute: c.start, EndMinute: c.end}, time.UTC)
			if err != nil {
				t.Fatalf("CoversWindow: %v", err)
			}
			if ok != c.want {
				t.Fatalf("expected %v, got %v", c.want, ok)
			}
		})
	}
}

func TestCoversWindow_SchedulingZone(t *testing.T) {
	fx := newFixture(t)
	f := fx.addFreelancer("Anna", 1, 5000)
	msk := time.FixedZone("MSK", 3*60*60)

	// 22:00–23:30 UTC 30 апреля: это 01:00–02:30 1 мая по Москве.
	fx.addAvailability(f.ID, time.Date(2024, time.April, 30, 22, 0, 0, 0, time.UTC), time.Date(2024, time.April, 30, 23, 30, 0, 0, time.UTC))
	idx := NewAvailabilityIndex(repository.NewGormAvailabilityRepository(fx.db))

	want := calendar.Window{Date: may1, StartMinute: 60, EndMinute: 120}
	ok, err := idx.CoversWindow(fx.ctx, f.ID, want, msk)
	if err != nil {
		t.Fatalf("CoversWindow: %v", err)
	}
	if !ok {
		t.Fatalf("availability must be read in the scheduling zone")
	}

	ok, err = idx.CoversWindow(fx.ctx, f.ID, want, time.UTC)
	if err != nil {
		t.Fatalf("CoversWindow: %v", err)
	}
	if ok {
		t.Fatalf("in UTC the availability belongs to April 30")
	}
}

func TestCoversWindow_NilLocation(t *testing.T) {
	fx := newFixture(t)
	idx := NewAvailabilityIndex(repository.NewGormAvailabilityRepository(fx.db))
	_, err := idx.CoversWindow(fx.ctx, uuid.New(), calendar.Window{Date: may1, StartMinute: 0, EndMinute: 10}, nil)
	if !errors.Is(err, calendar.ErrNilLocation) {
		t.Fatalf("expected ErrNilLocation, got %v", err)
	}
}
