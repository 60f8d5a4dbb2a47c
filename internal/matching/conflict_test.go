package matching

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

func TestHasConflict_Scenarios(t *testing.T) {
	cases := []struct {
		name     string
		existing [2]time.Time
		status   model.BookingStatus
		want     calendar.Window
		conflict bool
	}{
		{
			name:     "touching endpoints",
			existing: [2]time.Time{may1At(10, 0), may1At(11, 0)},
			status:   model.BookingStatusAccepted,
			want:     calendar.Window{Date: may1, StartMinute: 11 * 60, EndMinute: 12 * 60},
			conflict: false,
		},
		{
			name:     "partial overlap",
			existing: [2]time.Time{may1At(10, 0), may1At(11, 0)},
			status:   model.BookingStatusAccepted,
			want:     calendar.Window{Date: may1, StartMinute: 10*60 + 30, EndMinute: 11*60 + 30},
			conflict: true,
		},
		{
			name:     "assigned booking holds the slot",
			existing: [2]time.Time{may1At(10, 0), may1At(11, 0)},
			status:   model.BookingStatusAssigned,
			want:     calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660},
			conflict: true,
		},
		{
			name:     "completed booking never conflicts",
			existing: [2]time.Time{may1At(10, 0), may1At(11, 0)},
			status:   model.BookingStatusCompleted,
			want:     calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660},
			conflict: false,
		},
		{
			name:     "pending booking never conflicts",
			existing: [2]time.Time{may1At(10, 0), may1At(11, 0)},
			status:   model.BookingStatusPending,
			want:     calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660},
			conflict: false,
		},
		{
			name:     "same minutes on another date",
			existing: [2]time.Time{may1At(10, 0).AddDate(0, 0, 1), may1At(11, 0).AddDate(0, 0, 1)},
			status:   model.BookingStatusInProgress,
			want:     calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660},
			conflict: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			fx := newFixture(t)
			f := fx.addFreelancer("Anna", 1, 5000)
			fx.addBooking(f.ID, c.existing[0], c.existing[1], c.status)

			checker := NewConflictChecker(repository.NewGormBookingRepository(fx.db))
			got, err := checker.HasConflict(fx.ctx, f.ID, c.want, time.UTC)
			if err != nil {
				t.Fatalf("HasConflict: %v", err)
			}
			if got != c.conflict {
				t.Fatalf("expected conflict=%v, got %v", c.conflict, got)
			}
		})
	}
}

func TestHasConflict_OtherFreelancerIgnored(t *testing.T) {
	fx := newFixture(t)
	f := fx.addFreelancer("Anna", 1, 5000)
	fx.addBooking(uuid.New(), may1At(10, 0), may1At(11, 0), model.BookingStatusAccepted)

	checker := NewConflictChecker(repository.NewGormBookingRepository(fx.db))
	got, err := checker.HasConflict(fx.ctx, f.ID, calendar.Window{Date: may1, StartMinute: 600, EndMinute: 660}, time.UTC)
	if err != nil {
		t.Fatalf("HasConflict: %v", err)
	}
	if got {
		t.Fatalf("another freelancer's booking must not conflict")
	}
}

// Случайные окна сверяются с наивной попарной проверкой.
func TestHasConflict_AgreesWithPairwiseCheck(t *testing.T) {
	fx := newFixture(t)
	f := fx.addFreelancer("Anna", 1, 5000)
	rng := rand.New(rand.NewSource(42))

	statuses := []model.BookingStatus{
		model.BookingStatusPending,
		model.BookingStatusAssigned,
		model.BookingStatusAccepted,
		model.BookingStatusInProgress,
		model.BookingStatusCompleted,
		model.BookingStatusCancelled,
	}

	type interval struct{ start, end int }
	var active []interval
	for i := 0; i < 25; i++ {
		start := rng.Intn(20 * 60)
		dur := 15 + rng.Intn(120)
		status := statuses[rng.Intn(len(statuses))]
		fx.addBooking(f.ID, may1At(0, 0).Add(time.Duration(start)*time.Minute), may1At(0, 0).Add(time.Duration(start+dur)*time.Minute), status)
		if status.IsActive() {
			active = append(active, interval{start, start + dur})
		}
	}

	checker := NewConflictChecker(repository.NewGormBookingRepository(fx.db))
	for i := 0; i < 300; i++ {
		start := rng.Intn(22 * 60)
		end := start + 1 + rng.Intn(180)

		naive := false
		for _, a := range active {
			if start < a.end && a.start < end {
				naive = true
				break
			}
		}

		got, err := checker.HasConflict(fx.ctx, f.ID, calendar.Window{Date: may1, StartMinute: start, EndMinute: end}, time.UTC)
		if err != nil {
			t.Fatalf("HasConflict: %v", err)
		}
		if got != naive {
			t.Fatalf("window [%d,%d): checker=%v naive=%v", start, end, got, naive)
		}
	}
}
