package matching

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

// ConflictChecker ищет пересечения с активными бронями исполнителя.
// Брони в статусах pending, completed и cancelled не конфликтуют.
type ConflictChecker struct {
	bookings repository.BookingRepository
}

func NewConflictChecker(bookings repository.BookingRepository) *ConflictChecker {
	return &ConflictChecker{bookings: bookings}
}

// BusyWindows: окна активных броней исполнителя в дату date.
func (c *ConflictChecker) BusyWindows(
	ctx context.Context,
	freelancerID uuid.UUID,
	date calendar.Date,
	loc *time.Location,
) ([]calendar.Window, error) {
	if loc == nil {
		return nil, calendar.ErrNilLocation
	}
	from := date.Midnight(loc)
	rows, err := c.bookings.ListActiveByFreelancer(ctx, freelancerID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list active bookings: %w", err)
	}

	out := make([]calendar.Window, 0, len(rows))
	for _, b := range rows {
		w, err := calendar.WindowOf(b.StartAt, b.EndAt, loc)
		if err != nil {
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// HasConflict: пересекается ли want с какой-либо активной бронью (полуоткрытые интервалы).
func (c *ConflictChecker) HasConflict(
	ctx context.Context,
	freelancerID uuid.UUID,
	want calendar.Window,
	loc *time.Location,
) (bool, error) {
	busy, err := c.BusyWindows(ctx, freelancerID, want.Date, loc)
	if err != nil {
		return false, err
	}
	conflict, _ := calendar.HasOverlap(want, busy)
	return conflict, nil
}
