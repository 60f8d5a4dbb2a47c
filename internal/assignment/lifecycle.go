package assignment

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/events"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

// Cancel отменяет бронь из любого нетерминального статуса.
// Висящий оффер переводится в expired; если бронь была принята, эскроу возвращается.
func (c *Coordinator) Cancel(ctx context.Context, bookingID uuid.UUID, reason string) error {
	ctx = c.logg.WithBookingID(ctx, bookingID.String())

	unlock, err := c.lockBooking(ctx, bookingID)
	if err != nil {
		return err
	}
	defer unlock()

	var (
		booking  *model.Booking
		offer    *model.BookingAssignment
		refunded bool
	)
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)

		b, err := lockBookingTx(ctx, r, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransition(model.BookingStatusCancelled) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, model.BookingStatusCancelled)
		}
		booking = b

		now := c.now()
		pending, err := r.Assignments.FindOfferedByBooking(ctx, bookingID)
		switch {
		case err == nil:
			if err := r.Assignments.Resolve(ctx, pending.ID, model.AssignmentStatusExpired, now); err != nil {
				return fmt.Errorf("expire pending offer: %w", err)
			}
			offer = pending
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("find pending offer: %w", err)
		}

		refunded = b.Status == model.BookingStatusAccepted || b.Status == model.BookingStatusInProgress
		if err := r.Bookings.Update(ctx, bookingID, map[string]any{
			"status":       model.BookingStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return fmt.Errorf("cancel booking: %w", err)
		}

		details := map[string]any{"reason": reason, "previousStatus": string(b.Status)}
		var offerID *uuid.UUID
		if offer != nil {
			offerID = &offer.ID
		}
		return r.Events.Append(ctx, model.EventTypeBookingCancelled, &bookingID, offerID, b.FreelancerID, details)
	})
	if err != nil {
		return err
	}

	if offer != nil {
		c.metrics.IncOfferTransition(string(model.AssignmentStatusExpired))
		c.notify(ctx, events.KeyOfferExpired, bookingID, &offer.ID, &offer.FreelancerID, map[string]any{"reason": "booking_cancelled"})
	}
	if refunded {
		if err := c.escrow.RefundEscrow(ctx, bookingID, booking.Amount); err != nil {
			c.logg.Error(ctx, "refund escrow failed", err)
		}
	}
	c.logg.Info(c.logg.WithField(ctx, "reason", reason), "booking cancelled")
	c.notify(ctx, events.KeyBookingCancelled, bookingID, nil, booking.FreelancerID, map[string]any{"reason": reason})
	return nil
}

// Claim: исполнитель сам забирает pending-бронь с allowClaim. Он должен проходить все фильтры подбора.
func (c *Coordinator) Claim(ctx context.Context, bookingID, freelancerID uuid.UUID) (MatchResult, error) {
	ctx = c.logg.WithField(c.logg.WithBookingID(ctx, bookingID.String()), "freelancer_id", freelancerID.String())

	unlock, err := c.lockBooking(ctx, bookingID)
	if err != nil {
		return MatchResult{}, err
	}
	defer unlock()

	b, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return MatchResult{}, err
	}
	if !b.AllowClaim {
		return MatchResult{}, ErrClaimNotAllowed
	}
	if b.Status != model.BookingStatusPending {
		return MatchResult{}, fmt.Errorf("%w: %s", ErrBookingNotMatchable, b.Status)
	}

	req, err := c.requestFor(ctx, b)
	if err != nil {
		return MatchResult{}, err
	}
	cand, ok, err := c.finder.Eligible(ctx, req, freelancerID)
	if err != nil {
		return MatchResult{}, err
	}
	if !ok {
		return MatchResult{}, ErrFreelancerIneligible
	}

	var claim *model.BookingAssignment
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)

		locked, err := lockBookingTx(ctx, r, bookingID)
		if err != nil {
			return err
		}
		if locked.Status != model.BookingStatusPending {
			return fmt.Errorf("%w: %s", ErrBookingNotMatchable, locked.Status)
		}
		if _, err := r.Freelancers.LockByID(ctx, freelancerID); err != nil {
			return fmt.Errorf("lock freelancer: %w", err)
		}
		conflict, err := matching.NewConflictChecker(r.Bookings).HasConflict(ctx, freelancerID, req.Window(), req.Location)
		if err != nil {
			return err
		}
		if conflict {
			return ErrFreelancerIneligible
		}

		now := c.now()
		claim = &model.BookingAssignment{
			BookingID:    bookingID,
			FreelancerID: freelancerID,
			Status:       model.AssignmentStatusAccepted,
			OfferedAt:    now,
			ExpiresAt:    now,
			RespondedAt:  &now,
		}
		if err := r.Assignments.Create(ctx, claim); err != nil {
			return fmt.Errorf("create claim: %w", err)
		}
		if err := r.Bookings.Update(ctx, bookingID, map[string]any{
			"status":        model.BookingStatusAccepted,
			"freelancer_id": freelancerID,
		}); err != nil {
			return fmt.Errorf("accept booking: %w", err)
		}
		return r.Events.Append(ctx, model.EventTypeBookingClaimed, &bookingID, &claim.ID, &freelancerID, map[string]any{
			"distanceKm": cand.DistanceKm,
		})
	})
	if err != nil {
		return MatchResult{}, err
	}

	c.metrics.IncOfferTransition(string(model.AssignmentStatusAccepted))
	c.logg.Info(ctx, "booking claimed")
	c.notify(ctx, events.KeyBookingClaimed, bookingID, &claim.ID, &freelancerID, nil)
	if err := c.escrow.CreateEscrow(ctx, bookingID, b.StoreID, freelancerID, b.Amount); err != nil {
		c.logg.Error(ctx, "create escrow failed", err)
	}

	return MatchResult{
		Outcome:      OutcomeMatched,
		BookingID:    bookingID,
		FreelancerID: freelancerID,
		AssignmentID: claim.ID,
		DistanceKm:   cand.DistanceKm,
	}, nil
}

// Start: accepted → in_progress.
func (c *Coordinator) Start(ctx context.Context, bookingID uuid.UUID) error {
	_, err := c.transition(ctx, bookingID, model.BookingStatusInProgress, model.EventTypeBookingStarted, events.KeyBookingStarted)
	return err
}

// Complete: in_progress → completed, затем освобождение эскроу.
func (c *Coordinator) Complete(ctx context.Context, bookingID uuid.UUID) error {
	ctx = c.logg.WithBookingID(ctx, bookingID.String())
	if _, err := c.transition(ctx, bookingID, model.BookingStatusCompleted, model.EventTypeBookingCompleted, events.KeyBookingCompleted); err != nil {
		return err
	}
	if err := c.escrow.ReleaseEscrow(ctx, bookingID); err != nil {
		return fmt.Errorf("release escrow: %w", err)
	}
	return nil
}

func (c *Coordinator) transition(
	ctx context.Context,
	bookingID uuid.UUID,
	to model.BookingStatus,
	eventType model.EventType,
	key string,
) (*model.Booking, error) {
	unlock, err := c.lockBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	var booking *model.Booking
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)
		b, err := lockBookingTx(ctx, r, bookingID)
		if err != nil {
			return err
		}
		if !b.Status.CanTransition(to) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
		}
		if err := r.Bookings.Update(ctx, bookingID, map[string]any{"status": to}); err != nil {
			return fmt.Errorf("update booking status: %w", err)
		}
		b.Status = to
		booking = b
		return r.Events.Append(ctx, eventType, &bookingID, nil, b.FreelancerID, nil)
	})
	if err != nil {
		return nil, err
	}

	c.logg.Info(c.logg.WithField(ctx, "status", string(to)), "booking status changed")
	c.notify(ctx, key, bookingID, nil, booking.FreelancerID, nil)
	return booking, nil
}

// History: все офферы брони, новые первыми, постранично.
func (c *Coordinator) History(ctx context.Context, bookingID uuid.UUID, page, pageSize int) (calendar.Page[model.BookingAssignment], error) {
	if _, err := c.loadBooking(ctx, bookingID); err != nil {
		return calendar.Page[model.BookingAssignment]{}, err
	}
	items, err := c.repos.Assignments.ListByBooking(ctx, bookingID)
	if err != nil {
		return calendar.Page[model.BookingAssignment]{}, fmt.Errorf("list assignments: %w", err)
	}
	return calendar.Paginate(items, page, pageSize), nil
}

func lockBookingTx(ctx context.Context, r repository.Set, id uuid.UUID) (*model.Booking, error) {
	b, err := r.Bookings.LockByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
		}
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	return b, nil
}
