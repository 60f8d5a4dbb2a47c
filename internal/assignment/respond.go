package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/events"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionAccept, DecisionReject:
		return Decision(s), nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDecision, s)
}

// RespondResult: итог ответа исполнителя. После отказа Next содержит результат повторного подбора.
type RespondResult struct {
	AssignmentID uuid.UUID
	BookingID    uuid.UUID
	Status       model.AssignmentStatus
	Next         *MatchResult
}

// Respond применяет ответ исполнителя на оффер.
// Ответ после дедлайна отклоняется с ErrOfferExpired: оффер истекает и подбор идёт дальше, как при свипе.
func (c *Coordinator) Respond(ctx context.Context, assignmentID uuid.UUID, decision Decision) (RespondResult, error) {
	if decision != DecisionAccept && decision != DecisionReject {
		return RespondResult{}, fmt.Errorf("%w: %q", ErrInvalidDecision, decision)
	}

	offer, err := c.repos.Assignments.GetByID(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return RespondResult{}, fmt.Errorf("%w: %s", ErrOfferNotFound, assignmentID)
		}
		return RespondResult{}, fmt.Errorf("get offer: %w", err)
	}

	ctx = c.logg.WithFields(c.logg.WithBookingID(ctx, offer.BookingID.String()), map[string]any{
		"assignment_id": assignmentID.String(),
		"freelancer_id": offer.FreelancerID.String(),
		"decision":      string(decision),
	})

	unlock, err := c.lockBooking(ctx, offer.BookingID)
	if err != nil {
		return RespondResult{}, err
	}
	defer unlock()

	now := c.now()
	var (
		booking *model.Booking
		status  model.AssignmentStatus
	)
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)

		locked, err := r.Assignments.LockByID(ctx, assignmentID)
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		if locked.Status != model.AssignmentStatusOffered {
			return fmt.Errorf("%w: %s", ErrOfferNotPending, locked.Status)
		}

		if !now.Before(locked.ExpiresAt) {
			status = model.AssignmentStatusExpired
			booking, err = c.expireLocked(ctx, r, locked, now)
			return err
		}

		b, err := r.Bookings.LockByID(ctx, locked.BookingID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		booking = b

		switch decision {
		case DecisionAccept:
			status = model.AssignmentStatusAccepted
			if !b.Status.CanTransition(model.BookingStatusAccepted) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, model.BookingStatusAccepted)
			}
			if err := r.Assignments.Resolve(ctx, locked.ID, status, now); err != nil {
				return fmt.Errorf("accept offer: %w", err)
			}
			if err := r.Bookings.Update(ctx, b.ID, map[string]any{"status": model.BookingStatusAccepted}); err != nil {
				return fmt.Errorf("accept booking: %w", err)
			}
			b.Status = model.BookingStatusAccepted
			return r.Events.Append(ctx, model.EventTypeOfferAccepted, &b.ID, &locked.ID, &locked.FreelancerID, nil)
		default:
			status = model.AssignmentStatusRejected
			if err := r.Assignments.Resolve(ctx, locked.ID, status, now); err != nil {
				return fmt.Errorf("reject offer: %w", err)
			}
			if err := c.releaseBooking(ctx, r, b, locked.FreelancerID); err != nil {
				return err
			}
			return r.Events.Append(ctx, model.EventTypeOfferRejected, &b.ID, &locked.ID, &locked.FreelancerID, nil)
		}
	})
	if err != nil {
		return RespondResult{}, err
	}

	c.metrics.IncOfferTransition(string(status))
	res := RespondResult{AssignmentID: assignmentID, BookingID: offer.BookingID, Status: status}

	switch status {
	case model.AssignmentStatusAccepted:
		c.logg.Info(ctx, "offer accepted")
		c.notify(ctx, events.KeyOfferAccepted, booking.ID, &offer.ID, &offer.FreelancerID, nil)
		// Принятие уже зафиксировано; сбой эскроу не откатывает его.
		if err := c.escrow.CreateEscrow(ctx, booking.ID, booking.StoreID, offer.FreelancerID, booking.Amount); err != nil {
			c.logg.Error(ctx, "create escrow failed", err)
		}
		return res, nil

	case model.AssignmentStatusRejected:
		c.logg.Info(ctx, "offer rejected")
		c.notify(ctx, events.KeyOfferRejected, booking.ID, &offer.ID, &offer.FreelancerID, nil)
		next, err := c.advance(ctx, booking)
		if err != nil {
			return res, err
		}
		res.Next = next
		return res, nil

	default:
		c.logg.Info(ctx, "response after deadline, offer expired")
		c.notify(ctx, events.KeyOfferExpired, booking.ID, &offer.ID, &offer.FreelancerID, nil)
		if _, err := c.advance(ctx, booking); err != nil {
			return RespondResult{}, multierr.Append(ErrOfferExpired, err)
		}
		return RespondResult{}, ErrOfferExpired
	}
}

// releaseBooking возвращает бронь в pending, если она всё ещё назначена на этого исполнителя.
func (c *Coordinator) releaseBooking(ctx context.Context, r repository.Set, b *model.Booking, freelancerID uuid.UUID) error {
	if b.Status != model.BookingStatusAssigned || b.FreelancerID == nil || *b.FreelancerID != freelancerID {
		return nil
	}
	if err := r.Bookings.Update(ctx, b.ID, map[string]any{
		"status":        model.BookingStatusPending,
		"freelancer_id": nil,
	}); err != nil {
		return fmt.Errorf("release booking: %w", err)
	}
	b.Status = model.BookingStatusPending
	b.FreelancerID = nil
	return nil
}

// expireLocked: Offered → Expired внутри уже открытой транзакции.
func (c *Coordinator) expireLocked(
	ctx context.Context,
	r repository.Set,
	offer *model.BookingAssignment,
	now time.Time,
) (*model.Booking, error) {
	if err := r.Assignments.Resolve(ctx, offer.ID, model.AssignmentStatusExpired, now); err != nil {
		return nil, fmt.Errorf("expire offer: %w", err)
	}
	b, err := r.Bookings.LockByID(ctx, offer.BookingID)
	if err != nil {
		return nil, fmt.Errorf("lock booking: %w", err)
	}
	if err := c.releaseBooking(ctx, r, b, offer.FreelancerID); err != nil {
		return nil, err
	}
	if err := r.Events.Append(ctx, model.EventTypeOfferExpired, &b.ID, &offer.ID, &offer.FreelancerID, map[string]any{
		"expiresAt": offer.ExpiresAt,
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// advance снова запускает подбор, если бронь вернулась в pending.
func (c *Coordinator) advance(ctx context.Context, b *model.Booking) (*MatchResult, error) {
	if b.Status != model.BookingStatusPending {
		return nil, nil
	}
	next, err := c.search(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("advance to next candidate: %w", err)
	}
	return &next, nil
}

// SweepExpiredOffers истекает все офферы с дедлайном не позже now и продвигает их брони к следующему кандидату.
// Возвращает число истёкших офферов; ошибки по отдельным офферам объединяются.
func (c *Coordinator) SweepExpiredOffers(ctx context.Context, now time.Time) (int, error) {
	started := time.Now()
	offers, err := c.repos.Assignments.ListExpiredOffers(ctx, now, 0)
	if err != nil {
		c.metrics.ObserveSweep(time.Since(started), 0, err)
		return 0, fmt.Errorf("list expired offers: %w", err)
	}

	var (
		expired int
		errs    error
	)
	for _, offer := range offers {
		ok, err := c.expireOffer(ctx, offer, now)
		if ok {
			expired++
		}
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("offer %s: %w", offer.ID, err))
		}
	}

	c.metrics.ObserveSweep(time.Since(started), expired, errs)
	c.logg.Info(c.logg.WithFields(ctx, map[string]any{
		"expired": expired,
		"found":   len(offers),
	}), "expired offers swept")
	return expired, errs
}

// expireOffer истекает один оффер. Если исполнитель успел ответить, ничего не делает.
func (c *Coordinator) expireOffer(ctx context.Context, offer model.BookingAssignment, now time.Time) (bool, error) {
	ctx = c.logg.WithFields(c.logg.WithBookingID(ctx, offer.BookingID.String()), map[string]any{
		"assignment_id": offer.ID.String(),
		"freelancer_id": offer.FreelancerID.String(),
	})

	unlock, err := c.lockBooking(ctx, offer.BookingID)
	if err != nil {
		return false, err
	}
	defer unlock()

	var booking *model.Booking
	err = c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)
		locked, err := r.Assignments.LockByID(ctx, offer.ID)
		if err != nil {
			return fmt.Errorf("lock offer: %w", err)
		}
		if locked.Status != model.AssignmentStatusOffered || now.Before(locked.ExpiresAt) {
			return nil
		}
		booking, err = c.expireLocked(ctx, r, locked, now)
		return err
	})
	if err != nil {
		return false, err
	}
	if booking == nil {
		return false, nil
	}

	c.metrics.IncOfferTransition(string(model.AssignmentStatusExpired))
	c.logg.Info(ctx, "offer expired")
	c.notify(ctx, events.KeyOfferExpired, booking.ID, &offer.ID, &offer.FreelancerID, nil)

	_, err = c.advance(ctx, booking)
	return true, err
}
