// Package assignment ведёт бронь через цикл офферов: подбор, предложение, ответ или истечение, следующий кандидат.
package assignment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/db"
	"github.com/Leganyst/booking-matcher/internal/events"
	"github.com/Leganyst/booking-matcher/internal/lock"
	"github.com/Leganyst/booking-matcher/internal/logger"
	"github.com/Leganyst/booking-matcher/internal/matching"
	"github.com/Leganyst/booking-matcher/internal/metrics"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

const (
	defaultOfferTTL    = 15 * time.Minute
	defaultMaxAttempts = 3
)

type Outcome string

const (
	OutcomeMatched         Outcome = "matched"
	OutcomeNoCandidates    Outcome = "noCandidates"
	OutcomeAlreadyAssigned Outcome = "alreadyAssigned"
)

// MatchResult: итог requestMatch.
type MatchResult struct {
	Outcome      Outcome
	BookingID    uuid.UUID
	FreelancerID uuid.UUID
	AssignmentID uuid.UUID
	DistanceKm   float64
	ExpiresAt    time.Time
	// Бронь осталась без исполнителя, но её можно забрать вручную.
	Claimable bool
}

type Params struct {
	DB       *gorm.DB
	Finder   *matching.CandidateFinder
	Locker   lock.Locker
	Notifier events.Notifier
	Escrow   events.Escrow
	Logger   *logger.Logger
	Metrics  *metrics.Matching

	// Зона планирования, если у магазина своя не задана.
	DefaultLocation  *time.Location
	OfferTTL         time.Duration
	MaxOfferAttempts int
	Now              func() time.Time
}

// Coordinator: конечный автомат назначения исполнителя на бронь.
// Все переходы одной брони идут под блокировкой по её ID.
type Coordinator struct {
	db       *gorm.DB
	tx       db.TxRunner
	repos    repository.Set
	finder   *matching.CandidateFinder
	locker   lock.Locker
	notifier events.Notifier
	escrow   events.Escrow
	logg     *logger.Logger
	metrics  *metrics.Matching

	defaultLoc  *time.Location
	offerTTL    time.Duration
	maxAttempts int
	now         func() time.Time
}

func NewCoordinator(p Params) (*Coordinator, error) {
	if p.DB == nil {
		return nil, errors.New("db required")
	}
	if p.Finder == nil {
		return nil, errors.New("candidate finder required")
	}
	c := &Coordinator{
		db:          p.DB,
		tx:          db.NewTxRunner(p.DB),
		repos:       repository.NewSet(p.DB),
		finder:      p.Finder,
		locker:      p.Locker,
		notifier:    p.Notifier,
		escrow:      p.Escrow,
		logg:        p.Logger,
		metrics:     p.Metrics,
		defaultLoc:  p.DefaultLocation,
		offerTTL:    p.OfferTTL,
		maxAttempts: p.MaxOfferAttempts,
		now:         p.Now,
	}
	if c.locker == nil {
		c.locker = lock.NewKeyedMutex()
	}
	if c.logg == nil {
		c.logg = logger.Nop()
	}
	if c.notifier == nil {
		c.notifier = events.NewLogNotifier(c.logg)
	}
	if c.escrow == nil {
		c.escrow = events.NewLogEscrow(c.logg)
	}
	if c.defaultLoc == nil {
		c.defaultLoc = time.UTC
	}
	if c.offerTTL <= 0 {
		c.offerTTL = defaultOfferTTL
	}
	if c.maxAttempts <= 0 {
		c.maxAttempts = defaultMaxAttempts
	}
	if c.now == nil {
		c.now = func() time.Time { return time.Now().UTC() }
	}
	return c, nil
}

func bookingKey(id uuid.UUID) string {
	return "booking:" + id.String()
}

func (c *Coordinator) lockBooking(ctx context.Context, id uuid.UUID) (func(), error) {
	unlock, err := c.locker.Lock(ctx, bookingKey(id))
	if err != nil {
		return nil, fmt.Errorf("lock booking %s: %w", id, err)
	}
	return unlock, nil
}

func (c *Coordinator) loadBooking(ctx context.Context, id uuid.UUID) (*model.Booking, error) {
	b, err := c.repos.Bookings.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrBookingNotFound, id)
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return b, nil
}

// RequestMatch запускает подбор для брони в статусе pending.
// Повторный вызов для уже назначенной брони не создаёт второй оффер.
func (c *Coordinator) RequestMatch(ctx context.Context, bookingID uuid.UUID) (MatchResult, error) {
	ctx = c.logg.WithBookingID(ctx, bookingID.String())

	unlock, err := c.lockBooking(ctx, bookingID)
	if err != nil {
		return MatchResult{}, err
	}
	defer unlock()

	b, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return MatchResult{}, err
	}

	switch {
	case b.Status.IsActive():
		c.metrics.IncOutcome(string(OutcomeAlreadyAssigned))
		res := MatchResult{Outcome: OutcomeAlreadyAssigned, BookingID: b.ID}
		if b.FreelancerID != nil {
			res.FreelancerID = *b.FreelancerID
		}
		return res, nil
	case b.Status != model.BookingStatusPending:
		return MatchResult{}, fmt.Errorf("%w: %s", ErrBookingNotMatchable, b.Status)
	}

	return c.search(ctx, b)
}

// FindCandidates: подбор без побочных эффектов для брони.
func (c *Coordinator) FindCandidates(ctx context.Context, bookingID uuid.UUID) ([]matching.Candidate, error) {
	b, err := c.loadBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	req, err := c.requestFor(ctx, b)
	if err != nil {
		return nil, err
	}
	return c.finder.FindCandidates(ctx, req)
}

// requestFor строит запрос подбора по брони в зоне её магазина.
func (c *Coordinator) requestFor(ctx context.Context, b *model.Booking) (matching.CandidateRequest, error) {
	if !b.DurationConsistent() {
		return matching.CandidateRequest{}, fmt.Errorf(
			"%w: durationMin=%d does not match %s..%s",
			ErrInvalidBooking, b.DurationMin, b.StartAt.Format(time.RFC3339), b.EndAt.Format(time.RFC3339),
		)
	}

	store, err := c.repos.Stores.GetByID(ctx, b.StoreID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return matching.CandidateRequest{}, fmt.Errorf("%w: store %s not found", ErrInvalidBooking, b.StoreID)
		}
		return matching.CandidateRequest{}, fmt.Errorf("get store: %w", err)
	}

	loc := c.locationFor(ctx, store)
	w, err := calendar.WindowOf(b.StartAt, b.EndAt, loc)
	if err != nil {
		return matching.CandidateRequest{}, fmt.Errorf("%w: %v", ErrInvalidBooking, err)
	}

	return matching.CandidateRequest{
		Date:        w.Date,
		StartMinute: w.StartMinute,
		DurationMin: b.DurationMin,
		Lat:         store.Lat,
		Lng:         store.Lng,
		ServiceID:   b.ServiceID,
		StoreID:     b.StoreID,
		Location:    loc,
	}, nil
}

func (c *Coordinator) locationFor(ctx context.Context, store *model.Store) *time.Location {
	if store.TimeZone == "" {
		return c.defaultLoc
	}
	loc, err := time.LoadLocation(store.TimeZone)
	if err != nil {
		c.logg.Warn(c.logg.WithField(ctx, "store_time_zone", store.TimeZone), "unknown store time zone, using default")
		return c.defaultLoc
	}
	return loc
}

// search: Searching → Offered | Exhausted. Вызывается под блокировкой брони, бронь в pending.
func (c *Coordinator) search(ctx context.Context, b *model.Booking) (MatchResult, error) {
	req, err := c.requestFor(ctx, b)
	if err != nil {
		return MatchResult{}, err
	}

	tried, err := c.repos.Assignments.ListExhaustedFreelancers(ctx, b.ID)
	if err != nil {
		return MatchResult{}, fmt.Errorf("list tried freelancers: %w", err)
	}
	req.Exclude = tried

	candidates, err := c.finder.FindCandidates(ctx, req)
	if err != nil {
		return MatchResult{}, err
	}

	for _, cand := range candidates {
		candCtx := c.logg.WithField(ctx, "freelancer_id", cand.FreelancerID.String())

		offer, err := c.offerWithRetry(candCtx, b, req, cand)
		if errors.Is(err, ErrRaceLost) {
			c.metrics.IncRaceLost()
			c.logg.Info(candCtx, "candidate lost to concurrent booking, trying next")
			continue
		}
		if err != nil {
			c.metrics.IncOutcome("failed")
			return MatchResult{}, err
		}

		c.metrics.IncOutcome(string(OutcomeMatched))
		c.metrics.IncOfferTransition(string(model.AssignmentStatusOffered))
		c.logg.Info(c.logg.WithField(candCtx, "assignment_id", offer.ID.String()), "offer created")
		c.notify(ctx, events.KeyOfferCreated, b.ID, &offer.ID, &cand.FreelancerID, map[string]any{
			"distanceKm": cand.DistanceKm,
			"expiresAt":  offer.ExpiresAt,
			"window":     calendar.FormatWindow(req.Window()),
		})
		return MatchResult{
			Outcome:      OutcomeMatched,
			BookingID:    b.ID,
			FreelancerID: cand.FreelancerID,
			AssignmentID: offer.ID,
			DistanceKm:   cand.DistanceKm,
			ExpiresAt:    offer.ExpiresAt,
		}, nil
	}

	return c.exhaust(ctx, b, len(tried))
}

// exhaust: кандидатов не осталось, бронь остаётся pending.
func (c *Coordinator) exhaust(ctx context.Context, b *model.Booking, tried int) (MatchResult, error) {
	details := map[string]any{"claimable": b.AllowClaim, "tried": tried}
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return repository.NewSet(tx).Events.Append(ctx, model.EventTypeBookingUnmatched, &b.ID, nil, nil, details)
	})
	if err != nil {
		return MatchResult{}, fmt.Errorf("record unmatched event: %w", err)
	}

	c.metrics.IncOutcome(string(OutcomeNoCandidates))
	c.logg.Info(c.logg.WithField(ctx, "claimable", b.AllowClaim), "no eligible candidates")
	c.notify(ctx, events.KeyBookingUnmatched, b.ID, nil, nil, details)

	return MatchResult{Outcome: OutcomeNoCandidates, BookingID: b.ID, Claimable: b.AllowClaim}, nil
}

// offerWithRetry повторяет фиксацию оффера при ошибках хранилища.
func (c *Coordinator) offerWithRetry(
	ctx context.Context,
	b *model.Booking,
	req matching.CandidateRequest,
	cand matching.Candidate,
) (*model.BookingAssignment, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		offer, err := c.commitOffer(ctx, b, req, cand)
		if err == nil {
			return offer, nil
		}
		if errors.Is(err, ErrRaceLost) || errors.Is(err, ErrBookingNotMatchable) || ctx.Err() != nil {
			return nil, err
		}
		lastErr = err
		c.logg.Error(c.logg.WithField(ctx, "attempt", attempt), "offer commit failed", err)
	}
	return nil, fmt.Errorf("%w: booking %s after %d attempts: %v", ErrMatchingFailed, b.ID, c.maxAttempts, lastErr)
}

// commitOffer атомарно перепроверяет занятость исполнителя и создаёт оффер.
// Строка исполнителя блокируется (FOR UPDATE), поэтому две брони не займут его одновременно.
func (c *Coordinator) commitOffer(
	ctx context.Context,
	b *model.Booking,
	req matching.CandidateRequest,
	cand matching.Candidate,
) (*model.BookingAssignment, error) {
	var offer *model.BookingAssignment
	err := c.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r := repository.NewSet(tx)

		locked, err := r.Bookings.LockByID(ctx, b.ID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		if locked.Status != model.BookingStatusPending {
			return fmt.Errorf("%w: %s", ErrBookingNotMatchable, locked.Status)
		}

		if _, err := r.Freelancers.LockByID(ctx, cand.FreelancerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRaceLost
			}
			return fmt.Errorf("lock freelancer: %w", err)
		}

		conflict, err := matching.NewConflictChecker(r.Bookings).HasConflict(ctx, cand.FreelancerID, req.Window(), req.Location)
		if err != nil {
			return err
		}
		if conflict {
			return ErrRaceLost
		}

		if _, err := r.Assignments.FindOfferedByBooking(ctx, b.ID); err == nil {
			return fmt.Errorf("%w: offer already pending", ErrBookingNotMatchable)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("find pending offer: %w", err)
		}

		now := c.now()
		offer = &model.BookingAssignment{
			BookingID:    b.ID,
			FreelancerID: cand.FreelancerID,
			Status:       model.AssignmentStatusOffered,
			OfferedAt:    now,
			ExpiresAt:    now.Add(c.offerTTL),
		}
		if err := r.Assignments.Create(ctx, offer); err != nil {
			return fmt.Errorf("create offer: %w", err)
		}

		if err := r.Bookings.Update(ctx, b.ID, map[string]any{
			"status":        model.BookingStatusAssigned,
			"freelancer_id": cand.FreelancerID,
		}); err != nil {
			return fmt.Errorf("assign booking: %w", err)
		}

		return r.Events.Append(ctx, model.EventTypeOfferCreated, &b.ID, &offer.ID, &cand.FreelancerID, map[string]any{
			"distanceKm": cand.DistanceKm,
			"expiresAt":  offer.ExpiresAt,
		})
	})
	if err != nil {
		return nil, err
	}
	return offer, nil
}

func (c *Coordinator) notify(
	ctx context.Context,
	key string,
	bookingID uuid.UUID,
	assignmentID, freelancerID *uuid.UUID,
	details map[string]any,
) {
	c.notifier.Notify(ctx, events.Notification{
		Type:         key,
		BookingID:    bookingID,
		AssignmentID: assignmentID,
		FreelancerID: freelancerID,
		OccurredAt:   c.now(),
		Details:      details,
	})
}
