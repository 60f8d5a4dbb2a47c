package matching

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/geo"
	"github.com/Leganyst/booking-matcher/internal/logger"
	"github.com/Leganyst/booking-matcher/internal/metrics"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

var validate = validator.New()

// CandidateRequest: параметры подбора для одной брони.
type CandidateRequest struct {
	Date        calendar.Date `validate:"-"`
	StartMinute int           `validate:"gte=0,lt=1440"`
	DurationMin int           `validate:"gt=0,lte=1440"`
	Lat         float64       `validate:"latitude"`
	Lng         float64       `validate:"longitude"`
	ServiceID   uuid.UUID     `validate:"required"`
	StoreID     uuid.UUID     `validate:"-"`

	// Зона, в которой считаются дата и минуты дня.
	Location *time.Location `validate:"-"`

	// Исполнители, которых не нужно рассматривать (уже отказали или пропустили оффер).
	Exclude []uuid.UUID `validate:"-"`
}

func (r CandidateRequest) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidRequest, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Date.IsZero() {
		return fmt.Errorf("%w: date is required", ErrInvalidRequest)
	}
	if r.Location == nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, calendar.ErrNilLocation)
	}
	return nil
}

// Window: запрошенный интервал [start, start+duration) в минутах дня.
func (r CandidateRequest) Window() calendar.Window {
	return calendar.Window{
		Date:        r.Date,
		StartMinute: r.StartMinute,
		EndMinute:   r.StartMinute + r.DurationMin,
	}
}

func (r CandidateRequest) excluded(id uuid.UUID) bool {
	for _, e := range r.Exclude {
		if e == id {
			return true
		}
	}
	return false
}

type Candidate struct {
	FreelancerID uuid.UUID
	Name         string
	DistanceKm   float64
}

// CandidateFinder строит ранжированный список подходящих исполнителей.
// Только чтение: вызов можно безопасно повторять и отменять.
type CandidateFinder struct {
	services     repository.ServiceRepository
	freelancers  repository.FreelancerRepository
	availability *AvailabilityIndex
	conflicts    *ConflictChecker
	logg         *logger.Logger
	metrics      *metrics.Matching
}

type FinderParams struct {
	Services     repository.ServiceRepository
	Freelancers  repository.FreelancerRepository
	Availability *AvailabilityIndex
	Conflicts    *ConflictChecker
	Logger       *logger.Logger
	Metrics      *metrics.Matching
}

func NewCandidateFinder(p FinderParams) *CandidateFinder {
	logg := p.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &CandidateFinder{
		services:     p.Services,
		freelancers:  p.Freelancers,
		availability: p.Availability,
		conflicts:    p.Conflicts,
		logg:         logg,
		metrics:      p.Metrics,
	}
}

// SkillCodeForService возвращает код навыка услуги.
func (f *CandidateFinder) SkillCodeForService(ctx context.Context, serviceID uuid.UUID) (string, error) {
	svc, err := f.services.GetByID(ctx, serviceID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %s", ErrServiceNotFound, serviceID)
		}
		return "", fmt.Errorf("get service: %w", err)
	}
	if svc.Code == "" {
		return "", fmt.Errorf("%w: %s", ErrUnconfigurableService, serviceID)
	}
	return svc.Code, nil
}

// FindCandidates возвращает исполнителей, прошедших все фильтры, ближайшие первыми.
// Пустой список: нормальный исход.
func (f *CandidateFinder) FindCandidates(ctx context.Context, req CandidateRequest) ([]Candidate, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	origin := geo.Point{Lat: req.Lat, Lng: req.Lng}
	if err := origin.Validate(); err != nil {
		return nil, err
	}

	code, err := f.SkillCodeForService(ctx, req.ServiceID)
	if err != nil {
		return nil, err
	}

	freelancers, err := f.freelancers.ListBySkillCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("list freelancers by skill: %w", err)
	}

	out := make([]Candidate, 0, len(freelancers))
	for i := range freelancers {
		fr := &freelancers[i]
		if req.excluded(fr.ID) {
			continue
		}
		c, ok, err := f.evaluate(ctx, req, origin, fr)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, c)
		}
	}

	SortCandidates(out)
	f.metrics.ObserveCandidates(len(out))
	return out, nil
}

// Eligible проверяет одного исполнителя теми же фильтрами, что и FindCandidates.
func (f *CandidateFinder) Eligible(ctx context.Context, req CandidateRequest, freelancerID uuid.UUID) (Candidate, bool, error) {
	cands, err := f.FindCandidates(ctx, req)
	if err != nil {
		return Candidate{}, false, err
	}
	for _, c := range cands {
		if c.FreelancerID == freelancerID {
			return c, true, nil
		}
	}
	return Candidate{}, false, nil
}

func (f *CandidateFinder) evaluate(
	ctx context.Context,
	req CandidateRequest,
	origin geo.Point,
	fr *model.Freelancer,
) (Candidate, bool, error) {
	skipCtx := f.logg.WithField(ctx, "freelancer_id", fr.ID.String())

	point, err := ResolveLocation(fr, fr.Stores)
	if err != nil {
		f.logg.Debug(skipCtx, "candidate skipped: not locatable")
		return Candidate{}, false, nil
	}

	dist, err := geo.Between(origin, point)
	if err != nil {
		f.logg.Debug(skipCtx, "candidate skipped: invalid coordinates")
		return Candidate{}, false, nil
	}
	if dist > float64(fr.HomeRadiusMeters)/1000 {
		f.logg.Debug(f.logg.WithField(skipCtx, "distance_km", dist), "candidate skipped: outside radius")
		return Candidate{}, false, nil
	}

	want := req.Window()
	covered, err := f.availability.CoversWindow(ctx, fr.ID, want, req.Location)
	if err != nil {
		return Candidate{}, false, err
	}
	if !covered {
		f.logg.Debug(skipCtx, "candidate skipped: window not covered")
		return Candidate{}, false, nil
	}

	conflict, err := f.conflicts.HasConflict(ctx, fr.ID, want, req.Location)
	if err != nil {
		return Candidate{}, false, err
	}
	if conflict {
		f.logg.Debug(skipCtx, "candidate skipped: conflicting booking")
		return Candidate{}, false, nil
	}

	return Candidate{FreelancerID: fr.ID, Name: fr.Name, DistanceKm: dist}, true, nil
}

// SortCandidates: по возрастанию расстояния, при равенстве по ID исполнителя.
func SortCandidates(cands []Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].DistanceKm != cands[j].DistanceKm {
			return cands[i].DistanceKm < cands[j].DistanceKm
		}
		return bytes.Compare(cands[i].FreelancerID[:], cands[j].FreelancerID[:]) < 0
	})
}
