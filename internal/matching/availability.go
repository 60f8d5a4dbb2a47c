package matching

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Leganyst/booking-matcher/internal/calendar"
	"github.com/Leganyst/booking-matcher/internal/geo"
	"github.com/Leganyst/booking-matcher/internal/model"
	"github.com/Leganyst/booking-matcher/internal/repository"
)

// ResolveLocation определяет рабочие координаты исполнителя:
// собственные, иначе первого одобренного магазина (по дате привязки, затем по ID), иначе ErrNotLocatable.
func ResolveLocation(f *model.Freelancer, stores []model.FreelancerStore) (geo.Point, error) {
	if f == nil {
		return geo.Point{}, ErrNotLocatable
	}
	if f.LocationLat != nil && f.LocationLng != nil {
		p := geo.Point{Lat: *f.LocationLat, Lng: *f.LocationLng}
		if err := p.Validate(); err != nil {
			return geo.Point{}, fmt.Errorf("%w: %v", ErrNotLocatable, err)
		}
		return p, nil
	}

	linked := make([]model.FreelancerStore, 0, len(stores))
	for _, s := range stores {
		if s.Approved && s.Store != nil {
			linked = append(linked, s)
		}
	}
	sort.SliceStable(linked, func(i, j int) bool {
		if !linked[i].CreatedAt.Equal(linked[j].CreatedAt) {
			return linked[i].CreatedAt.Before(linked[j].CreatedAt)
		}
		return linked[i].StoreID.String() < linked[j].StoreID.String()
	})
	if len(linked) == 0 {
		return geo.Point{}, ErrNotLocatable
	}

	p := geo.Point{Lat: linked[0].Store.Lat, Lng: linked[0].Store.Lng}
	if err := p.Validate(); err != nil {
		return geo.Point{}, fmt.Errorf("%w: %v", ErrNotLocatable, err)
	}
	return p, nil
}

// AvailabilityIndex отвечает на вопрос, открыт ли исполнитель в заданное окно.
type AvailabilityIndex struct {
	repo repository.AvailabilityRepository
}

func NewAvailabilityIndex(repo repository.AvailabilityRepository) *AvailabilityIndex {
	return &AvailabilityIndex{repo: repo}
}

// Windows возвращает окна доступности исполнителя, начинающиеся в дату date по зоне loc.
func (x *AvailabilityIndex) Windows(
	ctx context.Context,
	freelancerID uuid.UUID,
	date calendar.Date,
	loc *time.Location,
) ([]calendar.Window, error) {
	if loc == nil {
		return nil, calendar.ErrNilLocation
	}
	from := date.Midnight(loc)
	rows, err := x.repo.ListByFreelancerStartingIn(ctx, freelancerID, from, from.AddDate(0, 0, 1))
	if err != nil {
		return nil, fmt.Errorf("list availability: %w", err)
	}

	out := make([]calendar.Window, 0, len(rows))
	for _, a := range rows {
		w, err := calendar.WindowOf(a.StartAt, a.EndAt, loc)
		if err != nil {
			// битые строки не покрывают ничего
			continue
		}
		out = append(out, w)
	}
	return out, nil
}

// CoversWindow: есть ли окно доступности, целиком (включительно) содержащее want.
// Частичное пересечение покрытием не считается.
func (x *AvailabilityIndex) CoversWindow(
	ctx context.Context,
	freelancerID uuid.UUID,
	want calendar.Window,
	loc *time.Location,
) (bool, error) {
	windows, err := x.Windows(ctx, freelancerID, want.Date, loc)
	if err != nil {
		return false, err
	}
	return Covers(windows, want), nil
}

// Covers: чистая проверка покрытия по уже загруженным окнам.
func Covers(windows []calendar.Window, want calendar.Window) bool {
	for _, w := range windows {
		if w.Contains(want) {
			return true
		}
	}
	return false
}
