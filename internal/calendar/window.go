package calendar

import (
	"errors"
	"fmt"
	"time"
)

const MinutesPerDay = 24 * 60

var (
	ErrInvalidTimeRange = errors.New("invalid time range")
	ErrInvalidDate      = errors.New("invalid date")
	ErrNilLocation      = errors.New("scheduling location is required")
)

// Date: календарная дата без времени и зоны.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf возвращает календарную дату момента t в зоне loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{Year: y, Month: m, Day: d}
}

// ParseDate разбирает дату формата YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// Midnight: начало даты в зоне loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// At возвращает момент, соответствующий минуте дня minute в зоне loc.
func (d Date) At(minute int, loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, minute/60, minute%60, 0, 0, loc)
}

// Window: интервал [StartMinute, EndMinute) в минутах дня относительно Date.
// EndMinute может быть больше 1440, если интервал переходит через полночь.
type Window struct {
	Date        Date
	StartMinute int
	EndMinute   int
}

// WindowOf переводит пару моментов в окно по дате начала в зоне loc.
// Конец считается от начала по длительности, так что окно до полуночи даёт 1440.
func WindowOf(start, end time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		return Window{}, ErrNilLocation
	}
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return Window{}, ErrInvalidTimeRange
	}
	local := start.In(loc)
	startMin := local.Hour()*60 + local.Minute()
	return Window{
		Date:        DateOf(start, loc),
		StartMinute: startMin,
		EndMinute:   startMin + int(end.Sub(start)/time.Minute),
	}, nil
}

func (w Window) Valid() bool {
	return !w.Date.IsZero() &&
		w.StartMinute >= 0 &&
		w.StartMinute < MinutesPerDay &&
		w.EndMinute > w.StartMinute
}

func (w Window) DurationMin() int {
	return w.EndMinute - w.StartMinute
}

// Overlaps: полуоткрытые интервалы в одну дату: касание концами пересечением не считается.
func (w Window) Overlaps(o Window) bool {
	return w.Date == o.Date && w.StartMinute < o.EndMinute && o.StartMinute < w.EndMinute
}

// Contains: окно w целиком покрывает o (включительно по обеим границам).
func (w Window) Contains(o Window) bool {
	return w.Date == o.Date && w.StartMinute <= o.StartMinute && o.EndMinute <= w.EndMinute
}

// HasOverlap проверяет, пересекается ли w с existing, и возвращает конфликтующие окна.
func HasOverlap(w Window, existing []Window) (bool, []Window) {
	var conflicts []Window
	for _, e := range existing {
		if w.Overlaps(e) {
			conflicts = append(conflicts, e)
		}
	}
	return len(conflicts) > 0, conflicts
}
