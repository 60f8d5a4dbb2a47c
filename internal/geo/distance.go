// Package geo считает расстояния между точками на поверхности Земли.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm: средний радиус Земли для формулы гаверсинусов.
const EarthRadiusKm = 6371.0

var ErrInvalidCoordinate = errors.New("invalid coordinate")

// Point: пара широта/долгота в градусах.
type Point struct {
	Lat float64
	Lng float64
}

func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinate, p.Lat)
	}
	if math.IsNaN(p.Lng) || math.IsInf(p.Lng, 0) || p.Lng < -180 || p.Lng > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinate, p.Lng)
	}
	return nil
}

// DistanceKm: расстояние по большому кругу (haversine, R = 6371 км).
// Координаты вне диапазона или NaN дают ErrInvalidCoordinate, а не мусорное значение.
func DistanceKm(lat1, lon1, lat2, lon2 float64) (float64, error) {
	return Between(Point{Lat: lat1, Lng: lon1}, Point{Lat: lat2, Lng: lon2})
}

func Between(a, b Point) (float64, error) {
	if err := a.Validate(); err != nil {
		return 0, err
	}
	if err := b.Validate(); err != nil {
		return 0, err
	}

	dLat := toRad(b.Lat - a.Lat)
	dLng := toRad(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*
			math.Sin(dLng/2)*math.Sin(dLng/2)

	// Округление может дать h чуть больше 1 для антиподов.
	h = math.Min(1, h)

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h)), nil
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
