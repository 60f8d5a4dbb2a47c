package geo

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceKm_SamePoint(t *testing.T) {
	d, err := DistanceKm(55.7558, 37.6173, 55.7558, 37.6173)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-9)
}

func TestDistanceKm_KnownPairs(t *testing.T) {
	cases := []struct {
		name      string
		a, b      Point
		want, tol float64
	}{
		// Москва: Санкт-Петербург ≈ 634 км.
		{"moscow-spb", Point{55.7558, 37.6173}, Point{59.9343, 30.3351}, 634, 3},
		// Один градус широты ≈ 111.19 км.
		{"one degree lat", Point{0, 0}, Point{1, 0}, 111.19, 0.05},
		{"antipodes", Point{0, 0}, Point{0, 180}, math.Pi * EarthRadiusKm, 1e-6},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d, err := Between(tc.a, tc.b)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, d, tc.tol)

			back, err := Between(tc.b, tc.a)
			require.NoError(t, err)
			assert.InDelta(t, d, back, 1e-9, "distance must be symmetric")
		})
	}
}

func TestDistanceKm_InvalidCoordinates(t *testing.T) {
	cases := map[string][4]float64{
		"nan lat":       {math.NaN(), 0, 0, 0},
		"lat too big":   {91, 0, 0, 0},
		"lng too small": {0, -180.5, 0, 0},
		"inf lng":       {0, 0, 0, math.Inf(1)},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DistanceKm(c[0], c[1], c[2], c[3])
			assert.True(t, errors.Is(err, ErrInvalidCoordinate), "got %v", err)
		})
	}
}
