package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceMeters_SamePoint(t *testing.T) {
	points := []Point{
		{Lat: 0, Lon: 0},
		{Lat: -4.3217, Lon: 15.3125},
		{Lat: 89.9, Lon: -179.9},
	}
	for _, p := range points {
		assert.Equal(t, 0.0, DistanceMeters(p, p))
	}
}

func TestDistanceMeters_Symmetric(t *testing.T) {
	a := Point{Lat: 48.8566, Lon: 2.3522}
	b := Point{Lat: -33.8688, Lon: 151.2093}

	assert.InDelta(t, DistanceMeters(a, b), DistanceMeters(b, a), 1e-6)
}

func TestDistanceMeters_SmallLatitudeStep(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0.0001, Lon: 0}

	// 0.0001 degrees of arc on a 6371 km sphere
	expected := EarthRadiusMeters * 0.0001 * math.Pi / 180
	assert.InDelta(t, expected, DistanceMeters(a, b), 0.5)
	assert.InDelta(t, 11.1, DistanceMeters(a, b), 0.5)
}

func TestDistanceMeters_Antipodal(t *testing.T) {
	a := Point{Lat: 0, Lon: 0}
	b := Point{Lat: 0, Lon: 180}

	assert.InDelta(t, math.Pi*EarthRadiusMeters, DistanceMeters(a, b), 1)
}

func TestDistanceMeters_KnownCity(t *testing.T) {
	// Kinshasa to Brazzaville city centres, about 10 km apart
	kinshasa := Point{Lat: -4.3217, Lon: 15.3125}
	brazzaville := Point{Lat: -4.2634, Lon: 15.2429}

	d := DistanceMeters(kinshasa, brazzaville)
	assert.Greater(t, d, 9500.0)
	assert.Less(t, d, 10500.0)
}

func TestValid(t *testing.T) {
	assert.True(t, Valid(Point{Lat: 0, Lon: 0}))
	assert.True(t, Valid(Point{Lat: 90, Lon: -180}))
	assert.False(t, Valid(Point{Lat: 90.1, Lon: 0}))
	assert.False(t, Valid(Point{Lat: 0, Lon: 181}))
	assert.False(t, Valid(Point{Lat: math.NaN(), Lon: 0}))
	assert.False(t, Valid(Point{Lat: 0, Lon: math.Inf(1)}))
}
