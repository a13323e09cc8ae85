package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKnownPairs(t *testing.T) {
	tests := []struct {
		name      string
		a, b      Coordinate
		want      float64
		tolerance float64
	}{
		{
			name:      "one degree of latitude",
			a:         Coordinate{Latitude: 0, Longitude: 0},
			b:         Coordinate{Latitude: 1, Longitude: 0},
			want:      111195.08,
			tolerance: 1,
		},
		{
			name:      "one degree of longitude on the equator",
			a:         Coordinate{Latitude: 0, Longitude: 10},
			b:         Coordinate{Latitude: 0, Longitude: 11},
			want:      111195.08,
			tolerance: 1,
		},
		{
			name:      "paris to london",
			a:         Coordinate{Latitude: 48.8566, Longitude: 2.3522},
			b:         Coordinate{Latitude: 51.5074, Longitude: -0.1278},
			want:      343556,
			tolerance: 500,
		},
		{
			name:      "cupertino short hop north",
			a:         Coordinate{Latitude: 37.3349, Longitude: -122.0090},
			b:         Coordinate{Latitude: 37.3359, Longitude: -122.0090},
			want:      111.2,
			tolerance: 1,
		},
		{
			name:      "antipodal points",
			a:         Coordinate{Latitude: 0, Longitude: 0},
			b:         Coordinate{Latitude: 0, Longitude: 180},
			want:      math.Pi * EarthRadiusMeters,
			tolerance: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), tt.tolerance)
		})
	}
}

func TestDistanceSymmetricAndZero(t *testing.T) {
	points := []Coordinate{
		{Latitude: 37.3349, Longitude: -122.0090},
		{Latitude: -33.8688, Longitude: 151.2093},
		{Latitude: 64.1466, Longitude: -21.9426},
		{Latitude: 0, Longitude: 0},
	}

	for _, a := range points {
		assert.Zero(t, Distance(a, a))
		for _, b := range points {
			assert.Equal(t, Distance(a, b), Distance(b, a))
		}
	}
}

func TestCoordinateValid(t *testing.T) {
	assert.True(t, Coordinate{Latitude: 90, Longitude: -180}.Valid())
	assert.False(t, Coordinate{Latitude: 90.1, Longitude: 0}.Valid())
	assert.False(t, Coordinate{Latitude: 0, Longitude: 181}.Valid())
	assert.False(t, Coordinate{Latitude: math.Inf(1), Longitude: 0}.Valid())
	assert.False(t, Missing().Valid())
}

func TestPathLength(t *testing.T) {
	a := Coordinate{Latitude: 0, Longitude: 0}
	b := Coordinate{Latitude: 1, Longitude: 0}
	c := Coordinate{Latitude: 2, Longitude: 0}

	assert.Zero(t, PathLength(nil))
	assert.Zero(t, PathLength([]Coordinate{a}))
	assert.InDelta(t, 2*Distance(a, b), PathLength([]Coordinate{a, b, c}), 1e-6)
}
