// internal/geo/bounds.go
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

// boundPadding widens every box slightly so float rounding never drops a
// point sitting exactly on the radius.
const boundPadding = 1e-9

var worldBound = orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}}

// boundsAround returns the lat/long boxes covering every point within
// radiusMeters of center. Boxes crossing the antimeridian are split in two
// and boxes touching a pole span all longitudes.
func boundsAround(center Point, radiusMeters float64) []orb.Bound {
	angular := radiusMeters / EarthRadiusMeters
	if angular >= math.Pi {
		return []orb.Bound{worldBound}
	}

	lat := toRadians(center.Lat)
	minLat := lat - angular
	maxLat := lat + angular

	if minLat <= -math.Pi/2 || maxLat >= math.Pi/2 {
		return []orb.Bound{{
			Min: orb.Point{-180, math.Max(-90, toDegrees(minLat)-boundPadding)},
			Max: orb.Point{180, math.Min(90, toDegrees(maxLat)+boundPadding)},
		}}
	}

	ratio := math.Sin(angular) / math.Cos(lat)
	if ratio >= 1 {
		return []orb.Bound{{
			Min: orb.Point{-180, toDegrees(minLat) - boundPadding},
			Max: orb.Point{180, toDegrees(maxLat) + boundPadding},
		}}
	}

	deltaLong := toDegrees(math.Asin(ratio)) + boundPadding
	minLong := center.Long - deltaLong
	maxLong := center.Long + deltaLong
	lowLat := toDegrees(minLat) - boundPadding
	highLat := toDegrees(maxLat) + boundPadding

	switch {
	case minLong < -180:
		return []orb.Bound{
			{Min: orb.Point{minLong + 360, lowLat}, Max: orb.Point{180, highLat}},
			{Min: orb.Point{-180, lowLat}, Max: orb.Point{maxLong, highLat}},
		}
	case maxLong > 180:
		return []orb.Bound{
			{Min: orb.Point{minLong, lowLat}, Max: orb.Point{180, highLat}},
			{Min: orb.Point{-180, lowLat}, Max: orb.Point{maxLong - 360, highLat}},
		}
	default:
		return []orb.Bound{{Min: orb.Point{minLong, lowLat}, Max: orb.Point{maxLong, highLat}}}
	}
}
