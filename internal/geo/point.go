// internal/geo/point.go
package geo

import (
	"math"

	"github.com/paulmach/orb"

	"github.com/javajoker/nearby-market/internal/apperror"
)

// EarthRadiusMeters is the mean sphere radius used for every distance.
const EarthRadiusMeters = 6371000.0

// Point is a WGS-84 coordinate in decimal degrees.
type Point struct {
	Lat  float64 `json:"latitude"`
	Long float64 `json:"longitude"`
}

// NewPoint validates lat/long and returns the point.
func NewPoint(lat, long float64) (Point, error) {
	p := Point{Lat: lat, Long: long}
	if err := p.Validate(); err != nil {
		return Point{}, err
	}
	return p, nil
}

// Validate rejects NaN, infinities and out of range values.
func (p Point) Validate() error {
	if math.IsNaN(p.Lat) || math.IsInf(p.Lat, 0) || p.Lat < -90 || p.Lat > 90 {
		return apperror.Validation(apperror.CodeInvalidCoordinate, "latitude %v is outside [-90, 90]", p.Lat)
	}
	if math.IsNaN(p.Long) || math.IsInf(p.Long, 0) || p.Long < -180 || p.Long > 180 {
		return apperror.Validation(apperror.CodeInvalidCoordinate, "longitude %v is outside [-180, 180]", p.Long)
	}
	return nil
}

// Orb converts to orb's [lon, lat] order.
func (p Point) Orb() orb.Point {
	return orb.Point{p.Long, p.Lat}
}

// GeoJSON returns [longitude, latitude], the order clients render.
func (p Point) GeoJSON() [2]float64 {
	return [2]float64{p.Long, p.Lat}
}

func FromOrb(p orb.Point) Point {
	return Point{Lat: p.Lat(), Long: p.Lon()}
}

// Distance returns the haversine great-circle distance in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := lat2 - lat1
	dLong := toRadians(b.Long - a.Long)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLong/2)*math.Sin(dLong/2)
	if h > 1 {
		h = 1
	}
	return 2 * EarthRadiusMeters * math.Asin(math.Sqrt(h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

func toDegrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
