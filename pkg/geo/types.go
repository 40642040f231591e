// Package geo provides the coordinate type shared by the geocoding and
// routing adapters.
package geo

import (
	"errors"
	"fmt"
)

var (
	// ErrLatitudeRange is returned for a latitude outside [-90, 90].
	ErrLatitudeRange = errors.New("latitude must be between -90 and 90")

	// ErrLongitudeRange is returned for a longitude outside [-180, 180].
	ErrLongitudeRange = errors.New("longitude must be between -180 and 180")
)

// Coordinate is a WGS84 position in decimal degrees, latitude first.
//
// Example:
//
//	origin := geo.Coordinate{Lat: 52.5200, Lon: 13.4050}
//	body := [][2]float64{origin.LonLat()}
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewCoordinate builds a coordinate and validates it.
func NewCoordinate(lat, lon float64) (Coordinate, error) {
	c := Coordinate{Lat: lat, Lon: lon}
	if err := c.Validate(); err != nil {
		return Coordinate{}, err
	}
	return c, nil
}

// Validate checks the latitude and longitude ranges. NaN fails both checks.
func (c Coordinate) Validate() error {
	if !(c.Lat >= -90 && c.Lat <= 90) {
		return fmt.Errorf("%w: got %v", ErrLatitudeRange, c.Lat)
	}
	if !(c.Lon >= -180 && c.Lon <= 180) {
		return fmt.Errorf("%w: got %v", ErrLongitudeRange, c.Lon)
	}
	return nil
}

// LonLat returns the pair in GeoJSON axis order.
func (c Coordinate) LonLat() [2]float64 {
	return [2]float64{c.Lon, c.Lat}
}

// String returns "lat,lon".
func (c Coordinate) String() string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lon)
}
