package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// PointType is the only GeoJSON geometry stored for tour locations.
const PointType = "Point"

// Distance units accepted by the geo endpoints.
const (
	UnitMiles      = "mi"
	UnitKilometers = "km"
)

// Earth radius in each unit, used to turn a distance into radians.
var earthRadius = map[string]float64{
	UnitMiles:      3963.2,
	UnitKilometers: 6378.1,
}

// Meter conversion factor for each unit.
var fromMeters = map[string]float64{
	UnitMiles:      0.000621371,
	UnitKilometers: 0.001,
}

// GeoPoint is a GeoJSON point with tour-specific annotations.
// Coordinates are [longitude, latitude].
type GeoPoint struct {
	Type        string     `json:"type"`
	Coordinates [2]float64 `json:"coordinates"`
	Address     string     `json:"address,omitempty"`
	Description string     `json:"description,omitempty"`
	Day         int        `json:"day,omitempty"`
}

// NewPoint returns a point at lat, lng.
func NewPoint(lat, lng float64) GeoPoint {
	return GeoPoint{Type: PointType, Coordinates: [2]float64{lng, lat}}
}

// Lat returns the latitude.
func (p GeoPoint) Lat() float64 { return p.Coordinates[1] }

// Lng returns the longitude.
func (p GeoPoint) Lng() float64 { return p.Coordinates[0] }

// ParseLatLng parses a "lat,lng" path segment.
func ParseLatLng(s string) (lat, lng float64, err error) {
	latStr, lngStr, ok := strings.Cut(s, ",")
	if !ok {
		return 0, 0, fmt.Errorf("expected lat,lng")
	}
	lat, err = strconv.ParseFloat(strings.TrimSpace(latStr), 64)
	if err != nil || lat < -90 || lat > 90 {
		return 0, 0, fmt.Errorf("invalid latitude %q", latStr)
	}
	lng, err = strconv.ParseFloat(strings.TrimSpace(lngStr), 64)
	if err != nil || lng < -180 || lng > 180 {
		return 0, 0, fmt.Errorf("invalid longitude %q", lngStr)
	}
	return lat, lng, nil
}

// IsValidUnit reports whether unit is mi or km.
func IsValidUnit(unit string) bool {
	_, ok := earthRadius[unit]
	return ok
}

// RadiusRadians converts a distance in unit to radians on the earth's surface.
func RadiusRadians(distance float64, unit string) float64 {
	return distance / earthRadius[unit]
}

// EarthRadius returns the earth's radius in unit.
func EarthRadius(unit string) float64 {
	return earthRadius[unit]
}

// DistanceMultiplier converts meters to unit.
func DistanceMultiplier(unit string) float64 {
	return fromMeters[unit]
}
