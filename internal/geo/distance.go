// Package geo holds great-circle helpers for GPS tracks.
package geo

import "github.com/golang/geo/s2"

// EarthRadiusMeters is the mean Earth radius
const EarthRadiusMeters = 6371008.8

// Distance returns the great-circle distance between two points in meters
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	p1 := s2.LatLngFromDegrees(lat1, lng1)
	p2 := s2.LatLngFromDegrees(lat2, lng2)
	return p1.Distance(p2).Radians() * EarthRadiusMeters
}

// Track accumulates distance along a sequence of fixes
type Track struct {
	prev  s2.LatLng
	fixes int
	Total float64 // meters
}

// Add appends a fix and returns the running total
func (t *Track) Add(lat, lng float64) float64 {
	ll := s2.LatLngFromDegrees(lat, lng)
	if t.fixes > 0 {
		t.Total += t.prev.Distance(ll).Radians() * EarthRadiusMeters
	}
	t.prev = ll
	t.fixes++
	return t.Total
}
