package domain

import "time"

// GeoPoint represents a geographic coordinate (WGS 84).
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Route is a multi-waypoint route returned by the route provider. Legs[i]
// connects waypoint i to waypoint i+1.
type Route struct {
	Legs []RouteLeg `json:"legs"`
}

// RouteLeg is the travel between two consecutive waypoints.
type RouteLeg struct {
	Distance float64       `json:"distance"` // meters
	Duration time.Duration `json:"duration"`
}
