package models

import (
	"strings"
	"time"
)

// Cabin tiers known to the monitor.
const (
	CabinEconomy    = "economy"
	CabinBusiness   = "business"
	CabinTurista    = "turista"
	CabinPreferente = "preferente"
)

// RouteFilters are informational search limits carried with a flight route.
type RouteFilters struct {
	MaxStops         int `json:"max_stops"`
	MaxDurationHours int `json:"max_duration_hours"`
}

// RouteSpec describes one monitored route. Flight routes use the IATA codes
// and geo tokens; train routes use the station codes.
type RouteSpec struct {
	ID        string
	Transport TransportType

	Origin          string
	OriginName      string
	OriginGeo       string
	Destination     string
	DestinationName string
	DestinationGeo  string

	OriginCode      string
	DestinationCode string

	Classes []string
	Alerts  map[string]float64
	Filters RouteFilters
	Weeks   int
	Adults  int
}

// DefaultAlertThreshold applies when a cabin has no "{cabin}_max" entry.
const DefaultAlertThreshold = 9999

// Threshold returns the configured maximum price for cabin. Cabin and alert
// keys match regardless of case.
func (r RouteSpec) Threshold(cabin string) float64 {
	key := strings.ToLower(strings.TrimSpace(cabin)) + "_max"
	if v, ok := r.Alerts[key]; ok {
		return v
	}
	for k, v := range r.Alerts {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return DefaultAlertThreshold
}

// FlightStayDays is the gap between outbound and return flights.
const FlightStayDays = 3

// Query is one price lookup: a route, a cabin and a travel date pair.
// Return is only meaningful for flights.
type Query struct {
	Route  RouteSpec
	Cabin  string
	Depart time.Time
	Return time.Time
}

// IsBaseTier reports whether the cabin is the cheapest fare class.
func IsBaseTier(cabin string) bool {
	switch strings.ToLower(strings.TrimSpace(cabin)) {
	case CabinEconomy, CabinTurista:
		return true
	}
	return false
}

// CabinLabel is the human label used in messages.
func CabinLabel(cabin string) string {
	switch strings.ToLower(strings.TrimSpace(cabin)) {
	case CabinEconomy:
		return "Turista"
	case CabinBusiness:
		return "Business"
	case CabinTurista:
		return "Turista"
	case CabinPreferente:
		return "Preferente"
	}
	return cabin
}
