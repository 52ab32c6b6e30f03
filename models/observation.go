package models

import (
	"strings"
	"time"
)

// TransportType distinguishes the two kinds of monitored routes.
type TransportType string

const (
	Flight TransportType = "flight"
	Train  TransportType = "train"
)

// ReferenceCurrency is the currency every stored price is normalised to.
const ReferenceCurrency = "EUR"

// PriceObservation is one price check for a route, cabin and travel date.
// It is appended once to the history store and never modified afterwards.
// A nil Price means the check found no usable price.
type PriceObservation struct {
	Timestamp     time.Time     `json:"timestamp"`
	RouteID       string        `json:"route_id"`
	TransportType TransportType `json:"transport_type"`
	CabinClass    string        `json:"cabin_class"`
	Price         *float64      `json:"price"`
	Currency      string        `json:"currency,omitempty"`

	// Flight attributes
	Airline  string `json:"airline,omitempty"`
	Stops    int    `json:"stops,omitempty"`
	Duration string `json:"duration,omitempty"`

	// Train attributes
	TrainType     string `json:"train_type,omitempty"`
	DepartureTime string `json:"departure_time,omitempty"`
	ArrivalTime   string `json:"arrival_time,omitempty"`

	WeekStart  string `json:"week_start"`
	TravelDate string `json:"travel_date"`

	// Live-only fields, not persisted.
	Provider   string `json:"provider,omitempty"`
	Estimated  bool   `json:"estimated,omitempty"`
	Connection bool   `json:"connection,omitempty"`
}

// HasPrice reports whether the observation carries a positive price.
func (o PriceObservation) HasPrice() bool {
	return o.Price != nil && *o.Price > 0
}

// PriceValue returns the price or 0 when absent.
func (o PriceObservation) PriceValue() float64 {
	if !o.HasPrice() {
		return 0
	}
	return *o.Price
}

// NewObservation builds an observation for q from a provider result.
// A nil or non-positive result yields an unpriced observation with every
// price-derived field left empty.
func NewObservation(q Query, r *ProviderResult, provider string, at time.Time) PriceObservation {
	day := q.Depart.Format(DateLayout)
	obs := PriceObservation{
		Timestamp:     at,
		RouteID:       q.Route.ID,
		TransportType: q.Route.Transport,
		CabinClass:    NormalizeCabin(q.Cabin),
		WeekStart:     day,
		TravelDate:    day,
	}
	if r == nil || r.Price <= 0 {
		return obs
	}

	price := r.Price
	obs.Price = &price
	obs.Currency = ReferenceCurrency
	obs.Duration = r.Duration
	obs.Provider = provider
	obs.Estimated = r.Estimated

	switch q.Route.Transport {
	case Flight:
		obs.Airline = r.Carrier
		obs.Stops = r.Stops
	case Train:
		obs.TrainType = r.Carrier
		obs.DepartureTime = r.DepartureTime
		obs.ArrivalTime = r.ArrivalTime
		obs.Connection = r.Connection
	}
	return obs
}

// NormalizeCabin returns the upper-case cabin token used in storage.
func NormalizeCabin(cabin string) string {
	return strings.ToUpper(strings.TrimSpace(cabin))
}

// DateLayout is the calendar date format used in URLs and storage.
const DateLayout = "2006-01-02"
