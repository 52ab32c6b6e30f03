package models

import "time"

// CabinSummary holds the analytics computed over one cabin of a route,
// using the latest observation of every travel date.
type CabinSummary struct {
	Cabin     string  `json:"cabin"`
	Label     string  `json:"label"`
	Threshold float64 `json:"threshold"`
	Dates     int     `json:"dates"`
	Priced    int     `json:"priced"`

	AveragePrice float64 `json:"average_price"`
	MinPrice     float64 `json:"min_price"`
	MaxPrice     float64 `json:"max_price"`

	Best     *PriceObservation  `json:"best,omitempty"`
	Cheapest []PriceObservation `json:"cheapest"`
	BuyNow   bool               `json:"buy_now"`
}

// RouteSummary is the report for one route.
type RouteSummary struct {
	RouteID     string         `json:"route_id"`
	Transport   TransportType  `json:"transport_type"`
	Label       string         `json:"label"`
	Checks      int            `json:"checks"`
	LastChecked time.Time      `json:"last_checked"`
	Cabins      []CabinSummary `json:"cabins"`
}
