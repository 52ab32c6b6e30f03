package models

// GeoProfile is a simulated client locale used to probe region-dependent
// pricing.
type GeoProfile struct {
	ID        string  `json:"id"`
	Locale    string  `json:"locale"`
	Currency  string  `json:"currency"`
	Language  string  `json:"hl"`
	Timezone  string  `json:"timezone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// ProviderResult is one price candidate extracted from a page, before it
// becomes a PriceObservation.
type ProviderResult struct {
	Price         float64
	Currency      string
	Carrier       string
	Stops         int
	Duration      string
	DepartureTime string
	ArrivalTime   string

	// Connection is set when the row mentioned a change of train.
	Connection bool
	// Estimated is set when the price was derived rather than read.
	Estimated bool
}

// SignalKind tells a buy recommendation apart from an informational gap.
type SignalKind string

const (
	SignalBuy SignalKind = "buy"
	SignalGap SignalKind = "gap"
)

// Signal is the outcome of evaluating one cabin of a route against its
// threshold. Gap is how far the best price sits above the threshold and is
// zero for buy signals.
type Signal struct {
	Kind        SignalKind       `json:"kind"`
	RouteID     string           `json:"route_id"`
	Transport   TransportType    `json:"transport_type"`
	Cabin       string           `json:"cabin"`
	Threshold   float64          `json:"threshold"`
	Price       float64          `json:"price"`
	Gap         float64          `json:"gap"`
	Observation PriceObservation `json:"-"`
}
