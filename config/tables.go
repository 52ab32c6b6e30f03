package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"travel-monitor/models"
)

// DefaultGeoProfiles are the client locations probed for every flight query,
// in reduction order.
func DefaultGeoProfiles() []models.GeoProfile {
	return []models.GeoProfile{
		{ID: "ES", Locale: "es-ES", Currency: "EUR", Language: "es", Timezone: "Europe/Madrid", Latitude: 42.2328, Longitude: -8.7226},
		{ID: "US", Locale: "en-US", Currency: "USD", Language: "en", Timezone: "America/New_York", Latitude: 40.7128, Longitude: -74.0060},
		{ID: "MX", Locale: "es-MX", Currency: "MXN", Language: "es", Timezone: "America/Mexico_City", Latitude: 19.4326, Longitude: -99.1332},
		{ID: "CO", Locale: "es-CO", Currency: "COP", Language: "es", Timezone: "America/Bogota", Latitude: 4.7110, Longitude: -74.0721},
		{ID: "UK", Locale: "en-GB", Currency: "GBP", Language: "en", Timezone: "Europe/London", Latitude: 51.5074, Longitude: -0.1278},
		{ID: "DE", Locale: "de-DE", Currency: "EUR", Language: "de", Timezone: "Europe/Berlin", Latitude: 52.5200, Longitude: 13.4050},
	}
}

// ErrUnknownCurrency is returned when the FX table has no rate for a
// currency.
var ErrUnknownCurrency = errors.New("config: unknown currency")

// FXTable converts amounts into the reference currency with static,
// approximate rates.
type FXTable struct {
	reference string
	rates     map[string]decimal.Decimal
}

// NewFXTable builds a table from rates expressed as reference units per
// unit of each currency. The reference currency is always 1.
func NewFXTable(reference string, rates map[string]float64) FXTable {
	t := FXTable{reference: strings.ToUpper(reference), rates: make(map[string]decimal.Decimal, len(rates)+1)}
	for code, rate := range rates {
		t.rates[strings.ToUpper(code)] = decimal.NewFromFloat(rate)
	}
	t.rates[t.reference] = decimal.NewFromInt(1)
	return t
}

// DefaultFXRates are approximate EUR rates, refreshed by hand.
func DefaultFXRates() map[string]float64 {
	return map[string]float64{
		"USD": 0.92,
		"GBP": 1.17,
		"MXN": 0.047,
		"COP": 0.00023,
		"BRL": 0.17,
	}
}

// DefaultFXTable is the table built from DefaultFXRates.
func DefaultFXTable() FXTable {
	return NewFXTable(models.ReferenceCurrency, DefaultFXRates())
}

// Knows reports whether currency has a rate.
func (t FXTable) Knows(currency string) bool {
	_, ok := t.rates[strings.ToUpper(currency)]
	return ok
}

// ToReference converts amount to the reference currency, rounded to cents.
func (t FXTable) ToReference(amount float64, currency string) (float64, error) {
	rate, ok := t.rates[strings.ToUpper(currency)]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCurrency, currency)
	}
	return decimal.NewFromFloat(amount).Mul(rate).Round(2).InexactFloat64(), nil
}

// Station is how one station code is spelled on each train provider.
type Station struct {
	Code         string `json:"-"`
	RenfeName    string `json:"renfe_name"`
	TrainlineURN string `json:"trainline_urn"`
	OmioSlug     string `json:"omio_slug"`
}

// StationTable maps station codes to provider spellings.
type StationTable map[string]Station

// Lookup returns the station for code. Unknown codes yield a Station with
// only Code set so providers can fall back to the route's display names.
func (t StationTable) Lookup(code string) Station {
	if st, ok := t[code]; ok {
		st.Code = code
		return st
	}
	return Station{Code: code}
}

// DefaultStations covers the stations monitored out of the box.
func DefaultStations() StationTable {
	return StationTable{
		"MADRI": {Code: "MADRI", RenfeName: "Madrid (Todas)", TrainlineURN: "urn:trainline:generic:loc:5927", OmioSlug: "madrid"},
		"OUREN": {Code: "OUREN", RenfeName: "Ourense", TrainlineURN: "urn:trainline:generic:loc:5976", OmioSlug: "ourense"},
		"BARCE": {Code: "BARCE", RenfeName: "Barcelona (Todas)", TrainlineURN: "urn:trainline:generic:loc:5828", OmioSlug: "barcelona"},
		"MALAG": {Code: "MALAG", RenfeName: "Malaga", TrainlineURN: "urn:trainline:generic:loc:5958", OmioSlug: "malaga"},
	}
}
