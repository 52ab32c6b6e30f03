package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCabinLookupsIgnoreCase(t *testing.T) {
	r := RouteSpec{Alerts: map[string]float64{"economy_max": 800, "Business_Max": 2200}}
	for _, cabin := range []string{"economy", "ECONOMY", " Economy "} {
		require.Equal(t, 800.0, r.Threshold(cabin), cabin)
		require.True(t, IsBaseTier(cabin), cabin)
		require.Equal(t, "Turista", CabinLabel(cabin), cabin)
	}
	require.Equal(t, 2200.0, r.Threshold("business"))
	require.Equal(t, "Preferente", CabinLabel("PREFERENTE"))
	require.False(t, IsBaseTier("Preferente"))
	require.Equal(t, float64(DefaultAlertThreshold), r.Threshold("first"))
	require.Equal(t, "first", CabinLabel("first"))
}

func TestNewObservationCarriesLiveFlags(t *testing.T) {
	at := time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC)
	q := Query{
		Route:  RouteSpec{ID: "MADRI-OUREN", Transport: Train},
		Cabin:  "preferente",
		Depart: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC),
	}
	obs := NewObservation(q, &ProviderResult{
		Price: 55.52, Carrier: "ALVIA", DepartureTime: "07:14", ArrivalTime: "09:36",
		Connection: true, Estimated: true,
	}, "renfe", at)

	require.Equal(t, "PREFERENTE", obs.CabinClass)
	require.Equal(t, 55.52, obs.PriceValue())
	require.True(t, obs.Estimated)
	require.True(t, obs.Connection)
	require.Equal(t, "renfe", obs.Provider)

	empty := NewObservation(q, &ProviderResult{Estimated: true}, "renfe", at)
	require.False(t, empty.HasPrice())
	require.False(t, empty.Estimated, "unpriced observations carry no price flags")
}
