package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/scraper/tfs"
)

const sampleRoutes = `{
	// comments and trailing commas are fine
	company: "Acme",
	check_interval_hours: 6,
	email: {to: "ops@example.com", smtp_user: "bot", smtp_password: "secret"},
	flights: [
		{
			id: "VGO-MEX",
			origin: "VGO",
			origin_name: "Vigo",
			origin_geo: "/m/0pmq2",
			destination: "MEX",
			destination_name: "Ciudad de México",
			destination_geo: "/m/04sqj",
			alerts: {economy_max: 750},
		},
	],
	trains: [
		{id: "MAD-OUR", origin_name: "Madrid", origin_code: "MADRI", destination_name: "Ourense", destination_code: "OUREN"},
	],
}`

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"STORAGE_BACKEND", "DATA_DIR", "RATE_LIMIT_MS", "GEO_PARALLELISM", "PREMIUM_MARKUP", "NAV_TIMEOUT", "KAFKA_BROKERS", "CHECK_INTERVAL", "HEADLESS"} {
		t.Setenv(k, "")
	}

	cfg := config.Load()
	require.NoError(t, cfg.Validate())

	require.Equal(t, config.BackendCSV, cfg.StorageBackend)
	require.Equal(t, "./data", cfg.DataDir)
	require.Equal(t, 2*time.Second, cfg.RateLimit())
	require.Equal(t, 1, cfg.GeoParallelism)
	require.Equal(t, 1.6, cfg.PremiumMarkup)
	require.Equal(t, 30*time.Second, cfg.NavTimeout)
	require.Equal(t, time.Duration(0), cfg.CheckInterval)
	require.True(t, cfg.Headless)
	require.Empty(t, cfg.KafkaBrokers)
	require.Equal(t, "VGO-MEX", cfg.LegacyRouteID)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "Postgres")
	t.Setenv("GEO_PARALLELISM", "3")
	t.Setenv("PREMIUM_MARKUP", "1.8")
	t.Setenv("NAV_TIMEOUT", "45s")
	t.Setenv("CHECK_INTERVAL", "90m")
	t.Setenv("HEADLESS", "false")
	t.Setenv("KAFKA_BROKERS", "kafka-a:9092, kafka-b:9092,")
	t.Setenv("POSTGRES_HOST", "db")

	cfg := config.Load()
	require.NoError(t, cfg.Validate())

	require.Equal(t, config.BackendPostgres, cfg.StorageBackend)
	require.Equal(t, 3, cfg.GeoParallelism)
	require.Equal(t, 1.8, cfg.PremiumMarkup)
	require.Equal(t, 45*time.Second, cfg.NavTimeout)
	require.Equal(t, 90*time.Minute, cfg.CheckInterval)
	require.False(t, cfg.Headless)
	require.Equal(t, []string{"kafka-a:9092", "kafka-b:9092"}, cfg.KafkaBrokers)
	require.Contains(t, cfg.DSN(), "host=db ")
}

func TestLoadInvalidDurationFallsBack(t *testing.T) {
	t.Setenv("NAV_TIMEOUT", "soon")
	cfg := config.Load()
	require.Equal(t, 30*time.Second, cfg.NavTimeout)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"unknown backend", "STORAGE_BACKEND", "sqlite"},
		{"zero parallelism", "GEO_PARALLELISM", "0"},
		{"markup not above one", "PREMIUM_MARKUP", "0.9"},
		{"negative rate limit", "RATE_LIMIT_MS", "-5"},
		{"no retries", "MAX_RETRIES", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			require.Error(t, config.Load().Validate())
		})
	}
}

func TestParseRoutesAppliesDefaults(t *testing.T) {
	routes, err := config.ParseRoutes([]byte(sampleRoutes))
	require.NoError(t, err)

	require.Equal(t, "Acme", routes.Company)
	require.Equal(t, 6*time.Hour, routes.CheckInterval)
	require.Equal(t, []string{"ops@example.com"}, routes.Email.Recipients)
	require.True(t, routes.Email.Configured())
	require.Equal(t, 587, routes.Email.SMTPPort)

	require.Len(t, routes.Flights, 1)
	fl := routes.Flights[0]
	require.Equal(t, models.Flight, fl.Transport)
	require.Equal(t, []string{"economy", "business"}, fl.Classes)
	require.Equal(t, 12, fl.Weeks)
	require.Equal(t, 1, fl.Adults)
	require.Equal(t, 750.0, fl.Threshold("economy"))
	require.Equal(t, float64(models.DefaultAlertThreshold), fl.Threshold("business"))

	require.Len(t, routes.Trains, 1)
	tr := routes.Trains[0]
	require.Equal(t, models.Train, tr.Transport)
	require.Equal(t, []string{"turista", "preferente"}, tr.Classes)
	require.Equal(t, 30.0, tr.Threshold("turista"))
	require.Equal(t, 60.0, tr.Threshold("preferente"))

	got, ok := routes.Route("MAD-OUR")
	require.True(t, ok)
	require.Equal(t, "OUREN", got.DestinationCode)
	require.Len(t, routes.All(), 2)

	require.Len(t, routes.GeoProfiles, 6)
	require.Equal(t, "ES", routes.GeoProfiles[0].ID)
	require.Equal(t, "Madrid (Todas)", routes.Stations.Lookup("MADRI").RenfeName)
}

func TestParseRoutesFlatLayout(t *testing.T) {
	routes, err := config.ParseRoutes([]byte(`{
		origin: "VGO", destination: "MEX",
		origin_geo: "/m/0pmq2", destination_geo: "/m/04sqj",
		destination_name: "Ciudad de México",
		email: {to: ["a@example.com", "b@example.com"], enabled: false},
	}`))
	require.NoError(t, err)

	require.Len(t, routes.Flights, 1)
	require.Equal(t, "VGO-MEX", routes.Flights[0].ID)
	require.Equal(t, "VGO", routes.Flights[0].OriginName)
	require.Equal(t, 800.0, routes.Flights[0].Threshold("economy"))
	require.Equal(t, []string{"a@example.com", "b@example.com"}, routes.Email.Recipients)
	require.False(t, routes.Email.Configured())
}

func TestParseRoutesNormalisesCabinCase(t *testing.T) {
	routes, err := config.ParseRoutes([]byte(`{
		flights: [{
			id: "VGO-MEX", origin_geo: "/m/0pmq2", destination_geo: "/m/04sqj",
			destination_name: "Ciudad de México",
			classes: ["ECONOMY", " Business "],
			alerts: {economy_max: 800, BUSINESS_MAX: 2200},
		}],
		trains: [{id: "MAD-OUR", origin_code: "MADRI", destination_code: "OUREN", classes: ["Turista"], alerts: {turista_max: 25}}],
	}`))
	require.NoError(t, err)

	fl := routes.Flights[0]
	require.Equal(t, []string{"economy", "business"}, fl.Classes)
	require.Equal(t, 800.0, fl.Threshold(fl.Classes[0]))
	require.Equal(t, 2200.0, fl.Threshold("BUSINESS"))
	require.Equal(t, []string{"turista"}, routes.Trains[0].Classes)
	require.Equal(t, 25.0, routes.Trains[0].Threshold("TURISTA"))
}

func TestParseRoutesErrors(t *testing.T) {
	_, err := config.ParseRoutes([]byte(`{company: "x"}`))
	require.ErrorIs(t, err, config.ErrNoRoutes)

	_, err = config.ParseRoutes([]byte(`{flights: [{id: "A-B", destination_name: "B", destination_geo: "/m/1"}]}`))
	require.ErrorIs(t, err, tfs.ErrInvalidParams)

	_, err = config.ParseRoutes([]byte(`{trains: [{id: "X", origin_code: "MADRI"}]}`))
	require.Error(t, err)

	_, err = config.ParseRoutes([]byte(`{trains: [
		{id: "X", origin_code: "A", destination_code: "B"},
		{id: "X", origin_code: "C", destination_code: "D"},
	]}`))
	require.ErrorContains(t, err, "duplicate")

	_, err = config.ParseRoutes([]byte(`{
		geo_profiles: [{id: "JP", currency: "JPY"}],
		flights: [{id: "A-B", origin_geo: "/m/1", destination_geo: "/m/2", destination_name: "B"}],
	}`))
	require.ErrorContains(t, err, "JPY")

	_, err = config.ParseRoutes([]byte(`{flights: [`))
	require.Error(t, err)
}

func TestLoadRoutesMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "routes.json5")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoutes), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "routes.local.json5"), []byte(`{
		company: "Local",
		email: {recipients: ["me@example.com"]},
		exchange_rates: {USD: 0.9},
	}`), 0o644))

	routes, err := config.LoadRoutes(path)
	require.NoError(t, err)

	require.Equal(t, "Local", routes.Company)
	require.Equal(t, []string{"me@example.com"}, routes.Email.Recipients)
	require.Equal(t, "bot", routes.Email.SMTPUser)
	require.Len(t, routes.Flights, 1)

	eur, err := routes.FX.ToReference(100, "USD")
	require.NoError(t, err)
	require.Equal(t, 90.0, eur)
}

func TestLoadRoutesMissingFile(t *testing.T) {
	_, err := config.LoadRoutes(filepath.Join(t.TempDir(), "nope.json5"))
	require.Error(t, err)
	require.True(t, errors.Is(err, os.ErrNotExist))
}

func TestFXTable(t *testing.T) {
	fx := config.DefaultFXTable()

	got, err := fx.ToReference(410, "USD")
	require.NoError(t, err)
	require.Equal(t, 377.2, got)

	got, err = fx.ToReference(450, "eur")
	require.NoError(t, err)
	require.Equal(t, 450.0, got)

	got, err = fx.ToReference(2_500_000, "COP")
	require.NoError(t, err)
	require.Equal(t, 575.0, got)

	_, err = fx.ToReference(10, "JPY")
	require.ErrorIs(t, err, config.ErrUnknownCurrency)
	require.False(t, fx.Knows("JPY"))
}

func TestStationLookupUnknown(t *testing.T) {
	st := config.DefaultStations().Lookup("VIGOG")
	require.Equal(t, "VIGOG", st.Code)
	require.Empty(t, st.TrainlineURN)
}
