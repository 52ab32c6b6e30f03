package flights_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/browser/browsertest"
	"travel-monitor/scraper/extract"
	"travel-monitor/scraper/flights"
	"travel-monitor/scraper/tfs"
	"travel-monitor/utils"
)

type stubFetcher struct {
	mu      sync.Mutex
	results map[string]*models.ProviderResult
	errs    map[string]error
	panics  map[string]bool
	seen    []string
}

func (s *stubFetcher) Fetch(_ context.Context, _ models.Query, p models.GeoProfile) (*models.ProviderResult, error) {
	s.mu.Lock()
	s.seen = append(s.seen, p.ID)
	s.mu.Unlock()
	if s.panics[p.ID] {
		panic("selector exploded")
	}
	if err := s.errs[p.ID]; err != nil {
		return nil, err
	}
	return s.results[p.ID], nil
}

func price(v float64, currency string) *models.ProviderResult {
	return &models.ProviderResult{Price: v, Currency: currency, Stops: 1, Duration: "14h 5m"}
}

func query() models.Query {
	depart := time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC)
	return models.Query{
		Route: models.RouteSpec{
			ID: "VGO-MEX", Transport: models.Flight,
			Origin: "VGO", Destination: "MEX",
			OriginGeo: "/m/0pmq2", DestinationGeo: "/m/04sqj",
			DestinationName: "Ciudad de México",
		},
		Cabin:  models.CabinEconomy,
		Depart: depart,
		Return: depart.AddDate(0, 0, models.FlightStayDays),
	}
}

func newMux(f flights.Fetcher, parallelism int) *flights.Multiplexer {
	return flights.NewMultiplexer(f, config.DefaultGeoProfiles(), config.DefaultFXTable(), parallelism, utils.Discard())
}

func TestBestPicksCheapestConvertedProfile(t *testing.T) {
	f := &stubFetcher{results: map[string]*models.ProviderResult{
		"ES": price(450, "EUR"),
		"US": price(410, "USD"),
	}}

	best, failures := newMux(f, 1).Best(context.Background(), query())
	require.Empty(t, failures)
	require.NotNil(t, best)
	require.Equal(t, "US", best.Profile.ID)
	require.Equal(t, 377.2, best.Result.Price)
	require.Equal(t, "EUR", best.Result.Currency)
	require.Equal(t, 410.0, best.LocalPrice)
	require.Equal(t, "USD", best.LocalCurrency)
	require.Equal(t, 1, best.Result.Stops)
	require.Equal(t, []string{"ES", "US", "MX", "CO", "UK", "DE"}, f.seen)
}

func TestBestIgnoresNoiseAndKeepsEarlierOnTie(t *testing.T) {
	f := &stubFetcher{results: map[string]*models.ProviderResult{
		"ES": price(500, "EUR"),
		"MX": price(1000, "MXN"), // 47 EUR, a parse artifact
		"DE": price(500, "EUR"),
	}}

	best, _ := newMux(f, 1).Best(context.Background(), query())
	require.NotNil(t, best)
	require.Equal(t, "ES", best.Profile.ID)
	require.Equal(t, 500.0, best.Result.Price)
}

func TestBestWithoutUsablePriceIsNotAnError(t *testing.T) {
	f := &stubFetcher{
		results: map[string]*models.ProviderResult{"ES": price(90, "EUR")},
		errs:    map[string]error{"US": errors.New("timeout")},
		panics:  map[string]bool{"UK": true},
	}

	best, failures := newMux(f, 1).Best(context.Background(), query())
	require.Nil(t, best)
	require.Len(t, failures, 2)
	require.Equal(t, "US", failures[0].Profile)
	require.Equal(t, "UK", failures[1].Profile)
	require.ErrorContains(t, failures[1], "panic")
}

func TestBestUnknownCurrencyIsProfileFailure(t *testing.T) {
	f := &stubFetcher{results: map[string]*models.ProviderResult{
		"ES": price(300, "JPY"),
		"DE": price(640, "EUR"),
	}}

	best, failures := newMux(f, 1).Best(context.Background(), query())
	require.NotNil(t, best)
	require.Equal(t, "DE", best.Profile.ID)
	require.Len(t, failures, 1)
	require.ErrorIs(t, failures[0], config.ErrUnknownCurrency)
}

func TestBestWithNilLogger(t *testing.T) {
	f := &stubFetcher{
		results: map[string]*models.ProviderResult{"ES": price(450, "EUR")},
		errs:    map[string]error{"US": errors.New("timeout")},
		panics:  map[string]bool{"UK": true},
	}
	mux := flights.NewMultiplexer(f, config.DefaultGeoProfiles(), config.DefaultFXTable(), 2, nil)

	best, failures := mux.Best(context.Background(), query())
	require.NotNil(t, best)
	require.Equal(t, "ES", best.Profile.ID)
	require.Len(t, failures, 2)
}

func TestBestIsDeterministicUnderParallelism(t *testing.T) {
	// US converts to 700.12 and UK to 700.01, so the two 700 EUR profiles tie.
	results := map[string]*models.ProviderResult{
		"ES": price(700, "EUR"),
		"US": price(761, "USD"),
		"UK": price(598.3, "GBP"),
		"DE": price(700, "EUR"),
	}
	for _, n := range []int{1, 3, 6, 10} {
		best, _ := newMux(&stubFetcher{results: results}, n).Best(context.Background(), query())
		require.NotNil(t, best)
		require.Equal(t, "ES", best.Profile.ID, "parallelism %d", n)
	}
}

func TestBestStopsSubmittingWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &stubFetcher{}
	best, failures := newMux(f, 1).Best(ctx, query())
	require.Nil(t, best)
	require.Len(t, failures, 6)
	require.Empty(t, f.seen)
	require.ErrorIs(t, failures[0], context.Canceled)
}

func TestProviderAttempt(t *testing.T) {
	f := &stubFetcher{results: map[string]*models.ProviderResult{"CO": price(2_000_000, "COP")}}
	p := flights.NewProvider(newMux(f, 2))
	require.Equal(t, "google-flights", p.Name())

	r, err := p.Attempt(context.Background(), query())
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 460.0, r.Price)

	empty := flights.NewProvider(newMux(&stubFetcher{errs: map[string]error{
		"ES": errors.New("x"), "US": errors.New("x"), "MX": errors.New("x"),
		"CO": errors.New("x"), "UK": errors.New("x"), "DE": errors.New("x"),
	}}, 1))
	r, err = empty.Attempt(context.Background(), query())
	require.NoError(t, err)
	require.Nil(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = empty.Attempt(ctx, query())
	require.ErrorIs(t, err, context.Canceled)

	bad := query()
	bad.Route.DestinationGeo = ""
	misused := flights.NewProvider(newMux(flights.NewBrowserFetcher(&browsertest.Launcher{}, extract.NewDefault(), utils.Discard()), 1))
	_, err = misused.Attempt(context.Background(), bad)
	require.ErrorIs(t, err, tfs.ErrInvalidParams)
}

func TestBrowserFetcherDrivesSession(t *testing.T) {
	launcher := &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		s := browsertest.NewSession(map[string]string{
			"https://www.google.com/travel/explore": "Explorar\nCiudad de México\n1 escala\n15 h 30 min\n1.197 €",
		})
		s.Present["Aceptar todo"] = true
		return s, nil
	}}
	fetcher := flights.NewBrowserFetcher(launcher, extract.NewDefault(), utils.Discard())
	es := config.DefaultGeoProfiles()[0]

	r, err := fetcher.Fetch(context.Background(), query(), es)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 1197.0, r.Price)
	require.Equal(t, "EUR", r.Currency)
	require.Equal(t, 1, r.Stops)

	opened := launcher.Opened()
	require.Len(t, opened, 1)
	require.Equal(t, "es-ES", opened[0].Locale)
	require.Equal(t, "Europe/Madrid", opened[0].Timezone)
	require.True(t, opened[0].Geolocation)
	require.Equal(t, 42.2328, opened[0].Latitude)

	s := launcher.Sessions()[0]
	require.True(t, s.Closed())
	calls := s.Calls()
	require.Len(t, calls, 4)
	require.Equal(t, "navigate https://www.google.com/travel/flights?curr=EUR&hl=es", calls[0])
	require.Equal(t, "click button:Aceptar todo", calls[1])
	require.True(t, strings.HasPrefix(calls[2], "navigate https://www.google.com/travel/explore?"))
	require.Contains(t, calls[2], "tfs=CBwQAxoaEgoyMDI2LTExLTAy")
	require.Equal(t, "text", calls[3])
}

func TestBrowserFetcherFailures(t *testing.T) {
	es := config.DefaultGeoProfiles()[0]

	down := &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		return nil, errors.New("chrome not found")
	}}
	_, err := flights.NewBrowserFetcher(down, extract.NewDefault(), utils.Discard()).Fetch(context.Background(), query(), es)
	require.ErrorContains(t, err, "chrome not found")

	var opened *browsertest.Session
	slow := &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		opened = browsertest.NewSession(nil)
		opened.Fail["navigate"] = context.DeadlineExceeded
		return opened, nil
	}}
	_, err = flights.NewBrowserFetcher(slow, extract.NewDefault(), utils.Discard()).Fetch(context.Background(), query(), es)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.True(t, opened.Closed())

	empty := &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		return browsertest.NewSession(map[string]string{"https://": "Sin resultados"}), nil
	}}
	r, err := flights.NewBrowserFetcher(empty, extract.NewDefault(), utils.Discard()).Fetch(context.Background(), query(), es)
	require.NoError(t, err)
	require.Nil(t, r)

	bad := query()
	bad.Route.OriginGeo = ""
	_, err = flights.NewBrowserFetcher(empty, extract.NewDefault(), utils.Discard()).Fetch(context.Background(), bad, es)
	require.Error(t, err)
}

func TestDeepLink(t *testing.T) {
	fare := 640.0
	obs := models.PriceObservation{CabinClass: "BUSINESS", TravelDate: "2026-11-02", Price: &fare}
	got := flights.DeepLink(query().Route, obs)
	require.Equal(t, "https://www.google.com/travel/flights#flt=VGO.MEX.2026-11-02*MEX.VGO.2026-11-05;c:EUR;e:3;s:1;sd:1;t:f", got)
}
