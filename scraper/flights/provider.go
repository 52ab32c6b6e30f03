package flights

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"travel-monitor/models"
	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/extract"
	"travel-monitor/scraper/tfs"
	"travel-monitor/utils"
)

const homeURL = "https://www.google.com/travel/flights"

// BrowserFetcher loads the explore page in a fresh emulated session per
// profile and extracts the destination's fare.
type BrowserFetcher struct {
	launcher  browser.Launcher
	extractor *extract.Extractor
	logger    *utils.Logger
}

// NewBrowserFetcher builds a fetcher on top of launcher.
func NewBrowserFetcher(launcher browser.Launcher, extractor *extract.Extractor, logger *utils.Logger) *BrowserFetcher {
	if logger == nil {
		logger = utils.Discard()
	}
	return &BrowserFetcher{launcher: launcher, extractor: extractor, logger: logger}
}

// Fetch opens a session as profile, accepts the consent banner, loads the
// explore URL and reads the first fare shown for the destination.
func (f *BrowserFetcher) Fetch(ctx context.Context, q models.Query, profile models.GeoProfile) (*models.ProviderResult, error) {
	explore, err := tfs.ExploreURL(Params(q), profile.Language, profile.Currency)
	if err != nil {
		return nil, err
	}

	s, err := f.launcher.Open(ctx, browser.Options{
		Locale:      profile.Locale,
		Timezone:    profile.Timezone,
		Geolocation: true,
		Latitude:    profile.Latitude,
		Longitude:   profile.Longitude,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()

	home := url.Values{}
	home.Set("hl", profile.Language)
	home.Set("curr", profile.Currency)
	if err := s.Navigate(ctx, homeURL+"?"+home.Encode()); err != nil {
		return nil, err
	}
	if browser.AcceptCookies(ctx, s, nil, browser.ConsentLabels) {
		f.logger.Debug("      %s: cookie banner accepted", profile.ID)
	}

	if err := s.Navigate(ctx, explore); err != nil {
		return nil, err
	}
	text, err := s.Text(ctx)
	if err != nil {
		return nil, err
	}

	rows := f.extractor.Flight(text, q.Route.DestinationName, profile.Currency)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// Params turns a query into encoder input.
func Params(q models.Query) tfs.Params {
	return tfs.Params{
		OriginGeo:      q.Route.OriginGeo,
		DestinationGeo: q.Route.DestinationGeo,
		Depart:         q.Depart.Format(models.DateLayout),
		Return:         q.Return.Format(models.DateLayout),
		Cabin:          q.Cabin,
	}
}

// Provider is the single flight price source. It delegates to the
// multiplexer and reports "no data" rather than failing when every profile
// comes back empty.
type Provider struct {
	mux *Multiplexer
}

// NewProvider wraps mux.
func NewProvider(mux *Multiplexer) *Provider {
	return &Provider{mux: mux}
}

func (p *Provider) Name() string { return "google-flights" }

// Attempt returns the best fare across profiles.
func (p *Provider) Attempt(ctx context.Context, q models.Query) (*models.ProviderResult, error) {
	label := models.CabinLabel(q.Cabin)
	p.mux.logger.Info("    [%s] %s -> %s", label, q.Depart.Format(models.DateLayout), q.Return.Format(models.DateLayout))

	best, failures := p.mux.Best(ctx, q)
	if best != nil {
		r := best.Result
		return &r, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, f := range failures {
		if errors.Is(f, tfs.ErrInvalidParams) {
			return nil, f
		}
	}
	if n := len(p.mux.Profiles()); n > 0 && len(failures) == n {
		p.mux.logger.Warn("    every location failed for %s %s", q.Route.ID, label)
	}
	return nil, nil
}

// DeepLink is the search link sent with buy alerts for obs.
func DeepLink(route models.RouteSpec, obs models.PriceObservation) string {
	depart := obs.TravelDate
	ret := depart
	if d, err := time.Parse(models.DateLayout, depart); err == nil {
		ret = d.AddDate(0, 0, models.FlightStayDays).Format(models.DateLayout)
	}
	cabin := strings.ToLower(obs.CabinClass)
	if cabin == "" {
		cabin = models.CabinEconomy
	}
	return tfs.FlightsDeepLink(route.Origin, route.Destination, depart, ret, cabin)
}
