package trains

import (
	"context"
	"net/url"

	"travel-monitor/models"
	"travel-monitor/scraper/browser"
)

var aggregatorConsentLabels = []string{"Accept", "Aceptar", "Accept all"}

// Trainline opens the aggregator's results page directly from station URNs.
type Trainline struct {
	deps Deps
}

// NewTrainline builds the secondary train provider.
func NewTrainline(d Deps) *Trainline {
	return &Trainline{deps: d.withDefaults()}
}

func (t *Trainline) Name() string { return "trainline" }

// ResultsURL is the results page for q, or "" when a station has no URN.
func (t *Trainline) ResultsURL(q models.Query) string {
	from := t.deps.Stations.Lookup(q.Route.OriginCode).TrainlineURN
	to := t.deps.Stations.Lookup(q.Route.DestinationCode).TrainlineURN
	if from == "" || to == "" {
		return ""
	}
	v := url.Values{}
	v.Set("origin", from)
	v.Set("destination", to)
	v.Set("outwardDate", q.Depart.Format(models.DateLayout)+"T06:00:00")
	v.Set("outwardDateType", "departAfter")
	v.Set("journeySearchType", "single")
	v.Set("passengers[]", "1996-01-01")
	v.Set("lang", "es")
	return "https://www.thetrainline.com/book/results?" + v.Encode()
}

func (t *Trainline) Attempt(ctx context.Context, q models.Query) (*models.ProviderResult, error) {
	u := t.ResultsURL(q)
	if u == "" {
		t.deps.Logger.Debug("        trainline: no station mapping for %s", q.Route.ID)
		return nil, nil
	}
	return visitResults(ctx, t.deps, u, q.Cabin)
}

// Omio is the last resort: the aggregator's route page for the date.
type Omio struct {
	deps Deps
}

// NewOmio builds the tertiary train provider.
func NewOmio(d Deps) *Omio {
	return &Omio{deps: d.withDefaults()}
}

func (o *Omio) Name() string { return "omio" }

// ResultsURL is the route page for q, or "" when a station has no slug.
func (o *Omio) ResultsURL(q models.Query) string {
	from := o.deps.Stations.Lookup(q.Route.OriginCode).OmioSlug
	to := o.deps.Stations.Lookup(q.Route.DestinationCode).OmioSlug
	if from == "" || to == "" {
		return ""
	}
	v := url.Values{}
	v.Set("departureDate", q.Depart.Format(models.DateLayout))
	return "https://www.omio.es/trenes/" + url.PathEscape(from) + "/" + url.PathEscape(to) + "?" + v.Encode()
}

func (o *Omio) Attempt(ctx context.Context, q models.Query) (*models.ProviderResult, error) {
	u := o.ResultsURL(q)
	if u == "" {
		o.deps.Logger.Debug("        omio: no station mapping for %s", q.Route.ID)
		return nil, nil
	}
	return visitResults(ctx, o.deps, u, q.Cabin)
}

func visitResults(ctx context.Context, d Deps, u, cabin string) (*models.ProviderResult, error) {
	s, err := d.Launcher.Open(ctx, spanishClient)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Navigate(ctx, u); err != nil {
		return nil, err
	}
	browser.AcceptCookies(ctx, s, nil, aggregatorConsentLabels)
	if err := s.Pause(ctx, d.ResultsWait); err != nil {
		return nil, err
	}
	return readFares(ctx, s, d.Extractor, cabin)
}
