package trains

import (
	"context"
	"fmt"
	"time"

	"travel-monitor/models"
	"travel-monitor/scraper/browser"
)

const renfeHome = "https://www.renfe.com/es/es"

var (
	renfeConsentSelectors = []string{"button#onetrust-accept-btn-handler", "#cookies-accept"}
	renfeConsentLabels    = []string{"Aceptar todas", "Aceptar cookies", "Aceptar"}

	renfeOriginInput = "#origin, input[placeholder*='Origen'], input[aria-label*='Origen'], input[name*='origin']"
	renfeDestInput   = "#destination, input[placeholder*='Destino'], input[aria-label*='Destino'], input[name*='destin']"
	renfeDateInput   = "input[placeholder*='Ida'], input[aria-label*='ida'], input[name*='fecha'], input[type='date']"

	renfeSearchLabels    = []string{"Buscar billete", "Buscar"}
	renfeSearchSelectors = []string{"button[type='submit']", "#searchButton"}
)

// Renfe fills the search form on the operator's home page like a person
// would: station autocomplete, date, search.
type Renfe struct {
	deps Deps
}

// NewRenfe builds the primary train provider.
func NewRenfe(d Deps) *Renfe {
	return &Renfe{deps: d.withDefaults()}
}

func (r *Renfe) Name() string { return "renfe" }

// Attempt searches one date. Form steps that cannot be completed are
// failures; a missing date field is tolerated because some flows preset it.
func (r *Renfe) Attempt(ctx context.Context, q models.Query) (*models.ProviderResult, error) {
	origin := r.deps.Stations.Lookup(q.Route.OriginCode).RenfeName
	if origin == "" {
		origin = q.Route.OriginName
	}
	dest := r.deps.Stations.Lookup(q.Route.DestinationCode).RenfeName
	if dest == "" {
		dest = q.Route.DestinationName
	}

	s, err := r.deps.Launcher.Open(ctx, spanishClient)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Navigate(ctx, renfeHome); err != nil {
		return nil, err
	}
	browser.AcceptCookies(ctx, s, renfeConsentSelectors, renfeConsentLabels)

	if err := r.pickStation(ctx, s, renfeOriginInput, origin); err != nil {
		return nil, fmt.Errorf("origin field: %w", err)
	}
	if err := r.pickStation(ctx, s, renfeDestInput, dest); err != nil {
		return nil, fmt.Errorf("destination field: %w", err)
	}

	if err := s.Fill(ctx, renfeDateInput, q.Depart.Format("02/01/2006")); err == nil {
		_ = s.Press(ctx, browser.KeyEnter)
	} else {
		r.deps.Logger.Debug("        renfe: date field skipped (%v)", err)
	}

	clicked, _ := s.ClickText(ctx, "button", renfeSearchLabels...)
	if !clicked {
		if clicked, _ = s.ClickFirst(ctx, renfeSearchSelectors...); !clicked {
			return nil, fmt.Errorf("search button not found")
		}
	}

	if err := s.Pause(ctx, r.deps.ResultsWait); err != nil {
		return nil, err
	}
	return readFares(ctx, s, r.deps.Extractor, q.Cabin)
}

// pickStation types the station name and selects it from the autocomplete
// list, falling back to the keyboard when no suggestion is clickable.
func (r *Renfe) pickStation(ctx context.Context, s browser.Session, input, name string) error {
	typed := shortName(name)
	if err := s.Fill(ctx, input, typed); err != nil {
		return err
	}
	if err := s.Pause(ctx, 1500*time.Millisecond); err != nil {
		return err
	}
	if ok, _ := s.ClickText(ctx, "li", typed); ok {
		return nil
	}
	if err := s.Press(ctx, browser.KeyArrowDown); err != nil {
		return err
	}
	return s.Press(ctx, browser.KeyEnter)
}
