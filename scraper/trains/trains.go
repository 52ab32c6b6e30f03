// Package trains holds the train price sources, tried in order by the
// fallback orchestrator: the operator's own site, then two aggregators.
package trains

import (
	"context"
	"strings"
	"time"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/extract"
	"travel-monitor/utils"
)

// Deps are shared by every train provider.
type Deps struct {
	Launcher  browser.Launcher
	Extractor *extract.Extractor
	Stations  config.StationTable
	Logger    *utils.Logger
	// ResultsWait is how long a results page is given to render prices.
	ResultsWait time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Extractor == nil {
		d.Extractor = extract.NewDefault()
	}
	if d.Stations == nil {
		d.Stations = config.DefaultStations()
	}
	if d.Logger == nil {
		d.Logger = utils.Discard()
	}
	return d
}

// spanishClient is the session every train site is visited with.
var spanishClient = browser.Options{Locale: "es-ES", Timezone: "Europe/Madrid"}

// readFares extracts the fares of the current page and returns the first
// row the tier policy kept.
func readFares(ctx context.Context, s browser.Session, ex *extract.Extractor, cabin string) (*models.ProviderResult, error) {
	text, err := s.Text(ctx)
	if err != nil {
		return nil, err
	}
	rows := ex.Train(text, cabin)
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

// shortName drops the "(Todas)" style suffix used by station pickers.
func shortName(name string) string {
	if i := strings.Index(name, " ("); i > 0 {
		return name[:i]
	}
	return name
}
