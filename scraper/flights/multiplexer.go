// Package flights resolves flight queries against the explore search page,
// probing every configured geo profile and keeping the cheapest fare.
package flights

import (
	"context"
	"fmt"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/utils"
)

// noiseFloor is the lowest converted fare accepted; anything at or below it
// is a parse artifact.
const noiseFloor = 100

// Fetcher runs one query from one geo profile. A nil result with a nil
// error means the page showed no usable price.
type Fetcher interface {
	Fetch(ctx context.Context, q models.Query, profile models.GeoProfile) (*models.ProviderResult, error)
}

// GeoBest is the winning profile of a query. Result is converted to the
// reference currency; LocalPrice keeps the amount as shown to the profile.
type GeoBest struct {
	Profile       models.GeoProfile
	Result        models.ProviderResult
	LocalPrice    float64
	LocalCurrency string
}

// ProfileFailure records why a profile produced no data.
type ProfileFailure struct {
	Profile string
	Err     error
}

func (f ProfileFailure) Error() string {
	return fmt.Sprintf("profile %s: %v", f.Profile, f.Err)
}

func (f ProfileFailure) Unwrap() error { return f.Err }

// Multiplexer fans a query out over geo profiles.
type Multiplexer struct {
	fetcher     Fetcher
	profiles    []models.GeoProfile
	fx          config.FXTable
	parallelism int
	logger      *utils.Logger
}

// NewMultiplexer builds a Multiplexer. parallelism below 1 runs profiles
// one at a time; a nil logger discards output.
func NewMultiplexer(fetcher Fetcher, profiles []models.GeoProfile, fx config.FXTable, parallelism int, logger *utils.Logger) *Multiplexer {
	if parallelism < 1 {
		parallelism = 1
	}
	if parallelism > len(profiles) && len(profiles) > 0 {
		parallelism = len(profiles)
	}
	if logger == nil {
		logger = utils.Discard()
	}
	return &Multiplexer{
		fetcher:     fetcher,
		profiles:    profiles,
		fx:          fx,
		parallelism: parallelism,
		logger:      logger,
	}
}

// Profiles returns the profiles in reduction order.
func (m *Multiplexer) Profiles() []models.GeoProfile {
	return m.profiles
}

type profileOutcome struct {
	result *models.ProviderResult
	err    error
}

// Best returns the cheapest converted fare across profiles, or nil when no
// profile produced one. Profile failures are logged and returned; they never
// make the query fail. Ties go to the earlier profile.
func (m *Multiplexer) Best(ctx context.Context, q models.Query) (*GeoBest, []ProfileFailure) {
	outcomes := make([]profileOutcome, len(m.profiles))

	pool := utils.NewWorkerPool(m.parallelism, 0)
	for i, p := range m.profiles {
		if ctx.Err() != nil {
			outcomes[i].err = ctx.Err()
			continue
		}
		pool.Submit(func() {
			res, err := m.fetch(ctx, q, p)
			outcomes[i] = profileOutcome{result: res, err: err}
		})
	}
	pool.Wait()

	var (
		best     *GeoBest
		failures []ProfileFailure
	)
	for i, p := range m.profiles {
		o := outcomes[i]
		if o.err != nil {
			m.logger.Warn("      %s: error (%v)", p.ID, o.err)
			failures = append(failures, ProfileFailure{Profile: p.ID, Err: o.err})
			continue
		}
		if o.result == nil || o.result.Price <= 0 {
			m.logger.Debug("      %s: no data", p.ID)
			continue
		}

		currency := o.result.Currency
		if currency == "" {
			currency = p.Currency
		}
		converted, err := m.fx.ToReference(o.result.Price, currency)
		if err != nil {
			m.logger.Warn("      %s: %v", p.ID, err)
			failures = append(failures, ProfileFailure{Profile: p.ID, Err: err})
			continue
		}

		tag := fmt.Sprintf("%s:%.0f%s", p.ID, o.result.Price, currency)
		switch {
		case converted <= noiseFloor:
			tag += " (ignored)"
		case best == nil || converted < best.Result.Price:
			r := *o.result
			r.Price = converted
			r.Currency = models.ReferenceCurrency
			best = &GeoBest{Profile: p, Result: r, LocalPrice: o.result.Price, LocalCurrency: currency}
			tag += " *BEST*"
		}
		m.logger.Info("      %s", tag)
	}

	if best != nil {
		m.logger.Info("      >> Best: %.0f%s via %s", best.Result.Price, models.ReferenceCurrency, best.Profile.ID)
	} else {
		m.logger.Info("      No data from any location")
	}
	return best, failures
}

// fetch isolates one profile: a panic in the fetcher becomes an error.
func (m *Multiplexer) fetch(ctx context.Context, q models.Query, p models.GeoProfile) (res *models.ProviderResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return m.fetcher.Fetch(ctx, q, p)
}
