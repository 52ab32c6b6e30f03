package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/notify"
	"travel-monitor/storage"
	"travel-monitor/utils"
)

// ErrUnknownRoute is returned when a route filter names no configured route.
var ErrUnknownRoute = errors.New("unknown route")

// RouteFilter narrows a scan.
type RouteFilter struct {
	ID          string
	FlightsOnly bool
	TrainsOnly  bool
}

// SelectRoutes applies f to the configured routes.
func SelectRoutes(routes *config.Routes, f RouteFilter) (flights, trains []models.RouteSpec, err error) {
	if f.ID != "" {
		r, ok := routes.Route(f.ID)
		if !ok {
			return nil, nil, fmt.Errorf("%w: %s", ErrUnknownRoute, f.ID)
		}
		if r.Transport == models.Flight {
			flights = []models.RouteSpec{r}
		} else {
			trains = []models.RouteSpec{r}
		}
	} else {
		flights, trains = routes.Flights, routes.Trains
	}
	if f.TrainsOnly {
		flights = nil
	}
	if f.FlightsOnly {
		trains = nil
	}
	return flights, trains, nil
}

// TravelDates returns the Monday after now (never now itself) and the
// following Mondays, weeks dates in total.
func TravelDates(now time.Time, weeks int) []time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	ahead := (8 - int(day.Weekday())) % 7
	if ahead == 0 {
		ahead = 7
	}
	first := day.AddDate(0, 0, ahead)

	dates := make([]time.Time, 0, weeks)
	for k := 0; k < weeks; k++ {
		dates = append(dates, first.AddDate(0, 0, 7*k))
	}
	return dates
}

// RouteBatch is the observations collected for one route in one run.
type RouteBatch struct {
	Route        models.RouteSpec
	Observations []models.PriceObservation
	Signals      []models.Signal
}

// ScanReport describes one run.
type ScanReport struct {
	RunID       string
	Started     time.Time
	Finished    time.Time
	Batches     []RouteBatch
	Canceled    bool
	StoreErrors int
}

// Observations returns every observation of the run in query order.
func (r *ScanReport) Observations() []models.PriceObservation {
	var out []models.PriceObservation
	for _, b := range r.Batches {
		out = append(out, b.Observations...)
	}
	return out
}

// Signals returns every signal of the run.
func (r *ScanReport) Signals() []models.Signal {
	var out []models.Signal
	for _, b := range r.Batches {
		out = append(out, b.Signals...)
	}
	return out
}

// ScannerConfig wires a Scanner.
type ScannerConfig struct {
	Flights  *Orchestrator
	Trains   *Orchestrator
	Store    storage.HistoryStore
	Notifier notify.Notifier
	Summary  *SummaryService
	// FlightLink builds the buy link of a flight alert.
	FlightLink func(models.RouteSpec, models.PriceObservation) string
	RateLimit  time.Duration
	Company    string
	Interval   time.Duration
	Logger     *utils.Logger
	Now        func() time.Time
}

// Scanner walks routes, dates and cabins sequentially, storing each
// observation as soon as it is made.
type Scanner struct {
	cfg       ScannerConfig
	evaluator AlertEvaluator
	queries   int
}

func NewScanner(cfg ScannerConfig) *Scanner {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = utils.Discard()
	}
	if cfg.Summary == nil {
		cfg.Summary = NewSummaryService(cfg.Logger)
	}
	return &Scanner{cfg: cfg}
}

// Run scans flights then trains. A cancelled ctx stops the run between
// queries; what was collected so far is returned with Canceled set.
func (s *Scanner) Run(ctx context.Context, flights, trains []models.RouteSpec) *ScanReport {
	log := s.cfg.Logger
	report := &ScanReport{RunID: uuid.NewString(), Started: s.cfg.Now()}
	s.queries = 0

	log.Info("Run %s started: %d flight route(s), %d train route(s)", report.RunID, len(flights), len(trains))

	for _, group := range []struct {
		routes []models.RouteSpec
		orch   *Orchestrator
	}{{flights, s.cfg.Flights}, {trains, s.cfg.Trains}} {
		for _, route := range group.routes {
			if group.orch == nil {
				log.Warn("No providers configured for %s routes, skipping %s", route.Transport, route.ID)
				continue
			}
			batch, canceled := s.scanRoute(ctx, group.orch, route, report)
			if canceled {
				report.Canceled = true
				report.Batches = append(report.Batches, batch)
				report.Finished = s.cfg.Now()
				log.Warn("Run %s interrupted after %d observation(s)", report.RunID, len(report.Observations()))
				return report
			}
			batch.Signals = s.evaluator.Evaluate(route, batch.Observations)
			s.alert(ctx, route, batch.Signals)
			report.Batches = append(report.Batches, batch)
		}
	}

	report.Finished = s.cfg.Now()
	s.summarise(ctx, report)
	log.Info("Run %s finished: %d observation(s), %d buy signal(s)", report.RunID, len(report.Observations()), countBuys(report.Signals()))
	return report
}

func (s *Scanner) scanRoute(ctx context.Context, orch *Orchestrator, route models.RouteSpec, report *ScanReport) (RouteBatch, bool) {
	log := s.cfg.Logger
	batch := RouteBatch{Route: route}
	dates := TravelDates(s.cfg.Now(), route.Weeks)

	log.Info("[%s] %s (%d weeks)", route.ID, routeLabel(route), len(dates))
	for k, depart := range dates {
		log.Info("  Week %d/%d: %s", k+1, len(dates), depart.Format(models.DateLayout))
		for _, cabin := range route.Classes {
			if err := s.pace(ctx); err != nil {
				return batch, true
			}

			q := models.Query{Route: route, Cabin: cabin, Depart: depart}
			if route.Transport == models.Flight {
				q.Return = depart.AddDate(0, 0, models.FlightStayDays)
			}

			out := orch.Discover(ctx, q)
			if out.Canceled() {
				return batch, true
			}
			obs := out.Observation
			if err := s.cfg.Store.Append(context.WithoutCancel(ctx), obs); err != nil {
				report.StoreErrors++
				log.Error("    could not store %s %s %s: %v", route.ID, obs.CabinClass, obs.TravelDate, err)
			}
			batch.Observations = append(batch.Observations, obs)
			logObservation(log, cabin, out)
		}
	}
	return batch, false
}

// pace enforces the fixed delay between consecutive queries.
func (s *Scanner) pace(ctx context.Context) error {
	defer func() { s.queries++ }()
	if s.queries == 0 || s.cfg.RateLimit <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.cfg.RateLimit)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Scanner) alert(ctx context.Context, route models.RouteSpec, signals []models.Signal) {
	log := s.cfg.Logger
	for _, sig := range signals {
		label := models.CabinLabel(sig.Cabin)
		if route.Transport == models.Train {
			label = "Tren " + label
		}
		if sig.Kind == models.SignalGap {
			log.Info("  %s %s: %.0fEUR, faltan %.0fEUR para umbral (%.0fEUR)", label, route.ID, sig.Price, sig.Gap, sig.Threshold)
			continue
		}

		log.Info("  *** COMPRAR! %s %s a %.0fEUR ***", label, route.ID, sig.Price)
		if s.cfg.Notifier == nil {
			continue
		}
		link := TrainBuyURL
		if route.Transport == models.Flight && s.cfg.FlightLink != nil {
			link = s.cfg.FlightLink(route, sig.Observation)
		}
		_ = s.cfg.Notifier.Notify(ctx, BuildAlertMessage(s.cfg.Company, route, sig, link))
	}
}

func (s *Scanner) summarise(ctx context.Context, report *ScanReport) {
	if s.cfg.Notifier == nil || len(report.Batches) == 0 {
		return
	}
	summaries := make([]*models.RouteSummary, 0, len(report.Batches))
	for _, b := range report.Batches {
		summaries = append(summaries, s.cfg.Summary.Generate(b.Route, b.Observations))
	}
	msg := BuildSummaryMessage(s.cfg.Company, s.cfg.Interval, report.Finished, summaries)
	// Buys already went out one alert each; gaps ride along with the summary.
	msg.Signals = gapSignals(report.Signals())
	_ = s.cfg.Notifier.Notify(ctx, msg)
}

func gapSignals(signals []models.Signal) []models.Signal {
	var gaps []models.Signal
	for _, sig := range signals {
		if sig.Kind == models.SignalGap {
			gaps = append(gaps, sig)
		}
	}
	return gaps
}

func logObservation(log *utils.Logger, cabin string, out Outcome) {
	label := models.CabinLabel(cabin)
	o := out.Observation
	if !o.HasPrice() {
		log.Info("    %s: no price", label)
		return
	}
	detail := fmt.Sprintf("%s %d stop(s)", o.Airline, o.Stops)
	if o.TransportType == models.Train {
		detail = o.TrainType
		if o.DepartureTime != "" {
			detail += " " + o.DepartureTime + "-" + o.ArrivalTime
		}
		if o.Connection {
			detail += " transbordo"
		}
	}
	if o.Estimated {
		detail += " (estimado)"
	}
	log.Info("    %s: %.0fEUR %s [%s]", label, o.PriceValue(), detail, out.Provider)
}

func countBuys(signals []models.Signal) int {
	n := 0
	for _, s := range signals {
		if s.Kind == models.SignalBuy {
			n++
		}
	}
	return n
}
