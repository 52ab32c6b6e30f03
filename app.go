package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"travel-monitor/config"
	"travel-monitor/dashboard"
	"travel-monitor/models"
	"travel-monitor/notify"
	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/extract"
	"travel-monitor/scraper/flights"
	"travel-monitor/scraper/trains"
	"travel-monitor/services"
	"travel-monitor/storage"
	"travel-monitor/utils"
)

// filterFlags are the route selection flags shared by every command.
type filterFlags struct {
	route   string
	flights bool
	trains  bool
}

func (f filterFlags) resolve() (services.RouteFilter, error) {
	if f.flights && f.trains {
		return services.RouteFilter{}, errors.New("--flights and --trains are mutually exclusive")
	}
	return services.RouteFilter{ID: f.route, FlightsOnly: f.flights, TrainsOnly: f.trains}, nil
}

// app holds what every command needs: configuration, routes and the
// history store.
type app struct {
	cfg    *config.Config
	routes *config.Routes
	logger *utils.Logger
	store  storage.HistoryStore
	csv    *storage.CSVStore
}

func newApp(ctx context.Context) (*app, error) {
	logger := utils.NewLogger()
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	routes, err := config.LoadRoutes(cfg.RoutesFile)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, routes: routes, logger: logger}
	switch cfg.StorageBackend {
	case config.BackendPostgres:
		pg, err := storage.NewPostgresStore(ctx, cfg.DSN())
		if err != nil {
			logger.Error("Failed to connect to PostgreSQL: %v", err)
			return nil, err
		}
		a.store = pg
	default:
		csv, err := storage.NewCSVStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		a.store, a.csv = csv, csv
	}
	return a, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("Closing history store: %v", err)
	}
}

// migrate imports the legacy single-route file. Only the CSV backend keeps
// flights.csv, so PostgreSQL skips it.
func (a *app) migrate() (int, error) {
	if a.csv == nil {
		a.logger.Debug("Legacy migration skipped: backend is %s", a.cfg.StorageBackend)
		return 0, nil
	}
	n, err := a.csv.MigrateLegacy(a.cfg.LegacyPath, a.cfg.LegacyRouteID)
	if err != nil {
		return 0, fmt.Errorf("legacy migration: %w", err)
	}
	if n > 0 {
		a.logger.Info("Migrated %d legacy row(s) from %s as %s", n, a.cfg.LegacyPath, a.cfg.LegacyRouteID)
	}
	return n, nil
}

// scanner wires providers and notifiers. The returned func releases the
// notifier connections.
func (a *app) scanner() (*services.Scanner, func()) {
	cfg, routes, logger := a.cfg, a.routes, a.logger

	launcher := browser.NewChrome(cfg, logger)
	policy := extract.DefaultTierPolicy()
	policy.PremiumMarkup = cfg.PremiumMarkup
	extractor := extract.New(extract.DefaultVocabulary(), policy)

	mux := flights.NewMultiplexer(flights.NewBrowserFetcher(launcher, extractor, logger), routes.GeoProfiles, routes.FX, cfg.GeoParallelism, logger)
	flightChain := services.NewOrchestrator(logger, flights.NewProvider(mux))

	deps := trains.Deps{
		Launcher:    launcher,
		Extractor:   extractor,
		Stations:    routes.Stations,
		Logger:      logger,
		ResultsWait: cfg.SettleDelay,
	}
	trainChain := services.NewOrchestrator(logger, trains.NewRenfe(deps), trains.NewTrainline(deps), trains.NewOmio(deps))

	notifiers := []notify.Notifier{
		notify.NewEmailNotifier(routes.Email, routes.Company, cfg, logger),
		notify.NewDesktopNotifier(routes.Company),
	}
	release := func() {}
	if k := notify.NewKafkaNotifier(cfg.KafkaBrokers, cfg.KafkaTopic); k != nil {
		notifiers = append(notifiers, k)
		release = func() {
			if err := k.Close(); err != nil {
				logger.Warn("Closing kafka writer: %v", err)
			}
		}
	}

	return services.NewScanner(services.ScannerConfig{
		Flights:    flightChain,
		Trains:     trainChain,
		Store:      a.store,
		Notifier:   notify.NewDispatcher(logger, notifiers...),
		FlightLink: flights.DeepLink,
		RateLimit:  cfg.RateLimit(),
		Company:    routes.Company,
		Interval:   checkInterval(cfg, routes),
		Logger:     logger,
	}), release
}

// check runs one scan over the selected routes.
func (a *app) check(ctx context.Context, f services.RouteFilter) (*services.ScanReport, error) {
	flightRoutes, trainRoutes, err := services.SelectRoutes(a.routes, f)
	if err != nil {
		return nil, err
	}
	scanner, release := a.scanner()
	defer release()
	return a.run(ctx, scanner, flightRoutes, trainRoutes), nil
}

func (a *app) run(ctx context.Context, scanner *services.Scanner, flightRoutes, trainRoutes []models.RouteSpec) *services.ScanReport {
	a.logger.Info("=== %s Travel Monitor check starting ===", a.routes.Company)
	if _, err := a.migrate(); err != nil {
		a.logger.Error("%v", err)
	}
	report := scanner.Run(ctx, flightRoutes, trainRoutes)
	if report.StoreErrors > 0 {
		a.logger.Warn("%d observation(s) could not be stored", report.StoreErrors)
	}
	return report
}

// daemon repeats check until ctx is cancelled.
func (a *app) daemon(ctx context.Context, f services.RouteFilter) error {
	flightRoutes, trainRoutes, err := services.SelectRoutes(a.routes, f)
	if err != nil {
		return err
	}
	scanner, release := a.scanner()
	defer release()

	interval := checkInterval(a.cfg, a.routes)
	a.logger.Info("Daemon mode: checking every %s", interval)
	for {
		report := a.run(ctx, scanner, flightRoutes, trainRoutes)
		if report.Canceled {
			return nil
		}

		next := time.Now().Add(interval)
		a.logger.Info("Next check at %s", next.Format("15:04"))
		t := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			t.Stop()
			a.logger.Info("Daemon stopped")
			return nil
		case <-t.C:
		}
	}
}

func (a *app) printSummary(ctx context.Context, w io.Writer, f services.RouteFilter) error {
	flightRoutes, trainRoutes, err := services.SelectRoutes(a.routes, f)
	if err != nil {
		return err
	}
	svc := services.NewSummaryService(a.logger)
	var summaries []*models.RouteSummary
	for _, route := range slices.Concat(flightRoutes, trainRoutes) {
		history, err := a.store.History(ctx, route.Transport, route.ID)
		if err != nil {
			return fmt.Errorf("history %s: %w", route.ID, err)
		}
		summaries = append(summaries, svc.Generate(route, history))
	}
	svc.Print(w, summaries)
	return nil
}

func (a *app) serve(ctx context.Context, addr string) error {
	return dashboard.New(a.routes, a.store, a.logger).Run(ctx, addr)
}

// checkInterval prefers CHECK_INTERVAL over the routes file.
func checkInterval(cfg *config.Config, routes *config.Routes) time.Duration {
	if cfg.CheckInterval > 0 {
		return cfg.CheckInterval
	}
	return routes.CheckInterval
}
