// Package dashboard serves a read-only JSON view of the price history.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"travel-monitor/config"
	"travel-monitor/models"
	"travel-monitor/services"
	"travel-monitor/storage"
	"travel-monitor/utils"
)

// Server answers dashboard requests from the history store.
type Server struct {
	routes  *config.Routes
	store   storage.HistoryStore
	summary *services.SummaryService
	logger  *utils.Logger
}

func New(routes *config.Routes, store storage.HistoryStore, logger *utils.Logger) *Server {
	if logger == nil {
		logger = utils.Discard()
	}
	return &Server{
		routes:  routes,
		store:   store,
		summary: services.NewSummaryService(logger),
		logger:  logger,
	}
}

// Handler returns the dashboard router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api/routes", func(r chi.Router) {
		r.Get("/", s.handleRoutes)
		r.Get("/{id}/history", s.handleHistory)
		r.Get("/{id}/summary", s.handleSummary)
	})
	return r
}

// Run serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Dashboard listening on http://%s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Dashboard shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type errorResponse struct {
	Error string `json:"error"`
}

type routeView struct {
	ID          string               `json:"id"`
	Transport   models.TransportType `json:"transport_type"`
	Label       string               `json:"label"`
	Origin      string               `json:"origin"`
	Destination string               `json:"destination"`
	Classes     []string             `json:"classes"`
	Thresholds  map[string]float64   `json:"thresholds"`
	Weeks       int                  `json:"weeks"`
}

type historyResponse struct {
	RouteID      string                    `json:"route_id"`
	Count        int                       `json:"count"`
	Observations []models.PriceObservation `json:"observations"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRoutes(w http.ResponseWriter, _ *http.Request) {
	all := s.routes.All()
	out := make([]routeView, 0, len(all))
	for _, r := range all {
		out = append(out, viewOf(r))
	}
	writeJSON(w, http.StatusOK, out)
}

// handleHistory lists stored observations of one route, oldest first.
// Optional query parameters: cabin, limit (most recent n rows).
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	route, ok := s.route(w, r)
	if !ok {
		return
	}
	history, ok := s.history(w, r, route)
	if !ok {
		return
	}

	if cabin := strings.TrimSpace(r.URL.Query().Get("cabin")); cabin != "" {
		want := models.NormalizeCabin(cabin)
		kept := history[:0]
		for _, o := range history {
			if o.CabinClass == want {
				kept = append(kept, o)
			}
		}
		history = kept
	}
	if limit, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && limit >= 0 && limit < len(history) {
		history = history[len(history)-limit:]
	}
	if history == nil {
		history = []models.PriceObservation{}
	}

	writeJSON(w, http.StatusOK, historyResponse{RouteID: route.ID, Count: len(history), Observations: history})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	route, ok := s.route(w, r)
	if !ok {
		return
	}
	history, ok := s.history(w, r, route)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.summary.Generate(route, history))
}

func (s *Server) route(w http.ResponseWriter, r *http.Request) (models.RouteSpec, bool) {
	id := chi.URLParam(r, "id")
	route, ok := s.routes.Route(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown route " + id})
	}
	return route, ok
}

func (s *Server) history(w http.ResponseWriter, r *http.Request, route models.RouteSpec) ([]models.PriceObservation, bool) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	history, err := s.store.History(ctx, route.Transport, route.ID)
	if err != nil {
		s.logger.Error("[dashboard] history %s: %v", route.ID, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return nil, false
	}
	return history, true
}

func viewOf(r models.RouteSpec) routeView {
	v := routeView{
		ID:          r.ID,
		Transport:   r.Transport,
		Label:       r.ID,
		Origin:      r.Origin,
		Destination: r.Destination,
		Classes:     r.Classes,
		Thresholds:  make(map[string]float64, len(r.Classes)),
		Weeks:       r.Weeks,
	}
	if r.Transport == models.Train {
		v.Origin, v.Destination = r.OriginCode, r.DestinationCode
	}
	from, to := r.OriginName, r.DestinationName
	if from != "" && to != "" {
		v.Label = from + " -> " + to
	}
	for _, c := range r.Classes {
		v.Thresholds[c] = r.Threshold(c)
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
