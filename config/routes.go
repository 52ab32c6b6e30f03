package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"

	"travel-monitor/models"
	"travel-monitor/scraper/tfs"
)

// ErrNoRoutes is returned when the routes file defines neither flights nor
// trains.
var ErrNoRoutes = errors.New("config: no routes configured")

// Routes is the monitored set loaded from the routes file, with defaults
// applied. It is read-only once loaded.
type Routes struct {
	Company       string
	Currency      string
	CheckInterval time.Duration
	Email         Email
	Flights       []models.RouteSpec
	Trains        []models.RouteSpec
	GeoProfiles   []models.GeoProfile
	FX            FXTable
	Stations      StationTable
}

// Email holds SMTP delivery settings.
type Email struct {
	Enabled    bool
	Recipients []string
	From       string
	SMTPHost   string
	SMTPPort   int
	SMTPUser   string
	SMTPPass   string
}

// Configured reports whether mail can actually be sent.
func (e Email) Configured() bool {
	return e.Enabled && e.SMTPUser != "" && e.SMTPPass != "" && len(e.Recipients) > 0
}

// Route returns the flight or train route with the given id.
func (r *Routes) Route(id string) (models.RouteSpec, bool) {
	for _, list := range [][]models.RouteSpec{r.Flights, r.Trains} {
		for _, rt := range list {
			if rt.ID == id {
				return rt, true
			}
		}
	}
	return models.RouteSpec{}, false
}

// All returns flights followed by trains.
func (r *Routes) All() []models.RouteSpec {
	out := make([]models.RouteSpec, 0, len(r.Flights)+len(r.Trains))
	out = append(out, r.Flights...)
	return append(out, r.Trains...)
}

type routesFile struct {
	Company            string              `json:"company"`
	Currency           string              `json:"currency"`
	CheckIntervalHours float64             `json:"check_interval_hours"`
	Email              emailFile           `json:"email"`
	Flights            []flightFile        `json:"flights"`
	Trains             []trainFile         `json:"trains"`
	GeoProfiles        []models.GeoProfile `json:"geo_profiles"`
	ExchangeRates      map[string]float64  `json:"exchange_rates"`
	Stations           map[string]Station  `json:"stations"`

	// Single-route layout kept for older files.
	Origin          string               `json:"origin"`
	OriginName      string               `json:"origin_name"`
	OriginGeo       string               `json:"origin_geo"`
	Destination     string               `json:"destination"`
	DestinationName string               `json:"destination_name"`
	DestinationGeo  string               `json:"destination_geo"`
	Alerts          map[string]float64   `json:"alerts"`
	Filters         *models.RouteFilters `json:"filters"`
	Adults          int                  `json:"adults"`
}

type emailFile struct {
	Enabled    *bool    `json:"enabled"`
	Recipients []string `json:"recipients"`
	To         any      `json:"to"`
	From       string   `json:"from"`
	SMTPHost   string   `json:"smtp_host"`
	SMTPPort   int      `json:"smtp_port"`
	SMTPUser   string   `json:"smtp_user"`
	SMTPPass   string   `json:"smtp_password"`
}

type flightFile struct {
	ID              string               `json:"id"`
	Origin          string               `json:"origin"`
	OriginName      string               `json:"origin_name"`
	OriginGeo       string               `json:"origin_geo"`
	Destination     string               `json:"destination"`
	DestinationName string               `json:"destination_name"`
	DestinationGeo  string               `json:"destination_geo"`
	Classes         []string             `json:"classes"`
	Alerts          map[string]float64   `json:"alerts"`
	Filters         *models.RouteFilters `json:"filters"`
	Weeks           int                  `json:"weeks"`
	Adults          int                  `json:"adults"`
}

type trainFile struct {
	ID              string             `json:"id"`
	OriginName      string             `json:"origin_name"`
	OriginCode      string             `json:"origin_code"`
	DestinationName string             `json:"destination_name"`
	DestinationCode string             `json:"destination_code"`
	Classes         []string           `json:"classes"`
	Alerts          map[string]float64 `json:"alerts"`
	Weeks           int                `json:"weeks"`
}

const (
	defaultWeeks    = 12
	defaultCompany  = "Redegal"
	defaultInterval = 2 * time.Hour
)

// LoadRoutes reads the routes file at path, merges <name>.local.<ext> over
// it when present, applies defaults and validates every route.
func LoadRoutes(path string) (*Routes, error) {
	raw, err := readRoutesFile(path)
	if err != nil {
		return nil, err
	}
	routes, err := raw.build()
	if err != nil {
		return nil, err
	}
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	return routes, nil
}

// ParseRoutes builds Routes from a single json5 document.
func ParseRoutes(data []byte) (*Routes, error) {
	var raw routesFile
	if err := json5.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse routes: %w", err)
	}
	routes, err := raw.build()
	if err != nil {
		return nil, err
	}
	if err := routes.Validate(); err != nil {
		return nil, err
	}
	return routes, nil
}

func readRoutesFile(path string) (routesFile, error) {
	var out routesFile

	base, err := os.ReadFile(path)
	if err != nil {
		return out, fmt.Errorf("config: read routes %q: %w", path, err)
	}
	if err := json5.Unmarshal(base, &out); err != nil {
		return out, fmt.Errorf("config: parse routes %q: %w", path, err)
	}

	local := localPath(path)
	override, err := os.ReadFile(local)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("config: read routes %q: %w", local, err)
	}
	var patch routesFile
	if err := json5.Unmarshal(override, &patch); err != nil {
		return out, fmt.Errorf("config: parse routes %q: %w", local, err)
	}
	if err := mergo.Merge(&out, patch, mergo.WithOverride); err != nil {
		return out, fmt.Errorf("config: merge %q: %w", local, err)
	}
	return out, nil
}

// localPath turns "routes.json5" into "routes.local.json5".
func localPath(path string) string {
	dir, base := filepath.Dir(path), filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+".local"+ext)
}

func (f routesFile) build() (*Routes, error) {
	r := &Routes{
		Company:       orDefault(f.Company, defaultCompany),
		Currency:      orDefault(f.Currency, models.ReferenceCurrency),
		CheckInterval: defaultInterval,
		Email:         f.Email.build(),
		GeoProfiles:   DefaultGeoProfiles(),
		FX:            DefaultFXTable(),
		Stations:      DefaultStations(),
	}
	if f.CheckIntervalHours > 0 {
		r.CheckInterval = time.Duration(f.CheckIntervalHours * float64(time.Hour))
	}
	if len(f.GeoProfiles) > 0 {
		r.GeoProfiles = f.GeoProfiles
	}
	if len(f.ExchangeRates) > 0 {
		rates := DefaultFXRates()
		for code, rate := range f.ExchangeRates {
			rates[strings.ToUpper(code)] = rate
		}
		r.FX = NewFXTable(models.ReferenceCurrency, rates)
	}
	for code, st := range f.Stations {
		st.Code = code
		r.Stations[code] = st
	}

	for _, fl := range f.Flights {
		r.Flights = append(r.Flights, fl.build())
	}
	if len(r.Flights) == 0 && f.Origin != "" {
		r.Flights = append(r.Flights, flightFile{
			ID:              f.Origin + "-" + f.Destination,
			Origin:          f.Origin,
			OriginName:      orDefault(f.OriginName, f.Origin),
			OriginGeo:       f.OriginGeo,
			Destination:     f.Destination,
			DestinationName: orDefault(f.DestinationName, f.Destination),
			DestinationGeo:  f.DestinationGeo,
			Alerts:          f.Alerts,
			Filters:         f.Filters,
			Adults:          f.Adults,
		}.build())
	}
	for _, tr := range f.Trains {
		r.Trains = append(r.Trains, tr.build())
	}

	if len(r.Flights) == 0 && len(r.Trains) == 0 {
		return nil, ErrNoRoutes
	}
	return r, nil
}

func (e emailFile) build() Email {
	out := Email{
		Enabled:    true,
		Recipients: e.Recipients,
		From:       orDefault(e.From, "monitor@redegal.com"),
		SMTPHost:   orDefault(e.SMTPHost, "smtp.gmail.com"),
		SMTPPort:   e.SMTPPort,
		SMTPUser:   e.SMTPUser,
		SMTPPass:   e.SMTPPass,
	}
	if e.Enabled != nil {
		out.Enabled = *e.Enabled
	}
	if out.SMTPPort == 0 {
		out.SMTPPort = 587
	}
	if len(out.Recipients) == 0 {
		switch to := e.To.(type) {
		case string:
			if to != "" {
				out.Recipients = []string{to}
			}
		case []any:
			for _, v := range to {
				if s, ok := v.(string); ok && s != "" {
					out.Recipients = append(out.Recipients, s)
				}
			}
		}
	}
	return out
}

func (f flightFile) build() models.RouteSpec {
	r := models.RouteSpec{
		ID:              f.ID,
		Transport:       models.Flight,
		Origin:          f.Origin,
		OriginName:      f.OriginName,
		OriginGeo:       f.OriginGeo,
		Destination:     f.Destination,
		DestinationName: f.DestinationName,
		DestinationGeo:  f.DestinationGeo,
		Classes:         cabins(f.Classes),
		Alerts:          alertKeys(f.Alerts),
		Filters:         models.RouteFilters{MaxStops: 1, MaxDurationHours: 16},
		Weeks:           f.Weeks,
		Adults:          f.Adults,
	}
	if len(r.Classes) == 0 {
		r.Classes = []string{models.CabinEconomy, models.CabinBusiness}
	}
	if r.Alerts == nil {
		r.Alerts = map[string]float64{"economy_max": 800, "business_max": 2200}
	}
	if f.Filters != nil {
		r.Filters = *f.Filters
	}
	if r.Weeks <= 0 {
		r.Weeks = defaultWeeks
	}
	if r.Adults <= 0 {
		r.Adults = 1
	}
	return r
}

func (f trainFile) build() models.RouteSpec {
	r := models.RouteSpec{
		ID:              f.ID,
		Transport:       models.Train,
		OriginName:      f.OriginName,
		OriginCode:      f.OriginCode,
		DestinationName: f.DestinationName,
		DestinationCode: f.DestinationCode,
		Classes:         cabins(f.Classes),
		Alerts:          alertKeys(f.Alerts),
		Weeks:           f.Weeks,
		Adults:          1,
	}
	if len(r.Classes) == 0 {
		r.Classes = []string{models.CabinTurista, models.CabinPreferente}
	}
	if r.Alerts == nil {
		r.Alerts = map[string]float64{"turista_max": 30, "preferente_max": 60}
	}
	if r.Weeks <= 0 {
		r.Weeks = defaultWeeks
	}
	return r
}

// cabins lower-cases class names so "ECONOMY" and "economy" select the same
// thresholds and labels.
func cabins(classes []string) []string {
	if classes == nil {
		return nil
	}
	out := make([]string, len(classes))
	for i, c := range classes {
		out[i] = strings.ToLower(strings.TrimSpace(c))
	}
	return out
}

func alertKeys(alerts map[string]float64) map[string]float64 {
	if alerts == nil {
		return nil
	}
	out := make(map[string]float64, len(alerts))
	for k, v := range alerts {
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// Validate checks every route and the lookup tables. Any error here is fatal
// at startup.
func (r *Routes) Validate() error {
	seen := make(map[string]bool)
	for _, rt := range r.All() {
		if strings.TrimSpace(rt.ID) == "" {
			return fmt.Errorf("config: %s route without id", rt.Transport)
		}
		if seen[rt.ID] {
			return fmt.Errorf("config: duplicate route id %q", rt.ID)
		}
		seen[rt.ID] = true

		for _, cabin := range rt.Classes {
			if strings.TrimSpace(cabin) == "" {
				return fmt.Errorf("config: route %s: empty cabin", rt.ID)
			}
		}

		switch rt.Transport {
		case models.Flight:
			if rt.DestinationName == "" {
				return fmt.Errorf("config: route %s: destination_name is required", rt.ID)
			}
			day := time.Now().Format(models.DateLayout)
			for _, cabin := range rt.Classes {
				if _, err := tfs.Encode(tfs.Params{
					OriginGeo:      rt.OriginGeo,
					DestinationGeo: rt.DestinationGeo,
					Depart:         day,
					Return:         day,
					Cabin:          cabin,
				}); err != nil {
					return fmt.Errorf("config: route %s: %w", rt.ID, err)
				}
			}
		case models.Train:
			if rt.OriginCode == "" || rt.DestinationCode == "" {
				return fmt.Errorf("config: route %s: origin_code and destination_code are required", rt.ID)
			}
		}
	}

	if len(r.Flights) > 0 {
		if len(r.GeoProfiles) == 0 {
			return fmt.Errorf("config: flight routes need at least one geo profile")
		}
		for _, g := range r.GeoProfiles {
			if !r.FX.Knows(g.Currency) {
				return fmt.Errorf("config: geo profile %s: no exchange rate for %s", g.ID, g.Currency)
			}
		}
	}
	return nil
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
