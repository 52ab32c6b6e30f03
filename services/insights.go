package services

import (
	"fmt"
	"io"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"

	"travel-monitor/models"
	"travel-monitor/utils"
)

// SummaryService computes per-route price analytics over history.
type SummaryService struct {
	logger *utils.Logger
	top    int
}

func NewSummaryService(logger *utils.Logger) *SummaryService {
	return &SummaryService{logger: logger, top: 5}
}

// Generate summarises the history of route. Only the latest observation of
// each travel date counts, so repeated checks of one date do not skew the
// statistics.
func (s *SummaryService) Generate(route models.RouteSpec, history []models.PriceObservation) *models.RouteSummary {
	report := &models.RouteSummary{
		RouteID:   route.ID,
		Transport: route.Transport,
		Label:     routeLabel(route),
	}

	var own []models.PriceObservation
	for _, o := range history {
		if o.RouteID != route.ID {
			continue
		}
		own = append(own, o)
		if o.Timestamp.After(report.LastChecked) {
			report.LastChecked = o.Timestamp
		}
	}
	report.Checks = len(own)

	for _, cabin := range route.Classes {
		report.Cabins = append(report.Cabins, s.cabin(route, cabin, own))
	}
	return report
}

func (s *SummaryService) cabin(route models.RouteSpec, cabin string, own []models.PriceObservation) models.CabinSummary {
	out := models.CabinSummary{
		Cabin:     cabin,
		Label:     models.CabinLabel(cabin),
		Threshold: route.Threshold(cabin),
		Cheapest:  []models.PriceObservation{},
	}

	stored := models.NormalizeCabin(cabin)
	latest := map[string]models.PriceObservation{}
	for _, o := range own {
		if o.CabinClass != stored {
			continue
		}
		if prev, ok := latest[o.TravelDate]; !ok || !o.Timestamp.Before(prev.Timestamp) {
			latest[o.TravelDate] = o
		}
	}
	out.Dates = len(latest)

	var priced []models.PriceObservation
	for _, o := range latest {
		if o.HasPrice() {
			priced = append(priced, o)
		}
	}
	out.Priced = len(priced)
	if len(priced) == 0 {
		return out
	}

	sort.Slice(priced, func(i, j int) bool {
		if *priced[i].Price != *priced[j].Price {
			return *priced[i].Price < *priced[j].Price
		}
		return priced[i].TravelDate < priced[j].TravelDate
	})

	var total float64
	for _, o := range priced {
		total += *o.Price
	}
	out.AveragePrice = round2(total / float64(len(priced)))
	out.MinPrice = round2(*priced[0].Price)
	out.MaxPrice = round2(*priced[len(priced)-1].Price)

	best := priced[0]
	out.Best = &best
	out.BuyNow = *best.Price <= out.Threshold
	if len(priced) > s.top {
		priced = priced[:s.top]
	}
	out.Cheapest = priced
	return out
}

// Print renders summaries as terminal tables.
func (s *SummaryService) Print(w io.Writer, summaries []*models.RouteSummary) {
	for _, r := range summaries {
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleRounded)
		t.SetTitle(fmt.Sprintf("%s  %s  (%d checks)", r.RouteID, r.Label, r.Checks))
		t.AppendHeader(table.Row{"Cabin", "Best", "Date", "Avg", "Min", "Max", "Threshold", "Status"})

		for _, c := range r.Cabins {
			if c.Best == nil {
				t.AppendRow(table.Row{c.Label, "-", "-", "-", "-", "-", euros(c.Threshold), "no data"})
				continue
			}
			status := "Esperar"
			if c.BuyNow {
				status = "COMPRAR"
			}
			t.AppendRow(table.Row{
				c.Label, euros(c.Best.PriceValue()), c.Best.TravelDate,
				euros(c.AveragePrice), euros(c.MinPrice), euros(c.MaxPrice),
				euros(c.Threshold), status,
			})
		}
		t.Render()

		base := baseCabin(r)
		if base == nil || len(base.Cheapest) == 0 {
			continue
		}
		top := table.NewWriter()
		top.SetOutputMirror(w)
		top.SetStyle(table.StyleRounded)
		top.SetTitle(fmt.Sprintf("Top %d %s", len(base.Cheapest), base.Label))
		top.AppendHeader(table.Row{"#", "Date", "Price", "Carrier", "Duration"})
		for i, o := range base.Cheapest {
			carrier := o.Airline
			if carrier == "" {
				carrier = o.TrainType
			}
			top.AppendRow(table.Row{i + 1, o.TravelDate, euros(o.PriceValue()), truncate(carrier, 20), o.Duration})
		}
		top.Render()
	}
}

func routeLabel(r models.RouteSpec) string {
	from, to := r.OriginName, r.DestinationName
	if from == "" {
		from = r.Origin
	}
	if to == "" {
		to = r.Destination
	}
	if from == "" && to == "" {
		return r.ID
	}
	return from + " -> " + to
}

func euros(v float64) string {
	return fmt.Sprintf("%.0f€", v)
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
