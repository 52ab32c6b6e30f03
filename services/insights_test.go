package services

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"travel-monitor/models"
	"travel-monitor/utils"
)

func sampleHistory() []models.PriceObservation {
	at := func(day int) time.Time { return time.Date(2026, 10, day, 9, 0, 0, 0, time.UTC) }
	obs := []models.PriceObservation{
		priced("VGO-MEX", "ECONOMY", "2026-10-19", 900),
		priced("VGO-MEX", "ECONOMY", "2026-10-26", 640),
		priced("VGO-MEX", "ECONOMY", "2026-11-02", 700),
		priced("VGO-MEX", "ECONOMY", "2026-11-09", 0),
		priced("VGO-MEX", "BUSINESS", "2026-10-19", 2301),
		priced("SCQ-MEX", "ECONOMY", "2026-10-19", 100),
		// a later check of 2026-10-19 supersedes the 900 fare
		priced("VGO-MEX", "ECONOMY", "2026-10-19", 610),
	}
	for i := range obs {
		obs[i].Timestamp = at(10)
	}
	obs[6].Timestamp = at(14)
	return obs
}

func TestSummaryCounts(t *testing.T) {
	svc := NewSummaryService(utils.Discard())
	r := svc.Generate(flightRoute(map[string]float64{"economy_max": 650}), sampleHistory())
	if r.Checks != 6 {
		t.Errorf("Checks: got %d, want 6", r.Checks)
	}
	if r.Label != "Vigo -> Ciudad de México" {
		t.Errorf("Label: got %q", r.Label)
	}
	if !r.LastChecked.Equal(time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("LastChecked: got %v", r.LastChecked)
	}
	if len(r.Cabins) != 2 {
		t.Fatalf("Cabins: got %d, want 2", len(r.Cabins))
	}
	if r.Cabins[0].Dates != 4 || r.Cabins[0].Priced != 3 {
		t.Errorf("economy dates/priced: got %d/%d, want 4/3", r.Cabins[0].Dates, r.Cabins[0].Priced)
	}
}

func TestSummaryPrices(t *testing.T) {
	svc := NewSummaryService(utils.Discard())
	c := svc.Generate(flightRoute(map[string]float64{"economy_max": 650}), sampleHistory()).Cabins[0]
	if c.AveragePrice != 650 {
		t.Errorf("AveragePrice: got %.2f, want 650", c.AveragePrice)
	}
	if c.MinPrice != 610 {
		t.Errorf("MinPrice: got %.2f, want 610", c.MinPrice)
	}
	if c.MaxPrice != 700 {
		t.Errorf("MaxPrice: got %.2f, want 700", c.MaxPrice)
	}
	if c.Best == nil || c.Best.TravelDate != "2026-10-19" {
		t.Fatalf("Best: got %+v", c.Best)
	}
	if !c.BuyNow {
		t.Error("BuyNow: 610 is under the 650 threshold")
	}
}

func TestSummaryCheapestDates(t *testing.T) {
	svc := NewSummaryService(utils.Discard())
	svc.top = 2
	c := svc.Generate(flightRoute(nil), sampleHistory()).Cabins[0]
	if len(c.Cheapest) != 2 {
		t.Fatalf("Cheapest len: got %d, want 2", len(c.Cheapest))
	}
	if c.Cheapest[0].PriceValue() != 610 || c.Cheapest[1].PriceValue() != 640 {
		t.Errorf("Cheapest order: got %.0f, %.0f", c.Cheapest[0].PriceValue(), c.Cheapest[1].PriceValue())
	}
}

func TestSummaryEmptyInput(t *testing.T) {
	svc := NewSummaryService(utils.Discard())
	r := svc.Generate(flightRoute(nil), nil)
	if r.Checks != 0 {
		t.Errorf("expected 0 checks for empty input")
	}
	for _, c := range r.Cabins {
		if c.Best != nil || c.Cheapest == nil {
			t.Errorf("cabin %s: expected no best and an empty cheapest list", c.Cabin)
		}
	}
}

func TestSummaryPrint(t *testing.T) {
	svc := NewSummaryService(utils.Discard())
	r := svc.Generate(flightRoute(map[string]float64{"economy_max": 650, "business_max": 2200}), sampleHistory())

	var out bytes.Buffer
	svc.Print(&out, []*models.RouteSummary{r})
	text := out.String()
	for _, want := range []string{"VGO-MEX", "COMPRAR", "Esperar", "610€", "Top 3 Turista"} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
}
