package browser_test

import (
	"context"
	"testing"

	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/browser/browsertest"
)

func TestAcceptCookies(t *testing.T) {
	ctx := context.Background()

	s := browsertest.NewSession(nil)
	if browser.AcceptCookies(ctx, s, nil, browser.ConsentLabels) {
		t.Error("no banner present, nothing should be clicked")
	}

	s.Present["Accept all"] = true
	s.Present["Aceptar"] = true
	if !browser.AcceptCookies(ctx, s, nil, browser.ConsentLabels) {
		t.Fatal("expected the banner to be accepted")
	}
	calls := s.Calls()
	if len(calls) != 1 || calls[0] != "click button:Accept all" {
		t.Errorf("labels must be tried in order, got %v", calls)
	}

	s2 := browsertest.NewSession(nil)
	s2.Present["#onetrust-accept-btn-handler"] = true
	if !browser.AcceptCookies(ctx, s2, []string{"#cookies-accept", "#onetrust-accept-btn-handler"}, nil) {
		t.Error("selector should win before labels")
	}
}
