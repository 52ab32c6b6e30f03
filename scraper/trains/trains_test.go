package trains_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"travel-monitor/models"
	"travel-monitor/scraper/browser"
	"travel-monitor/scraper/browser/browsertest"
	"travel-monitor/scraper/trains"
)

const resultsPage = "Resultados\n07:14 h\n2 horas 22 minutos\n09:36 h\n34,70 €"

func query(origin, dest string) models.Query {
	return models.Query{
		Route: models.RouteSpec{
			ID: origin + "-" + dest, Transport: models.Train,
			OriginCode: origin, DestinationCode: dest,
			OriginName: "Vigo (Urzaiz)", DestinationName: "Ourense",
		},
		Cabin:  models.CabinTurista,
		Depart: time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
	}
}

func launcherWith(setup func(*browsertest.Session)) *browsertest.Launcher {
	return &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		s := browsertest.NewSession(map[string]string{
			"https://www.renfe.com":        resultsPage,
			"https://www.thetrainline.com": resultsPage,
			"https://www.omio.es":          resultsPage,
		})
		if setup != nil {
			setup(s)
		}
		return s, nil
	}}
}

func TestRenfeFillsSearchForm(t *testing.T) {
	l := launcherWith(func(s *browsertest.Session) {
		s.Present["button#onetrust-accept-btn-handler"] = true
		s.Present["Madrid"] = true
		s.Present["Buscar"] = true
	})
	p := trains.NewRenfe(trains.Deps{Launcher: l})
	require.Equal(t, "renfe", p.Name())

	r, err := p.Attempt(context.Background(), query("MADRI", "OUREN"))
	require.NoError(t, err)
	require.NotNil(t, r)
	require.Equal(t, 34.70, r.Price)
	require.Equal(t, "07:14", r.DepartureTime)

	opened := l.Opened()
	require.Len(t, opened, 1)
	require.Equal(t, "es-ES", opened[0].Locale)
	require.False(t, opened[0].Geolocation)

	s := l.Sessions()[0]
	require.True(t, s.Closed())
	calls := s.Calls()
	require.Equal(t, "navigate https://www.renfe.com/es/es", calls[0])
	require.Equal(t, "click button#onetrust-accept-btn-handler", calls[1])
	require.True(t, strings.HasSuffix(calls[2], "=Madrid"))
	require.Equal(t, "click li:Madrid", calls[3])
	require.True(t, strings.HasSuffix(calls[4], "=Ourense"))
	require.Equal(t, []string{"press ArrowDown", "press Enter"}, calls[5:7])
	require.True(t, strings.HasSuffix(calls[7], "=02/11/2026"))
	require.Equal(t, "press Enter", calls[8])
	require.Equal(t, "click button:Buscar", calls[9])
	require.Equal(t, "text", calls[10])
	require.Len(t, calls, 11)
}

func TestRenfeFallsBackToRouteNames(t *testing.T) {
	l := launcherWith(func(s *browsertest.Session) { s.Present["Buscar billete"] = true })

	_, err := trains.NewRenfe(trains.Deps{Launcher: l}).Attempt(context.Background(), query("VIGOU", "OUREN"))
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(l.Sessions()[0].Calls()[1], "=Vigo"))
}

func TestRenfeFormFailures(t *testing.T) {
	broken := launcherWith(func(s *browsertest.Session) { s.Fail["fill"] = errors.New("no node") })
	_, err := trains.NewRenfe(trains.Deps{Launcher: broken}).Attempt(context.Background(), query("MADRI", "OUREN"))
	require.ErrorContains(t, err, "origin field")
	require.True(t, broken.Sessions()[0].Closed())

	noButton := launcherWith(nil)
	_, err = trains.NewRenfe(trains.Deps{Launcher: noButton}).Attempt(context.Background(), query("MADRI", "OUREN"))
	require.ErrorContains(t, err, "search button")
}

func TestRenfeNoFaresIsNotAnError(t *testing.T) {
	l := &browsertest.Launcher{New: func(browser.Options) (*browsertest.Session, error) {
		s := browsertest.NewSession(map[string]string{"https://": "No hay trenes para esta fecha"})
		s.Present["Buscar"] = true
		return s, nil
	}}
	r, err := trains.NewRenfe(trains.Deps{Launcher: l}).Attempt(context.Background(), query("MADRI", "OUREN"))
	require.NoError(t, err)
	require.Nil(t, r)
}

func TestTrainlineResultsURL(t *testing.T) {
	p := trains.NewTrainline(trains.Deps{})
	u := p.ResultsURL(query("MADRI", "OUREN"))
	require.True(t, strings.HasPrefix(u, "https://www.thetrainline.com/book/results?"))
	require.Contains(t, u, "origin=urn%3Atrainline%3Ageneric%3Aloc%3A5927")
	require.Contains(t, u, "destination=urn%3Atrainline%3Ageneric%3Aloc%3A5976")
	require.Contains(t, u, "outwardDate=2026-11-02T06%3A00%3A00")
	require.Contains(t, u, "journeySearchType=single")

	require.Empty(t, p.ResultsURL(query("VIGOU", "OUREN")))
}

type provider interface {
	Name() string
	Attempt(context.Context, models.Query) (*models.ProviderResult, error)
}

func TestAggregatorsReadResults(t *testing.T) {
	for _, tc := range []struct {
		name string
		make func(trains.Deps) provider
		host string
	}{
		{"trainline", func(d trains.Deps) provider { return trains.NewTrainline(d) }, "https://www.thetrainline.com/"},
		{"omio", func(d trains.Deps) provider { return trains.NewOmio(d) }, "https://www.omio.es/"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := launcherWith(func(s *browsertest.Session) { s.Present["Aceptar"] = true })
			p := tc.make(trains.Deps{Launcher: l})
			require.Equal(t, tc.name, p.Name())

			r, err := p.Attempt(context.Background(), query("MADRI", "OUREN"))
			require.NoError(t, err)
			require.Equal(t, 34.70, r.Price)

			calls := l.Sessions()[0].Calls()
			require.Len(t, calls, 3)
			require.True(t, strings.HasPrefix(calls[0], "navigate "+tc.host))
			require.Equal(t, "click button:Aceptar", calls[1])
			require.Equal(t, "text", calls[2])

			r, err = p.Attempt(context.Background(), query("VIGOU", "OUREN"))
			require.NoError(t, err)
			require.Nil(t, r)
			require.Len(t, l.Sessions(), 1)
		})
	}
}

func TestOmioResultsURL(t *testing.T) {
	u := trains.NewOmio(trains.Deps{}).ResultsURL(query("MADRI", "OUREN"))
	require.Equal(t, "https://www.omio.es/trenes/madrid/ourense?departureDate=2026-11-02", u)
}

func TestCancelledBeforeOpening(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	l := launcherWith(nil)
	_, err := trains.NewTrainline(trains.Deps{Launcher: l}).Attempt(ctx, query("MADRI", "OUREN"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, l.Sessions())
}
