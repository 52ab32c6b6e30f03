package services

import (
	"fmt"
	"html"
	"strings"
	"time"

	"travel-monitor/models"
	"travel-monitor/notify"
)

// TrainBuyURL is where train buy alerts send the reader.
const TrainBuyURL = "https://www.renfe.com/es/es"

// AlertEvaluator compares the best price of each monitored cabin against
// the route's threshold. It holds no state.
type AlertEvaluator struct{}

// Evaluate returns one signal per cabin of route that has at least one
// priced observation in batch, in the route's cabin order. The cheapest
// observation wins; ties keep the earliest.
func (AlertEvaluator) Evaluate(route models.RouteSpec, batch []models.PriceObservation) []models.Signal {
	var signals []models.Signal
	for _, cabin := range route.Classes {
		stored := models.NormalizeCabin(cabin)
		var best *models.PriceObservation
		for i := range batch {
			o := &batch[i]
			if o.RouteID != route.ID || o.CabinClass != stored || !o.HasPrice() {
				continue
			}
			if best == nil || *o.Price < *best.Price {
				best = o
			}
		}
		if best == nil {
			continue
		}

		threshold := route.Threshold(cabin)
		sig := models.Signal{
			Kind:        models.SignalBuy,
			RouteID:     route.ID,
			Transport:   route.Transport,
			Cabin:       cabin,
			Threshold:   threshold,
			Price:       *best.Price,
			Observation: *best,
		}
		if *best.Price > threshold {
			sig.Kind = models.SignalGap
			sig.Gap = round2(*best.Price - threshold)
		}
		signals = append(signals, sig)
	}
	return signals
}

// BuildAlertMessage renders a buy signal. link is the page the reader is
// sent to for buying.
func BuildAlertMessage(company string, route models.RouteSpec, sig models.Signal, link string) notify.Message {
	label := models.CabinLabel(sig.Cabin)
	o := sig.Observation
	isTrain := route.Transport == models.Train

	title := fmt.Sprintf("COMPRAR! %s %s a %.0fEUR", label, route.ID, sig.Price)
	short := fmt.Sprintf("%s - %.0fEUR - Compra ya!", orUnknown(o.Airline), sig.Price)
	if isTrain {
		title = fmt.Sprintf("COMPRAR! Tren %s %s a %.0fEUR", label, route.ID, sig.Price)
		short = fmt.Sprintf("%s - %.0fEUR", orUnknown(o.TrainType), sig.Price)
	}
	if o.Estimated {
		title += " (estimado)"
		short += " (estimado)"
	}

	var text, body strings.Builder
	fmt.Fprintf(&text, "%s\n\nRuta: %s -> %s\n", title, route.OriginName, route.DestinationName)
	fmt.Fprintf(&body, "<h2 style='color:#16a34a'>%s</h2>", html.EscapeString(title))
	fmt.Fprintf(&body, "<p><b>Ruta:</b> %s &rarr; %s</p>", html.EscapeString(route.OriginName), html.EscapeString(route.DestinationName))

	var rows [][2]string
	if isTrain {
		rows = [][2]string{
			{"Fecha", o.TravelDate},
			{"Tren", o.TrainType},
			{"Horario", o.DepartureTime + " - " + o.ArrivalTime},
		}
		if o.Connection {
			rows = append(rows, [2]string{"Transbordo", "si"})
		}
	} else {
		rows = [][2]string{
			{"Semana", o.WeekStart},
			{"Aerolinea", o.Airline},
			{"Escalas", fmt.Sprint(o.Stops)},
			{"Duracion", o.Duration},
		}
	}
	if o.Estimated {
		rows = append(rows, [2]string{"Precio", "estimado a partir de la tarifa base, confirmar antes de comprar"})
	}
	rows = append(rows, [2]string{"Umbral", fmt.Sprintf("%.0fEUR", sig.Threshold)})
	for _, r := range rows {
		fmt.Fprintf(&text, "%s: %s\n", r[0], r[1])
		fmt.Fprintf(&body, "<p><b>%s:</b> %s</p>", r[0], html.EscapeString(r[1]))
	}

	cta := "COMPRAR EN GOOGLE FLIGHTS"
	if isTrain {
		cta = "COMPRAR EN RENFE"
	}
	fmt.Fprintf(&text, "\n%s: %s\n", cta, link)
	fmt.Fprintf(&body, "<hr><p style='font-size:20px'><a href='%s'><b>%s</b></a></p>", html.EscapeString(link), cta)
	if company != "" {
		fmt.Fprintf(&text, "\n-- %s Travel Monitor\n", company)
		fmt.Fprintf(&body, "<p style='color:gray;font-size:12px'>%s Travel Monitor</p>", html.EscapeString(company))
	}

	return notify.Message{
		Subject: "ALERTA: " + title,
		Short:   short,
		Text:    text.String(),
		HTML:    body.String(),
		Signals: []models.Signal{sig},
		Urgent:  true,
	}
}

// BuildSummaryMessage renders the end-of-run report: best fare per cabin
// and the cheapest base-tier dates of every route.
func BuildSummaryMessage(company string, interval time.Duration, at time.Time, summaries []*models.RouteSummary) notify.Message {
	heading := "Travel Monitor"
	if company != "" {
		heading = company + " Travel Monitor"
	}
	stamp := at.Format("02/01/2006 15:04")

	var text, body strings.Builder
	fmt.Fprintf(&text, "%s\n%s", heading, stamp)
	fmt.Fprintf(&body, "<h1>%s</h1><p>%s", html.EscapeString(heading), stamp)
	if interval > 0 {
		fmt.Fprintf(&text, " - cada %s", formatInterval(interval))
		fmt.Fprintf(&body, " &middot; Cada %s", formatInterval(interval))
	}
	text.WriteString("\n")
	body.WriteString("</p>")

	for _, s := range summaries {
		icon := "Vuelo"
		if s.Transport == models.Train {
			icon = "Tren"
		}
		fmt.Fprintf(&text, "\n%s %s (%s)\n", icon, s.Label, s.RouteID)
		fmt.Fprintf(&body, "<h2>%s %s</h2><p style='color:gray'>%s</p>", icon, html.EscapeString(s.Label), s.RouteID)

		priced := false
		for _, c := range s.Cabins {
			if c.Best == nil {
				continue
			}
			priced = true
			action := "Esperar"
			if c.BuyNow {
				action = "COMPRAR"
			}
			fmt.Fprintf(&text, "  Mejor %s: %.0fEUR (%s) umbral %.0fEUR - %s\n",
				c.Label, c.Best.PriceValue(), c.Best.TravelDate, c.Threshold, action)
			fmt.Fprintf(&body, "<p><b>Mejor %s:</b> %.0f&euro; &middot; %s &middot; umbral %.0f&euro; &middot; <b>%s</b></p>",
				c.Label, c.Best.PriceValue(), c.Best.TravelDate, c.Threshold, action)
		}
		if !priced {
			text.WriteString("  Sin datos disponibles\n")
			body.WriteString("<p>Sin datos disponibles</p>")
			continue
		}

		base := baseCabin(s)
		if base == nil || len(base.Cheapest) == 0 {
			continue
		}
		fmt.Fprintf(&text, "  Top %d %s:\n", len(base.Cheapest), base.Label)
		fmt.Fprintf(&body, "<h3>Top %d %s</h3><table><tr><th>Fecha</th><th>Precio</th><th>Estado</th></tr>", len(base.Cheapest), base.Label)
		for _, o := range base.Cheapest {
			action := "Esperar"
			if o.PriceValue() <= base.Threshold {
				action = "COMPRAR"
			}
			fmt.Fprintf(&text, "    %s  %.0fEUR  %s\n", o.TravelDate, o.PriceValue(), action)
			fmt.Fprintf(&body, "<tr><td>%s</td><td>%.0f&euro;</td><td>%s</td></tr>", o.TravelDate, o.PriceValue(), action)
		}
		body.WriteString("</table>")
	}

	return notify.Message{
		Subject: "Resumen " + stamp,
		Text:    text.String(),
		HTML:    body.String(),
	}
}

func baseCabin(s *models.RouteSummary) *models.CabinSummary {
	for i := range s.Cabins {
		if models.IsBaseTier(s.Cabins[i].Cabin) {
			return &s.Cabins[i]
		}
	}
	return nil
}

func formatInterval(d time.Duration) string {
	if d%time.Hour == 0 {
		return fmt.Sprintf("%dh", int(d/time.Hour))
	}
	return d.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "?"
	}
	return s
}
