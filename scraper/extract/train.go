package extract

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"travel-monitor/models"
)

const (
	// rowSpan is how many lines after a departure marker belong to its row.
	rowSpan = 14
	// contextRadius is the number of lines read on each side of a price.
	contextRadius = 3
	// flatLimit caps the attribute-less fallback list.
	flatLimit = 5

	trainMinPrice = 5
	trainMaxPrice = 500
)

var (
	departureMarkerRe = regexp.MustCompile(`^(\d{1,2}:\d{2})\s*h$`)
	hoursMinutesRe    = regexp.MustCompile(`(?i)(\d+)\s*horas?(?:\s*(?:y\s*)?(\d+)\s*minutos?)?`)
	rowPriceRe        = regexp.MustCompile(`(\d{1,3}(?:\.\d{3})*(?:[.,]\d{1,2})?)\s*€`)
	linePriceRe       = regexp.MustCompile(`(\d{1,3}(?:[.,]\d{2})?)\s*€`)
	connectionWords   = []string{"transbordo", "enlace", "conexion", "cambio de tren"}
)

type trainRule struct {
	name     string
	baseTake int
	apply    func(*Buffer) []models.ProviderResult
}

// Train extracts candidate fares from a train results page and selects the
// ones matching cabin. Rules are tried in order; the first one producing
// rows decides.
func (e *Extractor) Train(text, cabin string) []models.ProviderResult {
	return e.TrainBuffer(NewBuffer(text), cabin)
}

// TrainBuffer is Train over an already split buffer.
func (e *Extractor) TrainBuffer(buf *Buffer, cabin string) []models.ProviderResult {
	for _, rule := range e.rules {
		if rows := rule.apply(buf); len(rows) > 0 {
			return e.policy.Select(rows, cabin, rule.baseTake)
		}
	}
	return nil
}

// structuredRows reads result rows that start with a "HH:MM h" departure
// marker: duration phrase, arrival marker, optional connection note and a
// closing "<amount> €".
func (e *Extractor) structuredRows(buf *Buffer) []models.ProviderResult {
	var rows []models.ProviderResult

	i := 0
	for i < buf.Len() {
		m := departureMarkerRe.FindStringSubmatch(buf.Line(i))
		if m == nil {
			i++
			continue
		}
		row, end, ok := e.scanRow(buf, i, m[1])
		if !ok {
			i++
			continue
		}
		rows = append(rows, row)
		i = end + 1
	}
	return rows
}

func (e *Extractor) scanRow(buf *Buffer, start int, departure string) (models.ProviderResult, int, bool) {
	row := models.ProviderResult{Currency: "EUR", DepartureTime: departure}

	for j := start + 1; j <= start+rowSpan && j < buf.Len(); j++ {
		line := buf.Line(j)

		if m := departureMarkerRe.FindStringSubmatch(line); m != nil {
			if row.ArrivalTime != "" {
				// next row begins before this one showed a price
				return row, j, false
			}
			row.ArrivalTime = m[1]
			continue
		}

		if row.Duration == "" {
			if g := hoursMinutesRe.FindStringSubmatch(line); g != nil {
				if d, ok := durationFromGroups(g[1], g[2]); ok {
					row.Duration = d
				}
				continue
			}
		}

		if !row.Connection && hasConnectionWord(buf.Normalized(j)) {
			row.Connection = true
		}
		if row.Carrier == "" {
			row.Carrier = e.vocab.Carrier(line)
		}

		if g := rowPriceRe.FindStringSubmatch(line); g != nil {
			v, ok := parseEuroAmount(g[1])
			if !ok || !inTrainRange(v) {
				return row, j, false
			}
			row.Price = v
			return row, j, true
		}
	}
	return row, start, false
}

// contextRows tags every in-range price line with carrier, clock times and
// duration found in the surrounding lines.
func (e *Extractor) contextRows(buf *Buffer) []models.ProviderResult {
	var rows []models.ProviderResult

	for i := 0; i < buf.Len(); i++ {
		m := linePriceRe.FindStringSubmatch(buf.Line(i))
		if m == nil {
			continue
		}
		price, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil || !inContextRange(price) {
			continue
		}

		window := buf.Window(i-contextRadius, i+contextRadius+1)
		row := models.ProviderResult{
			Price:    price,
			Currency: "EUR",
			Carrier:  e.vocab.Carrier(window),
		}
		times := clockRe.FindAllString(window, 2)
		if len(times) > 0 {
			row.DepartureTime = times[0]
		}
		if len(times) > 1 {
			row.ArrivalTime = times[1]
		}
		if d, ok := matchDuration(window, false); ok {
			row.Duration = d
		}
		rows = append(rows, row)
	}
	return rows
}

// flatPrices is the last resort: distinct in-range amounts anywhere in the
// text, including ones split across lines, without attributes.
func (e *Extractor) flatPrices(buf *Buffer) []models.ProviderResult {
	seen := make(map[float64]struct{})
	var prices []float64
	for _, m := range linePriceRe.FindAllStringSubmatch(buf.Text(), -1) {
		v, err := strconv.ParseFloat(strings.Replace(m[1], ",", ".", 1), 64)
		if err != nil || !inTrainRange(v) {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		prices = append(prices, v)
	}
	sort.Float64s(prices)
	if len(prices) > flatLimit {
		prices = prices[:flatLimit]
	}

	rows := make([]models.ProviderResult, 0, len(prices))
	for _, p := range prices {
		rows = append(rows, models.ProviderResult{Price: p, Currency: "EUR"})
	}
	return rows
}

func inTrainRange(v float64) bool {
	return v > trainMinPrice && v < trainMaxPrice
}

// inContextRange bounds the context rule, which accepts both limits.
func inContextRange(v float64) bool {
	return v >= trainMinPrice && v <= trainMaxPrice
}

func hasConnectionWord(normalized string) bool {
	for _, w := range connectionWords {
		if strings.Contains(normalized, w) {
			return true
		}
	}
	return false
}
