package extract

import (
	"regexp"
	"strconv"
	"strings"

	"travel-monitor/models"
)

const (
	// flightWindow is how many lines after a destination mention are read.
	flightWindow = 5
	// flightNoiseFloor is the lowest plausible fare in local currency units.
	flightNoiseFloor = 10
)

var (
	stopsRe  = regexp.MustCompile(`(?i)^(\d+)\s*(escala|stop|stopp|parada)`)
	directRe = regexp.MustCompile(`(?i)directo|nonstop|non-stop|ohne umstieg`)
)

// Flight extracts at most one fare from an explore results page. The first
// mention of the destination followed by a parseable price above the noise
// floor wins.
func (e *Extractor) Flight(text, destination, currency string) []models.ProviderResult {
	return e.FlightBuffer(NewBuffer(text), destination, currency)
}

// FlightBuffer is Flight over an already split buffer.
func (e *Extractor) FlightBuffer(buf *Buffer, destination, currency string) []models.ProviderResult {
	want := Normalize(strings.TrimSpace(destination))
	if want == "" {
		return nil
	}
	ref := e.vocab.pattern(e.vocab.ReferenceCurrency)
	local := e.vocab.pattern(currency)

	for i := 0; i < buf.Len(); i++ {
		if !strings.Contains(buf.Normalized(i), want) {
			continue
		}
		r, ok := e.scanFlightWindow(buf, i, ref, local, currency)
		if ok && r.Price > flightNoiseFloor {
			return []models.ProviderResult{r}
		}
	}
	return nil
}

func (e *Extractor) scanFlightWindow(buf *Buffer, at int, ref, local *regexp.Regexp, currency string) (models.ProviderResult, bool) {
	r := models.ProviderResult{Currency: currency}

	for j := 1; j <= flightWindow && at+j < buf.Len(); j++ {
		line := buf.Line(at + j)

		m := ref.FindStringSubmatch(line)
		if m == nil && local != nil {
			m = local.FindStringSubmatch(line)
		}
		if m != nil {
			if v, ok := parseLocalAmount(m[1], currency, e.vocab.ReferenceCurrency); ok {
				r.Price = v
				return r, true
			}
			continue
		}

		if g := stopsRe.FindStringSubmatch(line); g != nil {
			r.Stops, _ = strconv.Atoi(g[1])
			continue
		}
		if directRe.MatchString(line) {
			r.Stops = 0
			continue
		}
		if d, ok := matchDuration(line, true); ok {
			r.Duration = d
		}
	}
	return r, false
}
