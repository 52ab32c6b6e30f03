package extract

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	durationRe   = regexp.MustCompile(`(\d{1,2})\s*h\s*(\d{1,2})?\s*m`)
	durationDeRe = regexp.MustCompile(`^(\d{1,2})\s*Std\.\s*(\d{1,2})?\s*Min`)
	clockRe      = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
)

// parseLocalAmount reads a flight price captured by a currency pattern. The
// reference currency writes "1.197" for 1197; every other currency writes
// "1,197.50".
func parseLocalAmount(raw, currency, reference string) (float64, bool) {
	var s string
	if strings.EqualFold(currency, reference) {
		s = strings.ReplaceAll(raw, ".", "")
	} else {
		s = strings.ReplaceAll(raw, ",", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// parseEuroAmount reads a Spanish-formatted euro amount: "34,70", "1.234,56",
// "1.197" and the occasional "34.70".
func parseEuroAmount(raw string) (float64, bool) {
	s := raw
	switch {
	case strings.Contains(s, ","):
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case decimalDotRe.MatchString(s):
	default:
		s = strings.ReplaceAll(s, ".", "")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

var decimalDotRe = regexp.MustCompile(`^\d+\.\d{1,2}$`)

func formatDuration(h, m int) string {
	if m == 0 {
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dh %dm", h, m)
}

// matchDuration reads "<h>h <m>m" or the German "<h> Std. <m> Min" at the
// start of line. anchored restricts the English form to the line start too.
func matchDuration(line string, anchored bool) (string, bool) {
	m := durationRe.FindStringSubmatchIndex(line)
	if m != nil && (!anchored || m[0] == 0) {
		return durationFromGroups(line[m[2]:m[3]], groupOrEmpty(line, m, 2))
	}
	if g := durationDeRe.FindStringSubmatch(line); g != nil {
		return durationFromGroups(g[1], g[2])
	}
	return "", false
}

func groupOrEmpty(s string, idx []int, group int) string {
	start, end := idx[2*group], idx[2*group+1]
	if start < 0 {
		return ""
	}
	return s[start:end]
}

func durationFromGroups(hours, minutes string) (string, bool) {
	h, err := strconv.Atoi(hours)
	if err != nil {
		return "", false
	}
	m := 0
	if minutes != "" {
		if m, err = strconv.Atoi(minutes); err != nil {
			return "", false
		}
	}
	return formatDuration(h, m), true
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
