package extract

import (
	"regexp"
	"strings"
)

// Vocabulary holds the lookup tables the rules match against. It is built
// once and shared read-only.
type Vocabulary struct {
	// Carriers are train product names, in priority order.
	Carriers []string
	// CurrencyPatterns capture the numeric part of a price in a currency.
	CurrencyPatterns map[string]*regexp.Regexp
	// ReferenceCurrency uses "." as thousands separator.
	ReferenceCurrency string

	carrierRes []*regexp.Regexp
}

// DefaultVocabulary returns the tables for the sites currently monitored.
func DefaultVocabulary() Vocabulary {
	return NewVocabulary(
		[]string{"AVE", "ALVIA", "AVLO", "Talgo", "Intercity", "Regional", "MD", "Avant"},
		map[string]*regexp.Regexp{
			"EUR": regexp.MustCompile(`([\d.]+)\s*€`),
			"USD": regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`),
			"GBP": regexp.MustCompile(`£\s*([\d,]+(?:\.\d{2})?)`),
			"MXN": regexp.MustCompile(`\$\s*([\d,]+(?:\.\d{2})?)`),
			"COP": regexp.MustCompile(`\$\s*([\d.,]+)`),
			"BRL": regexp.MustCompile(`R\$\s*([\d.,]+)`),
		},
		"EUR",
	)
}

// NewVocabulary compiles carrier matchers for the given tables.
func NewVocabulary(carriers []string, patterns map[string]*regexp.Regexp, reference string) Vocabulary {
	v := Vocabulary{
		Carriers:          carriers,
		CurrencyPatterns:  patterns,
		ReferenceCurrency: reference,
	}
	for _, c := range carriers {
		v.carrierRes = append(v.carrierRes, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(c)+`\b`))
	}
	return v
}

// Carrier returns the first carrier, in vocabulary order, mentioned in text.
func (v Vocabulary) Carrier(text string) string {
	for i, re := range v.carrierRes {
		if re.MatchString(text) {
			return v.Carriers[i]
		}
	}
	return ""
}

func (v Vocabulary) pattern(currency string) *regexp.Regexp {
	if re, ok := v.CurrencyPatterns[strings.ToUpper(currency)]; ok {
		return re
	}
	return v.CurrencyPatterns[v.ReferenceCurrency]
}
