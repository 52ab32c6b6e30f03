// Package extract turns rendered page text into typed price candidates.
//
// Pages are read as a line-indexed Buffer. Each extraction rule looks at the
// buffer independently and returns zero or more candidates; a TierPolicy
// then picks the rows that answer the requested cabin. Nothing here returns
// an error: text without a recognisable price yields no candidates.
package extract

import (
	"sort"

	"travel-monitor/models"
)

// DefaultPremiumMarkup turns the cheapest base fare into a premium estimate
// when premium fares are not on the page. It is a rough approximation.
const DefaultPremiumMarkup = 1.6

// TierPolicy selects the candidates for a cabin from rows sorted by price.
type TierPolicy struct {
	// PremiumMarkup multiplies the cheapest base fare for premium estimates.
	PremiumMarkup float64
	// SliceThreshold is the row count above which premium fares are read
	// from the upper half of the list instead of estimated.
	SliceThreshold int
	// PremiumTake caps the rows returned from the upper half.
	PremiumTake int
}

// DefaultTierPolicy returns the policy used in production.
func DefaultTierPolicy() TierPolicy {
	return TierPolicy{PremiumMarkup: DefaultPremiumMarkup, SliceThreshold: 3, PremiumTake: 3}
}

// Select sorts rows by ascending price and keeps what the cabin needs.
// baseTake is how many of the cheapest rows the base tier keeps.
func (p TierPolicy) Select(rows []models.ProviderResult, cabin string, baseTake int) []models.ProviderResult {
	if len(rows) == 0 {
		return nil
	}
	sorted := make([]models.ProviderResult, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Price < sorted[j].Price })

	if models.IsBaseTier(cabin) {
		return head(sorted, baseTake)
	}

	if len(sorted) > p.SliceThreshold {
		return head(sorted[len(sorted)/2:], p.PremiumTake)
	}

	est := sorted[0]
	est.Price = round2(est.Price * p.markup())
	est.Estimated = true
	return []models.ProviderResult{est}
}

func (p TierPolicy) markup() float64 {
	if p.PremiumMarkup <= 0 {
		return DefaultPremiumMarkup
	}
	return p.PremiumMarkup
}

func head(rows []models.ProviderResult, n int) []models.ProviderResult {
	if n > 0 && len(rows) > n {
		return rows[:n]
	}
	return rows
}

// Extractor holds the shared vocabulary and tier policy.
type Extractor struct {
	vocab  Vocabulary
	policy TierPolicy
	rules  []trainRule
}

// New builds an Extractor.
func New(vocab Vocabulary, policy TierPolicy) *Extractor {
	e := &Extractor{vocab: vocab, policy: policy}
	e.rules = []trainRule{
		{name: "structured", baseTake: 3, apply: e.structuredRows},
		{name: "context", baseTake: 1, apply: e.contextRows},
		{name: "flat", baseTake: 1, apply: e.flatPrices},
	}
	return e
}

// NewDefault builds an Extractor with the default tables and policy.
func NewDefault() *Extractor {
	return New(DefaultVocabulary(), DefaultTierPolicy())
}
