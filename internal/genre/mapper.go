// Package genre folds fine-grained classifier labels into the small
// production taxonomy.
package genre

import (
	"sort"
	"strings"

	"github.com/ciscoittech/sampleagent/internal/analyzer"
	"github.com/ciscoittech/sampleagent/internal/conf"
)

// rule is one keyword match in the taxonomy table.
type rule struct {
	keyword string
	bucket  string
}

// Mapper translates a backend's fine-grained label space (dozens to
// hundreds of micro-genres) into the production taxonomy via keyword
// matching. The table is configuration, not code.
type Mapper struct {
	rules         []rule
	defaultBucket string
}

// NewMapper builds a mapper from taxonomy settings. Rules are matched as
// case-insensitive substrings; longer keywords win over shorter ones so
// "drum and bass" beats "bass".
func NewMapper(settings conf.TaxonomySettings) *Mapper {
	rules := make([]rule, 0, len(settings.Mapping))
	for keyword, bucket := range settings.Mapping {
		rules = append(rules, rule{keyword: strings.ToLower(keyword), bucket: bucket})
	}
	sort.Slice(rules, func(i, j int) bool {
		if len(rules[i].keyword) != len(rules[j].keyword) {
			return len(rules[i].keyword) > len(rules[j].keyword)
		}
		return rules[i].keyword < rules[j].keyword
	})

	defaultBucket := settings.Default
	if defaultBucket == "" {
		defaultBucket = "Uncategorized"
	}

	return &Mapper{rules: rules, defaultBucket: defaultBucket}
}

// MapLabel returns the taxonomy bucket for one fine-grained label.
func (m *Mapper) MapLabel(label string) string {
	lower := strings.ToLower(label)
	for _, r := range m.rules {
		if strings.Contains(lower, r.keyword) {
			return r.bucket
		}
	}
	return m.defaultBucket
}

// MapVector folds a fine-grained probability vector into bucket space.
// Multiple fine labels landing in the same bucket have their probabilities
// summed. The result is sorted by descending probability, ties broken by
// label for determinism.
func (m *Mapper) MapVector(fine []analyzer.LabelProb) []analyzer.LabelProb {
	if len(fine) == 0 {
		return nil
	}

	sums := make(map[string]float64)
	for _, lp := range fine {
		sums[m.MapLabel(lp.Label)] += lp.Probability
	}

	buckets := make([]analyzer.LabelProb, 0, len(sums))
	for label, prob := range sums {
		buckets = append(buckets, analyzer.LabelProb{Label: label, Probability: prob})
	}
	sort.Slice(buckets, func(i, j int) bool {
		if buckets[i].Probability != buckets[j].Probability {
			return buckets[i].Probability > buckets[j].Probability
		}
		return buckets[i].Label < buckets[j].Label
	})

	return buckets
}

// DefaultBucket returns the fallback bucket name.
func (m *Mapper) DefaultBucket() string {
	return m.defaultBucket
}
