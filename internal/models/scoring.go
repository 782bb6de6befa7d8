package models

import (
	"fmt"
	"math"
	"net/url"
	"strings"
)

// domainReputation ranks source hosts by their top-level domain. Commercial
// sites are the baseline; unknown extensions score below it.
var domainReputation = map[string]float64{
	"edu": 0.9,
	"gov": 0.9,
	"org": 0.7,
	"com": 0.5,
}

// SearchConfidence aggregates per-source quality into one score with the
// human-readable reasons behind it. Zero value means no assessment was made.
type SearchConfidence struct {
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

// Relevance scores how well a source matches the query: the fraction of query
// terms found in the title and snippet, boosted when the full phrase appears
// verbatim. Always in [0, 1].
func Relevance(source Source, query string) float64 {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return 0
	}

	text := strings.ToLower(source.Title + " " + source.Snippet)

	matched := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			matched++
		}
	}
	relevance := float64(matched) / float64(len(terms))

	if strings.Contains(text, strings.Join(terms, " ")) {
		relevance *= 1.5
	}

	return math.Min(relevance, 1.0)
}

// SourceQuality scores a source on domain reputation. The freshness and
// source-type signals stay at their neutral weights because the provider
// payload carries neither a publication date nor a source classification.
func SourceQuality(source Source) float64 {
	quality := 0.3
	if parsed, err := url.Parse(source.URL); err == nil {
		host := strings.ToLower(parsed.Hostname())
		ext := host[strings.LastIndex(host, ".")+1:]
		if score, ok := domainReputation[ext]; ok {
			quality = score
		}
	}

	// Freshness (unknown age) and source type (unknown) contribute their
	// neutral defaults: 0.3 and 0.2.
	quality += 0.3 + 0.2

	return math.Min(1.0, quality/2.0)
}

// ScoreSources fills in per-source relevance and quality. Order is preserved:
// the deduped rank ordering, not the relevance ordering, drives the [n]
// citation numbering.
func ScoreSources(sources []Source, query string) []Source {
	scored := make([]Source, len(sources))
	copy(scored, sources)
	for i := range scored {
		scored[i].Relevance = Relevance(scored[i], query)
		scored[i].Quality = SourceQuality(scored[i])
	}
	return scored
}

// CalculateConfidence folds the per-source quality scores into one weighted
// confidence value: average quality 40%, score consistency 30%, source count
// 30% (saturating at five sources).
func CalculateConfidence(sources []Source) SearchConfidence {
	if len(sources) == 0 {
		return SearchConfidence{Score: 0, Reasons: []string{"No sources found"}}
	}

	scores := make([]float64, len(sources))
	sum := 0.0
	for i, source := range sources {
		scores[i] = source.Quality
		sum += source.Quality
	}
	avg := sum / float64(len(scores))

	consistency := 0.5
	if len(scores) > 1 {
		consistency = 1.0 - stddev(scores, avg)
	}

	countScore := math.Min(1.0, float64(len(sources))/5.0)

	confidence := SearchConfidence{
		Score: avg*0.4 + consistency*0.3 + countScore*0.3,
	}

	if avg > 0.7 {
		confidence.Reasons = append(confidence.Reasons, "High-quality sources found")
	}
	if consistency > 0.7 {
		confidence.Reasons = append(confidence.Reasons, "Consistent information across sources")
	}
	if countScore > 0.6 {
		confidence.Reasons = append(confidence.Reasons,
			fmt.Sprintf("Multiple sources (%d) corroborate the information", len(sources)))
	}
	if len(confidence.Reasons) == 0 {
		confidence.Reasons = []string{"Limited source basis"}
	}

	return confidence
}

// stddev is the sample standard deviation around a precomputed mean.
func stddev(values []float64, mean float64) float64 {
	sum := 0.0
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(values)-1))
}
