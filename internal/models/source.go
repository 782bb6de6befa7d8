package models

import (
	"strings"

	whatwgURL "github.com/nlnwa/whatwg-url/url"
)

// RawResult is the provider-agnostic shape a search record is translated to
// at the gateway boundary before normalization.
type RawResult struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Source is one search result with a url-derived identity. URL keeps the
// provider's original form for display; Key is the normalized dedup key.
// Relevance and Quality are filled by ScoreSources after dedup.
type Source struct {
	URL       string  `json:"url"`
	Title     string  `json:"title"`
	Snippet   string  `json:"snippet"`
	Rank      int     `json:"rank"`
	Relevance float64 `json:"relevance,omitempty"`
	Quality   float64 `json:"quality,omitempty"`
	Key       string  `json:"-"`
}

// NormalizeSource converts a raw provider record into a canonical Source.
// Pure, no I/O. Records without a url are malformed and must be dropped by
// the caller rather than aborting the batch.
func NormalizeSource(raw RawResult, rank int) (Source, error) {
	if strings.TrimSpace(raw.URL) == "" {
		return Source{}, NewMalformedSourceError("search result has no url")
	}

	key, err := DedupKey(raw.URL)
	if err != nil {
		return Source{}, NewMalformedSourceError("search result url is not parseable").WithCause(err)
	}

	return Source{
		URL:     strings.TrimSpace(raw.URL),
		Title:   strings.TrimSpace(raw.Title),
		Snippet: strings.TrimSpace(raw.Description),
		Rank:    rank,
		Key:     key,
	}, nil
}

// DedupKey canonicalizes a url for identity comparison: lower-cased scheme
// and host, default port and trailing slash stripped, query string and
// fragment removed. WHATWG parsing handles the case and port rules.
func DedupKey(raw string) (string, error) {
	u, err := whatwgURL.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}

	u.SetSearch("")
	u.SetHash("")

	key := u.Href(true)
	key = strings.TrimSuffix(key, "?")
	key = strings.TrimSuffix(key, "/")
	return key, nil
}

// Dedupe removes duplicate sources by normalized key, first occurrence wins,
// preserving provider rank order, then caps the unique set at limit. The cap
// applies after dedup so duplicates never starve unique low-ranked sources.
func Dedupe(sources []Source, limit int) []Source {
	if limit <= 0 {
		return []Source{}
	}

	seen := make(map[string]struct{}, len(sources))
	deduped := make([]Source, 0, len(sources))
	for _, source := range sources {
		key := source.Key
		if key == "" {
			var err error
			key, err = DedupKey(source.URL)
			if err != nil {
				continue
			}
			source.Key = key
		}

		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		deduped = append(deduped, source)
	}

	if len(deduped) > limit {
		deduped = deduped[:limit]
	}
	return deduped
}
