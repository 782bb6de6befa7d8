package models_test

import (
	"testing"

	"neuralnexus-pipeline/internal/models"
)

func TestNormalizeSourceMissingURL(t *testing.T) {
	_, err := models.NormalizeSource(models.RawResult{Title: "No link"}, 1)
	if err == nil {
		t.Fatal("Expected error for source without url")
	}
	if !models.IsKind(err, models.ErrKindMalformedSource) {
		t.Errorf("Expected malformed_source kind, got %v", err)
	}
}

func TestNormalizeSourceTrimsFields(t *testing.T) {
	source, err := models.NormalizeSource(models.RawResult{
		URL:         "  https://example.com/a  ",
		Title:       " Title ",
		Description: " Snippet ",
	}, 3)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if source.URL != "https://example.com/a" {
		t.Errorf("URL not trimmed: %q", source.URL)
	}
	if source.Title != "Title" || source.Snippet != "Snippet" {
		t.Errorf("Fields not trimmed: %+v", source)
	}
	if source.Rank != 3 {
		t.Errorf("Rank not preserved: %d", source.Rank)
	}
	if source.Key == "" {
		t.Error("Key should be populated")
	}
}

func TestDedupKeyNormalization(t *testing.T) {
	variants := []string{
		"https://Example.COM/path",
		"https://example.com:443/path",
		"https://example.com/path/",
		"https://example.com/path?utm_source=x",
		"https://example.com/path#section",
	}

	base, err := models.DedupKey("https://example.com/path")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for _, variant := range variants {
		key, err := models.DedupKey(variant)
		if err != nil {
			t.Fatalf("DedupKey(%q) failed: %v", variant, err)
		}
		if key != base {
			t.Errorf("DedupKey(%q) = %q, want %q", variant, key, base)
		}
	}
}

func TestDedupKeyDistinguishesDifferentPages(t *testing.T) {
	a, _ := models.DedupKey("https://example.com/a")
	b, _ := models.DedupKey("https://example.com/b")
	if a == b {
		t.Errorf("Distinct paths should have distinct keys, both %q", a)
	}

	http, _ := models.DedupKey("http://example.com/a")
	if a == http {
		t.Error("Different schemes should have distinct keys")
	}
}

func mustSource(t *testing.T, url string, rank int) models.Source {
	t.Helper()
	source, err := models.NormalizeSource(models.RawResult{URL: url, Title: url}, rank)
	if err != nil {
		t.Fatalf("NormalizeSource(%q) failed: %v", url, err)
	}
	return source
}

func TestDedupeFirstSeenWins(t *testing.T) {
	sources := []models.Source{
		mustSource(t, "https://example.com/a", 1),
		mustSource(t, "https://EXAMPLE.com/a/", 2),
		mustSource(t, "https://example.com/b", 3),
		mustSource(t, "https://example.com/a?ref=home", 4),
		mustSource(t, "https://example.com/c", 5),
	}

	deduped := models.Dedupe(sources, 10)
	if len(deduped) != 3 {
		t.Fatalf("Expected 3 unique sources, got %d", len(deduped))
	}
	if deduped[0].Rank != 1 || deduped[1].Rank != 3 || deduped[2].Rank != 5 {
		t.Errorf("First occurrence should win with rank order preserved: %+v", deduped)
	}
}

func TestDedupeLimitAppliesAfterDedup(t *testing.T) {
	// Duplicates of the top-ranked source must not crowd out unique ones.
	sources := []models.Source{
		mustSource(t, "https://example.com/a", 1),
		mustSource(t, "https://example.com/a", 2),
		mustSource(t, "https://example.com/a", 3),
		mustSource(t, "https://example.com/b", 4),
		mustSource(t, "https://example.com/c", 5),
	}

	deduped := models.Dedupe(sources, 2)
	if len(deduped) != 2 {
		t.Fatalf("Expected 2 sources, got %d", len(deduped))
	}
	if deduped[0].Rank != 1 || deduped[1].Rank != 4 {
		t.Errorf("Expected ranks 1 and 4, got %+v", deduped)
	}
}

func TestDedupeZeroLimit(t *testing.T) {
	sources := []models.Source{mustSource(t, "https://example.com/a", 1)}

	if got := models.Dedupe(sources, 0); len(got) != 0 {
		t.Errorf("Limit 0 should yield empty set, got %d entries", len(got))
	}
	if got := models.Dedupe(sources, -1); len(got) != 0 {
		t.Errorf("Negative limit should yield empty set, got %d entries", len(got))
	}
}

func TestDedupeIdempotent(t *testing.T) {
	sources := []models.Source{
		mustSource(t, "https://example.com/a", 1),
		mustSource(t, "https://example.com/a", 2),
		mustSource(t, "https://example.com/b", 3),
	}

	once := models.Dedupe(sources, 10)
	twice := models.Dedupe(once, 10)

	if len(once) != len(twice) {
		t.Fatalf("Dedupe not idempotent: %d then %d", len(once), len(twice))
	}
	for i := range once {
		if once[i].URL != twice[i].URL {
			t.Errorf("Entry %d changed on second pass: %q vs %q", i, once[i].URL, twice[i].URL)
		}
	}
}

func TestDedupeEmptyInput(t *testing.T) {
	if got := models.Dedupe(nil, 5); len(got) != 0 {
		t.Errorf("Nil input should yield empty set, got %d entries", len(got))
	}
}
