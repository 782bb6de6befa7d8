package services

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
)

// sourceURLKey names the request-context slot carrying the source's original
// URL string, so fetched descriptions map back to the exact Source they came
// from.
const sourceURLKey = "source_url"

// Enricher fills in thin source snippets. Strictly best-effort: any failure
// leaves the source exactly as the provider returned it.
type Enricher interface {
	EnrichSources(ctx context.Context, sources []models.Source) []models.Source
}

type EnrichmentService struct {
	config config.EnrichConfig
	logger *logger.Logger
}

func NewEnrichmentService(cfg config.EnrichConfig, log *logger.Logger) *EnrichmentService {
	log.Info("Enrichment Service Initialized Successfully",
		"enabled", cfg.Enabled,
		"max_concurrency", cfg.MaxConcurrency,
		"min_snippet_len", cfg.MinSnippetLen)

	return &EnrichmentService{config: cfg, logger: log}
}

// EnrichSources fetches the page meta description for sources whose provider
// snippet is shorter than the configured threshold.
func (service *EnrichmentService) EnrichSources(ctx context.Context, sources []models.Source) []models.Source {
	if !service.config.Enabled || len(sources) == 0 || ctx.Err() != nil {
		return sources
	}

	thin := make([]string, 0, len(sources))
	for _, source := range sources {
		if len(source.Snippet) < service.config.MinSnippetLen {
			thin = append(thin, source.URL)
		}
	}
	if len(thin) == 0 {
		return sources
	}

	startTime := time.Now()
	descriptions := service.fetchDescriptions(thin)

	enriched := make([]models.Source, len(sources))
	copy(enriched, sources)
	filled := 0
	for i := range enriched {
		if len(enriched[i].Snippet) >= service.config.MinSnippetLen {
			continue
		}
		if desc, ok := descriptions[enriched[i].URL]; ok && len(desc) > len(enriched[i].Snippet) {
			enriched[i].Snippet = desc
			filled++
		}
	}

	service.logger.LogService("enrich", "fetch_descriptions", time.Since(startTime), map[string]interface{}{
		"thin_sources": len(thin),
		"filled":       filled,
	}, nil)

	return enriched
}

func (service *EnrichmentService) fetchDescriptions(urls []string) map[string]string {
	collector := colly.NewCollector(
		colly.UserAgent("NeuralNexus-Pipeline/1.0"),
		colly.MaxDepth(1),
		colly.Async(true),
	)
	collector.SetRequestTimeout(service.config.Timeout)

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: service.config.MaxConcurrency,
	}); err != nil {
		service.logger.WithError(err).Warn("Failed to configure enrichment rate limit")
	}

	var mu sync.Mutex
	descriptions := make(map[string]string)

	// The map is keyed on the source's original URL string, carried through
	// the request context. Keying on e.Request.URL would use colly's
	// re-parsed form, which can drift from the original and skip the fill.
	collector.OnHTML("head", func(e *colly.HTMLElement) {
		desc := metaDescription(e.DOM)
		if desc == "" {
			return
		}

		key := e.Request.Ctx.Get(sourceURLKey)
		if key == "" {
			key = e.Request.URL.String()
		}
		mu.Lock()
		descriptions[key] = desc
		mu.Unlock()
	})

	collector.OnError(func(resp *colly.Response, err error) {
		service.logger.WithError(err).Debug("Source enrichment fetch failed", "url", resp.Request.URL.String())
	})

	for _, u := range urls {
		reqCtx := colly.NewContext()
		reqCtx.Put(sourceURLKey, u)
		if err := collector.Request(http.MethodGet, u, nil, reqCtx, nil); err != nil {
			service.logger.WithError(err).Debug("Skipping unenrichable source", "url", u)
		}
	}
	collector.Wait()

	return descriptions
}

func metaDescription(head *goquery.Selection) string {
	desc := head.Find(`meta[name="description"]`).AttrOr("content", "")
	if strings.TrimSpace(desc) == "" {
		desc = head.Find(`meta[property="og:description"]`).AttrOr("content", "")
	}
	return strings.TrimSpace(desc)
}
