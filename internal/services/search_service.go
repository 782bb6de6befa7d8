package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
	"neuralnexus-pipeline/internal/pkg/retry"
)

// SearchGateway wraps the web search provider. Absence of results is a valid
// degraded state; only provider unavailability after retries is an error.
type SearchGateway interface {
	Search(ctx context.Context, query string, maxResults int) ([]models.Source, error)
	HealthCheck(ctx context.Context) error
}

type BraveSearchService struct {
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	policy     retry.Policy
	config     config.SearchConfig
	logger     *logger.Logger
}

// braveResponse covers the slice of the provider payload this service reads.
// No provider-specific field leaks past this file.
type braveResponse struct {
	Web struct {
		Results []models.RawResult `json:"results"`
	} `json:"web"`
}

func NewBraveSearchService(cfg config.SearchConfig, log *logger.Logger) (*BraveSearchService, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("search API key required")
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "brave_search",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	})

	service := &BraveSearchService{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		policy: retry.Policy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.RetryDelay,
			MaxDelay:   8 * cfg.RetryDelay,
		},
		config: cfg,
		logger: log,
	}

	log.Info("Search Service Initialized Successfully",
		"provider", "brave",
		"timeout", cfg.Timeout,
		"max_retries", cfg.MaxRetries,
		"max_results", cfg.MaxResults)

	return service, nil
}

// Search runs the provider query with a bounded timeout, retrying transient
// failures. A malformed or empty provider payload yields an empty source set,
// not an error. Never returns more than maxResults records.
func (service *BraveSearchService) Search(ctx context.Context, query string, maxResults int) ([]models.Source, error) {
	startTime := time.Now()

	if maxResults <= 0 || maxResults > service.config.MaxResults {
		maxResults = service.config.MaxResults
	}

	payload, err := retry.Do(ctx, service.policy, isTransientSearchError, func() ([]byte, error) {
		body, err := service.breaker.Execute(func() (interface{}, error) {
			return service.makeSearchRequest(ctx, query, maxResults)
		})
		if err != nil {
			return nil, err
		}
		return body.([]byte), nil
	})

	if err != nil {
		service.logger.LogService("search", "web_search", time.Since(startTime), map[string]interface{}{
			"query_length": len(query),
			"max_results":  maxResults,
		}, err)

		if ctx.Err() != nil {
			return nil, models.NewCancelledError("search cancelled").WithCause(ctx.Err())
		}
		return nil, models.NewSearchUnavailableError("web search is unavailable").WithCause(err)
	}

	sources := service.translateResults(payload, maxResults)

	service.logger.LogService("search", "web_search", time.Since(startTime), map[string]interface{}{
		"query_length":  len(query),
		"results_count": len(sources),
	}, nil)

	return sources, nil
}

func (service *BraveSearchService) makeSearchRequest(ctx context.Context, query string, maxResults int) ([]byte, error) {
	reqCtx, cancel := context.WithTimeout(ctx, service.config.Timeout)
	defer cancel()

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", strconv.Itoa(maxResults))
	params.Set("text_decorations", "false")
	params.Set("text_format", "raw")

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, service.config.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, models.NewModelRequestError("SEARCH_BAD_REQUEST", "failed to build search request").WithCause(err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", service.config.APIKey)

	resp, err := service.httpClient.Do(req)
	if err != nil {
		return nil, models.WrapExternalError("SEARCH", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, models.WrapExternalError("SEARCH", err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, models.WrapExternalError("SEARCH", fmt.Errorf("provider status %d", resp.StatusCode))
	default:
		return nil, models.NewSearchUnavailableError(fmt.Sprintf("search provider rejected the request (status %d)", resp.StatusCode))
	}
}

// translateResults converts the provider payload into canonical sources.
// Individual malformed records are dropped, never propagated; a record that
// fails normalization must not abort the batch.
func (service *BraveSearchService) translateResults(payload []byte, maxResults int) []models.Source {
	var parsed braveResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		service.logger.WithError(err).Warn("Malformed search response, returning empty source set")
		return []models.Source{}
	}

	sources := make([]models.Source, 0, len(parsed.Web.Results))
	for i, raw := range parsed.Web.Results {
		source, err := models.NormalizeSource(raw, i+1)
		if err != nil {
			service.logger.WithError(err).Debug("Dropping malformed search record", "rank", i+1)
			continue
		}
		sources = append(sources, source)
		if len(sources) >= maxResults {
			break
		}
	}
	return sources
}

// isTransientSearchError keeps rate limits, 5xx and network failures in the
// retry loop; everything else stops immediately.
func isTransientSearchError(err error) bool {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Kind == models.ErrKindExternal || appErr.Kind == models.ErrKindTimeout
	}
	return true
}

func (service *BraveSearchService) HealthCheck(ctx context.Context) error {
	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := service.makeSearchRequest(checkCtx, "health check", 1)
	if err != nil {
		return fmt.Errorf("search health check failed: %w", err)
	}
	return nil
}
