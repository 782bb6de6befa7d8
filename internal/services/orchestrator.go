package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
	"neuralnexus-pipeline/internal/roles"
)

// Orchestrator owns the Query→Result lifecycle for one request: role
// dispatch, optional search with dedup, prompt assembly, model invocation,
// and post-processing. No state is retained across requests beyond read-only
// configuration.
type Orchestrator struct {
	searchGateway SearchGateway
	modelGateway  ModelGateway
	enricher      Enricher
	telemetry     Telemetry

	registry map[models.Role]roles.Strategy
	config   config.Config
	logger   *logger.Logger

	activeRequests sync.Map // request_id -> models.Role
	startTime      time.Time
}

func NewOrchestrator(
	searchGateway SearchGateway,
	modelGateway ModelGateway,
	enricher Enricher,
	telemetry Telemetry,
	cfg config.Config,
	log *logger.Logger) *Orchestrator {

	orchestrator := &Orchestrator{
		searchGateway: searchGateway,
		modelGateway:  modelGateway,
		enricher:      enricher,
		telemetry:     telemetry,
		registry:      roles.NewRegistry(cfg.Gemini),
		config:        cfg,
		logger:        log,
		startTime:     time.Now(),
	}

	log.Info("Orchestrator Initialized Successfully",
		"roles_configured", len(orchestrator.registry),
		"max_sources", cfg.Pipeline.MaxSources,
		"max_query_len", cfg.Pipeline.MaxQueryLen)

	return orchestrator
}

// Handle is the sole entry point. It returns either a Result or a typed
// OrchestrationError carrying the role and the stage reached.
func (orchestrator *Orchestrator) Handle(ctx context.Context, role models.Role, rawQuery string) (*models.Result, error) {
	startTime := time.Now()

	strategy, ok := orchestrator.registry[role]
	if !ok {
		return nil, models.NewOrchestrationError(role, models.StagePending,
			models.NewValidationError(fmt.Sprintf("unknown role %q", role)))
	}

	query, err := models.NormalizeQuery(rawQuery, orchestrator.config.Pipeline.MaxQueryLen)
	if err != nil {
		return nil, models.NewOrchestrationError(role, models.StagePending, err)
	}

	requestID := models.GenerateRequestID()
	orchestrator.activeRequests.Store(requestID, role)
	defer orchestrator.activeRequests.Delete(requestID)

	orchestrator.logger.LogRequest(requestID, string(role), "request_started", 0, nil)
	orchestrator.publish(ctx, requestID, role, models.StagePending, models.EventRequestStarted, "request started")

	sources, confidence, degraded, err := orchestrator.gatherSources(ctx, requestID, strategy, query)
	if err != nil {
		orchestrator.failRequest(ctx, requestID, role, models.StageSearching, startTime, err)
		return nil, models.NewOrchestrationError(role, models.StageSearching, err)
	}

	// Prompting and post-processing are pure; they cannot fail the request.
	promptContext := models.PromptContext{Role: role, Query: query, Sources: sources, Confidence: confidence}
	request := strategy.BuildPrompt(promptContext)

	orchestrator.publish(ctx, requestID, role, models.StageInvoking, models.EventModelInvoked, "invoking model")

	response, err := orchestrator.modelGateway.Invoke(ctx, &request)
	if err != nil {
		if ctx.Err() != nil && !models.IsKind(err, models.ErrKindCancelled) {
			err = models.NewCancelledError("request cancelled").WithCause(ctx.Err())
		}
		orchestrator.failRequest(ctx, requestID, role, models.StageInvoking, startTime, err)
		return nil, models.NewOrchestrationError(role, models.StageInvoking, err)
	}

	result := strategy.Postprocess(*response, sources)
	result.RequestID = requestID
	result.DegradedSearch = degraded
	result.Duration = time.Since(startTime)

	// With no usable sources a fact-check verdict would be fabricated, so it
	// is forced to unverifiable instead.
	if role == models.RoleFactCheck && len(sources) == 0 {
		result.Verdict = models.VerdictUnverifiable
	}

	orchestrator.logger.LogRequest(requestID, string(role), "request_completed", result.Duration, nil)
	orchestrator.publish(ctx, requestID, role, models.StageDone, models.EventRequestCompleted,
		fmt.Sprintf("request completed with %d cited sources", len(result.CitedSources)))

	return &result, nil
}

// gatherSources runs the search leg when the strategy asks for it, then
// scores the deduped set and its aggregate confidence. A search outage
// degrades to an empty source set; only cancellation is fatal here.
func (orchestrator *Orchestrator) gatherSources(ctx context.Context, requestID string, strategy roles.Strategy, query string) ([]models.Source, models.SearchConfidence, bool, error) {
	role := strategy.Name()

	if !strategy.NeedsSearch(query) {
		return []models.Source{}, models.SearchConfidence{}, false, nil
	}

	searchQuery := strategy.RewriteSearchQuery(query)
	orchestrator.publish(ctx, requestID, role, models.StageSearching, models.EventSearchStarted, "search issued")

	startTime := time.Now()
	rawSources, err := orchestrator.searchGateway.Search(ctx, searchQuery, orchestrator.config.Search.MaxResults)
	if err != nil {
		if models.IsKind(err, models.ErrKindCancelled) || ctx.Err() != nil {
			return nil, models.SearchConfidence{}, false, models.NewCancelledError("request cancelled").WithCause(err)
		}

		orchestrator.logger.WithError(err).Warn("Search failed, proceeding with empty source set",
			"request_id", requestID, "role", role)
		orchestrator.publish(ctx, requestID, role, models.StageSearching, models.EventSearchDegraded, "search unavailable, degraded")
		return []models.Source{}, models.CalculateConfidence(nil), true, nil
	}

	sources := models.Dedupe(rawSources, orchestrator.config.Pipeline.MaxSources)
	if orchestrator.enricher != nil {
		sources = orchestrator.enricher.EnrichSources(ctx, sources)
	}
	sources = models.ScoreSources(sources, query)
	confidence := models.CalculateConfidence(sources)

	orchestrator.logger.LogStage(requestID, string(models.StageSearching),
		fmt.Sprintf("search returned %d sources, %d after dedup", len(rawSources), len(sources)),
		time.Since(startTime), nil)
	orchestrator.publish(ctx, requestID, role, models.StageSearching, models.EventSearchCompleted,
		fmt.Sprintf("%d unique sources, confidence %.2f", len(sources), confidence.Score))

	return sources, confidence, false, nil
}

func (orchestrator *Orchestrator) failRequest(ctx context.Context, requestID string, role models.Role, stage models.Stage, startTime time.Time, err error) {
	duration := time.Since(startTime)
	orchestrator.logger.LogRequest(requestID, string(role), "request_failed", duration, err)

	eventType := models.EventRequestFailed
	if stage == models.StageInvoking {
		eventType = models.EventModelFailed
	}
	orchestrator.publish(ctx, requestID, role, models.StageFailed, eventType, safeErrorMessage(err))
}

// publish emits telemetry fire-and-forget; a nil telemetry sink is allowed.
func (orchestrator *Orchestrator) publish(ctx context.Context, requestID string, role models.Role, stage models.Stage, eventType models.EventType, message string) {
	if orchestrator.telemetry == nil {
		return
	}
	orchestrator.telemetry.Publish(ctx, models.NewPipelineEvent(requestID, role, stage, eventType, message))
}

// safeErrorMessage keeps provider error bodies out of telemetry.
func safeErrorMessage(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal error"
}

func (orchestrator *Orchestrator) HealthCheck(ctx context.Context) error {
	checks := map[string]func() error{
		"search": func() error { return orchestrator.searchGateway.HealthCheck(ctx) },
		"model":  func() error { return orchestrator.modelGateway.HealthCheck(ctx) },
	}

	for name, check := range checks {
		if err := check(); err != nil {
			return fmt.Errorf("service %s health check failed: %w", name, err)
		}
	}
	return nil
}

func (orchestrator *Orchestrator) GetActiveRequestCount() int {
	count := 0
	orchestrator.activeRequests.Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

func (orchestrator *Orchestrator) GetStats() map[string]interface{} {
	roleNames := make([]string, 0, len(orchestrator.registry))
	for role := range orchestrator.registry {
		roleNames = append(roleNames, string(role))
	}

	return map[string]interface{}{
		"service":         "orchestrator",
		"uptime_seconds":  time.Since(orchestrator.startTime).Seconds(),
		"active_requests": orchestrator.GetActiveRequestCount(),
		"roles":           roleNames,
		"max_sources":     orchestrator.config.Pipeline.MaxSources,
	}
}

// Close waits briefly for in-flight requests to drain.
func (orchestrator *Orchestrator) Close() error {
	orchestrator.logger.Info("Orchestrator shutting down")

	timeout := time.After(30 * time.Second)
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-timeout:
			if active := orchestrator.GetActiveRequestCount(); active > 0 {
				orchestrator.logger.Warn("Timeout waiting for requests to complete", "active_requests", active)
			}
			return nil
		case <-ticker.C:
			if orchestrator.GetActiveRequestCount() == 0 {
				orchestrator.logger.Info("All requests completed, orchestrator closed")
				return nil
			}
		}
	}
}
