package services_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
	"neuralnexus-pipeline/internal/pkg/logger"
	"neuralnexus-pipeline/internal/services"
)

type fakeSearchGateway struct {
	mu      sync.Mutex
	calls   int
	queries []string
	results []models.Source
	err     error
}

func (f *fakeSearchGateway) Search(ctx context.Context, query string, maxResults int) ([]models.Source, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.queries = append(f.queries, query)
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func (f *fakeSearchGateway) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeSearchGateway) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeModelGateway struct {
	mu       sync.Mutex
	calls    int
	requests []models.ModelRequest
	response *models.ModelResponse
	err      error
}

func (f *fakeModelGateway) Invoke(ctx context.Context, request *models.ModelRequest) (*models.ModelResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.requests = append(f.requests, *request)
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func (f *fakeModelGateway) HealthCheck(ctx context.Context) error { return nil }

func (f *fakeModelGateway) lastRequest() models.ModelRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []models.PipelineEvent
}

func (r *recordingTelemetry) Publish(ctx context.Context, event *models.PipelineEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, *event)
}

func (r *recordingTelemetry) Close() error { return nil }

func (r *recordingTelemetry) eventTypes() []models.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]models.EventType, 0, len(r.events))
	for _, event := range r.events {
		types = append(types, event.Type)
	}
	return types
}

func testConfig() config.Config {
	return config.Config{
		Environment: "test",
		Search:      config.SearchConfig{MaxResults: 10},
		Gemini:      config.GeminiConfig{Model: "gemini-2.0-flash", MaxTokens: 1024},
		Pipeline:    config.PipelineConfig{MaxQueryLen: 2000, MaxSources: 10},
	}
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New(config.LogConfig{Level: "error", Format: "json", Output: "stdout"})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return log
}

func newTestOrchestrator(t *testing.T, search *fakeSearchGateway, model *fakeModelGateway, telemetry services.Telemetry) *services.Orchestrator {
	t.Helper()
	return services.NewOrchestrator(search, model, nil, telemetry, testConfig(), testLogger(t))
}

func searchResult(t *testing.T, url string, rank int) models.Source {
	t.Helper()
	source, err := models.NormalizeSource(models.RawResult{URL: url, Title: url, Description: "snippet"}, rank)
	if err != nil {
		t.Fatalf("NormalizeSource(%q) failed: %v", url, err)
	}
	return source
}

func TestHandleResearchDeduplicatesBeforePrompting(t *testing.T) {
	search := &fakeSearchGateway{results: []models.Source{
		searchResult(t, "https://example.com/a", 1),
		searchResult(t, "https://example.com/a/", 2),
		searchResult(t, "https://example.com/b", 3),
		searchResult(t, "https://EXAMPLE.com/b", 4),
		searchResult(t, "https://example.com/c", 5),
	}}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "SUMMARY: answer [1] and [3]",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	result, err := orchestrator.Handle(context.Background(), models.RoleResearch, "what is Go")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	prompt := model.lastRequest().UserContent
	for _, marker := range []string{"[1]", "[2]", "[3]"} {
		if !strings.Contains(prompt, marker) {
			t.Errorf("Prompt missing source marker %q", marker)
		}
	}
	if strings.Contains(prompt, "[4]") {
		t.Error("Duplicates must be removed before prompt assembly")
	}

	if len(result.CitedSources) != 2 {
		t.Fatalf("Expected 2 cited sources, got %d", len(result.CitedSources))
	}
	seen := map[string]bool{}
	for _, cited := range result.CitedSources {
		seen[cited.URL] = true
	}
	if !seen["https://example.com/a"] || !seen["https://example.com/c"] {
		t.Errorf("Cited sources should be markers [1] and [3]: %+v", result.CitedSources)
	}

	if result.DegradedSearch {
		t.Error("Successful search must not be flagged degraded")
	}
	if result.RequestID == "" {
		t.Error("Result must carry a request id")
	}
	if search.callCount() != 1 {
		t.Errorf("Expected exactly one search call, got %d", search.callCount())
	}
}

func TestHandleSearchOutageDegradesFactCheck(t *testing.T) {
	search := &fakeSearchGateway{err: models.NewSearchUnavailableError("provider down")}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "VERDICT: SUPPORTED\nEXPLANATION: from memory",
		FinishReason: models.FinishComplete,
	}}
	telemetry := &recordingTelemetry{}
	orchestrator := newTestOrchestrator(t, search, model, telemetry)

	result, err := orchestrator.Handle(context.Background(), models.RoleFactCheck, "the earth is round")
	if err != nil {
		t.Fatalf("Search outage must degrade, not fail: %v", err)
	}

	if !result.DegradedSearch {
		t.Error("DegradedSearch must be set after a search outage")
	}
	if result.Verdict != models.VerdictUnverifiable {
		t.Errorf("Fact check without sources must be unverifiable, got %q", result.Verdict)
	}
	if len(result.CitedSources) != 0 {
		t.Errorf("No sources were available, got %d citations", len(result.CitedSources))
	}

	degraded := false
	for _, eventType := range telemetry.eventTypes() {
		if eventType == models.EventSearchDegraded {
			degraded = true
		}
	}
	if !degraded {
		t.Error("A search_degraded event should have been published")
	}
}

func TestHandleCreativeWriterNeverSearches(t *testing.T) {
	search := &fakeSearchGateway{}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "A short poem.",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	result, err := orchestrator.Handle(context.Background(), models.RoleCreativeWriter, "write a poem about rivers")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if search.callCount() != 0 {
		t.Errorf("Creative writer must not search, got %d calls", search.callCount())
	}
	if result.DegradedSearch {
		t.Error("Skipped search is not a degraded search")
	}
	if len(result.CitedSources) != 0 {
		t.Errorf("Creative results carry no citations, got %d", len(result.CitedSources))
	}
}

func TestHandleModelAuthFailureIsFatal(t *testing.T) {
	search := &fakeSearchGateway{results: []models.Source{searchResult(t, "https://example.com/a", 1)}}
	model := &fakeModelGateway{err: models.NewAuthenticationError("invalid api key")}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	_, err := orchestrator.Handle(context.Background(), models.RoleResearch, "what is Go")
	if err == nil {
		t.Fatal("Expected error on authentication failure")
	}

	var orchestrationErr *models.OrchestrationError
	if !errors.As(err, &orchestrationErr) {
		t.Fatalf("Expected OrchestrationError, got %T", err)
	}
	if orchestrationErr.Stage != models.StageInvoking {
		t.Errorf("Expected failure at invoking stage, got %q", orchestrationErr.Stage)
	}
	if !models.IsKind(err, models.ErrKindAuthentication) {
		t.Errorf("Authentication kind must survive wrapping: %v", err)
	}
	if model.calls != 1 {
		t.Errorf("Expected exactly one invocation, got %d", model.calls)
	}
}

func TestHandleRejectsEmptyQuery(t *testing.T) {
	search := &fakeSearchGateway{}
	model := &fakeModelGateway{}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	_, err := orchestrator.Handle(context.Background(), models.RoleResearch, "   ")
	if err == nil {
		t.Fatal("Expected validation error for empty query")
	}
	if !models.IsKind(err, models.ErrKindValidation) {
		t.Errorf("Expected validation kind, got %v", err)
	}
	if search.callCount() != 0 || model.calls != 0 {
		t.Error("No gateway may be called for an invalid query")
	}
}

func TestHandleRejectsUnknownRole(t *testing.T) {
	orchestrator := newTestOrchestrator(t, &fakeSearchGateway{}, &fakeModelGateway{}, nil)

	_, err := orchestrator.Handle(context.Background(), models.Role("astrologer"), "what is Go")
	if err == nil {
		t.Fatal("Expected error for unknown role")
	}
	if !models.IsKind(err, models.ErrKindValidation) {
		t.Errorf("Expected validation kind, got %v", err)
	}
}

func TestHandleCancelledSearchIsFatal(t *testing.T) {
	search := &fakeSearchGateway{err: models.NewCancelledError("request cancelled")}
	model := &fakeModelGateway{}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	_, err := orchestrator.Handle(context.Background(), models.RoleResearch, "what is Go")
	if err == nil {
		t.Fatal("Cancellation must not degrade to an empty source set")
	}
	if !models.IsKind(err, models.ErrKindCancelled) {
		t.Errorf("Expected cancelled kind, got %v", err)
	}
	if model.calls != 0 {
		t.Errorf("Model must not be invoked after cancellation, got %d calls", model.calls)
	}
}

func TestHandleUsesRewrittenSearchQuery(t *testing.T) {
	search := &fakeSearchGateway{}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "VERDICT: UNVERIFIABLE",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	_, err := orchestrator.Handle(context.Background(), models.RoleFactCheck, `"Bananas are radioactive."`)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	if len(search.queries) != 1 {
		t.Fatalf("Expected one search query, got %d", len(search.queries))
	}
	if !strings.HasPrefix(search.queries[0], "fact check ") {
		t.Errorf("Fact check search query should be rewritten, got %q", search.queries[0])
	}
}

func TestHandleScoresSourcesAndThreadsConfidence(t *testing.T) {
	sourceA, err := models.NormalizeSource(models.RawResult{
		URL:         "https://example.edu/a",
		Title:       "Evidence that the earth is round",
		Description: "measurements",
	}, 1)
	if err != nil {
		t.Fatalf("NormalizeSource failed: %v", err)
	}
	sourceB, err := models.NormalizeSource(models.RawResult{
		URL:         "https://example.edu/b",
		Title:       "Earth shape observations",
		Description: "the earth is round",
	}, 2)
	if err != nil {
		t.Fatalf("NormalizeSource failed: %v", err)
	}

	search := &fakeSearchGateway{results: []models.Source{sourceA, sourceB}}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "VERDICT: SUPPORTED\nEXPLANATION: evidence [1]",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	if _, err = orchestrator.Handle(context.Background(), models.RoleFactCheck, "the earth is round"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	prompt := model.lastRequest().UserContent
	if !strings.Contains(prompt, "Confidence Score: 0.") {
		t.Errorf("Fact check prompt must carry the aggregate confidence:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Relevance: ") {
		t.Errorf("Scored sources must show relevance in the prompt:\n%s", prompt)
	}
}

func TestHandleDegradedSearchConfidenceIsZero(t *testing.T) {
	search := &fakeSearchGateway{err: models.NewSearchUnavailableError("provider down")}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "VERDICT: UNVERIFIABLE",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	_, err := orchestrator.Handle(context.Background(), models.RoleFactCheck, "claim without evidence")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	prompt := model.lastRequest().UserContent
	if !strings.Contains(prompt, "Confidence Score: 0.00") {
		t.Errorf("Degraded search must yield zero confidence in the prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "No sources found") {
		t.Errorf("Degraded search must state the no-sources reason:\n%s", prompt)
	}
}

func TestHandlePublishesLifecycleEvents(t *testing.T) {
	search := &fakeSearchGateway{results: []models.Source{searchResult(t, "https://example.com/a", 1)}}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "SUMMARY: answer [1]",
		FinishReason: models.FinishComplete,
	}}
	telemetry := &recordingTelemetry{}
	orchestrator := newTestOrchestrator(t, search, model, telemetry)

	if _, err := orchestrator.Handle(context.Background(), models.RoleResearch, "what is Go"); err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	want := []models.EventType{
		models.EventRequestStarted,
		models.EventSearchStarted,
		models.EventSearchCompleted,
		models.EventModelInvoked,
		models.EventRequestCompleted,
	}
	got := telemetry.eventTypes()
	if len(got) != len(want) {
		t.Fatalf("Expected %d events, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Event %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHandleResultCarriesDuration(t *testing.T) {
	search := &fakeSearchGateway{}
	model := &fakeModelGateway{response: &models.ModelResponse{
		RawText:      "A poem.",
		FinishReason: models.FinishComplete,
	}}
	orchestrator := newTestOrchestrator(t, search, model, nil)

	result, err := orchestrator.Handle(context.Background(), models.RoleCreativeWriter, "write a poem")
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if result.Duration <= 0 || result.Duration > time.Minute {
		t.Errorf("Implausible duration: %v", result.Duration)
	}
}

func TestGetStatsReportsRoles(t *testing.T) {
	orchestrator := newTestOrchestrator(t, &fakeSearchGateway{}, &fakeModelGateway{}, nil)

	stats := orchestrator.GetStats()
	rolesValue, ok := stats["roles"].([]string)
	if !ok {
		t.Fatalf("stats roles has unexpected type %T", stats["roles"])
	}
	if len(rolesValue) != len(models.AllRoles()) {
		t.Errorf("Expected %d roles, got %d", len(models.AllRoles()), len(rolesValue))
	}
	if stats["active_requests"].(int) != 0 {
		t.Errorf("Expected no active requests, got %v", stats["active_requests"])
	}
}
