package roles

import (
	"fmt"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
)

const researchSystemPrompt = `You are NeuralNexus's expert research assistant. Your role is to provide comprehensive,
well-researched answers to questions using both the numbered search results and your knowledge.

Structure your response exactly as follows:
SUMMARY: [Brief, clear answer to the question]
ANALYSIS: [Detailed explanation with multiple sections]
KEY_POINTS: [Main takeaways, one per line with bullet points]

Cite sources inline with their bracketed number, e.g. [1] or [3], wherever a
statement relies on a search result. Only cite numbers that appear in the
provided source list. Do not invent sources.`

type ResearchAssistant struct {
	cfg config.GeminiConfig
}

func NewResearchAssistant(cfg config.GeminiConfig) *ResearchAssistant {
	return &ResearchAssistant{cfg: cfg}
}

func (r *ResearchAssistant) Name() models.Role {
	return models.RoleResearch
}

func (r *ResearchAssistant) NeedsSearch(query string) bool {
	return true
}

func (r *ResearchAssistant) RewriteSearchQuery(query string) string {
	return "research " + query
}

func (r *ResearchAssistant) BuildPrompt(pctx models.PromptContext) models.ModelRequest {
	userContent := fmt.Sprintf("Query: %s\n\nSearch Results:\n%s",
		pctx.Query, formatSources(pctx.Sources))

	return models.ModelRequest{
		ModelID:            r.cfg.Model,
		SystemInstructions: researchSystemPrompt,
		UserContent:        userContent,
		MaxTokens:          r.cfg.MaxTokens,
		Temperature:        0.7,
	}
}

func (r *ResearchAssistant) Postprocess(resp models.ModelResponse, sources []models.Source) models.Result {
	answer := refusalText(resp)

	return models.Result{
		Role:         models.RoleResearch,
		AnswerText:   answer,
		CitedSources: citedSources(answer, sources),
	}
}
