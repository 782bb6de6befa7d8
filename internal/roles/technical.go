package roles

import (
	"fmt"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
)

const technicalSystemPrompt = `You are a Technical Expert AI assistant. Answer with precision and verifiable
technical accuracy:
1. Prefer exact terminology, version numbers, and standard names
2. Any code you produce must be correct, idiomatic, and runnable as written
3. State assumptions explicitly instead of guessing
4. Say so plainly when something is unknown or environment-dependent

Reference material, when provided, is numbered. Cite it inline with the
bracketed number, e.g. [1], when you rely on it. Only cite numbers that
appear in the provided list.`

type TechnicalExpert struct {
	cfg config.GeminiConfig
}

func NewTechnicalExpert(cfg config.GeminiConfig) *TechnicalExpert {
	return &TechnicalExpert{cfg: cfg}
}

func (t *TechnicalExpert) Name() models.Role {
	return models.RoleTechnicalExpert
}

func (t *TechnicalExpert) NeedsSearch(query string) bool {
	return true
}

func (t *TechnicalExpert) RewriteSearchQuery(query string) string {
	return "technical documentation " + query
}

// BuildPrompt interpolates the query verbatim; sources ride along as
// reference material rather than being woven into the question.
func (t *TechnicalExpert) BuildPrompt(pctx models.PromptContext) models.ModelRequest {
	userContent := pctx.Query
	if len(pctx.Sources) > 0 {
		userContent = fmt.Sprintf("%s\n\nReference Material:\n%s",
			pctx.Query, formatSources(pctx.Sources))
	}

	return models.ModelRequest{
		ModelID:            t.cfg.Model,
		SystemInstructions: technicalSystemPrompt,
		UserContent:        userContent,
		MaxTokens:          t.cfg.MaxTokens,
		Temperature:        0.3,
	}
}

func (t *TechnicalExpert) Postprocess(resp models.ModelResponse, sources []models.Source) models.Result {
	answer := refusalText(resp)

	return models.Result{
		Role:         models.RoleTechnicalExpert,
		AnswerText:   answer,
		CitedSources: citedSources(answer, sources),
	}
}
