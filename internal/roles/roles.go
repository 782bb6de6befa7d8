// Package roles implements the per-role strategies: search decision and
// query rewriting, prompt assembly, and post-processing of the model output
// into a structured result.
package roles

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
)

// Strategy is the shared capability set every role variant implements.
type Strategy interface {
	Name() models.Role
	NeedsSearch(query string) bool
	RewriteSearchQuery(query string) string
	BuildPrompt(pctx models.PromptContext) models.ModelRequest
	Postprocess(resp models.ModelResponse, sources []models.Source) models.Result
}

// NewRegistry builds the role dispatch table. Role-specific behavior lives
// behind the Strategy interface rather than branching in the orchestrator.
func NewRegistry(cfg config.GeminiConfig) map[models.Role]Strategy {
	return map[models.Role]Strategy{
		models.RoleResearch:        NewResearchAssistant(cfg),
		models.RoleFactCheck:       NewFactChecker(cfg),
		models.RoleTechnicalExpert: NewTechnicalExpert(cfg),
		models.RoleCreativeWriter:  NewCreativeWriter(cfg),
	}
}

var citationMarkerPattern = regexp.MustCompile(`\[(\d+)\]`)

// formatSources renders the numbered source block interpolated into prompts.
// The [n] numbers are the citation markers the model is told to reference.
func formatSources(sources []models.Source) string {
	if len(sources) == 0 {
		return "(no sources available)"
	}

	var b strings.Builder
	for i, source := range sources {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, source.Title)
		fmt.Fprintf(&b, "    URL: %s\n", source.URL)
		if source.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", source.Snippet)
		}
		if source.Relevance > 0 {
			fmt.Fprintf(&b, "    Relevance: %.2f\n", source.Relevance)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// citedSources returns the subsequence of sources whose [n] marker appears in
// the answer text. Sources the model never referenced are dropped so the
// user-facing citation list stays honest.
func citedSources(answerText string, sources []models.Source) []models.Source {
	cited := make([]models.Source, 0, len(sources))
	if len(sources) == 0 {
		return cited
	}

	referenced := make(map[int]struct{})
	for _, match := range citationMarkerPattern.FindAllStringSubmatch(answerText, -1) {
		index, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		referenced[index] = struct{}{}
	}

	for i, source := range sources {
		if _, ok := referenced[i+1]; ok {
			cited = append(cited, source)
		}
	}
	return cited
}

// refusalText supplies the answer body when the provider refused and returned
// no text. A refusal is presented, not treated as a pipeline error.
func refusalText(resp models.ModelResponse) string {
	text := strings.TrimSpace(resp.RawText)
	if text != "" {
		return text
	}
	if resp.FinishReason == models.FinishRefused {
		return "The model declined to answer this request."
	}
	return text
}
