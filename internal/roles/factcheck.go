package roles

import (
	"fmt"
	"regexp"
	"strings"

	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
)

const factCheckSystemPrompt = `You are a Fact Checker AI assistant focused on:
1. Evaluating claims against the numbered search results
2. Distinguishing between facts and opinions
3. Cross-referencing multiple sources
4. Highlighting potential misinformation

Structure your response exactly as follows:
VERDICT: [SUPPORTED/REFUTED/MIXED/UNVERIFIABLE]
EXPLANATION: [Clear explanation of your verdict]
CONTEXT: [Additional context or nuance]

Cite sources inline with their bracketed number, e.g. [1] or [2], for every
piece of evidence. Only cite numbers that appear in the provided source list.
If the sources do not allow a determination, use UNVERIFIABLE.`

const factCheckOpinionNote = `

The claim appears to be opinion-based rather than purely factual. Label it as
subjective in your explanation, present balanced perspectives, and still
provide factual context where possible.`

var verdictLinePattern = regexp.MustCompile(`(?m)^\s*VERDICT:\s*(\S+)`)

// opinionIndicators flag subjective claims: preference, moral or aesthetic
// judgment, and belief wording.
var opinionIndicators = []*regexp.Regexp{
	regexp.MustCompile(`\b(best|better|worst|worse|favorite|prefer)\b`),
	regexp.MustCompile(`\b(should|ought|right|wrong|good|bad)\b`),
	regexp.MustCompile(`\b(beautiful|ugly|nice|pleasant|attractive)\b`),
	regexp.MustCompile(`\b(feel|think|believe|opinion|viewpoint)\b`),
	regexp.MustCompile(`\b(popular|controversial|debatable)\b`),
}

type FactChecker struct {
	cfg config.GeminiConfig
}

func NewFactChecker(cfg config.GeminiConfig) *FactChecker {
	return &FactChecker{cfg: cfg}
}

func (f *FactChecker) Name() models.Role {
	return models.RoleFactCheck
}

func (f *FactChecker) NeedsSearch(query string) bool {
	return true
}

// RewriteSearchQuery focuses the claim for evidence retrieval: quoting and
// filler punctuation are stripped and a verification cue is prepended.
func (f *FactChecker) RewriteSearchQuery(query string) string {
	claim := strings.Trim(strings.TrimSpace(query), `"'.!?`)
	return "fact check " + claim
}

func (f *FactChecker) IsOpinionBased(query string) bool {
	lowered := strings.ToLower(query)
	for _, pattern := range opinionIndicators {
		if pattern.MatchString(lowered) {
			return true
		}
	}
	return false
}

func (f *FactChecker) BuildPrompt(pctx models.PromptContext) models.ModelRequest {
	system := factCheckSystemPrompt
	if f.IsOpinionBased(pctx.Query) {
		system += factCheckOpinionNote
	}

	userContent := fmt.Sprintf("Evaluate this claim: %q\n\nSearch Results (Confidence Score: %.2f):\nConfidence Reasons: %s\n\n%s",
		pctx.Query, pctx.Confidence.Score, strings.Join(pctx.Confidence.Reasons, ", "),
		formatSources(pctx.Sources))

	return models.ModelRequest{
		ModelID:            f.cfg.Model,
		SystemInstructions: system,
		UserContent:        userContent,
		MaxTokens:          f.cfg.MaxTokens,
		Temperature:        0.2,
	}
}

// Postprocess extracts the verdict token from the VERDICT: line. A missing or
// unrecognized token degrades to unverifiable with the raw text preserved;
// it never fails the request.
func (f *FactChecker) Postprocess(resp models.ModelResponse, sources []models.Source) models.Result {
	answer := refusalText(resp)

	verdict := models.VerdictUnverifiable
	if match := verdictLinePattern.FindStringSubmatch(resp.RawText); match != nil {
		verdict = models.ParseVerdict(match[1])
	}

	return models.Result{
		Role:         models.RoleFactCheck,
		AnswerText:   answer,
		CitedSources: citedSources(answer, sources),
		Verdict:      verdict,
	}
}
