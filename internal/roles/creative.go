package roles

import (
	"neuralnexus-pipeline/internal/config"
	"neuralnexus-pipeline/internal/models"
)

const creativeSystemPrompt = `You are a Creative Writer AI assistant focused on:
1. Crafting engaging narratives with vivid descriptions
2. Maintaining consistent tone, voice, and pacing
3. Creating emotional resonance while keeping clarity

Always:
- Be original and creative
- Use varied vocabulary
- Maintain narrative flow
- Consider the target audience`

type CreativeWriter struct {
	cfg config.GeminiConfig
}

func NewCreativeWriter(cfg config.GeminiConfig) *CreativeWriter {
	return &CreativeWriter{cfg: cfg}
}

func (c *CreativeWriter) Name() models.Role {
	return models.RoleCreativeWriter
}

// Creative writing never consults the web.
func (c *CreativeWriter) NeedsSearch(query string) bool {
	return false
}

func (c *CreativeWriter) RewriteSearchQuery(query string) string {
	return query
}

// BuildPrompt omits sources entirely and biases temperature upward.
func (c *CreativeWriter) BuildPrompt(pctx models.PromptContext) models.ModelRequest {
	return models.ModelRequest{
		ModelID:            c.cfg.Model,
		SystemInstructions: creativeSystemPrompt,
		UserContent:        pctx.Query,
		MaxTokens:          c.cfg.MaxTokens,
		Temperature:        0.9,
	}
}

func (c *CreativeWriter) Postprocess(resp models.ModelResponse, sources []models.Source) models.Result {
	return models.Result{
		Role:         models.RoleCreativeWriter,
		AnswerText:   refusalText(resp),
		CitedSources: []models.Source{},
	}
}
