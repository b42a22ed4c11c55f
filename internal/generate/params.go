package generate

import (
	"strings"

	"lowkeyllama/internal/config"
	"lowkeyllama/internal/ollama"
	"lowkeyllama/pkg/types"
)

// Built-in defaults for models without a profile.
const (
	defaultTemperature   = 0.7
	defaultMaxTokens     = 500
	defaultContextWindow = 4096
	maxTokensLimit       = 4096
)

// promptPlaceholder marks where the user prompt goes in a prompt_template.
const promptPlaceholder = "{{prompt}}"

func validate(req types.GenerateRequest) error {
	if strings.TrimSpace(req.Prompt) == "" {
		return badRequest("prompt is required")
	}
	if v := req.MaxTokens; v != nil && (*v < 1 || *v > maxTokensLimit) {
		return badRequest("max_tokens must be between 1 and %d", maxTokensLimit)
	}
	if v := req.Temperature; v != nil && (*v < 0 || *v > 1) {
		return badRequest("temperature must be between 0 and 1")
	}
	if v := req.TopP; v != nil && (*v < 0 || *v > 1) {
		return badRequest("top_p must be between 0 and 1")
	}
	if v := req.TopK; v != nil && *v < 0 {
		return badRequest("top_k must not be negative")
	}
	if v := req.RepeatPenalty; v != nil && *v < 0 {
		return badRequest("repeat_penalty must not be negative")
	}
	return nil
}

// resolveOptions layers request values over the model profile over the
// built-in defaults.
func resolveOptions(req types.GenerateRequest, p config.ModelProfile) *ollama.Options {
	temp := defaultTemperature
	if p.Temperature != nil {
		temp = *p.Temperature
	}
	if req.Temperature != nil {
		temp = *req.Temperature
	}
	o := &ollama.Options{
		Temperature:   &temp,
		TopP:          p.TopP,
		TopK:          p.TopK,
		RepeatPenalty: p.RepeatPenalty,
		Seed:          p.Seed,
		Stop:          p.Stop,
		NumPredict:    p.MaxTokens,
		NumCtx:        p.ContextWindow,
	}
	if o.NumPredict <= 0 {
		o.NumPredict = defaultMaxTokens
	}
	if o.NumCtx <= 0 {
		o.NumCtx = defaultContextWindow
	}
	if req.MaxTokens != nil {
		o.NumPredict = *req.MaxTokens
	}
	if req.TopP != nil {
		o.TopP = req.TopP
	}
	if req.TopK != nil {
		o.TopK = req.TopK
	}
	if req.RepeatPenalty != nil {
		o.RepeatPenalty = req.RepeatPenalty
	}
	return o
}

// applyTemplate substitutes prompt into tpl. A template without the
// placeholder is ignored.
func applyTemplate(tpl, prompt string) string {
	if !strings.Contains(tpl, promptPlaceholder) {
		return prompt
	}
	return strings.ReplaceAll(tpl, promptPlaceholder, prompt)
}
