package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/taskrelay/backend/domain"
)

const geminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

type geminiBackend struct {
	http   *resty.Client
	apiKey string
	opts   Options
}

// NewGemini returns a backend for the Gemini generateContent API. Gemini has
// no separate system role, so the system prompt is folded into the prompt.
func NewGemini(apiKey string, opts Options) Backend {
	opts = opts.withDefaults()
	return &geminiBackend{
		http:   resty.New().SetTimeout(opts.Timeout),
		apiKey: apiKey,
		opts:   opts,
	}
}

func (b *geminiBackend) Name() string { return "gemini" }

func (b *geminiBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	full := prompt
	if systemPrompt != "" {
		full = systemPrompt + "\n\n" + prompt
	}

	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetQueryParam("key", b.apiKey).
		SetBody(map[string]any{
			"contents": []map[string]any{
				{"parts": []map[string]string{{"text": full}}},
			},
			"generationConfig": map[string]any{
				"temperature":     b.opts.Temperature,
				"maxOutputTokens": b.opts.MaxTokens,
			},
		}).
		Post(geminiURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "gemini request failed", err)
	}
	if resp.IsError() {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("gemini api error: status=%d", resp.StatusCode()))
	}

	content := gjson.GetBytes(resp.Body(), "candidates.0.content.parts.0.text").String()
	if content == "" {
		return "", domain.NewError(domain.ErrCodeParse, "gemini response missing content")
	}
	return content, nil
}
