package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/taskrelay/backend/domain"
)

const openAIURL = "https://api.openai.com/v1/chat/completions"

type openAIBackend struct {
	http *resty.Client
	opts Options
}

// NewOpenAI returns a backend for the OpenAI chat-completions API.
func NewOpenAI(apiKey string, opts Options) Backend {
	opts = opts.withDefaults()
	return &openAIBackend{
		http: resty.New().SetTimeout(opts.Timeout).SetAuthToken(apiKey),
		opts: opts,
	}
}

func (b *openAIBackend) Name() string { return "openai" }

func (b *openAIBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":       "gpt-4o-mini",
			"messages":    chatMessages(prompt, systemPrompt),
			"temperature": b.opts.Temperature,
			"max_tokens":  b.opts.MaxTokens,
		}).
		Post(openAIURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "openai request failed", err)
	}
	if resp.IsError() {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("openai api error: status=%d", resp.StatusCode()))
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content").String()
	if content == "" {
		return "", domain.NewError(domain.ErrCodeParse, "openai response missing content")
	}
	return content, nil
}
