package llm

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/taskrelay/backend/domain"
)

const deepSeekURL = "https://api.deepseek.com/v1/chat/completions"

type deepSeekBackend struct {
	http *resty.Client
	opts Options
}

// NewDeepSeek returns a backend for the DeepSeek chat-completions API.
func NewDeepSeek(apiKey string, opts Options) Backend {
	opts = opts.withDefaults()
	return &deepSeekBackend{
		http: resty.New().SetTimeout(opts.Timeout).SetAuthToken(apiKey),
		opts: opts,
	}
}

func (b *deepSeekBackend) Name() string { return "deepseek" }

func (b *deepSeekBackend) Complete(ctx context.Context, prompt, systemPrompt string) (string, error) {
	resp, err := b.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]any{
			"model":       "deepseek-chat",
			"messages":    chatMessages(prompt, systemPrompt),
			"temperature": b.opts.Temperature,
			"max_tokens":  b.opts.MaxTokens,
		}).
		Post(deepSeekURL)
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "deepseek request failed", err)
	}
	if resp.IsError() {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("deepseek api error: status=%d", resp.StatusCode()))
	}

	content := gjson.GetBytes(resp.Body(), "choices.0.message.content").String()
	if content == "" {
		return "", domain.NewError(domain.ErrCodeParse, "deepseek response missing content")
	}
	return content, nil
}

func chatMessages(prompt, systemPrompt string) []map[string]string {
	var messages []map[string]string
	if systemPrompt != "" {
		messages = append(messages, map[string]string{"role": "system", "content": systemPrompt})
	}
	return append(messages, map[string]string{"role": "user", "content": prompt})
}
