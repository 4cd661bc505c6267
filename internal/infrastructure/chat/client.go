package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
)

// Config holds the messaging platform app credentials.
type Config struct {
	BaseURL   string
	AppID     string
	AppSecret string
	Timeout   time.Duration
}

// Client talks to the chat platform messaging API. Sends are fail-soft for
// callers that use the boolean form; the error form carries a TRANSPORT error.
type Client struct {
	http     *resty.Client
	cfg      Config
	logger   *zap.Logger
	mu       sync.Mutex
	token    string
	tokenExp time.Time
}

type apiEnvelope struct {
	Code int            `json:"code"`
	Msg  string         `json:"msg"`
	Data map[string]any `json:"data"`
}

func New(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://open.feishu.cn/open-apis"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		http:   resty.New().SetBaseURL(cfg.BaseURL).SetTimeout(cfg.Timeout),
		cfg:    cfg,
		logger: logger,
	}
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExp) {
		return c.token, nil
	}

	var result struct {
		Code   int    `json:"code"`
		Msg    string `json:"msg"`
		Token  string `json:"tenant_access_token"`
		Expire int    `json:"expire"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{"app_id": c.cfg.AppID, "app_secret": c.cfg.AppSecret}).
		SetResult(&result).
		Post("/auth/v3/tenant_access_token/internal")
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "chat token request failed", err)
	}
	if resp.IsError() || result.Code != 0 {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("chat token request rejected: code=%d msg=%s", result.Code, result.Msg))
	}

	c.token = result.Token
	c.tokenExp = time.Now().Add(time.Duration(result.Expire-60) * time.Second)
	return c.token, nil
}

func (c *Client) send(ctx context.Context, receiveIDType, receiveID, msgType string, content any) error {
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}

	payload, err := json.Marshal(content)
	if err != nil {
		return domain.WrapError(domain.ErrCodeInternal, "encode message content", err)
	}

	var envelope apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("receive_id_type", receiveIDType).
		SetBody(map[string]string{
			"receive_id": receiveID,
			"msg_type":   msgType,
			"content":    string(payload),
		}).
		SetResult(&envelope).
		Post("/im/v1/messages")
	if err != nil {
		return domain.WrapError(domain.ErrCodeTransport, "send message failed", err)
	}
	if resp.IsError() || envelope.Code != 0 {
		return domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("send message rejected: code=%d msg=%s", envelope.Code, envelope.Msg))
	}
	return nil
}

// SendText delivers a plain text message to a chat.
func (c *Client) SendText(ctx context.Context, chatID, text string) error {
	return c.send(ctx, "chat_id", chatID, "text", map[string]string{"text": text})
}

// SendTextToUser delivers a plain text message to a user's direct chat.
func (c *Client) SendTextToUser(ctx context.Context, userID, text string) error {
	return c.send(ctx, "open_id", userID, "text", map[string]string{"text": text})
}

// SendCard delivers an interactive card to a chat.
func (c *Client) SendCard(ctx context.Context, chatID string, card map[string]any) error {
	return c.send(ctx, "chat_id", chatID, "interactive", card)
}

// CreateChat opens a new group chat with the given members and returns its ID.
func (c *Client) CreateChat(ctx context.Context, name string, userIDs []string) (string, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return "", err
	}

	var envelope apiEnvelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParam("user_id_type", "open_id").
		SetBody(map[string]any{"name": name, "user_id_list": userIDs}).
		SetResult(&envelope).
		Post("/im/v1/chats")
	if err != nil {
		return "", domain.WrapError(domain.ErrCodeTransport, "create chat failed", err)
	}
	if resp.IsError() || envelope.Code != 0 {
		return "", domain.NewError(domain.ErrCodeTransport,
			fmt.Sprintf("create chat rejected: code=%d msg=%s", envelope.Code, envelope.Msg))
	}
	if id, ok := envelope.Data["chat_id"].(string); ok {
		return id, nil
	}
	return "", domain.NewError(domain.ErrCodeParse, "create chat response missing chat_id")
}
