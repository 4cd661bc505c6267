package handler

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/domain"
	"github.com/taskrelay/backend/pkg/httpcontext"
)

// EventDispatcher routes decoded chat events.
type EventDispatcher interface {
	DispatchMessage(ctx context.Context, ev domain.MessageEvent) string
	DispatchCardAction(ctx context.Context, ev domain.CardActionEvent) string
}

// ChatWebhookHandler terminates the chat platform event callback. Payloads
// are decoded here into the closed event union; anything unrecognized is
// rejected at this boundary instead of leaking raw JSON downstream.
type ChatWebhookHandler struct {
	baseHandler
	dispatcher        EventDispatcher
	verificationToken string
	botOpenID         string
	processTimeout    time.Duration
}

func NewChatWebhookHandler(dispatcher EventDispatcher, verificationToken, botOpenID string, processTimeout time.Duration, adapter *httpcontext.Adapter, logger *zap.Logger) *ChatWebhookHandler {
	if processTimeout <= 0 {
		processTimeout = 2 * time.Minute
	}
	return &ChatWebhookHandler{
		baseHandler:       newBaseHandler(adapter, logger),
		dispatcher:        dispatcher,
		verificationToken: verificationToken,
		botOpenID:         botOpenID,
		processTimeout:    processTimeout,
	}
}

// Handle acknowledges the webhook immediately and processes the event in the
// background; the platform retries deliveries that do not get a fast 200.
func (h *ChatWebhookHandler) Handle(ctx *fasthttp.RequestCtx) {
	body := append([]byte(nil), ctx.PostBody()...)
	doc := gjson.ParseBytes(body)

	if doc.Get("type").String() == "url_verification" {
		if h.verificationToken != "" && doc.Get("token").String() != h.verificationToken {
			h.respondError(ctx, domain.ErrUnauthorized)
			return
		}
		// The platform expects the bare challenge echo, not the envelope.
		ctx.Response.Header.SetContentType("application/json")
		ctx.SetStatusCode(fasthttp.StatusOK)
		body, _ := json.Marshal(map[string]string{"challenge": doc.Get("challenge").String()})
		ctx.SetBody(body)
		return
	}

	if h.verificationToken != "" {
		token := doc.Get("header.token").String()
		if token == "" {
			token = doc.Get("token").String()
		}
		if token != h.verificationToken {
			h.respondError(ctx, domain.ErrUnauthorized)
			return
		}
	}

	eventType := doc.Get("header.event_type").String()
	switch {
	case eventType == "im.message.receive_v1":
		ev := decodeMessageEvent(doc, h.botOpenID)
		h.dispatchAsync(func(bg context.Context) {
			h.dispatcher.DispatchMessage(bg, ev)
		})
	case eventType == "card.action.trigger" || doc.Get("action").Exists():
		ev := decodeCardActionEvent(doc)
		h.dispatchAsync(func(bg context.Context) {
			h.dispatcher.DispatchCardAction(bg, ev)
		})
	default:
		h.logger.Warn("unknown chat event rejected", zap.String("event_type", eventType))
		h.respondError(ctx, domain.NewError(domain.ErrCodeParse, "unknown event type"))
		return
	}

	h.respondSuccess(ctx, fasthttp.StatusOK, map[string]string{"result": "accepted"})
}

func (h *ChatWebhookHandler) dispatchAsync(fn func(ctx context.Context)) {
	go func() {
		bg, cancel := context.WithTimeout(context.Background(), h.processTimeout)
		defer cancel()
		fn(bg)
	}()
}

func decodeMessageEvent(doc gjson.Result, botOpenID string) domain.MessageEvent {
	message := doc.Get("event.message")

	// Text content is a JSON string inside the message payload. Mentions of
	// other users do not address the bot; without a configured bot identity
	// any mention counts.
	text := gjson.Get(message.Get("content").String(), "text").String()
	mentioned := false
	mentions := message.Get("mentions").Array()
	for _, m := range mentions {
		if key := m.Get("key").String(); key != "" {
			text = strings.ReplaceAll(text, key, "")
		}
		if botOpenID == "" || m.Get("id.open_id").String() == botOpenID {
			mentioned = true
		}
	}
	text = strings.TrimSpace(text)

	chat := domain.ChatContext{ChatID: message.Get("chat_id").String()}
	if message.Get("chat_type").String() == "group" {
		chat.GroupID = chat.ChatID
	}

	return domain.MessageEvent{
		EventID:   doc.Get("header.event_id").String(),
		UserID:    doc.Get("event.sender.sender_id.open_id").String(),
		Text:      text,
		Chat:      chat,
		Mentioned: mentioned,
	}
}

func decodeCardActionEvent(doc gjson.Result) domain.CardActionEvent {
	// Schema 2.0 wraps the action under event; the legacy callback carries
	// it at the top level.
	action := doc.Get("event.action")
	userID := doc.Get("event.operator.open_id").String()
	chatID := doc.Get("event.context.open_chat_id").String()
	eventID := doc.Get("header.event_id").String()
	if !action.Exists() {
		action = doc.Get("action")
		userID = doc.Get("open_id").String()
		chatID = doc.Get("open_chat_id").String()
		eventID = doc.Get("uuid").String()
	}

	value := action.Get("value")
	chat := domain.ChatContext{ChatID: chatID}
	return domain.CardActionEvent{
		EventID:       eventID,
		UserID:        userID,
		Action:        value.Get("action").String(),
		TaskID:        value.Get("task_id").String(),
		CandidateID:   value.Get("candidate_id").String(),
		CandidateRank: int(value.Get("rank").Int()),
		Chat:          chat,
	}
}
