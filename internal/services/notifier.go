package services

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/taskrelay/backend/internal/infrastructure/outbox"
)

// ChatSender abstracts the chat platform client for delivery and tests.
type ChatSender interface {
	SendText(ctx context.Context, chatID, text string) error
	SendTextToUser(ctx context.Context, userID, text string) error
	SendCard(ctx context.Context, chatID string, card map[string]any) error
}

// Notifier delivers chat notifications. Failed sends are persisted to the
// outbox instead of being dropped; command replies to a live webhook are the
// caller's responsibility and never go through here.
type Notifier struct {
	sender ChatSender
	store  *outbox.Store
	logger *zap.Logger
}

func NewNotifier(sender ChatSender, store *outbox.Store, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{sender: sender, store: store, logger: logger}
}

// NotifyChat sends text to a group or single chat, buffering on failure.
func (n *Notifier) NotifyChat(ctx context.Context, chatID, text string) {
	if n == nil || n.sender == nil || chatID == "" {
		return
	}
	if err := n.sender.SendText(ctx, chatID, text); err != nil {
		n.buffer(outbox.KindText, chatID, text, err)
	}
}

// NotifyUser sends text to a user's direct chat, buffering on failure.
func (n *Notifier) NotifyUser(ctx context.Context, userID, text string) {
	if n == nil || n.sender == nil || userID == "" {
		return
	}
	if err := n.sender.SendTextToUser(ctx, userID, text); err != nil {
		n.buffer(outbox.KindUserText, userID, text, err)
	}
}

// NotifyCard sends an interactive card to a chat, buffering on failure.
func (n *Notifier) NotifyCard(ctx context.Context, chatID string, card map[string]any) {
	if n == nil || n.sender == nil || chatID == "" {
		return
	}
	if err := n.sender.SendCard(ctx, chatID, card); err != nil {
		payload, merr := json.Marshal(card)
		if merr != nil {
			n.logger.Error("drop undeliverable card", zap.Error(merr))
			return
		}
		n.bufferRaw(outbox.KindCard, chatID, payload, err)
	}
}

func (n *Notifier) buffer(kind, target, text string, cause error) {
	payload, err := json.Marshal(text)
	if err != nil {
		n.logger.Error("drop undeliverable notification", zap.Error(err))
		return
	}
	n.bufferRaw(kind, target, payload, cause)
}

func (n *Notifier) bufferRaw(kind, target string, payload []byte, cause error) {
	n.logger.Warn("notification delivery failed, buffering",
		zap.String("kind", kind),
		zap.String("target", target),
		zap.Error(cause))
	if n.store == nil {
		return
	}
	if err := n.store.Enqueue(outbox.Item{Kind: kind, Target: target, Payload: payload}); err != nil {
		n.logger.Error("outbox enqueue failed", zap.Error(err))
	}
}
