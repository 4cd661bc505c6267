package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/taskrelay/backend/internal/infrastructure/outbox"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// ProcessorConfig controls how frequently the outbox is drained.
type ProcessorConfig struct {
	Interval  time.Duration
	BatchSize int
	// Retention discards notifications that stayed undeliverable this long.
	Retention time.Duration
}

// OutboxProcessor redelivers buffered notifications once the chat platform
// is reachable again.
type OutboxProcessor struct {
	store   *outbox.Store
	sender  ChatSender
	monitor ConnectionHealth
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     ProcessorConfig
}

func NewOutboxProcessor(
	store *outbox.Store,
	sender ChatSender,
	monitor ConnectionHealth,
	logger *zap.Logger,
	cfg ProcessorConfig,
) *OutboxProcessor {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	p := &OutboxProcessor{
		store:   store,
		sender:  sender,
		monitor: monitor,
		logger:  logger,
		cfg:     cfg,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %ds", int(cfg.Interval.Seconds()))
	_, _ = p.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Interval)
		defer cancel()
		if err := p.Drain(ctx); err != nil {
			p.logger.Error("outbox drain failed", zap.Error(err))
		}
	})

	return p
}

// Start launches the cron scheduler.
func (p *OutboxProcessor) Start() {
	if p == nil || p.cron == nil {
		return
	}
	p.cron.Start()
	p.logger.Info("outbox processor started")
}

// Stop gracefully stops the scheduler.
func (p *OutboxProcessor) Stop(ctx context.Context) {
	if p == nil || p.cron == nil {
		return
	}
	stopCtx := p.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	p.logger.Info("outbox processor stopped")
}

// Drain redelivers buffered notifications synchronously.
func (p *OutboxProcessor) Drain(ctx context.Context) error {
	if p == nil || p.store == nil || p.sender == nil {
		return nil
	}
	if p.monitor != nil && !p.monitor.IsOnline() {
		p.logger.Debug("skipping outbox drain (offline)")
		return nil
	}

	if p.cfg.Retention > 0 {
		if err := p.store.Cleanup(time.Now().Add(-p.cfg.Retention)); err != nil {
			p.logger.Warn("outbox cleanup failed", zap.Error(err))
		}
	}

	items, err := p.store.GetBatch(p.cfg.BatchSize)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := p.deliver(ctx, item); err != nil {
			p.logger.Warn("redelivery failed",
				zap.String("item_id", item.ID),
				zap.String("kind", item.Kind),
				zap.Error(err))
			if err := p.store.Requeue(item); err != nil {
				p.logger.Error("failed to requeue outbox item", zap.Error(err))
			}
			continue
		}
		if err := p.store.Remove(item); err != nil {
			p.logger.Warn("failed to purge delivered item", zap.Error(err))
		}
	}
	return nil
}

// Size returns the number of buffered notifications.
func (p *OutboxProcessor) Size() int {
	if p == nil || p.store == nil {
		return 0
	}
	size, err := p.store.Size()
	if err != nil {
		return 0
	}
	return size
}

func (p *OutboxProcessor) deliver(ctx context.Context, item outbox.Item) error {
	if ctx == nil {
		ctx = context.Background()
	}

	switch item.Kind {
	case outbox.KindText:
		var text string
		if err := json.Unmarshal(item.Payload, &text); err != nil {
			return err
		}
		return p.sender.SendText(ctx, item.Target, text)

	case outbox.KindUserText:
		var text string
		if err := json.Unmarshal(item.Payload, &text); err != nil {
			return err
		}
		return p.sender.SendTextToUser(ctx, item.Target, text)

	case outbox.KindCard:
		var card map[string]any
		if err := json.Unmarshal(item.Payload, &card); err != nil {
			return err
		}
		return p.sender.SendCard(ctx, item.Target, card)

	default:
		return fmt.Errorf("unsupported notification kind %s", item.Kind)
	}
}
