package main

import (
	"context"
	"log"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	apiHandler "github.com/taskrelay/backend/api/handler"
	"github.com/taskrelay/backend/internal/config"
	bitableInfra "github.com/taskrelay/backend/internal/infrastructure/bitable"
	chatInfra "github.com/taskrelay/backend/internal/infrastructure/chat"
	"github.com/taskrelay/backend/internal/infrastructure/llm"
	"github.com/taskrelay/backend/internal/infrastructure/monitor"
	"github.com/taskrelay/backend/internal/infrastructure/outbox"
	redisInfra "github.com/taskrelay/backend/internal/infrastructure/redis"
	"github.com/taskrelay/backend/internal/middleware"
	"github.com/taskrelay/backend/internal/router"
	"github.com/taskrelay/backend/internal/services"
	"github.com/taskrelay/backend/internal/services/lifecycle"
	"github.com/taskrelay/backend/pkg/httpcontext"
	"github.com/taskrelay/backend/pkg/logger"
	"github.com/taskrelay/backend/repository"
	bitableRepo "github.com/taskrelay/backend/repository/bitable"
	"github.com/taskrelay/backend/repository/memory"
	redisRepo "github.com/taskrelay/backend/repository/redis"
	"github.com/taskrelay/backend/usecase/dispatch"
	"github.com/taskrelay/backend/usecase/matching"
	"github.com/taskrelay/backend/usecase/reminders"
	"github.com/taskrelay/backend/usecase/review"
	"github.com/taskrelay/backend/usecase/stats"
	"github.com/taskrelay/backend/usecase/tasks"
)

// localStore satisfies the monitor's store probe when running on in-memory
// repositories.
type localStore struct{}

func (localStore) Ping(context.Context) error { return nil }

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	zapLogger, err := logger.New(logger.Config{
		Level:    cfg.Logger.Level,
		Encoding: cfg.Logger.Encoding,
	})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer zapLogger.Sync()

	manager := lifecycle.New(cfg.Context.ShutdownTimeout, zapLogger)
	appCtx, cancel := manager.NotifyContext(context.Background())
	defer cancel()

	// Task and candidate storage: spreadsheet-backed when configured,
	// in-memory otherwise (local development).
	var (
		taskRepo      repository.TaskRepository
		candidateRepo repository.CandidateRepository
		storePinger   monitor.Pinger = localStore{}
		tableAdmin    dispatch.TableAdmin
	)
	if cfg.Bitable.AppToken != "" {
		bitClient := bitableInfra.New(bitableInfra.Config{
			BaseURL:   cfg.Bitable.BaseURL,
			AppID:     cfg.Bitable.AppID,
			AppSecret: cfg.Bitable.AppSecret,
			AppToken:  cfg.Bitable.AppToken,
			Timeout:   cfg.Bitable.Timeout,
		}, zapLogger)
		taskRepo = bitableRepo.NewTaskRepository(bitClient, cfg.Bitable.TaskTableID)
		candidateRepo = bitableRepo.NewCandidateRepository(bitClient, cfg.Bitable.CandidateTableID)
		storePinger = bitClient
		tableAdmin = bitClient
	} else {
		zapLogger.Warn("no spreadsheet store configured, using in-memory repositories")
		taskRepo = memory.NewTaskRepository()
		candidateRepo = memory.NewCandidateRepository()
	}

	// Redis is optional: candidate snapshot cache and webhook dedup.
	var dedup dispatch.Deduper
	redisClient, err := redisInfra.NewClient(cfg.Redis)
	if err != nil {
		zapLogger.Warn("redis unavailable, caching and dedup disabled", zap.Error(err))
		redisClient = nil
	} else {
		manager.Register("redis", func(ctx context.Context) error {
			return redisClient.Close()
		})
		candidateRepo = redisRepo.NewCandidateCache(candidateRepo, redisClient, cfg.Redis.CacheTTL)
		dedup = redisRepo.NewEventDeduper(redisClient, cfg.Redis.DedupTTL)
	}

	outboxStore, err := outbox.Open(cfg.Outbox.Path, "outbox")
	if err != nil {
		zapLogger.Fatal("failed to open outbox store", zap.Error(err))
	}
	manager.Register("outbox", func(ctx context.Context) error {
		return outboxStore.Close()
	})

	mon := monitor.New(storePinger, redisClient, outboxStore, 10*time.Second, zapLogger)
	mon.Start()
	manager.Register("monitor", func(ctx context.Context) error {
		mon.Stop()
		return nil
	})

	chatClient := chatInfra.New(chatInfra.Config{
		BaseURL:   cfg.Chat.BaseURL,
		AppID:     cfg.Chat.AppID,
		AppSecret: cfg.Chat.AppSecret,
		Timeout:   cfg.Chat.Timeout,
	}, zapLogger)

	notifier := services.NewNotifier(chatClient, outboxStore, zapLogger)

	outboxProcessor := services.NewOutboxProcessor(outboxStore, chatClient, mon, zapLogger,
		services.ProcessorConfig{
			Interval:  cfg.Outbox.DrainInterval,
			BatchSize: cfg.Outbox.BatchSize,
			Retention: time.Duration(cfg.Outbox.RetentionHours) * time.Hour,
		})
	outboxProcessor.Start()
	manager.Register("outbox_processor", func(ctx context.Context) error {
		outboxProcessor.Stop(ctx)
		return nil
	})

	llmRouter := buildLLMRouter(cfg, zapLogger)

	taskService := tasks.NewService(taskRepo, candidateRepo, zapLogger)
	matchEngine := matching.NewEngine(llmRouter, zapLogger)
	waiters := review.NewWaiterRegistry()
	reviewer := review.NewOrchestrator(taskService, llmRouter, notifier, waiters,
		review.Config{
			CIWaitTimeout: cfg.Review.CIWaitTimeout,
			CodeKeywords:  cfg.Review.CodeKeywords,
		}, zapLogger)
	statsService := stats.NewService(taskRepo, cfg.Stats.OutputPath, zapLogger)

	sweeper := reminders.NewSweeper(taskRepo, notifier, cfg.Reminders.SweepInterval, zapLogger)
	sweeper.Start()
	manager.Register("reminder_sweeper", func(ctx context.Context) error {
		sweeper.Stop(ctx)
		return nil
	})

	dispatcher := dispatch.New(dispatch.Deps{
		Tasks:      taskService,
		Candidates: candidateRepo,
		Matcher:    matchEngine,
		Reviewer:   reviewer,
		Reporter:   statsService,
		Notifier:   notifier,
		Chats:      chatClient,
		Tables:     tableAdmin,
		Dedup:      dedup,
		Logger:     zapLogger,
	})

	ctxAdapter := httpcontext.NewAdapter(cfg.Context.RequestTimeout)

	handlers := router.Handlers{
		ChatWebhook: apiHandler.NewChatWebhookHandler(dispatcher, cfg.Chat.VerificationToken, cfg.Chat.BotOpenID, 2*time.Minute, ctxAdapter, zapLogger),
		CIWebhook:   apiHandler.NewCIWebhookHandler(reviewer, cfg.Review.CIHMACSecret, ctxAdapter, zapLogger),
		Health:      apiHandler.NewHealthHandler(mon, ctxAdapter, zapLogger),
		Report:      apiHandler.NewReportHandler(statsService, ctxAdapter, zapLogger),
	}

	authMiddleware := middleware.JWTAuth(cfg.JWT.Secret, zapLogger)
	r := router.New(handlers, authMiddleware)

	server := &fasthttp.Server{
		Handler:      r.Handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
		Name:         cfg.AppName,
	}

	go func() {
		zapLogger.Info("server started", zap.String("address", cfg.Address()))
		if err := server.ListenAndServe(cfg.Address()); err != nil {
			zapLogger.Fatal("server crashed", zap.Error(err))
		}
	}()

	manager.Register("http_server", func(ctx context.Context) error {
		return server.Shutdown()
	})

	<-appCtx.Done()

	if err := manager.Shutdown(context.Background()); err != nil {
		zapLogger.Error("graceful shutdown error", zap.Error(err))
	}
}

func buildLLMRouter(cfg *config.Config, zapLogger *zap.Logger) *llm.Router {
	opts := llm.Options{
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	}

	var backends []llm.Backend
	if cfg.LLM.DeepSeekAPIKey != "" {
		backends = append(backends, llm.NewDeepSeek(cfg.LLM.DeepSeekAPIKey, opts))
	}
	if cfg.LLM.OpenAIAPIKey != "" {
		backends = append(backends, llm.NewOpenAI(cfg.LLM.OpenAIAPIKey, opts))
	}
	if cfg.LLM.GeminiAPIKey != "" {
		backends = append(backends, llm.NewGemini(cfg.LLM.GeminiAPIKey, opts))
	}
	if len(backends) == 0 {
		zapLogger.Warn("no llm backends configured, rule-based paths only")
	}
	return llm.NewRouter(backends, cfg.LLM.Preferred, zapLogger)
}
