package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the bot.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Chat        ChatConfig
	Bitable     BitableConfig
	Redis       RedisConfig
	LLM         LLMConfig
	Review      ReviewConfig
	JWT         JWTConfig
	Outbox      OutboxConfig
	Reminders   RemindersConfig
	Stats       StatsConfig
	Context     ContextConfig
	Logger      LoggerConfig
}

type HTTPConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// ChatConfig covers both the messaging adapter and the inbound chat webhook.
type ChatConfig struct {
	BaseURL           string
	AppID             string
	AppSecret         string
	VerificationToken string
	// BotOpenID identifies the bot in group mentions. When empty, any
	// mention counts as addressing the bot.
	BotOpenID string
	Timeout   time.Duration
}

type BitableConfig struct {
	BaseURL          string
	AppID            string
	AppSecret        string
	AppToken         string
	TaskTableID      string
	CandidateTableID string
	Timeout          time.Duration
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	CacheTTL time.Duration
	DedupTTL time.Duration
}

type LLMConfig struct {
	DeepSeekAPIKey string
	OpenAIAPIKey   string
	GeminiAPIKey   string
	Preferred      string
	Timeout        time.Duration
	MaxTokens      int
}

type ReviewConfig struct {
	CIWaitTimeout time.Duration
	CIHMACSecret  string
	CodeKeywords  []string
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type OutboxConfig struct {
	Path           string
	DrainInterval  time.Duration
	BatchSize      int
	RetentionHours int
}

type RemindersConfig struct {
	SweepInterval time.Duration
}

type StatsConfig struct {
	OutputPath string
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// Address is the HTTP listen address.
func (c *Config) Address() string {
	return net.JoinHostPort(c.HTTP.Host, c.HTTP.Port)
}

// Load reads configuration from environment variables (optionally .env)
// and applies sane defaults so the service can boot in any environment.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "taskrelay-bot"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:         getString("SERVER_HOST", "0.0.0.0"),
			Port:         getString("SERVER_PORT", "8080"),
			ReadTimeout:  getDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout: getDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:  getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
		},
		Chat: ChatConfig{
			BaseURL:           getString("CHAT_BASE_URL", "https://open.feishu.cn/open-apis"),
			AppID:             os.Getenv("CHAT_APP_ID"),
			AppSecret:         os.Getenv("CHAT_APP_SECRET"),
			VerificationToken: os.Getenv("CHAT_VERIFICATION_TOKEN"),
			BotOpenID:         os.Getenv("CHAT_BOT_OPEN_ID"),
			Timeout:           getDuration("CHAT_TIMEOUT", 15*time.Second),
		},
		Bitable: BitableConfig{
			BaseURL:          getString("BITABLE_BASE_URL", "https://open.feishu.cn/open-apis"),
			AppID:            getString("BITABLE_APP_ID", os.Getenv("CHAT_APP_ID")),
			AppSecret:        getString("BITABLE_APP_SECRET", os.Getenv("CHAT_APP_SECRET")),
			AppToken:         os.Getenv("BITABLE_APP_TOKEN"),
			TaskTableID:      os.Getenv("BITABLE_TASK_TABLE_ID"),
			CandidateTableID: os.Getenv("BITABLE_CANDIDATE_TABLE_ID"),
			Timeout:          getDuration("BITABLE_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", ""),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
			CacheTTL: getDuration("REDIS_CACHE_TTL", 5*time.Minute),
			DedupTTL: getDuration("REDIS_DEDUP_TTL", time.Hour),
		},
		LLM: LLMConfig{
			DeepSeekAPIKey: os.Getenv("DEEPSEEK_API_KEY"),
			OpenAIAPIKey:   os.Getenv("OPENAI_API_KEY"),
			GeminiAPIKey:   os.Getenv("GEMINI_API_KEY"),
			Preferred:      getString("LLM_PREFERRED", "deepseek"),
			Timeout:        getDuration("LLM_TIMEOUT", 30*time.Second),
			MaxTokens:      getInt("LLM_MAX_TOKENS", 2000),
		},
		Review: ReviewConfig{
			CIWaitTimeout: getDuration("CI_WAIT_TIMEOUT", 10*time.Minute),
			CIHMACSecret:  os.Getenv("CI_WEBHOOK_SECRET"),
			CodeKeywords:  getList("REVIEW_CODE_KEYWORDS"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "taskrelay"),
		},
		Outbox: OutboxConfig{
			Path:           getString("OUTBOX_PATH", "./data/outbox.db"),
			DrainInterval:  getDuration("OUTBOX_DRAIN_INTERVAL", 30*time.Second),
			BatchSize:      getInt("OUTBOX_BATCH_SIZE", 50),
			RetentionHours: getInt("OUTBOX_RETENTION_HOURS", 24),
		},
		Reminders: RemindersConfig{
			SweepInterval: getDuration("REMINDER_SWEEP_INTERVAL", 30*time.Minute),
		},
		Stats: StatsConfig{
			OutputPath: getString("STATS_OUTPUT_PATH", "./data/daily_stats.json"),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
	}

	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
