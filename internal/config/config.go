package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // REMINDER_TZ must resolve in distroless images

	"github.com/joho/godotenv"
)

type Config struct {
	DBName        string
	TelegramToken string
	BotDebug      bool

	Location *time.Location

	OpenAIKey     string
	OpenAIModel   string
	OpenAIBaseURL string
	LLMTimeout    time.Duration

	MetricsAddr string
	LogLevel    string
}

const (
	DBName      = "/root/data/bot.db"
	secretPath  = "/run/secrets/telegram_bot_token"
	defaultTZ   = "UTC"
	openAIModel = "gpt-4o-mini"
	llmTimeout  = 10 * time.Second
)

// Load reads .env (when present) and the process environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	token := getBotToken(secretPath)
	if token == "" {
		return Config{}, errors.New("telegram token not found: neither docker secret nor TELEGRAM_BOT_TOKEN is set")
	}

	tz := getenv("REMINDER_TZ", defaultTZ)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return Config{}, fmt.Errorf("REMINDER_TZ %q: %w", tz, err)
	}

	timeout := llmTimeout
	if v := os.Getenv("LLM_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("LLM_TIMEOUT %q: must be a positive duration", v)
		}
		timeout = d
	}

	debug, _ := strconv.ParseBool(os.Getenv("BOT_DEBUG"))

	return Config{
		DBName:        getenv("DB_PATH", DBName),
		TelegramToken: token,
		BotDebug:      debug,
		Location:      loc,
		OpenAIKey:     strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:   getenv("OPENAI_MODEL", openAIModel),
		OpenAIBaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
		LLMTimeout:    timeout,
		MetricsAddr:   strings.TrimSpace(os.Getenv("METRICS_ADDR")),
		LogLevel:      getenv("LOG_LEVEL", "info"),
	}, nil
}

// getBotToken prefers the docker secret over the environment.
func getBotToken(path string) string {
	if data, err := os.ReadFile(path); err == nil {
		token := strings.TrimSpace(string(data))
		if token != "" {
			return token
		}
	}
	return strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
