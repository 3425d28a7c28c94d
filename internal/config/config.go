package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/jdelaire/annoyray/internal/completion"
	"github.com/jdelaire/annoyray/internal/keychain"
)

// ErrMissingCredential is returned by Load when a required credential is
// set neither in the environment nor in the keychain.
var ErrMissingCredential = errors.New("missing credential")

const (
	EnvTelegramToken     = "TELEGRAM_TOKEN"
	EnvOpenAIKey         = "OPENAI_API_KEY"
	EnvOpenAIModel       = "OPENAI_MODEL"
	EnvOpenAIBaseURL     = "OPENAI_BASE_URL"
	EnvAllowedChats      = "ANNOYRAY_ALLOWED_CHATS"
	EnvLogLevel          = "ANNOYRAY_LOG_LEVEL"
	EnvLogFormat         = "ANNOYRAY_LOG_FORMAT"
	EnvCompletionTimeout = "ANNOYRAY_COMPLETION_TIMEOUT"
)

type Config struct {
	TelegramToken string
	OpenAIKey     string

	Model             string
	BaseURL           string
	CompletionTimeout time.Duration

	// AllowedChats restricts the bot to these chats; empty allows all.
	AllowedChats []int64

	LogLevel  string
	LogFormat string
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// secret reads a credential from the environment, falling back to the keychain.
func secret(env, account string) (string, error) {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v, nil
	}
	if v, err := keychain.Get(account); err == nil && v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s not set and no %q keychain entry", ErrMissingCredential, env, account)
}

// Load reads the configuration from the environment. Variables from the
// given .env files (default ".env") are applied first without overriding
// ones already set; missing files are ignored. Load fails when either
// credential is missing.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	telegramToken, err := secret(EnvTelegramToken, keychain.AccountTelegramToken)
	if err != nil {
		return nil, err
	}
	openAIKey, err := secret(EnvOpenAIKey, keychain.AccountOpenAIKey)
	if err != nil {
		return nil, err
	}

	timeout := completion.DefaultTimeout
	if v := os.Getenv(EnvCompletionTimeout); v != "" {
		timeout, err = time.ParseDuration(v)
		if err != nil || timeout <= 0 {
			return nil, fmt.Errorf("invalid %s %q", EnvCompletionTimeout, v)
		}
	}

	chats, err := parseChatIDs(os.Getenv(EnvAllowedChats))
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", EnvAllowedChats, err)
	}

	return &Config{
		TelegramToken: telegramToken,
		OpenAIKey:     openAIKey,

		Model:             getEnv(EnvOpenAIModel, completion.DefaultModel),
		BaseURL:           os.Getenv(EnvOpenAIBaseURL),
		CompletionTimeout: timeout,

		AllowedChats: chats,

		LogLevel:  getEnv(EnvLogLevel, "info"),
		LogFormat: getEnv(EnvLogFormat, "text"),
	}, nil
}

func parseChatIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("chat id %q: %w", part, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
