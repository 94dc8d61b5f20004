package config

import (
	"errors"
	"fmt"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

const (
	DefaultEnvFile  = "accesos.env"
	FallbackEnvFile = ".env"
	ChatLogFileName = "chats.jsonl"
)

type Server struct {
	Port            string        `yaml:"port" env:"PORT" env-default:"8000"`
	Debug           bool          `yaml:"debug" env:"DEBUG" env-default:"false"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	LogLevel        string        `yaml:"log_level" env:"LOG_LEVEL" env-default:"info"`
	LogFormat       string        `yaml:"log_format" env:"LOG_FORMAT" env-default:"text"`
}

type WhatsApp struct {
	VerifyToken     string        `yaml:"verify_token" env:"VERIFY_TOKEN" env-default:"verify_me"`
	Token           string        `env:"WHATSAPP_TOKEN"`
	PhoneID         string        `yaml:"phone_id" env:"WHATSAPP_PHONE_ID"`
	GraphBaseURL    string        `yaml:"graph_base_url" env:"WHATSAPP_GRAPH_URL" env-default:"https://graph.facebook.com/v19.0"`
	ChannelSlug     string        `yaml:"channel_slug" env:"WHATSAPP_CHANNEL_SLUG" env-default:"whatsapp-cloud"`
	SendTimeout     time.Duration `yaml:"send_timeout" env:"WHATSAPP_SEND_TIMEOUT" env-default:"10s"`
	MaxMessageRunes int           `yaml:"max_message_runes" env:"WHATSAPP_MAX_MESSAGE_RUNES" env-default:"4000"`
}

type LLM struct {
	APIKey          string        `env:"GROQ_API_KEY" env-required:"true"`
	Model           string        `yaml:"model" env:"MODEL_NAME" env-default:"mixtral-8x7b-32768"`
	BaseURL         string        `yaml:"base_url" env:"LLM_BASE_URL" env-default:"https://api.groq.com/openai/v1"`
	Temperature     float32       `yaml:"temperature" env:"LLM_TEMPERATURE" env-default:"0.2"`
	MaxTokens       int           `yaml:"max_tokens" env:"LLM_MAX_TOKENS" env-default:"500"`
	Timeout         time.Duration `yaml:"timeout" env:"LLM_TIMEOUT" env-default:"30s"`
	MaxPromptTokens int           `yaml:"max_prompt_tokens" env:"LLM_MAX_PROMPT_TOKENS" env-default:"3500"`
}

type Storage struct {
	DataDir string `yaml:"data_dir" env:"DATA_DIR" env-default:"./data"`
	// Sink is "file" or "memory".
	Sink string `yaml:"sink" env:"EVENT_SINK" env-default:"file"`
}

// LogFile is the append-only chat log inside DataDir.
func (s Storage) LogFile() string {
	return filepath.Join(s.DataDir, ChatLogFileName)
}

type Redis struct {
	Endpoint  string `yaml:"endpoint" env:"REDIS_ADDR"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
	EventsKey string `yaml:"events_key" env:"REDIS_EVENTS_KEY" env-default:"chat_events"`
	MaxEvents int64  `yaml:"max_events" env:"REDIS_MAX_EVENTS" env-default:"0"`
}

func (r Redis) Enabled() bool {
	return r.Endpoint != ""
}

type Bot struct {
	Language string `yaml:"language" env:"BOT_LANGUAGE" env-default:"es"`
}

type Config struct {
	Server   Server   `yaml:"server"`
	WhatsApp WhatsApp `yaml:"whatsapp"`
	LLM      LLM      `yaml:"llm"`
	Storage  Storage  `yaml:"storage"`
	Redis    Redis    `yaml:"redis"`
	Bot      Bot      `yaml:"bot"`
}

// LoadEnvFile loads variables from envFile, or from accesos.env / .env when
// envFile is empty. Already set variables are never overridden.
func LoadEnvFile(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		return nil
	}
	for _, candidate := range []string{DefaultEnvFile, FallbackEnvFile} {
		if _, err := os.Stat(candidate); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to stat env file %s: %w", candidate, err)
		}
		if err := godotenv.Load(candidate); err != nil {
			return fmt.Errorf("failed to load env file %s: %w", candidate, err)
		}
		return nil
	}
	return nil
}

// LoadConfig reads the optional yaml file at cfgPath and then the
// environment, which takes precedence. The data directory is created.
func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", cfgPath, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data dir %s: %w", cfg.Storage.DataDir, err)
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.LLM.APIKey == "" {
		return errors.New("GROQ_API_KEY is required")
	}
	if c.WhatsApp.VerifyToken == "" {
		return errors.New("VERIFY_TOKEN must not be empty")
	}
	if c.WhatsApp.MaxMessageRunes <= 0 {
		return fmt.Errorf("WHATSAPP_MAX_MESSAGE_RUNES must be positive, got %d", c.WhatsApp.MaxMessageRunes)
	}
	switch c.Storage.Sink {
	case "file", "memory":
	default:
		return fmt.Errorf("unknown EVENT_SINK %q", c.Storage.Sink)
	}
	return nil
}
