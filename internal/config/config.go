// Package config loads settings from .env, an optional YAML file and the
// environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
	Mail   MailConfig   `mapstructure:"mail"`
	Gmail  GmailConfig  `mapstructure:"gmail"`
	IMAP   IMAPConfig   `mapstructure:"imap"`
	Oracle OracleConfig `mapstructure:"oracle"`
	Rules  RulesConfig  `mapstructure:"rules"`
	Triage TriageConfig `mapstructure:"triage"`
	DB     DBConfig     `mapstructure:"db"`
	Line   LineConfig   `mapstructure:"line"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Format string `mapstructure:"format"`
	Level  string `mapstructure:"level"`
}

type MailConfig struct {
	// Provider is "gmail" or "imap".
	Provider           string `mapstructure:"provider"`
	NotificationsQuery string `mapstructure:"notifications_query"`
	TodoQuery          string `mapstructure:"todo_query"`
	SortQuery          string `mapstructure:"sort_query"`
	DefaultCount       int    `mapstructure:"default_count"`
	SortLimit          int    `mapstructure:"sort_limit"`
}

type GmailConfig struct {
	CredentialsPath string `mapstructure:"credentials_path"`
	TokenPath       string `mapstructure:"token_path"`
	User            string `mapstructure:"user"`
	PubSubTopic     string `mapstructure:"pubsub_topic"`
}

type IMAPConfig struct {
	Host       string            `mapstructure:"host"`
	Port       string            `mapstructure:"port"`
	Username   string            `mapstructure:"username"`
	Password   string            `mapstructure:"password"`
	TLS        bool              `mapstructure:"tls"`
	Inbox      string            `mapstructure:"inbox"`
	Spam       string            `mapstructure:"spam"`
	Trash      string            `mapstructure:"trash"`
	Archive    string            `mapstructure:"archive"`
	Categories map[string]string `mapstructure:"categories"`
}

type OracleConfig struct {
	// Provider is "groq" or "ollama".
	Provider      string        `mapstructure:"provider"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Temperature   float64       `mapstructure:"temperature"`
	MaxTokens     int           `mapstructure:"max_tokens"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxRetries    int           `mapstructure:"max_retries"`
	RetryBackoff  time.Duration `mapstructure:"retry_backoff"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	RedactPII     bool          `mapstructure:"redact_pii"`
	SortGuidance  string        `mapstructure:"sort_guidance"`
}

type RulesConfig struct {
	ImportanceKeywords []string `mapstructure:"importance_keywords"`
	VIPs               []string `mapstructure:"vips"`
	SpamKeywords       []string `mapstructure:"spam_keywords"`
}

type TriageConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type DBConfig struct {
	// Driver is "mysql" or "sqlite"; an empty driver keeps delivery history
	// in memory.
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	// DSN overrides the individual connection fields.
	DSN string `mapstructure:"dsn"`
}

type LineConfig struct {
	ChannelToken  string `mapstructure:"channel_token"`
	ChannelSecret string `mapstructure:"channel_secret"`
	UserID        string `mapstructure:"user_id"`
}

// envBindings keeps the flat variable names used by existing deployments.
var envBindings = map[string]string{
	"server.port":            "PORT",
	"line.channel_token":     "LINE_CHANNEL_TOKEN",
	"line.channel_secret":    "LINE_CHANNEL_SECRET",
	"line.user_id":           "LINE_USER_ID",
	"gmail.credentials_path": "GMAIL_CREDENTIALS_PATH",
	"gmail.token_path":       "GMAIL_TOKEN_PATH",
	"gmail.pubsub_topic":     "GMAIL_PUBSUB_TOPIC",
	"db.driver":              "DB_DRIVER",
	"db.host":                "DB_HOST",
	"db.port":                "DB_PORT",
	"db.user":                "DB_USER",
	"db.password":            "DB_PASSWORD",
	"db.name":                "DB_NAME",
	"db.dsn":                 "DB_DSN",
	"mail.provider":          "MAIL_PROVIDER",
	"imap.host":              "IMAP_HOST",
	"imap.port":              "IMAP_PORT",
	"imap.username":          "IMAP_USERNAME",
	"imap.password":          "IMAP_PASSWORD",
	"oracle.provider":        "ORACLE_PROVIDER",
	"oracle.model":           "ORACLE_MODEL",
	"oracle.base_url":        "ORACLE_BASE_URL",
	"oracle.api_key":         "GROQ_API_KEY",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.idle_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.format", "text")
	v.SetDefault("log.level", "info")

	v.SetDefault("mail.provider", "gmail")
	v.SetDefault("mail.notifications_query", "is:important newer_than:1d")
	v.SetDefault("mail.todo_query", "is:important")
	v.SetDefault("mail.sort_query", "is:unread")
	v.SetDefault("mail.default_count", 10)
	v.SetDefault("mail.sort_limit", 0)

	v.SetDefault("gmail.credentials_path", "credentials.json")
	v.SetDefault("gmail.token_path", "token.json")
	v.SetDefault("gmail.user", "me")
	v.SetDefault("gmail.pubsub_topic", "")

	v.SetDefault("imap.host", "")
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.username", "")
	v.SetDefault("imap.password", "")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.inbox", "INBOX")
	v.SetDefault("imap.spam", "Junk")
	v.SetDefault("imap.trash", "Trash")
	v.SetDefault("imap.archive", "")

	v.SetDefault("oracle.provider", "groq")
	v.SetDefault("oracle.model", "")
	v.SetDefault("oracle.base_url", "")
	v.SetDefault("oracle.api_key", "")
	v.SetDefault("oracle.temperature", 0.0)
	v.SetDefault("oracle.max_tokens", 512)
	v.SetDefault("oracle.timeout", 30*time.Second)
	v.SetDefault("oracle.max_retries", 2)
	v.SetDefault("oracle.retry_backoff", 500*time.Millisecond)
	v.SetDefault("oracle.max_concurrent", 4)
	v.SetDefault("oracle.redact_pii", true)
	v.SetDefault("oracle.sort_guidance", "")

	v.SetDefault("rules.importance_keywords", []string{"urgent", "asap", "deadline", "payment", "immediately"})
	v.SetDefault("rules.vips", []string{"boss@", "teamlead@"})
	v.SetDefault("rules.spam_keywords", []string{"unsubscribe", "newsletter", "promo", "sale", "advertisement"})

	v.SetDefault("triage.concurrency", 1)

	v.SetDefault("db.driver", "")
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", "3306")
	v.SetDefault("db.user", "")
	v.SetDefault("db.password", "")
	v.SetDefault("db.name", "wavemail")
	v.SetDefault("db.dsn", "")

	v.SetDefault("line.channel_token", "")
	v.SetDefault("line.channel_secret", "")
	v.SetDefault("line.user_id", "")
}

// Load reads .env, then the YAML file at path when path is non-empty, then
// the environment. Variables are read as WAVEMAIL_<SECTION>_<KEY>, plus the
// flat names in envBindings.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found")
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("WAVEMAIL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envBindings {
		if err := v.BindEnv(key, "WAVEMAIL_"+strings.ToUpper(strings.ReplaceAll(key, ".", "_")), env); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config %s: %w", path, err)
			}
			slog.Warn("config file not found, using defaults", "path", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Mail.Provider {
	case "gmail", "imap":
	default:
		return fmt.Errorf("unknown mail provider %q", c.Mail.Provider)
	}
	switch c.Oracle.Provider {
	case "groq", "ollama":
	default:
		return fmt.Errorf("unknown oracle provider %q", c.Oracle.Provider)
	}
	switch c.DB.Driver {
	case "", "mysql", "sqlite":
	default:
		return fmt.Errorf("unknown db driver %q", c.DB.Driver)
	}
	if c.Mail.DefaultCount <= 0 {
		return fmt.Errorf("mail.default_count must be positive, got %d", c.Mail.DefaultCount)
	}
	if c.Mail.SortLimit < 0 {
		return fmt.Errorf("mail.sort_limit must not be negative, got %d", c.Mail.SortLimit)
	}
	if c.Triage.Concurrency < 1 {
		c.Triage.Concurrency = 1
	}
	return nil
}

// NewLogger builds a text or JSON logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
