package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/xraph/parley"
)

// Config is the resolved server configuration.
type Config struct {
	Log      LogConfig
	HTTP     HTTPConfig
	State    StateConfig
	Dispatch parley.Config
	Telegram TelegramConfig
	Twitter  TwitterConfig
	WhatsApp WhatsAppConfig
	Webview  WebviewConfig

	// Echo replies to every inbound message with its own text.
	Echo bool
}

type LogConfig struct {
	Level  string
	Format string
}

type HTTPConfig struct {
	Addr            string
	ShutdownTimeout time.Duration
}

// StateConfig selects the store backing asset caches. DSN is a file path
// for sqlite, a redis:// URL for redis, and a connection string for
// postgres.
type StateConfig struct {
	Driver string
	DSN    string
}

type TelegramConfig struct {
	Token  string
	Secret string
	APIURL string
}

type TwitterConfig struct {
	Token          string
	ConsumerSecret string
}

type WhatsAppConfig struct {
	Token       string
	AppSecret   string
	VerifyToken string
}

// WebviewConfig enables the WebSocket endpoint. APIKeys are
// "token:subject" pairs.
type WebviewConfig struct {
	Enabled   bool
	JWTSecret string
	Issuer    string
	APIKeys   []string
}

func setDefaults(v *viper.Viper) {
	d := parley.DefaultConfig()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("state.driver", "memory")
	v.SetDefault("state.dsn", "")
	v.SetDefault("dispatch.concurrency", d.Concurrency)
	v.SetDefault("dispatch.job_timeout", d.JobTimeout)
	v.SetDefault("dispatch.rate_limit", d.RateLimit)
	v.SetDefault("dispatch.rate_burst", d.RateBurst)
	v.SetDefault("dispatch.retry_attempts", 3)
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.secret", "")
	v.SetDefault("telegram.api_url", "")
	v.SetDefault("twitter.token", "")
	v.SetDefault("twitter.consumer_secret", "")
	v.SetDefault("whatsapp.token", "")
	v.SetDefault("whatsapp.app_secret", "")
	v.SetDefault("whatsapp.verify_token", "")
	v.SetDefault("webview.enabled", false)
	v.SetDefault("webview.jwt_secret", "")
	v.SetDefault("webview.issuer", "parley")
	v.SetDefault("webview.api_keys", []string{})
	v.SetDefault("echo", false)
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Log:  LogConfig{Level: v.GetString("log.level"), Format: v.GetString("log.format")},
		HTTP: HTTPConfig{Addr: v.GetString("http.addr"), ShutdownTimeout: v.GetDuration("http.shutdown_timeout")},
		State: StateConfig{
			Driver: strings.ToLower(v.GetString("state.driver")),
			DSN:    v.GetString("state.dsn"),
		},
		Dispatch: parley.Config{
			Concurrency:     v.GetInt("dispatch.concurrency"),
			JobTimeout:      v.GetDuration("dispatch.job_timeout"),
			RateLimit:       v.GetFloat64("dispatch.rate_limit"),
			RateBurst:       v.GetInt("dispatch.rate_burst"),
			RetryAttempts:   v.GetInt("dispatch.retry_attempts"),
			ShutdownTimeout: v.GetDuration("http.shutdown_timeout"),
		},
		Telegram: TelegramConfig{
			Token:  v.GetString("telegram.token"),
			Secret: v.GetString("telegram.secret"),
			APIURL: v.GetString("telegram.api_url"),
		},
		Twitter: TwitterConfig{
			Token:          v.GetString("twitter.token"),
			ConsumerSecret: v.GetString("twitter.consumer_secret"),
		},
		WhatsApp: WhatsAppConfig{
			Token:       v.GetString("whatsapp.token"),
			AppSecret:   v.GetString("whatsapp.app_secret"),
			VerifyToken: v.GetString("whatsapp.verify_token"),
		},
		Webview: WebviewConfig{
			Enabled:   v.GetBool("webview.enabled"),
			JWTSecret: v.GetString("webview.jwt_secret"),
			Issuer:    v.GetString("webview.issuer"),
			APIKeys:   v.GetStringSlice("webview.api_keys"),
		},
		Echo: v.GetBool("echo"),
	}

	if cfg.Dispatch.Concurrency < 1 {
		return cfg, fmt.Errorf("dispatch.concurrency must be positive, got %d", cfg.Dispatch.Concurrency)
	}
	switch cfg.State.Driver {
	case "memory", "sqlite", "redis", "postgres":
	default:
		return cfg, fmt.Errorf("unknown state.driver %q", cfg.State.Driver)
	}
	for _, k := range cfg.Webview.APIKeys {
		if token, subject, ok := strings.Cut(k, ":"); !ok || token == "" || subject == "" {
			return cfg, fmt.Errorf("webview.api_keys entry %q is not token:subject", k)
		}
	}
	return cfg, nil
}
