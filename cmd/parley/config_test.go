package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newTestViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("PARLEY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	return v
}

// ──────────────────────────────────────────────────
// Config
// ──────────────────────────────────────────────────

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadConfig(newTestViper())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Errorf("http addr = %q", cfg.HTTP.Addr)
	}
	if cfg.State.Driver != "memory" {
		t.Errorf("state driver = %q", cfg.State.Driver)
	}
	if cfg.Dispatch.RetryAttempts != 3 {
		t.Errorf("retry attempts = %d", cfg.Dispatch.RetryAttempts)
	}
	if cfg.Webview.Issuer != "parley" {
		t.Errorf("issuer = %q", cfg.Webview.Issuer)
	}
}

func TestLoadConfig_Environment(t *testing.T) {
	t.Setenv("PARLEY_STATE_DRIVER", "SQLite")
	t.Setenv("PARLEY_DISPATCH_JOB_TIMEOUT", "5s")
	t.Setenv("PARLEY_TELEGRAM_TOKEN", "tg")
	t.Setenv("PARLEY_WEBVIEW_ENABLED", "true")
	t.Setenv("PARLEY_WEBVIEW_API_KEYS", "k1:alice k2:bob")

	cfg, err := loadConfig(newTestViper())
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.State.Driver != "sqlite" {
		t.Errorf("state driver = %q", cfg.State.Driver)
	}
	if cfg.Dispatch.JobTimeout != 5*time.Second {
		t.Errorf("job timeout = %v", cfg.Dispatch.JobTimeout)
	}
	if cfg.Telegram.Token != "tg" {
		t.Errorf("telegram token = %q", cfg.Telegram.Token)
	}
	if !cfg.Webview.Enabled || len(cfg.Webview.APIKeys) != 2 {
		t.Errorf("webview = %+v", cfg.Webview)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]map[string]string{
		"concurrency": {"PARLEY_DISPATCH_CONCURRENCY": "0"},
		"driver":      {"PARLEY_STATE_DRIVER": "etcd"},
		"api key":     {"PARLEY_WEBVIEW_API_KEYS": "nosubject"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := loadConfig(newTestViper()); err == nil {
				t.Fatal("expected an error")
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []string{"json", "console"} {
		logger, flush, err := newLogger(LogConfig{Level: "debug", Format: format})
		if err != nil {
			t.Fatalf("%s: %v", format, err)
		}
		logger.Debug("hello", slog.String("format", format))
		flush()
	}
	if _, _, err := newLogger(LogConfig{Level: "loud", Format: "json"}); err == nil {
		t.Error("expected an error for an unknown level")
	}
}

// ──────────────────────────────────────────────────
// State
// ──────────────────────────────────────────────────

func TestOpenStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.Default()

	for _, cfg := range []StateConfig{
		{Driver: "memory"},
		{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "state.db")},
	} {
		s, closeStore, err := openStore(ctx, cfg, logger)
		if err != nil {
			t.Fatalf("%s: %v", cfg.Driver, err)
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("%s ping: %v", cfg.Driver, err)
		}
		closeStore()
	}

	if _, _, err := openStore(ctx, StateConfig{Driver: "etcd"}, logger); err == nil {
		t.Error("expected an error for an unknown driver")
	}
	if _, _, err := openStore(ctx, StateConfig{Driver: "redis", DSN: "://bad"}, logger); err == nil {
		t.Error("expected an error for a bad redis URL")
	}
}
