package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/xraph/parley/engine"
	"github.com/xraph/parley/platform"
	"github.com/xraph/parley/platform/telegram"
	"github.com/xraph/parley/platform/twitter"
	"github.com/xraph/parley/platform/webview"
	"github.com/xraph/parley/platform/whatsapp"
	"github.com/xraph/parley/render"
	"github.com/xraph/parley/state"
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the configured bots and their HTTP endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(v)
			if err != nil {
				return err
			}
			logger, flush, err := newLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer flush()
			slog.SetDefault(logger)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
	cmd.Flags().String("addr", ":8080", "HTTP listen address")
	cmd.Flags().Bool("echo", false, "reply to every inbound message with its text")
	_ = v.BindPFlag("http.addr", cmd.Flags().Lookup("addr"))
	_ = v.BindPFlag("echo", cmd.Flags().Lookup("echo"))
	return cmd
}

// bot is what serve needs from every platform bot.
type bot interface {
	platform.Bot
	Engine() *engine.Engine
}

func serve(ctx context.Context, cfg Config, logger *slog.Logger) error {
	store, closeStore, err := openStore(ctx, cfg.State, logger)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer closeStore()

	bots, err := buildBots(cfg, store, logger)
	if err != nil {
		return err
	}
	if len(bots) == 0 {
		return errors.New("no platform configured")
	}

	engines := make([]*engine.Engine, 0, len(bots))
	for _, b := range bots {
		engines = append(engines, b.Engine())
	}
	if err := engine.StartAll(ctx, engines...); err != nil {
		return err
	}

	h := newDispatcher(bots, cfg.Echo, cfg.Dispatch.JobTimeout, logger)
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           newRouter(bots, store, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return errors.Join(srv.Shutdown(shutdownCtx), stopBots(shutdownCtx, bots))
	})
	return g.Wait()
}

func buildBots(cfg Config, store state.Store, logger *slog.Logger) (map[string]bot, error) {
	bots := make(map[string]bot)

	if cfg.Telegram.Token != "" {
		opts := []telegram.Option{
			telegram.WithConfig(cfg.Dispatch),
			telegram.WithLogger(logger),
			telegram.WithAssets(store),
			telegram.WithSecretToken(cfg.Telegram.Secret),
		}
		if cfg.Telegram.APIURL != "" {
			opts = append(opts, telegram.WithAPIURL(cfg.Telegram.APIURL))
		}
		b, err := telegram.New(cfg.Telegram.Token, opts...)
		if err != nil {
			return nil, err
		}
		bots[telegram.Platform] = b
	}

	if cfg.Twitter.Token != "" {
		b, err := twitter.New(
			twitter.WithToken(cfg.Twitter.Token),
			twitter.WithConsumerSecret(cfg.Twitter.ConsumerSecret),
			twitter.WithConfig(cfg.Dispatch),
			twitter.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		bots[twitter.Platform] = b
	}

	if cfg.WhatsApp.Token != "" {
		b, err := whatsapp.New(
			whatsapp.WithToken(cfg.WhatsApp.Token),
			whatsapp.WithAppSecret(cfg.WhatsApp.AppSecret),
			whatsapp.WithVerifyToken(cfg.WhatsApp.VerifyToken),
			whatsapp.WithAssets(store),
			whatsapp.WithConfig(cfg.Dispatch),
			whatsapp.WithLogger(logger),
		)
		if err != nil {
			return nil, err
		}
		bots[whatsapp.Platform] = b
	}

	if cfg.Webview.Enabled {
		bots[webview.Platform] = webview.New(
			webview.WithAuthenticator(webviewAuth(cfg.Webview)),
			webview.WithConfig(cfg.Dispatch),
			webview.WithLogger(logger),
		)
	}
	return bots, nil
}

func webviewAuth(cfg WebviewConfig) webview.Authenticator {
	var auths webview.CompositeAuthenticator
	if len(cfg.APIKeys) > 0 {
		keys := make([]webview.APIKey, 0, len(cfg.APIKeys))
		for _, k := range cfg.APIKeys {
			token, subject, _ := strings.Cut(k, ":")
			keys = append(keys, webview.APIKey{Token: token, Identity: webview.Identity{Subject: subject}})
		}
		auths = append(auths, webview.NewAPIKeyAuthenticator(keys...))
	}
	if cfg.JWTSecret != "" {
		auths = append(auths, webview.NewJWTAuthenticator([]byte(cfg.JWTSecret), cfg.Issuer))
	}
	if len(auths) == 0 {
		return nil
	}
	return auths
}

func stopBots(ctx context.Context, bots map[string]bot) error {
	var g errgroup.Group
	for name, b := range bots {
		g.Go(func() error {
			if err := b.Stop(ctx); err != nil {
				return fmt.Errorf("stop %s: %w", name, err)
			}
			return nil
		})
	}
	return g.Wait()
}

// ──────────────────────────────────────────────────
// HTTP
// ──────────────────────────────────────────────────

func newRouter(bots map[string]bot, store state.Store, h platform.Handler) *mux.Router {
	r := mux.NewRouter()
	for name, b := range bots {
		switch name {
		case webview.Platform:
			r.Handle("/webview", b.Receiver(h)).Methods(http.MethodGet)
		case telegram.Platform:
			r.Handle("/webhooks/telegram", b.Receiver(h)).Methods(http.MethodPost)
		default:
			r.Handle("/webhooks/"+name, b.Receiver(h)).Methods(http.MethodGet, http.MethodPost)
		}
	}
	r.HandleFunc("/healthz", healthHandler(bots, store)).Methods(http.MethodGet)
	return r
}

type health struct {
	Status    string                    `json:"status"`
	State     string                    `json:"state"`
	Platforms map[string]platformHealth `json:"platforms"`
}

type platformHealth struct {
	Running    bool     `json:"running"`
	Active     int      `json:"active"`
	LockedKeys []string `json:"locked_keys,omitempty"`
}

func healthHandler(bots map[string]bot, store state.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := health{Status: "ok", State: "ok", Platforms: make(map[string]platformHealth, len(bots))}
		if err := store.Ping(r.Context()); err != nil {
			resp.Status, resp.State = "degraded", err.Error()
		}
		names := make([]string, 0, len(bots))
		for name := range bots {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			st := bots[name].Engine().Worker().Stats()
			resp.Platforms[name] = platformHealth{Running: st.Running, Active: st.Active, LockedKeys: st.LockedKeys}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status != "ok" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// ──────────────────────────────────────────────────
// Event handling
// ──────────────────────────────────────────────────

// dispatcher logs inbound events and, in echo mode, answers messages on
// the platform they came from.
type dispatcher struct {
	bots    map[string]bot
	echo    bool
	timeout time.Duration
	logger  *slog.Logger
}

func newDispatcher(bots map[string]bot, echo bool, timeout time.Duration, logger *slog.Logger) *dispatcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &dispatcher{bots: bots, echo: echo, timeout: timeout, logger: logger}
}

func (d *dispatcher) HandleEvent(ctx context.Context, ev platform.Event) error {
	d.logger.Info("event received",
		slog.String("platform", ev.Platform),
		slog.String("type", ev.Type),
		slog.String("conversation", ev.ConversationID),
		slog.String("user", ev.UserID),
	)
	if !d.echo || ev.Type != "message" || ev.Text == "" || ev.Target == nil {
		return nil
	}
	b, ok := d.bots[ev.Platform]
	if !ok {
		return nil
	}

	// Reply off the request path; webhooks must be acknowledged quickly.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()
		if _, err := b.Send(ctx, ev.Target, render.Text(ev.Text)); err != nil {
			d.logger.Warn("echo failed",
				slog.String("platform", ev.Platform),
				slog.String("conversation", ev.ConversationID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}
