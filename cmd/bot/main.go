// Command bot runs the Telegram volunteer-help bot: it loads configuration,
// picks a session store, wires the backend gateway and dialog flows, and
// serves Telegram updates until interrupted.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	tele "gopkg.in/telebot.v4"
	"log/slog"

	"github.com/MLokatsiun/tg-bot-volunteer/bot/backend"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/flows"
	"github.com/MLokatsiun/tg-bot-volunteer/bot/geocode"
	"github.com/MLokatsiun/tg-bot-volunteer/core/buildinfo"
	coreconfig "github.com/MLokatsiun/tg-bot-volunteer/core/config"
	"github.com/MLokatsiun/tg-bot-volunteer/core/logger"
	"github.com/MLokatsiun/tg-bot-volunteer/core/session"
	"github.com/MLokatsiun/tg-bot-volunteer/core/telegram"
	"github.com/MLokatsiun/tg-bot-volunteer/core/telegram/middleware"
)

const defaultConfigPath = "config.yml"

func main() {
	if err := run(); err != nil {
		log.Fatalf("bot: %v", err)
	}
}

func run() error {
	// Missing .env is fine: config falls back to the YAML file and real env.
	_ = godotenv.Load()

	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = defaultConfigPath
	}
	cfg, err := coreconfig.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	if err := logger.InitLogger(cfg); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if err := logger.Shutdown(); err != nil {
			log.Printf("logger shutdown: %v", err)
		}
	}()

	store, err := buildSessionStore(cfg)
	if err != nil {
		return err
	}

	api := backend.New(cfg.Backend)
	geo := geocode.New(cfg.Geocoder)
	f := flows.New(store, api, geo)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startedAt := time.Now()
	return telegram.Run(ctx, telegram.RunOptions{
		Config: cfg,
		Middlewares: []telegram.Middleware{
			{Name: "recover", Use: middleware.RecoverMiddleware},
			{Name: "logging", Use: middleware.LoggerMiddleware},
			{Name: "rate_limit", Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval: time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
			})},
		},
		Routes: []telegram.Route{
			{Endpoint: "/start", Handler: f.HandleStart},
			{Endpoint: tele.OnText, Handler: f.HandleText},
			{Endpoint: tele.OnContact, Handler: f.HandleContact},
			{Endpoint: tele.OnLocation, Handler: f.HandleLocation},
			{Endpoint: tele.OnDocument, Handler: f.HandleDocument},
			{Endpoint: tele.OnPhoto, Handler: f.HandleDocument},
			{Endpoint: tele.OnCallback, Handler: f.HandleCallback},
		},
		OnStart: func(ctx context.Context, bot *tele.Bot) error {
			logger.Info(ctx, "app", "ready",
				slog.String("username", bot.Me.Username),
				slog.String("commit", buildinfo.Commit),
				slog.String("build_date", buildinfo.Date),
				slog.Duration("startup_duration", logger.RoundMS(time.Since(startedAt))),
			)
			return nil
		},
		OnStop: func(ctx context.Context, bot *tele.Bot) error {
			logger.Info(ctx, "app", "shutdown")
			return nil
		},
	})
}

// buildSessionStore picks the session backend declared in config. Config
// normalization has already validated the backend name and its settings.
func buildSessionStore(cfg *coreconfig.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case coreconfig.SessionBackendRedis:
		return session.NewRedisStore(cfg.Session.RedisAddr)
	case coreconfig.SessionBackendPostgres:
		return session.NewPostgresStore(cfg.Session)
	default:
		return session.NewMemoryStore(), nil
	}
}
