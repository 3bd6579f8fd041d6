package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/benfogiel/Sparkpad/internal/config"
	"github.com/benfogiel/Sparkpad/internal/dispatch"
	"github.com/benfogiel/Sparkpad/internal/metrics"
	"github.com/benfogiel/Sparkpad/internal/planner"
	"github.com/benfogiel/Sparkpad/internal/push"
	"github.com/benfogiel/Sparkpad/internal/recency"
	"github.com/benfogiel/Sparkpad/internal/scheduler"
	"github.com/benfogiel/Sparkpad/internal/store"
)

type App struct {
	cfg        config.Config
	log        *zap.Logger
	httpSrv    *http.Server
	repo       store.Repo
	metrics    *metrics.Collector
	dispatcher *dispatch.Dispatcher
	scheduler  *scheduler.Scheduler
}

// New opens storage, builds the push transport and wires the dispatcher.
func New(ctx context.Context, cfg config.Config, log *zap.Logger) (*App, error) {
	var fb *firebase.App
	if cfg.NeedsFirebase() {
		var err error
		fb, err = newFirebase(ctx, cfg)
		if err != nil {
			return nil, err
		}
	}

	repo, err := openStore(ctx, cfg, fb)
	if err != nil {
		return nil, err
	}
	log.Info("store ready", zap.String("store", cfg.Store))

	transport, err := newTransport(ctx, cfg, fb, log)
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	m := metrics.New()
	tracker := recency.New(repo, cfg.MaxRecent)
	d := dispatch.New(dispatch.Deps{
		Users:     repo,
		Quotes:    repo,
		Tracker:   tracker,
		Planner:   planner.New(repo),
		Transport: transport,
		Log:       log,
		Metrics:   m,
	}, dispatch.Config{
		Title:        cfg.NotificationTitle,
		DefaultTZ:    cfg.DefaultTZ,
		DefaultLower: cfg.DefaultTimeLower,
		DefaultUpper: cfg.DefaultTimeUpper,
		Concurrency:  cfg.DispatchConcurrency,
	})

	sched, err := scheduler.New(d, log, scheduler.Config{
		Spec:       cfg.Schedule,
		Timeout:    cfg.BatchTimeout,
		RunOnStart: cfg.RunOnStart,
	})
	if err != nil {
		_ = repo.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      mux,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}

	return &App{
		cfg:        cfg,
		log:        log,
		httpSrv:    srv,
		repo:       repo,
		metrics:    m,
		dispatcher: d,
		scheduler:  sched,
	}, nil
}

func newFirebase(ctx context.Context, cfg config.Config) (*firebase.App, error) {
	var opts []option.ClientOption
	if cfg.FirebaseCredentials != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentials))
	}
	var fbCfg *firebase.Config
	if cfg.FirebaseProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.FirebaseProjectID}
	}
	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase: %w", err)
	}
	return app, nil
}

func openStore(ctx context.Context, cfg config.Config, fb *firebase.App) (store.Repo, error) {
	switch cfg.Store {
	case "sqlite":
		return store.OpenSQLite(ctx, cfg.DBPath)
	case "firestore":
		client, err := fb.Firestore(ctx)
		if err != nil {
			return nil, fmt.Errorf("firestore client: %w", err)
		}
		return store.NewFirestoreRepo(client), nil
	case "memory":
		return store.NewMemoryRepo(), nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func newTransport(ctx context.Context, cfg config.Config, fb *firebase.App, log *zap.Logger) (push.Transport, error) {
	var t push.Transport
	switch cfg.PushTransport {
	case "fcm":
		fcm, err := push.NewFCM(ctx, fb)
		if err != nil {
			return nil, err
		}
		t = fcm
	case "telegram":
		bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
		if err != nil {
			return nil, fmt.Errorf("telegram bot: %w", err)
		}
		bot.Debug = false
		t = push.NewTelegram(bot)
	case "log":
		return push.NewLog(log), nil
	default:
		return nil, fmt.Errorf("unknown push transport %q", cfg.PushTransport)
	}
	if cfg.PushBreaker {
		t = push.NewBreaker(t, push.DefaultBreakerConfig(cfg.PushTransport), log)
	}
	return t, nil
}

// Run serves /healthz and /metrics and drives the scheduler until SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) error {
	a.log.Info("starting reemind",
		zap.String("schedule", a.cfg.Schedule),
		zap.String("push", a.cfg.PushTransport),
		zap.String("http", a.cfg.HTTPAddr),
	)

	go func() {
		if err := a.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("http server error", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.scheduler.Run(ctx)
	a.log.Info("shutdown signal received")

	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err := a.httpSrv.Shutdown(shCtx)
	cancel()
	if err != nil {
		a.log.Warn("http server shutdown error", zap.Error(err))
	}
	return a.Close()
}

// RunOnce runs a single batch and returns. Used by the Lambda entrypoint.
func (a *App) RunOnce(ctx context.Context) {
	a.scheduler.RunOnce(ctx)
}

// Close releases storage.
func (a *App) Close() error {
	if a.repo != nil {
		return a.repo.Close()
	}
	return nil
}
