// Command reemind-lambda runs one dispatch batch per EventBridge invocation.
package main

import (
	"context"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/benfogiel/Sparkpad/internal/app"
	"github.com/benfogiel/Sparkpad/internal/config"
	"github.com/benfogiel/Sparkpad/internal/logger"
)

var (
	application *app.App
	log         *zap.Logger
)

// init runs once per cold start; the app and its store are reused across invocations.
func init() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString("config error: " + err.Error() + "\n")
		os.Exit(2)
	}
	log, err = logger.New(cfg.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString("logger init error: " + err.Error() + "\n")
		os.Exit(2)
	}
	application, err = app.New(context.Background(), cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}
}

// handler always reports success; batch failures are logged and retried on the next tick.
func handler(ctx context.Context, ev events.CloudWatchEvent) error {
	log.Info("scheduled invocation", zap.String("event_id", ev.ID), zap.Time("event_time", ev.Time))
	application.RunOnce(ctx)
	_ = log.Sync()
	return nil
}

func main() {
	lambda.Start(handler)
}
