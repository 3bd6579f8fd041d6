package push

import (
	"context"

	"go.uber.org/zap"
)

// Log is a dry-run transport that only logs what it would send.
type Log struct {
	log *zap.Logger
}

func NewLog(log *zap.Logger) *Log {
	return &Log{log: log}
}

func (l *Log) Send(_ context.Context, token string, msg Message) error {
	if token == "" {
		return ErrEmptyToken
	}
	l.log.Info("push (dry run)",
		zap.String("title", msg.Title),
		zap.String("body", msg.Body),
		zap.Any("data", msg.Data),
	)
	return nil
}
