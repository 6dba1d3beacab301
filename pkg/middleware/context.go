package middleware

import (
	"context"
	"log/slog"
)

type ctxKey int

const baseLoggerKey ctxKey = iota

func withBaseLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, baseLoggerKey, l)
}

func baseLoggerFromContext(ctx context.Context) *slog.Logger {
	l, _ := ctx.Value(baseLoggerKey).(*slog.Logger)
	return l
}
