package middleware

import (
	"context"

	"hrpay/internal/domain/auth"
	"hrpay/internal/platform/requestctx"
)

type ctxKey string

const ctxKeyActor ctxKey = "actor"

func WithActor(ctx context.Context, actor auth.Actor) context.Context {
	return context.WithValue(ctx, ctxKeyActor, actor)
}

func GetActor(ctx context.Context) (auth.Actor, bool) {
	actor, ok := ctx.Value(ctxKeyActor).(auth.Actor)
	return actor, ok && actor.UserID != ""
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return requestctx.WithRequestID(ctx, requestID)
}

func GetRequestID(ctx context.Context) string {
	return requestctx.GetRequestID(ctx)
}
