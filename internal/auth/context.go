package auth

import (
	"context"

	"github.com/campustools/gridcal/internal/store"
)

type contextKey string

const (
	contextKeySubscriber contextKey = "subscriber"
	contextKeyAdmin      contextKey = "admin"
)

func WithSubscriber(ctx context.Context, sub *store.Subscriber) context.Context {
	return context.WithValue(ctx, contextKeySubscriber, sub)
}

func SubscriberFromContext(ctx context.Context) (*store.Subscriber, bool) {
	s, ok := ctx.Value(contextKeySubscriber).(*store.Subscriber)
	return s, ok
}

func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKeyAdmin, true)
}

func IsAdmin(ctx context.Context) bool {
	ok, _ := ctx.Value(contextKeyAdmin).(bool)
	return ok
}
