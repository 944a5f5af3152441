package middleware

import (
	"context"

	"github.com/sliqpay/backend/internal/models"
	"github.com/sliqpay/backend/internal/session"
)

type contextKey int

const (
	sessionContextKey contextKey = iota
	userContextKey
)

// SessionFrom returns the session attached by SessionMiddleware, or nil.
func SessionFrom(ctx context.Context) *session.Record {
	rec, _ := ctx.Value(sessionContextKey).(*session.Record)
	return rec
}

// UserFrom returns the authenticated user attached by RequireAuth or
// OptionalAuth, or nil.
func UserFrom(ctx context.Context) *models.User {
	u, _ := ctx.Value(userContextKey).(*models.User)
	return u
}

func withSession(ctx context.Context, rec *session.Record) context.Context {
	return context.WithValue(ctx, sessionContextKey, rec)
}

func withUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, userContextKey, u)
}
