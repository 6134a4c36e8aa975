package middleware

import (
	"context"

	"github.com/angelmondragon/pos-backend/pkg/types"
)

type contextKey string

const (
	ctxIdentity contextKey = "identity"
	ctxTerminal contextKey = "terminal_id"
)

// IdentityFromContext returns the authenticated identity, or the zero value.
func IdentityFromContext(ctx context.Context) types.Identity {
	if ctx == nil {
		return types.Identity{}
	}
	if v, ok := ctx.Value(ctxIdentity).(types.Identity); ok {
		return v
	}
	return types.Identity{}
}

// WithIdentity injects the acting identity into the context.
func WithIdentity(ctx context.Context, identity types.Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxIdentity, identity)
}

// TerminalFromContext returns the terminal bound to the access token, if any.
func TerminalFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(ctxTerminal).(string); ok {
		return v
	}
	return ""
}

func WithTerminal(ctx context.Context, terminalID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxTerminal, terminalID)
}
