package context

import (
	"context"
	"strings"

	"github.com/oklog/ulid/v2"
)

type requestIDKey struct{}
type accountIDKey struct{}
type actorRoleKey struct{}
type correlationIDKey struct{}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

// WithActor records the authenticated account and its role for log enrichment.
func WithActor(ctx context.Context, accountID, role string) context.Context {
	ctx = context.WithValue(ctx, accountIDKey{}, strings.TrimSpace(accountID))
	return context.WithValue(ctx, actorRoleKey{}, strings.TrimSpace(role))
}

func ActorFromContext(ctx context.Context) (accountID string, role string) {
	if ctx == nil {
		return "", ""
	}
	accountID, _ = ctx.Value(accountIDKey{}).(string)
	role, _ = ctx.Value(actorRoleKey{}).(string)
	return accountID, role
}

func CorrelationIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(correlationIDKey{}).(string)
	return v
}

// EnsureCorrelationID guarantees a correlation ID on the context, generating one when missing.
func EnsureCorrelationID(ctx context.Context) (context.Context, string) {
	cid := CorrelationIDFromContext(ctx)
	if cid == "" {
		cid = ulid.Make().String()
	}
	return context.WithValue(ctx, correlationIDKey{}, cid), cid
}

type actionKey struct{}

type action struct {
	id   string
	kind string
}

// WithAction tags the context with the metered action being performed.
func WithAction(ctx context.Context, actionID, kind string) context.Context {
	return context.WithValue(ctx, actionKey{}, action{id: strings.TrimSpace(actionID), kind: strings.TrimSpace(kind)})
}

func ActionFromContext(ctx context.Context) (actionID string, kind string) {
	if ctx == nil {
		return "", ""
	}
	a, _ := ctx.Value(actionKey{}).(action)
	return a.id, a.kind
}
