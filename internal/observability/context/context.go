package context

import (
	"context"
	"strings"
)

type requestIDKey struct{}
type tenantIDKey struct{}
type actorKey struct{}

type actor struct {
	Type string
	ID   string
}

// WithRequestID stores the request ID in the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestIDFromContext returns the request ID, or empty.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(requestIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithTenantID stores the tenant identifier used for log correlation.
func WithTenantID(ctx context.Context, tenantID string) context.Context {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return ctx
	}
	return context.WithValue(ctx, tenantIDKey{}, tenantID)
}

// TenantIDFromContext returns the tenant identifier, or empty.
func TenantIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if value, ok := ctx.Value(tenantIDKey{}).(string); ok {
		return value
	}
	return ""
}

// WithActor stores the acting principal (system worker, api key, pixel).
func WithActor(ctx context.Context, actorType, actorID string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor{
		Type: strings.TrimSpace(actorType),
		ID:   strings.TrimSpace(actorID),
	})
}

// ActorFromContext returns the acting principal, or empty values.
func ActorFromContext(ctx context.Context) (string, string) {
	if ctx == nil {
		return "", ""
	}
	if value, ok := ctx.Value(actorKey{}).(actor); ok {
		return value.Type, value.ID
	}
	return "", ""
}
