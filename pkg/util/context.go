package util

import (
	"context"

	"github.com/google/uuid"
)

type key string

const (
	requestIDKey = key("x-request-id")
	sessionIDKey = key("replay-session-id")
	symbolKey    = key("symbol")
)

// WithRequestID returns a context with a request id.
// It will generate new request id if the provided id is empty.
func WithRequestID(ctx context.Context, id string) context.Context {
	if id == "" {
		id = NewID()
	}
	return context.WithValue(ctx, requestIDKey, id)
}

// GetRequestID returns request id from context, empty if not present.
func GetRequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// WithSessionID returns a context carrying the id of a replay session.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// GetSessionID returns the replay session id from context, empty if not present.
func GetSessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}

// WithSymbol returns a context carrying the symbol being processed.
func WithSymbol(ctx context.Context, symbol string) context.Context {
	return context.WithValue(ctx, symbolKey, symbol)
}

// GetSymbol returns the symbol from context, empty if not present.
func GetSymbol(ctx context.Context) string {
	s, _ := ctx.Value(symbolKey).(string)
	return s
}

// Fields returns the key-value pairs this package has set into ctx.
// Empty values are omitted.
func Fields(ctx context.Context) map[string]string {
	fields := make(map[string]string)
	if id := GetRequestID(ctx); id != "" {
		fields["request_id"] = id
	}
	if id := GetSessionID(ctx); id != "" {
		fields["session_id"] = id
	}
	if s := GetSymbol(ctx); s != "" {
		fields["symbol"] = s
	}
	return fields
}

// NewID returns a uuid-v4 string.
func NewID() string {
	return uuid.NewString()
}
