package middleware

import (
	"context"
	"net/http"
)

type contextKey string

const (
	keyPrefixKey   contextKey = "operator_key_prefix"
	scopesKey      contextKey = "operator_scopes"
	prefixTraceKey contextKey = "operator_key_prefix_trace"
)

// prefixTrace lets middleware installed before authentication (logging,
// recovery) see the operator identity resolved further down the chain.
type prefixTrace struct {
	prefix string
}

func withPrefixTrace(ctx context.Context) context.Context {
	return context.WithValue(ctx, prefixTraceKey, &prefixTrace{})
}

func tracedPrefix(r *http.Request) string {
	if t, ok := r.Context().Value(prefixTraceKey).(*prefixTrace); ok {
		return t.prefix
	}
	return ""
}

func setKeyPrefix(ctx context.Context, prefix string) context.Context {
	if t, ok := ctx.Value(prefixTraceKey).(*prefixTrace); ok {
		t.prefix = prefix
	}
	return context.WithValue(ctx, keyPrefixKey, prefix)
}

// GetKeyPrefix returns the authenticated operator key prefix. Handlers use it
// to attribute distribution batches in the audit trail.
func GetKeyPrefix(r *http.Request) (string, bool) {
	prefix, ok := r.Context().Value(keyPrefixKey).(string)
	return prefix, ok
}

func setScopes(ctx context.Context, scopes []string) context.Context {
	return context.WithValue(ctx, scopesKey, scopes)
}

func getScopes(r *http.Request) []string {
	scopes, _ := r.Context().Value(scopesKey).([]string)
	return scopes
}

// ExportedKeyPrefixKey returns the context key for the operator key prefix
// (for testing).
func ExportedKeyPrefixKey() contextKey {
	return keyPrefixKey
}
