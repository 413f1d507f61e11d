// Package auth guards the MCP tools when they are served over SSE.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

type authKey struct{}

var ErrUnauthorized = errors.New("missing or invalid API key")

// withAuthKey stores the bearer token of a request in ctx.
func withAuthKey(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, authKey{}, token)
}

// GetTokenFromContext returns the bearer token AuthFromRequest stored.
func GetTokenFromContext(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(authKey{}).(string)
	return token, ok && token != ""
}

// AuthFromRequest extracts the bearer token of an SSE request into ctx.
func AuthFromRequest(logger *zap.Logger) func(context.Context, *http.Request) context.Context {
	return func(ctx context.Context, r *http.Request) context.Context {
		h := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(h, "Bearer ")
		if !ok {
			if h != "" {
				logger.Debug("Ignoring non-bearer Authorization header")
			}
			return ctx
		}
		return withAuthKey(ctx, strings.TrimSpace(token))
	}
}

// validateToken compares in constant time. An empty apiKey accepts any
// caller.
func validateToken(ctx context.Context, apiKey string) error {
	if apiKey == "" {
		return nil
	}
	token, ok := GetTokenFromContext(ctx)
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(apiKey)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// BuildMiddleware rejects tool calls without the API key. Only the sse
// transport is checked; stdio callers are the local process owner.
func BuildMiddleware(transport, apiKey string, logger *zap.Logger) server.ToolHandlerMiddleware {
	return func(next server.ToolHandlerFunc) server.ToolHandlerFunc {
		return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			if transport == "sse" {
				if err := validateToken(ctx, apiKey); err != nil {
					logger.Warn("Unauthorized tool call", zap.String("tool", req.Params.Name))
					return mcp.NewToolResultError(err.Error()), nil
				}
			}
			return next(ctx, req)
		}
	}
}
