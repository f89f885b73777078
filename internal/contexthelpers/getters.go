package contexthelpers

import (
	"context"
)

func IsAuthenticated(ctx context.Context) bool {
	isAuthenticated, ok := ctx.Value(IsAuthenticatedContextKey).(bool)
	if !ok {
		return false
	}

	return isAuthenticated
}

// AuthenticatedUserID returns the coaching backend's identifier of the signed-in runner.
func AuthenticatedUserID(ctx context.Context) string {
	userID, ok := ctx.Value(AuthenticatedUserIDContextKey).(string)
	if !ok {
		return ""
	}

	return userID
}

// AccessToken returns the bearer token used for backend calls on behalf of the runner.
func AccessToken(ctx context.Context) string {
	token, ok := ctx.Value(AccessTokenContextKey).(string)
	if !ok {
		return ""
	}

	return token
}

// SessionID identifies the browser session. It keys the per-session plan state.
func SessionID(ctx context.Context) string {
	id, ok := ctx.Value(SessionIDContextKey).(string)
	if !ok {
		return ""
	}

	return id
}

func CurrentPath(ctx context.Context) string {
	currentPath, ok := ctx.Value(CurrentPathContextKey).(string)
	if !ok {
		return ""
	}

	return currentPath
}

func CSPNonce(ctx context.Context) string {
	cspNonce, ok := ctx.Value(CspNonceContextKey).(string)
	if !ok {
		return ""
	}

	return cspNonce
}
