// Package storectx carries the store scope of a request through context.
// Every repository call resolves its store from here; a request without a
// store scope cannot touch store-owned rows.
package storectx

import (
	"context"
	"errors"
)

// contextKey is a private type for context keys to prevent collisions
type contextKey string

const (
	storeIDKey   contextKey = "store_id"
	profileIDKey contextKey = "profile_id"
	roleKey      contextKey = "role"
)

var (
	// ErrNoStoreInContext is returned when store scope is missing
	ErrNoStoreInContext = errors.New("no store in context")
	// ErrNoProfileInContext is returned when the acting profile is missing
	ErrNoProfileInContext = errors.New("no profile in context")
)

// WithScope adds the full request scope to the context.
// Called by middleware after validating the access token.
func WithScope(ctx context.Context, storeID, profileID, role string) context.Context {
	ctx = context.WithValue(ctx, storeIDKey, storeID)
	ctx = context.WithValue(ctx, profileIDKey, profileID)
	ctx = context.WithValue(ctx, roleKey, role)
	return ctx
}

// WithStoreID adds only the store ID to context
func WithStoreID(ctx context.Context, storeID string) context.Context {
	return context.WithValue(ctx, storeIDKey, storeID)
}

// StoreID extracts the store ID from context.
// Returns ErrNoStoreInContext if it is not set.
func StoreID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(storeIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoStoreInContext
	}
	return id, nil
}

// ProfileID extracts the acting staff profile ID from context.
func ProfileID(ctx context.Context) (string, error) {
	id, ok := ctx.Value(profileIDKey).(string)
	if !ok || id == "" {
		return "", ErrNoProfileInContext
	}
	return id, nil
}

// Role extracts the acting staff role from context. Empty if unset.
func Role(ctx context.Context) string {
	role, _ := ctx.Value(roleKey).(string)
	return role
}

// MustStoreID extracts the store ID and panics if not found.
// Use only where a missing store is a programming error.
func MustStoreID(ctx context.Context) string {
	id, err := StoreID(ctx)
	if err != nil {
		panic("store ID not found in context")
	}
	return id
}
