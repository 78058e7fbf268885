// ABOUTME: Caller identity resolution and context propagation
// ABOUTME: Provides WithIdentity/FromContext for passing identity through requests

package auth

import (
	"context"
	"errors"
)

// ErrUnauthorized is returned when a mutation is attempted without a
// resolved caller identity. Queries never return it; they degrade to
// empty results instead.
var ErrUnauthorized = errors.New("unauthorized")

// Identity is the resolved identity of a caller. A nil *Identity means
// the caller is unauthenticated.
type Identity struct {
	Subject string // stable user identifier from the identity provider
}

// identityKey is the key type for storing Identity in context.Context.
type identityKey struct{}

// WithIdentity returns a new context with the Identity attached.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext retrieves the Identity from the context, returning nil for
// anonymous requests.
func FromContext(ctx context.Context) *Identity {
	val := ctx.Value(identityKey{})
	if val == nil {
		return nil
	}
	id, ok := val.(*Identity)
	if !ok {
		return nil
	}
	return id
}
