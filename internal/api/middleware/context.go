package middleware

import (
	"context"
	"net/http"

	"github.com/kmatsuda/textlens/pkg/models"
)

type contextKey string

const identityKey contextKey = "identity"

// SetIdentity returns a context carrying the authenticated identity.
func SetIdentity(ctx context.Context, id models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity returns the identity set by the Authenticate middleware.
// Requests that never passed through it are anonymous.
func GetIdentity(r *http.Request) models.Identity {
	id, ok := r.Context().Value(identityKey).(models.Identity)
	if !ok {
		return models.Identity{Kind: models.IdentityAnonymous}
	}
	return id
}
