package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/kmatsuda/textlens/internal/api/response"
	"github.com/kmatsuda/textlens/internal/store"
	"github.com/kmatsuda/textlens/pkg/models"
)

// Auth classifies request credentials and enforces route policy.
type Auth struct {
	store       store.Store
	adminSecret string
}

// NewAuth creates the Auth middleware. adminSecret may be empty, which
// disables the admin-secret bypass.
func NewAuth(s store.Store, adminSecret string) *Auth {
	return &Auth{store: s, adminSecret: adminSecret}
}

// Authenticate resolves the Bearer credential into an identity and stores it
// in the request context. It never rejects on its own — RequireUser and
// RequireAdmin enforce policy — but a store failure during lookup is a 500,
// not a silent anonymous downgrade.
func (a *Auth) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := a.Identify(r.Context(), extractBearerToken(r))
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "Failed to validate token")
			return
		}
		next.ServeHTTP(w, r.WithContext(SetIdentity(r.Context(), id)))
	})
}

// Identify classifies a raw credential. The admin secret is compared in
// constant time and never touches the store; everything else is a token
// lookup. Unknown and invalidated tokens classify as anonymous.
func (a *Auth) Identify(ctx context.Context, raw string) (models.Identity, error) {
	anonymous := models.Identity{Kind: models.IdentityAnonymous}
	if raw == "" {
		return anonymous, nil
	}

	if a.adminSecret != "" &&
		subtle.ConstantTimeCompare([]byte(raw), []byte(a.adminSecret)) == 1 {
		return models.Identity{Kind: models.IdentityAdmin}, nil
	}

	tok, err := a.store.GetToken(ctx, raw)
	if errors.Is(err, store.ErrNotFound) {
		return anonymous, nil
	}
	if err != nil {
		return models.Identity{}, err
	}
	if !tok.IsValid {
		return anonymous, nil
	}
	if tok.IsAdmin {
		return models.Identity{Kind: models.IdentityAdmin, Token: tok}, nil
	}
	return models.Identity{Kind: models.IdentityUser, Token: tok}, nil
}

// RequireUser rejects anonymous requests. Analysis routes sit behind this so
// authentication failures never consume a worker slot.
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetIdentity(r).Authenticated() {
			response.Error(w, http.StatusUnauthorized, "Unauthorized: Invalid or missing Bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects everything but admin identities.
func (a *Auth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetIdentity(r).IsAdmin() {
			response.Error(w, http.StatusUnauthorized, "Unauthorized: Admin privileges required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func extractBearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
