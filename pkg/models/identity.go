package models

// IdentityKind classifies the credential presented with a request.
type IdentityKind string

const (
	IdentityAnonymous IdentityKind = "anonymous"
	IdentityUser      IdentityKind = "user"
	IdentityAdmin     IdentityKind = "admin"
)

// Identity is the result of authenticating a request. Token is nil for
// anonymous requests and for admins authenticated via the configured admin
// secret; those identities have no stored row to account usage against.
type Identity struct {
	Kind  IdentityKind
	Token *Token
}

// Authenticated reports whether the identity may call analysis routes.
func (id Identity) Authenticated() bool {
	return id.Kind == IdentityUser || id.Kind == IdentityAdmin
}

// IsAdmin reports whether the identity may call admin routes.
func (id Identity) IsAdmin() bool {
	return id.Kind == IdentityAdmin
}
