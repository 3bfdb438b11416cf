package adminauth

import (
	"context"

	"github.com/google/uuid"
)

// Roles supported by the dashboard RBAC.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// ValidRoles lists all known roles in descending privilege order.
var ValidRoles = []string{RoleAdmin, RoleUser}

// Method describes how the caller was authenticated.
const (
	MethodSession = "session"
	MethodOIDC    = "oidc"
	MethodDev     = "dev"
)

// Identity represents the authenticated dashboard caller for the current request.
type Identity struct {
	UserID uuid.UUID
	Email  string
	Name   string
	Role   string
	Method string
}

type ctxKey string

const identityKey ctxKey = "auth_identity"

// NewContext stores the identity in the context.
func NewContext(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// FromContext extracts the identity from the context. Returns nil if no
// identity is set.
func FromContext(ctx context.Context) *Identity {
	v, _ := ctx.Value(identityKey).(*Identity)
	return v
}

// IsValidRole reports whether role is a recognised RBAC role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
