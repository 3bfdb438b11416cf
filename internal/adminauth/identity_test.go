package adminauth

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestIsValidRole(t *testing.T) {
	tests := []struct {
		role  string
		valid bool
	}{
		{RoleAdmin, true},
		{RoleUser, true},
		{"superadmin", false},
		{"", false},
		{"Admin", false}, // case-sensitive
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			got := IsValidRole(tt.role)
			if got != tt.valid {
				t.Errorf("IsValidRole(%q) = %v, want %v", tt.role, got, tt.valid)
			}
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()

	if id := FromContext(ctx); id != nil {
		t.Fatalf("expected nil, got %+v", id)
	}

	identity := &Identity{
		UserID: uuid.New(),
		Email:  "test@example.com",
		Name:   "Test User",
		Role:   RoleUser,
		Method: MethodOIDC,
	}
	ctx = NewContext(ctx, identity)

	got := FromContext(ctx)
	if got == nil {
		t.Fatal("expected identity, got nil")
	}
	if got.Email != "test@example.com" {
		t.Errorf("Email = %q, want %q", got.Email, "test@example.com")
	}
	if got.Role != RoleUser {
		t.Errorf("Role = %q, want %q", got.Role, RoleUser)
	}
	if got.Method != MethodOIDC {
		t.Errorf("Method = %q, want %q", got.Method, MethodOIDC)
	}
}
