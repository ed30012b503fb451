package auth

import (
	"context"
	"testing"

	"Romaly/core/apperr"
	"Romaly/model"

	"github.com/stretchr/testify/assert"
)

func TestCheck(t *testing.T) {
	anon := Anonymous()
	author := Identity{UserID: "a1", Role: model.RoleAuthor}
	other := Identity{UserID: "a2", Role: model.RoleAuthor}
	admin := Identity{UserID: "root", Role: model.RoleAdmin}

	tests := []struct {
		name  string
		id    Identity
		cap   Capability
		owner string
		want  apperr.Kind
		allow bool
	}{
		{"anonymous authenticated", anon, CapAuthenticated, "", apperr.KindUnauthenticated, false},
		{"anonymous admin", anon, CapAdmin, "", apperr.KindUnauthenticated, false},
		{"author authenticated", author, CapAuthenticated, "", 0, true},
		{"author admin", author, CapAdmin, "", apperr.KindForbidden, false},
		{"admin admin", admin, CapAdmin, "", 0, true},
		{"owner", author, CapOwnerOrAdmin, "a1", 0, true},
		{"non owner", other, CapOwnerOrAdmin, "a1", apperr.KindForbidden, false},
		{"admin not owner", admin, CapOwnerOrAdmin, "a1", 0, true},
		{"empty owner", author, CapOwnerOrAdmin, "", apperr.KindForbidden, false},
		{"role without id", Identity{Role: model.RoleAdmin}, CapAdmin, "", apperr.KindUnauthenticated, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.id, tt.cap, tt.owner)
			if tt.allow {
				assert.NoError(t, err)
				return
			}
			assert.Equal(t, tt.want, apperr.KindOf(err))
		})
	}
}

func TestIdentityContext(t *testing.T) {
	ctx := context.Background()
	assert.False(t, IdentityFrom(ctx).Authenticated())

	id := Identity{UserID: "u", Role: model.RoleAdmin, Name: "root"}
	got := IdentityFrom(WithIdentity(ctx, id))
	assert.Equal(t, id, got)
	assert.True(t, got.IsAdmin())
}

func TestFromClaims(t *testing.T) {
	id := FromClaims(&Claims{UserID: "x", Role: model.RoleAuthor, Name: "n"})
	assert.Equal(t, Identity{UserID: "x", Role: model.RoleAuthor, Name: "n"}, id)
}
