package auth

import (
	"context"
	"fmt"

	"Romaly/core/apperr"
	"Romaly/model"
)

// Identity 当前调用者。零值即匿名访问者。
type Identity struct {
	UserID string
	Role   model.Role
	Name   string
}

func Anonymous() Identity {
	return Identity{Role: model.RoleListener}
}

func FromClaims(c *Claims) Identity {
	return Identity{UserID: c.UserID, Role: c.Role, Name: c.Name}
}

func (i Identity) Authenticated() bool {
	return i.UserID != "" && i.Role != model.RoleListener
}

func (i Identity) IsAdmin() bool {
	return i.Authenticated() && i.Role == model.RoleAdmin
}

// Owns 自己的资源或者管理员
func (i Identity) Owns(ownerID string) bool {
	if !i.Authenticated() {
		return false
	}
	return i.Role == model.RoleAdmin || (ownerID != "" && i.UserID == ownerID)
}

// Capability 操作所需的权限
type Capability uint8

const (
	CapAuthenticated Capability = iota
	CapAdmin
	CapOwnerOrAdmin
)

// Check 纯函数，不修改任何状态。ownerID 只在 CapOwnerOrAdmin 时使用。
func Check(id Identity, c Capability, ownerID string) error {
	switch id.Role {
	case model.RoleListener:
		return apperr.Unauthenticated("No token, authorization denied")
	case model.RoleAuthor, model.RoleAdmin:
		if id.UserID == "" {
			return apperr.Unauthenticated("No token, authorization denied")
		}
	default:
		return apperr.Unauthenticated("Token is not valid")
	}

	switch c {
	case CapAuthenticated:
		return nil
	case CapAdmin:
		if id.Role == model.RoleAdmin {
			return nil
		}
		return apperr.Forbidden("Access denied: admin only")
	case CapOwnerOrAdmin:
		if id.Owns(ownerID) {
			return nil
		}
		return apperr.Forbidden("User not authorized")
	}
	return apperr.Unexpected("unknown capability", fmt.Errorf("capability %d", c))
}

func RequireAuthenticated(id Identity) error { return Check(id, CapAuthenticated, "") }
func RequireAdmin(id Identity) error         { return Check(id, CapAdmin, "") }

func RequireOwnerOrAdmin(id Identity, ownerID string) error {
	return Check(id, CapOwnerOrAdmin, ownerID)
}

type ctxKey struct{}

// WithIdentity 把身份放进 context
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// IdentityFrom 取不到时返回匿名身份
func IdentityFrom(ctx context.Context) Identity {
	if id, ok := ctx.Value(ctxKey{}).(Identity); ok {
		return id
	}
	return Anonymous()
}
