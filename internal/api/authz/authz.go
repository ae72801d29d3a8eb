package authz

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
)

const (
	RoleAdmin  = "admin"
	RolePlayer = "player"
)

type AuthUser struct {
	ID    int64
	Email string
	Name  string
	Role  string
}

type userContextKey struct{}

func ContextWithUser(ctx context.Context, user *AuthUser) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext retrieves the AuthUser stored in ctx.
// It returns nil if ctx is nil, if no user is stored, or if the stored value has a different type.
func UserFromContext(ctx context.Context) *AuthUser {
	if ctx == nil {
		return nil
	}

	user, ok := ctx.Value(userContextKey{}).(*AuthUser)
	if !ok {
		return nil
	}

	return user
}

// IsAdmin reports whether user may manage leagues, seasons and results.
func IsAdmin(user *AuthUser) bool {
	return user != nil && strings.EqualFold(user.Role, RoleAdmin)
}

// RequireUser fails with ErrUnauthenticated when ctx carries no user.
func RequireUser(ctx context.Context) (*AuthUser, error) {
	user := UserFromContext(ctx)
	if user == nil {
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// RequireAdmin fails with ErrUnauthenticated without a user and ErrForbidden
// for non-admins.
func RequireAdmin(ctx context.Context) (*AuthUser, error) {
	user, err := RequireUser(ctx)
	if err != nil {
		return nil, err
	}
	if !IsAdmin(user) {
		return nil, ErrForbidden
	}
	return user, nil
}

// CanViewRegistration lets admins see any registration and players only
// their own or one naming them as partner.
func CanViewRegistration(user *AuthUser, userID int64, partnerID *int64) bool {
	if user == nil {
		return false
	}
	if IsAdmin(user) || user.ID == userID {
		return true
	}
	return partnerID != nil && *partnerID == user.ID
}
