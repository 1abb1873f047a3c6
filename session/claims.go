package session

import (
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	kerrors "github.com/kinnstay/booking-workflow/internal/errors"
	"github.com/kinnstay/booking-workflow/users"
)

// Claims are the identity fields the marketplace packs into its bearer
// tokens. The token is issued and signed by the server; this side only
// reads the payload, so parsing is unverified and trust comes from
// having received the token over the login exchange.
type Claims struct {
	UserID    string
	Name      string
	Email     string
	Role      users.Role
	AvatarURL string
	ExpiresAt time.Time // zero when the token carries no exp claim
}

// decodeClaims extracts identity claims from a raw bearer token.
// A token with an unknown role or missing subject is rejected outright.
func decodeClaims(rawToken string) (*Claims, error) {
	if strings.TrimSpace(rawToken) == "" {
		return nil, errors.Wrap(kerrors.ErrInvalidToken, "empty token")
	}

	token, _, err := jwtlib.NewParser().ParseUnverified(rawToken, jwtlib.MapClaims{})
	if err != nil {
		return nil, errors.Wrap(kerrors.ErrInvalidToken, err.Error())
	}
	mapClaims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return nil, errors.Wrap(kerrors.ErrInvalidToken, "error extracting claims")
	}

	id, _ := mapClaims["id"].(string)
	if id == "" {
		// Some deployments use the registered subject claim instead.
		id, _ = mapClaims["sub"].(string)
	}
	name, _ := mapClaims["name"].(string)
	email, _ := mapClaims["email"].(string)
	rawRole, _ := mapClaims["role"].(string)
	avatar, _ := mapClaims["profile_picture"].(string)

	if id == "" {
		return nil, errors.Wrap(kerrors.ErrInvalidToken, "token has no user id")
	}
	role, err := users.ParseRole(rawRole)
	if err != nil {
		return nil, errors.Wrap(kerrors.ErrInvalidToken, err.Error())
	}

	claims := &Claims{
		UserID:    id,
		Name:      name,
		Email:     email,
		Role:      role,
		AvatarURL: avatar,
	}
	if exp, ok := mapClaims["exp"].(float64); ok {
		claims.ExpiresAt = time.Unix(int64(exp), 0)
	}
	return claims, nil
}

// expired reports whether the claims' exp has passed as of now. Tokens
// without an exp claim never expire here; the server still rejects them
// at its own discretion on each call.
func (c *Claims) expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && now.After(c.ExpiresAt)
}

// user builds the identity record derived from the claims.
func (c *Claims) user() *users.User {
	return &users.User{
		ID:     c.UserID,
		Name:   c.Name,
		Email:  c.Email,
		Role:   c.Role,
		Avatar: c.AvatarURL,
	}
}
