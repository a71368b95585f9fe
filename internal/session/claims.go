package session

import (
	"fmt"
	"strings"
	"time"

	"taskboard-cli/internal/model"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the fields the client reads from the server's token. The
// signature is not checked here: the server remains the authority and any
// forged token is rejected with 401 on first use.
type Claims struct {
	Subject   string
	Role      model.Role
	ExpiresAt time.Time
}

func PeekClaims(token string) (Claims, error) {
	mc := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(strings.TrimSpace(token), mc); err != nil {
		return Claims{}, fmt.Errorf("parse token: %w", err)
	}
	var c Claims
	if sub, err := mc.GetSubject(); err == nil {
		c.Subject = sub
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		c.ExpiresAt = exp.Time
	}
	if raw, ok := mc["role"].(string); ok {
		if r, ok := model.ParseRole(raw); ok {
			c.Role = r
		}
	}
	return c, nil
}

// Expired reports whether the token carries an exp claim at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}
