package server

import (
	"encoding/base64"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// AdminScope grants every write route.
const AdminScope = "admin"

type Claims struct {
	Scopes []string `json:"scopes"`
	jwt.RegisteredClaims
}

// DecodeKey decodes a base64 HS256 key, padded or not.
func DecodeKey(s string) ([]byte, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "=")
	key, err := base64.RawStdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid jwt key: %w", err)
	}
	return key, nil
}

// SignToken mints a bearer token carrying scopes. A zero ttl never expires.
func SignToken(key []byte, subject string, scopes []string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Scopes: scopes,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  subject,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

func ParseToken(key []byte, tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

var errNoAdminScope = errors.New("token has no admin scope")

// AdminRequired rejects requests without a valid bearer token carrying the
// admin scope. Without a key every write is rejected.
func AdminRequired(key []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(key) == 0 {
			return fiber.NewError(fiber.StatusForbidden, "write access is disabled")
		}
		token, ok := strings.CutPrefix(c.Get(fiber.HeaderAuthorization), "Bearer ")
		if !ok || token == "" {
			return fiber.NewError(fiber.StatusForbidden, "missing bearer token")
		}
		claims, err := ParseToken(key, token)
		if err != nil {
			return fiber.NewError(fiber.StatusForbidden, "failed to verify token")
		}
		if !slices.Contains(claims.Scopes, AdminScope) {
			return fiber.NewError(fiber.StatusForbidden, errNoAdminScope.Error())
		}
		c.Locals("claims", claims)
		return c.Next()
	}
}
