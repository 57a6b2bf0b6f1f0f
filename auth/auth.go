package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL matches the lifetime of tokens issued by the app backend
const DefaultTokenTTL = 7 * 24 * time.Hour

var (
	ErrMissingToken = errors.New("missing token")
	ErrInvalidToken = errors.New("invalid token")
)

type AuthModule struct {
	JWTSecret string
}

func NewAuthModule(JWTSecret string) *AuthModule {
	return &AuthModule{JWTSecret: JWTSecret}
}

// Disabled reports whether no secret is configured, in which case every
// request is let through.
func (a *AuthModule) Disabled() bool {
	return a.JWTSecret == ""
}

// GenerateJWT signs an HS256 token carrying the user id in the "id" claim
func (a *AuthModule) GenerateJWT(userID string, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"id":  userID,
		"exp": now.Add(ttl).Unix(),
		"iat": now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(a.JWTSecret))
}

// ValidateTokenJWT validates a bearer token and returns the user id
func (a *AuthModule) ValidateTokenJWT(ctx context.Context, token string) (string, error) {
	token, _ = strings.CutPrefix(strings.TrimLeft(token, " "), "Bearer ")
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrMissingToken
	}

	parsedToken, err := jwt.Parse(token, func(token *jwt.Token) (interface{}, error) {
		return []byte(a.JWTSecret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsedToken.Claims.(jwt.MapClaims)
	if !ok || !parsedToken.Valid {
		return "", ErrInvalidToken
	}

	// "id" from the app backend, "user_id" from older tokens
	for _, key := range []string{"id", "user_id"} {
		switch v := claims[key].(type) {
		case string:
			if v != "" {
				return v, nil
			}
		case float64:
			return strconv.FormatInt(int64(v), 10), nil
		}
	}
	return "", fmt.Errorf("%w: no user id claim", ErrInvalidToken)
}
