package auth

import (
	"fmt"
	"log"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the resolved caller identity. A zero UserID means anonymous.
type Identity struct {
	UserID   string
	Username string
}

// IsAnonymous reports whether the identity carries no authenticated user.
func (i Identity) IsAnonymous() bool {
	return i.UserID == ""
}

// Resolver turns an opaque token into an identity. A missing or invalid
// token resolves to the anonymous identity, never an error; connection
// policy for anonymous callers is decided by the caller.
type Resolver interface {
	Resolve(token string) Identity
}

// JWTResolver validates HS256 access tokens carrying a user_id claim,
// matching the access tokens the web client already holds.
type JWTResolver struct {
	secret []byte
}

// NewJWTResolver creates a resolver for tokens signed with secret.
func NewJWTResolver(secret string) *JWTResolver {
	return &JWTResolver{secret: []byte(secret)}
}

func (r *JWTResolver) Resolve(token string) Identity {
	if token == "" {
		return Identity{}
	}

	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return r.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		log.Printf("auth: token validation failed: %v", err)
		return Identity{}
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}
	}

	identity := Identity{}
	switch id := claims["user_id"].(type) {
	case string:
		identity.UserID = id
	case float64:
		identity.UserID = fmt.Sprintf("%.0f", id)
	}
	if username, ok := claims["username"].(string); ok {
		identity.Username = username
	}
	return identity
}

var _ Resolver = (*JWTResolver)(nil)
