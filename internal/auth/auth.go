// Package auth verifies bearer tokens and resolves the calling user.
// Tokens are HS256 JWTs carrying the username and role; whoever holds the
// signing secret issues them.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/abrezinsky/ecobingo/internal/models"
)

const DefaultTokenTTL = 24 * time.Hour

type contextKey string

const userKey = contextKey("user")

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Claims is the token payload
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// UserStore resolves token subjects to user rows
type UserStore interface {
	EnsureUser(ctx context.Context, username string, role models.Role) (*models.User, error)
}

// Auth issues and verifies tokens
type Auth struct {
	secret []byte
	ttl    time.Duration
	users  UserStore
	now    func() time.Time
}

// New creates an Auth. A ttl <= 0 uses DefaultTokenTTL.
func New(secret string, ttl time.Duration, users UserStore) *Auth {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Auth{
		secret: []byte(secret),
		ttl:    ttl,
		users:  users,
		now:    time.Now,
	}
}

// Issue signs a token for username with role
func (a *Auth) Issue(username string, role models.Role) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", errors.New("username is required")
	}
	now := a.now()
	claims := Claims{
		Username: username,
		Role:     role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify parses and validates a token
func (a *Auth) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if strings.TrimSpace(claims.Username) == "" {
		return nil, ErrInvalidToken
	}
	if _, err := models.ParseRole(claims.Role); err != nil {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// tokenFromRequest reads the Authorization header, falling back to the
// token query parameter used by websocket clients
func tokenFromRequest(r *http.Request) (string, error) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", ErrMissingToken
		}
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer ")), nil
	}
	if t := r.URL.Query().Get("token"); t != "" {
		return t, nil
	}
	return "", ErrMissingToken
}

// Authenticate resolves the user behind the request's token
func (a *Auth) Authenticate(r *http.Request) (*models.User, error) {
	token, err := tokenFromRequest(r)
	if err != nil {
		return nil, err
	}
	claims, err := a.Verify(token)
	if err != nil {
		return nil, err
	}
	role, _ := models.ParseRole(claims.Role)
	return a.users.EnsureUser(r.Context(), claims.Username, role)
}

// RequireUser middleware for API endpoints (returns 401)
func (a *Auth) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := a.Authenticate(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"code":"UNAUTHORIZED","error":"Unauthorized - valid bearer token required"}`))
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// WithUser returns a context carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the authenticated user, if any
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok && u != nil
}
