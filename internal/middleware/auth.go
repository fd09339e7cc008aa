package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/sitesmithapp/sitesmith/config"
)

type contextKey string

const UserContextKey contextKey = "user"

var (
	ErrMissingToken = errors.New("missing authorization header or token parameter")
	ErrBadHeader    = errors.New("invalid authorization header format")
	ErrNoSubject    = errors.New("token has no subject")
)

// clockSkew is how far token time claims may be off from our clock.
const clockSkew = 30 * time.Second

// UserClaims are the claims of tokens issued by the identity provider.
//
// Sub is the caller's user id. A website belongs to the Sub that created
// it, and every website, deployment, domain and editor lookup compares the
// stored owner against it; a mismatch is answered as not found. Tokens
// without a subject are refused outright.
type UserClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// ParseToken verifies an HMAC-signed token against secret and returns its
// claims.
func ParseToken(secret, tokenString string) (*UserClaims, error) {
	claims := &UserClaims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithLeeway(clockSkew),
	)
	if _, err := parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}); err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if claims.Sub == "" {
		return nil, ErrNoSubject
	}
	return claims, nil
}

// requestToken takes the token from "Authorization: Bearer ..." or, for
// EventSource clients that cannot set headers, from ?token=.
func requestToken(r *http.Request) (string, error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || scheme != "Bearer" || token == "" || strings.Contains(token, " ") {
			return "", ErrBadHeader
		}
		return token, nil
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}
	return "", ErrMissingToken
}

// AuthMiddleware puts the verified caller on the request context. CORS
// preflights pass through unauthenticated.
func AuthMiddleware(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			tokenString, err := requestToken(r)
			if err != nil {
				RespondError(w, http.StatusUnauthorized, err.Error())
				return
			}
			claims, err := ParseToken(cfg.JWTSecret, tokenString)
			if err != nil {
				RespondError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims)))
		})
	}
}

// WithUser returns ctx carrying claims, as AuthMiddleware does.
func WithUser(ctx context.Context, claims *UserClaims) context.Context {
	return context.WithValue(ctx, UserContextKey, claims)
}

func GetUserFromContext(ctx context.Context) (*UserClaims, bool) {
	user, ok := ctx.Value(UserContextKey).(*UserClaims)
	return user, ok && user != nil
}

func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[API] Failed to encode response: %v", err)
	}
}

func RespondError(w http.ResponseWriter, status int, message string) {
	RespondJSON(w, status, map[string]string{"error": message})
}
