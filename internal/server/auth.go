package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type callerKey struct{}

// MintToken issues an HS256 token whose subject is the wallet identity.
func MintToken(secret, wallet string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := jwt.RegisteredClaims{
		Subject:   wallet,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// parseCaller validates the token and returns the wallet it was minted for.
func parseCaller(secret, tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return []byte(secret), nil
		})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return claims.Subject, nil
}

// AuthMiddleware wraps an http.Handler and checks the Authorization header
// for a valid Bearer token. The authenticated wallet is placed in the request
// context. When secret is empty, auth is disabled and all requests pass
// through. GET /v1/health is always exempt.
func AuthMiddleware(secret string, next http.Handler) http.Handler {
	if secret == "" {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Exempt health check.
		if r.Method == http.MethodGet && r.URL.Path == "/v1/health" {
			next.ServeHTTP(w, r)
			return
		}

		auth := r.Header.Get("Authorization")
		if auth == "" {
			writeError(w, http.StatusUnauthorized, "missing authorization header")
			return
		}
		if !strings.HasPrefix(auth, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "invalid authorization scheme")
			return
		}

		wallet, err := parseCaller(secret, strings.TrimPrefix(auth, "Bearer "))
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), callerKey{}, wallet)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// caller resolves the acting wallet for a request. With auth enabled the
// token subject wins; the body field is only trusted when auth is disabled.
func caller(r *http.Request, bodyWallet string) (string, error) {
	if w, ok := r.Context().Value(callerKey{}).(string); ok && w != "" {
		return w, nil
	}
	if bodyWallet == "" {
		return "", inputError("caller wallet is required")
	}
	return bodyWallet, nil
}
