package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"groundcontrol/internal/domain"
)

type AuthConfig struct {
	JWTSecret        string
	AllowActorHeader bool
}

type principalKey struct{}

func withActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, principalKey{}, actor)
}

// actorFromContext resolves the authenticated actor. Every mutation is
// attributed to it in the activity log.
func actorFromContext(ctx context.Context) (string, huma.StatusError) {
	if actor, ok := ctx.Value(principalKey{}).(string); ok && actor != "" {
		return actor, nil
	}
	return "", newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func authenticateJWT(token, secret string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	claims := &jwt.RegisteredClaims{}
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return "", err
	}
	if !parsed.Valid {
		return "", errors.New("invalid token")
	}
	if !domain.ValidAuthor(claims.Subject) {
		return "", errors.New("subject is not a known actor")
	}
	return claims.Subject, nil
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	healthPath := path.Join(basePath, "health")
	webhookPath := path.Join(basePath, "webhooks/github")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if basePath != "" && !strings.HasPrefix(req.URL.Path, basePath) {
				next.ServeHTTP(w, req)
				return
			}
			// The GitHub edge authenticates with its own shared secret.
			if req.URL.Path == healthPath || req.URL.Path == webhookPath {
				next.ServeHTTP(w, req)
				return
			}

			if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
				token, ok := bearerToken(authz)
				if !ok {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				actor, err := authenticateJWT(token, cfg.JWTSecret)
				if err != nil {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
				return
			}

			if actor := strings.TrimSpace(req.Header.Get("X-Actor")); actor != "" && cfg.AllowActorHeader {
				if !domain.ValidAuthor(actor) {
					respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "unknown actor", nil))
					return
				}
				next.ServeHTTP(w, req.WithContext(withActor(req.Context(), actor)))
				return
			}

			respondStatusError(w, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
