package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/golang-jwt/jwt/v5"

	"courtline/internal/engine/auth"
	"courtline/internal/logging"
	"courtline/internal/repo"
)

type AuthConfig struct {
	JWTSecret string
	// AllowPlayerHeader trusts a bare X-Player-Id header. Local tables only.
	AllowPlayerHeader bool
	Logger            *log.Logger
}

// Principal is the authenticated caller. Roles and Permissions come from
// JWT claims and apply to every case; otherwise case membership decides.
type Principal struct {
	ActorID     string
	Roles       []string
	Permissions []string
	Source      string
}

type principalKey struct{}

func (c AuthConfig) logger() *log.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return log.Default()
}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.ActorID != "" {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func actorIDFromContext(ctx context.Context) (string, huma.StatusError) {
	p, err := principalFromRequest(ctx)
	if err != nil {
		return "", err
	}
	return p.ActorID, nil
}

type jwtClaims struct {
	jwt.RegisteredClaims
	Roles       []string `json:"roles,omitempty"`
	Permissions []string `json:"permissions,omitempty"`
}

// authenticateJWT accepts HS256 tokens with a subject and an expiry.
func authenticateJWT(token string, secret string) (Principal, error) {
	if strings.TrimSpace(secret) == "" {
		return Principal{}, errors.New("jwt secret not configured")
	}
	claims := &jwtClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return Principal{}, err
	}
	if claims.Subject == "" {
		return Principal{}, errors.New("token has no subject")
	}
	roles := make([]string, 0, len(claims.Roles))
	for _, role := range claims.Roles {
		if auth.ValidRole(role) {
			roles = append(roles, role)
		}
	}
	return Principal{ActorID: claims.Subject, Roles: roles, Permissions: claims.Permissions, Source: "jwt"}, nil
}

// signDevToken mints a short-lived HS256 token for local play.
func signDevToken(secret, actorID string, roles, permissions []string) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("jwt secret not configured")
	}
	now := time.Now().UTC()
	claims := jwtClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   actorID,
			Issuer:    "courtline-dev",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(12 * time.Hour)),
		},
		Roles:       roles,
		Permissions: permissions,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func authenticateAPIKey(ctx context.Context, r repo.Repo, key string) (Principal, error) {
	if !strings.HasPrefix(key, repo.KeyPrefix) {
		return Principal{}, errors.New("malformed api key")
	}
	apiKey, err := r.GetAPIKeyByHash(ctx, repo.HashAPIKey(key))
	if err != nil {
		return Principal{}, err
	}
	return Principal{ActorID: apiKey.ActorID, Source: "api_key"}, nil
}

func bearerToken(authz string) (string, bool) {
	scheme, token, ok := strings.Cut(authz, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "bearer") || token == "" {
		return "", false
	}
	return token, true
}

// openPaths are served without credentials.
func openPaths(basePath string) map[string]bool {
	return map[string]bool{
		path.Join("/", basePath, "health"):         true,
		path.Join("/", basePath, "openapi.json"):   true,
		path.Join("/", basePath, "auth/dev/login"): true,
	}
}

func newAuthMiddleware(basePath string, cfg AuthConfig, r repo.Repo) func(http.Handler) http.Handler {
	open := openPaths(basePath)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath) || open[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			principal, authErr := cfg.authenticate(req, r)
			if authErr != nil {
				respondStatusError(w, authErr)
				return
			}
			ctx := logging.WithAttrs(req.Context(), slog.String("actor_id", principal.ActorID))
			next.ServeHTTP(w, req.WithContext(withPrincipal(ctx, principal)))
		})
	}
}

// authenticate tries the bearer token, then the API key, then the player
// header when it is trusted. The first credential present decides.
func (c AuthConfig) authenticate(req *http.Request, r repo.Repo) (Principal, huma.StatusError) {
	invalid := newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil)
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		token, ok := bearerToken(authz)
		if !ok {
			return Principal{}, invalid
		}
		p, err := authenticateJWT(token, c.JWTSecret)
		if err != nil {
			c.logger().Printf("bearer token rejected: %v", err)
			return Principal{}, invalid
		}
		return p, nil
	}
	if key := strings.TrimSpace(req.Header.Get("X-Api-Key")); key != "" {
		p, err := authenticateAPIKey(req.Context(), r, key)
		if err != nil {
			return Principal{}, invalid
		}
		return p, nil
	}
	if player := strings.TrimSpace(req.Header.Get("X-Player-Id")); player != "" && c.AllowPlayerHeader {
		c.logger().Printf("unauthenticated X-Player-Id header accepted (actor_id=%s)", player)
		return Principal{ActorID: player, Source: "player_header"}, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
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
