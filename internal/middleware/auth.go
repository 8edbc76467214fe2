package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

const UserKey contextKey = "user"

// Authenticate validates an HS256 bearer token and stores the caller in the
// request context. With an empty secret every request is rejected.
func Authenticate(secret []byte) func(http.Handler) http.Handler {
	if len(secret) == 0 {
		log.Warn().Msg("No JWT secret configured; all authenticated routes will return 401")
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(secret) == 0 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication is not configured")
				return
			}

			header := r.Header.Get("Authorization")
			if header == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing authorization header")
				return
			}

			parts := strings.SplitN(header, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid authorization format")
				return
			}

			claims := &models.JWTClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				return secret, nil
			}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
			if err != nil || !token.Valid {
				log.Debug().Err(err).Msg("Rejected bearer token")
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}

			if claims.UserID == uuid.Nil || !claims.Role.Valid() {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid token claims")
				return
			}
			if claims.OrganizationID == uuid.Nil && claims.Role != models.RoleSuperAdmin {
				writeError(w, http.StatusUnauthorized, "unauthorized", "token has no organization")
				return
			}

			user := models.UserContext{
				UserID:         claims.UserID,
				OrganizationID: claims.OrganizationID,
				Role:           claims.Role,
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser returns ctx carrying user.
func WithUser(ctx context.Context, user models.UserContext) context.Context {
	return context.WithValue(ctx, UserKey, user)
}

// GetUser extracts the authenticated caller from context
func GetUser(ctx context.Context) (models.UserContext, bool) {
	user, ok := ctx.Value(UserKey).(models.UserContext)
	return user, ok
}

// RequireRole rejects callers whose role is not listed.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, ok := GetUser(r.Context())
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			for _, role := range roles {
				if user.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			log.Warn().
				Str("user_id", user.UserID.String()).
				Str("role", string(user.Role)).
				Str("path", r.URL.Path).
				Msg("Role not permitted")
			writeError(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

// IssueToken signs claims for user. Used by tooling and tests.
func IssueToken(secret []byte, user models.UserContext, claims jwt.RegisteredClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, models.JWTClaims{
		UserID:           user.UserID,
		OrganizationID:   user.OrganizationID,
		Role:             user.Role,
		RegisteredClaims: claims,
	})
	return token.SignedString(secret)
}
