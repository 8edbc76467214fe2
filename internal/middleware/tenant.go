package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type contextKey string

const OrganizationIDKey contextKey = "organization_id"

// OrganizationHeader lets a super admin act on another organization.
const OrganizationHeader = "X-Organization-ID"

// TenantID middleware resolves the organization a request acts on. It must
// run after Authenticate.
func TenantID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := GetUser(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
			return
		}

		orgID := user.OrganizationID
		if override := r.Header.Get(OrganizationHeader); override != "" {
			if !user.IsSuperAdmin() {
				log.Warn().Str("user_id", user.UserID.String()).Msg("Organization override rejected")
				writeError(w, http.StatusForbidden, "forbidden", OrganizationHeader+" is reserved for super admins")
				return
			}
			parsed, err := uuid.Parse(override)
			if err != nil {
				log.Warn().Err(err).Str("organization_id", override).Msg("Invalid organization ID")
				writeError(w, http.StatusBadRequest, "invalid_input", "Invalid "+OrganizationHeader+" format")
				return
			}
			orgID = parsed
		}

		if orgID == uuid.Nil {
			writeError(w, http.StatusBadRequest, "invalid_input", OrganizationHeader+" header is required")
			return
		}

		ctx := context.WithValue(r.Context(), OrganizationIDKey, orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetOrganizationID extracts the organization ID from context
func GetOrganizationID(ctx context.Context) (uuid.UUID, bool) {
	orgID, ok := ctx.Value(OrganizationIDKey).(uuid.UUID)
	return orgID, ok
}
