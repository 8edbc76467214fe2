package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

// FeatureGate is satisfied by services.SubscriptionService.
type FeatureGate interface {
	RequireFeature(ctx context.Context, orgID uuid.UUID, feature models.Feature) error
}

// RequireFeature rejects requests from organizations whose plan lacks
// feature. It must run after TenantID.
func RequireFeature(gate FeatureGate, feature models.Feature) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			orgID, ok := GetOrganizationID(r.Context())
			if !ok {
				writeError(w, http.StatusBadRequest, "invalid_input", "organization is required")
				return
			}

			err := gate.RequireFeature(r.Context(), orgID, feature)
			var denied *models.FeatureDeniedError
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.As(err, &denied):
				writeError(w, http.StatusForbidden, "feature_not_available", denied.Error())
			case errors.Is(err, models.ErrOrganizationNotFound):
				writeError(w, http.StatusNotFound, "not_found", err.Error())
			default:
				log.Error().Err(err).Str("organization_id", orgID.String()).Str("feature", string(feature)).Msg("Feature check failed")
				writeError(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
			}
		})
	}
}
