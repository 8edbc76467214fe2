package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/middleware"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeErrorMessage(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

// writeError maps service errors onto HTTP statuses. Limit and feature
// denials carry their message through to the client unchanged.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var limitErr *models.LimitExceededError
	var featureErr *models.FeatureDeniedError

	switch {
	case errors.As(err, &limitErr):
		writeErrorMessage(w, http.StatusForbidden, "limit_exceeded", limitErr.Error())
	case errors.As(err, &featureErr):
		writeErrorMessage(w, http.StatusForbidden, "feature_not_available", featureErr.Error())
	case errors.Is(err, models.ErrOrganizationNotFound), errors.Is(err, models.ErrNotFound):
		writeErrorMessage(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, models.ErrConflict):
		writeErrorMessage(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, models.ErrInvalidInput), errors.Is(err, models.ErrUnknownResource):
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, models.ErrNoActiveSubscription), errors.Is(err, models.ErrNoSubscriptionPlan):
		log.Error().Err(err).Str("path", r.URL.Path).Msg("Subscription data inconsistent")
		writeErrorMessage(w, http.StatusInternalServerError, "subscription_error", err.Error())
	default:
		log.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("Request failed")
		writeErrorMessage(w, http.StatusInternalServerError, "internal_error", "Internal Server Error")
	}
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func organizationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	orgID, ok := middleware.GetOrganizationID(r.Context())
	if !ok {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Organization ID not found")
	}
	return orgID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, name))
	if err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// pagination reads limit and offset query parameters. limit defaults to 50
// and is capped at 200.
func pagination(r *http.Request) (limit, offset int) {
	limit = 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = v
	}
	if limit > 200 {
		limit = 200
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("offset")); err == nil && v > 0 {
		offset = v
	}
	return limit, offset
}
