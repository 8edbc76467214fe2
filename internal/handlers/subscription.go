package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/otcheredev/practice-subscriptions/internal/services"
)

type SubscriptionHandler struct {
	subscriptions *services.SubscriptionService
}

func NewSubscriptionHandler(subscriptions *services.SubscriptionService) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions}
}

// GetDetails returns the organization's plan, usage and limits
func (h *SubscriptionHandler) GetDetails(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	details, err := h.subscriptions.GetSubscriptionDetails(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if details == nil {
		writeJSON(w, http.StatusNotFound, map[string]interface{}{"subscription": nil})
		return
	}
	writeJSON(w, http.StatusOK, details)
}

// GetUsage returns this month's usage
func (h *SubscriptionHandler) GetUsage(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	usage, err := h.subscriptions.GetCurrentUsage(r.Context(), orgID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// CheckLimit reports whether one more resource may be created
func (h *SubscriptionHandler) CheckLimit(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	resource := models.Resource(chi.URLParam(r, "resource"))
	action := models.Action(r.URL.Query().Get("action"))
	if action == "" {
		action = models.ActionCreate
	}

	result, err := h.subscriptions.ValidateSubscriptionLimit(r.Context(), orgID, resource, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type featureResponse struct {
	Feature models.Feature `json:"feature"`
	Enabled bool           `json:"enabled"`
}

// CheckFeature reports whether the plan enables a feature
func (h *SubscriptionHandler) CheckFeature(w http.ResponseWriter, r *http.Request) {
	orgID, ok := organizationID(w, r)
	if !ok {
		return
	}

	feature := models.Feature(chi.URLParam(r, "feature"))
	enabled, err := h.subscriptions.ValidateFeatureAccess(r.Context(), orgID, feature)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, featureResponse{Feature: feature, Enabled: enabled})
}
