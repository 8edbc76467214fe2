package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/middleware"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/otcheredev/practice-subscriptions/internal/services"
	"github.com/rs/zerolog/log"
)

// AdminHandler serves super-admin catalog and tenant management
type AdminHandler struct {
	plans         *services.PlanService
	organizations *services.OrganizationService
	subscriptions *services.SubscriptionService
}

func NewAdminHandler(plans *services.PlanService, organizations *services.OrganizationService, subscriptions *services.SubscriptionService) *AdminHandler {
	return &AdminHandler{plans: plans, organizations: organizations, subscriptions: subscriptions}
}

func (h *AdminHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	plans, err := h.plans.List(r.Context(), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plans)
}

func (h *AdminHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req services.PlanInput
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body: "+err.Error())
		return
	}

	plan, err := h.plans.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

func (h *AdminHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req services.PlanInput
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body: "+err.Error())
		return
	}

	plan, err := h.plans.Update(r.Context(), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (h *AdminHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)
	orgs, err := h.organizations.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (h *AdminHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req services.CreateOrganizationInput
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	org, err := h.organizations.Create(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

type subscriptionTypeRequest struct {
	SubscriptionType models.SubscriptionType `json:"subscription_type"`
}

func (h *AdminHandler) SetSubscriptionType(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req subscriptionTypeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	if err := h.subscriptions.SetSubscriptionType(r.Context(), id, req.SubscriptionType); err != nil {
		writeError(w, r, err)
		return
	}

	org, err := h.organizations.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// changeSubscriptionRequest either moves the organization onto PlanID or,
// when TrialDays is set, starts a trial.
type changeSubscriptionRequest struct {
	PlanID       *uuid.UUID          `json:"plan_id,omitempty"`
	BillingCycle models.BillingCycle `json:"billing_cycle,omitempty"`
	TrialDays    int                 `json:"trial_days,omitempty"`
}

func (h *AdminHandler) ChangeSubscription(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req changeSubscriptionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	var (
		sub *models.Subscription
		err error
	)
	switch {
	case req.PlanID != nil && req.TrialDays > 0:
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "Specify either plan_id or trial_days")
		return
	case req.PlanID != nil:
		sub, err = h.subscriptions.ChangePlan(r.Context(), id, *req.PlanID, req.BillingCycle)
	case req.TrialDays > 0:
		sub, err = h.subscriptions.StartTrial(r.Context(), id, req.TrialDays)
	default:
		writeErrorMessage(w, http.StatusBadRequest, "invalid_input", "plan_id or trial_days is required")
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *AdminHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}
	user, _ := middleware.GetUser(r.Context())

	if err := h.organizations.Delete(r.Context(), id, user.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	log.Info().Str("organization_id", id.String()).Msg("Organization removed by super admin")
	w.WriteHeader(http.StatusNoContent)
}
