package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
)

// SubscriptionService enforces plan limits and feature flags for tenants.
//
// Tenants fall into three classes, checked in order: unlimited organizations,
// trial organizations (trial/trialing subscription or none at all), and paid
// organizations whose live subscription's plan decides.
type SubscriptionService struct {
	orgs    OrganizationStore
	subs    SubscriptionStore
	plans   PlanStore
	usage   UsageCounter
	audit   AuditStore
	metrics *metrics.Metrics

	loc    *time.Location
	now    func() time.Time
	strict bool
}

// SubscriptionOptions tunes a SubscriptionService.
type SubscriptionOptions struct {
	// Location defines calendar months for usage windows. Defaults to UTC.
	Location *time.Location
	// Strict serialises limit checks with the create that follows them.
	Strict  bool
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// NewSubscriptionService creates a new subscription service
func NewSubscriptionService(
	orgs OrganizationStore,
	subs SubscriptionStore,
	plans PlanStore,
	usage UsageCounter,
	audit AuditStore,
	opts SubscriptionOptions,
) *SubscriptionService {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &SubscriptionService{
		orgs:    orgs,
		subs:    subs,
		plans:   plans,
		usage:   usage,
		audit:   audit,
		metrics: opts.Metrics,
		loc:     opts.Location,
		now:     opts.Now,
		strict:  opts.Strict,
	}
}

// GetCurrentUsage counts this month's patients and appointments and the
// organization's total users.
func (s *SubscriptionService) GetCurrentUsage(ctx context.Context, orgID uuid.UUID) (*models.Usage, error) {
	now := s.now()
	period := models.MonthContaining(now, s.loc)

	patients, err := s.usage.CountPatientsCreated(ctx, orgID, period.Start, period.End)
	if err != nil {
		return nil, fmt.Errorf("failed to compute usage: %w", err)
	}

	userIDs, err := s.usage.ListUserIDs(ctx, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute usage: %w", err)
	}

	var appointments int64
	if len(userIDs) > 0 {
		appointments, err = s.usage.CountAppointmentsCreated(ctx, userIDs, period.Start, period.End)
		if err != nil {
			return nil, fmt.Errorf("failed to compute usage: %w", err)
		}
	}

	return &models.Usage{
		Patients:     patients,
		Users:        int64(len(userIDs)),
		Appointments: appointments,
		MonthPeriod:  period,
		LastUpdated:  now,
	}, nil
}

// ValidateSubscriptionLimit decides whether the organization may perform
// action on another instance of resource. A denial is a *models.LimitExceededError.
func (s *SubscriptionService) ValidateSubscriptionLimit(ctx context.Context, orgID uuid.UUID, resource models.Resource, action models.Action) (*models.LimitCheckResult, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}

	if org.IsUnlimited() {
		return s.bypass(ctx, orgID, resource, models.UnlimitedPlanName)
	}

	sub, err := s.subs.GetActiveByOrganization(ctx, orgID)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}
	if sub.IsTrial() {
		return s.bypass(ctx, orgID, resource, models.TrialPlanName)
	}

	plan, err := s.paidPlan(orgID, sub)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}

	limits := plan.Limits()
	limit, err := limits.For(resource)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}

	usage, err := s.GetCurrentUsage(ctx, orgID)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}

	if action == models.ActionCreate {
		current := usage.Of(resource)
		if !limit.Allows(current) {
			s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeDenied)
			log.Info().
				Str("organization_id", orgID.String()).
				Str("resource", string(resource)).
				Str("plan", plan.Name).
				Int64("limit", limit.Max()).
				Int64("current", current).
				Msg("Subscription limit reached")
			return nil, &models.LimitExceededError{
				Resource: resource,
				PlanName: plan.Name,
				Limit:    limit.Max(),
				Current:  current,
				Month:    usage.MonthPeriod.Start.Month(),
			}
		}
	}

	s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeAllowed)
	return &models.LimitCheckResult{
		Allowed:      true,
		CurrentUsage: usage,
		Limits:       limits,
		PlanName:     plan.Name,
	}, nil
}

func (s *SubscriptionService) bypass(ctx context.Context, orgID uuid.UUID, resource models.Resource, planName string) (*models.LimitCheckResult, error) {
	usage, err := s.GetCurrentUsage(ctx, orgID)
	if err != nil {
		s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeError)
		return nil, err
	}
	s.metrics.RecordLimitCheck(string(resource), metrics.OutcomeBypass)
	return &models.LimitCheckResult{
		Allowed:      true,
		CurrentUsage: usage,
		Limits:       models.UnlimitedLimits(),
		PlanName:     planName,
	}, nil
}

// paidPlan returns the catalog plan of a paid subscription. Missing or lapsed
// subscriptions and missing plans mean the tenant's data is inconsistent.
func (s *SubscriptionService) paidPlan(orgID uuid.UUID, sub *models.Subscription) (models.EffectivePlan, error) {
	if !sub.IsLive(s.now()) {
		log.Error().Str("organization_id", orgID.String()).Msg("Active subscription has passed its end date")
		return models.EffectivePlan{}, models.ErrNoActiveSubscription
	}
	if sub.Plan == nil {
		log.Error().
			Str("organization_id", orgID.String()).
			Str("subscription_id", sub.ID.String()).
			Msg("Subscription has no plan")
		return models.EffectivePlan{}, models.ErrNoSubscriptionPlan
	}
	return models.CatalogPlan(sub.Plan), nil
}

// ValidateFeatureAccess reports whether the organization's plan enables
// feature. Unrecognised feature names are reported as disabled.
func (s *SubscriptionService) ValidateFeatureAccess(ctx context.Context, orgID uuid.UUID, feature models.Feature) (bool, error) {
	enabled, _, err := s.featureAccess(ctx, orgID, feature)
	return enabled, err
}

// RequireFeature is ValidateFeatureAccess as a gate: a disabled feature is a
// *models.FeatureDeniedError.
func (s *SubscriptionService) RequireFeature(ctx context.Context, orgID uuid.UUID, feature models.Feature) error {
	enabled, planName, err := s.featureAccess(ctx, orgID, feature)
	if err != nil {
		return err
	}
	if !enabled {
		return &models.FeatureDeniedError{Feature: feature, PlanName: planName}
	}
	return nil
}

func (s *SubscriptionService) featureAccess(ctx context.Context, orgID uuid.UUID, feature models.Feature) (bool, string, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeError)
		return false, "", err
	}
	if org.IsUnlimited() {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeBypass)
		return true, models.UnlimitedPlanName, nil
	}

	sub, err := s.subs.GetActiveByOrganization(ctx, orgID)
	if err != nil {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeError)
		return false, "", err
	}
	if sub.IsTrial() {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeBypass)
		return true, models.TrialPlanName, nil
	}

	plan, err := s.paidPlan(orgID, sub)
	if err != nil {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeError)
		return false, "", err
	}

	enabled := plan.Features.Enabled(feature)
	if enabled {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeAllowed)
	} else {
		s.metrics.RecordFeatureCheck(string(feature), metrics.OutcomeDenied)
	}
	return enabled, plan.Name, nil
}

// GetSubscriptionDetails assembles plan, usage and limits for display. It
// returns nil, nil for an organization whose last subscription lapsed: such a
// tenant is neither unlimited nor eligible for a trial.
func (s *SubscriptionService) GetSubscriptionDetails(ctx context.Context, orgID uuid.UUID) (*models.SubscriptionDetails, error) {
	org, err := s.orgs.GetByID(ctx, orgID)
	if err != nil {
		return nil, err
	}

	sub, err := s.subs.GetActiveByOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if !org.IsUnlimited() && sub == nil {
		latest, err := s.subs.GetLatestByOrganization(ctx, orgID)
		if err != nil {
			return nil, err
		}
		if latest != nil && !latest.IsTrial() {
			return nil, nil
		}
		sub = latest
	}

	usage, err := s.GetCurrentUsage(ctx, orgID)
	if err != nil {
		return nil, err
	}

	switch {
	case org.IsUnlimited():
		return s.syntheticDetails(sub, models.SyntheticUnlimitedPlan(), usage), nil
	case sub.IsTrial():
		return s.syntheticDetails(sub, models.SyntheticTrialPlan(), usage), nil
	}

	if sub.Plan == nil {
		return nil, models.ErrNoSubscriptionPlan
	}
	plan := models.CatalogPlan(sub.Plan)

	sub.Usage = usage.Snapshot()
	if err := s.subs.UpdateUsageSnapshot(ctx, sub.ID, sub.Usage); err != nil {
		log.Warn().Err(err).Str("subscription_id", sub.ID.String()).Msg("Failed to refresh usage snapshot")
	}

	return &models.SubscriptionDetails{
		Subscription: sub,
		Plan:         plan,
		Usage:        usage,
		Limits:       plan.Limits(),
		IsActive:     sub.IsLive(s.now()),
	}, nil
}

func (s *SubscriptionService) syntheticDetails(sub *models.Subscription, plan models.EffectivePlan, usage *models.Usage) *models.SubscriptionDetails {
	return &models.SubscriptionDetails{
		Subscription: sub,
		Plan:         plan,
		Usage:        usage,
		Limits:       plan.Limits(),
		IsActive:     true,
	}
}

// EnforceAndCreate validates the create limit for resource and then runs
// create. In strict mode both happen under the organization's lock so two
// concurrent requests cannot both take the last slot.
func (s *SubscriptionService) EnforceAndCreate(ctx context.Context, orgID uuid.UUID, resource models.Resource, create func(ctx context.Context) error) (*models.LimitCheckResult, error) {
	var result *models.LimitCheckResult
	run := func(ctx context.Context) error {
		res, err := s.ValidateSubscriptionLimit(ctx, orgID, resource, models.ActionCreate)
		if err != nil {
			return err
		}
		result = res
		return create(ctx)
	}

	var err error
	if s.strict {
		err = s.orgs.WithLock(ctx, orgID, run)
	} else {
		err = run(ctx)
	}

	var limitErr *models.LimitExceededError
	if errors.As(err, &limitErr) {
		s.recordAudit(ctx, &models.AuditLog{
			OrganizationID: orgID,
			Action:         models.AuditActionLimitDenied,
			ResourceType:   string(resource),
			Status:         models.AuditStatusDenied,
			Message:        limitErr.Error(),
		})
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ChangePlan moves the organization onto a catalog plan, superseding any
// live subscription.
func (s *SubscriptionService) ChangePlan(ctx context.Context, orgID, planID uuid.UUID, cycle models.BillingCycle) (*models.Subscription, error) {
	if cycle == "" {
		cycle = models.BillingCycleMonthly
	}
	if cycle != models.BillingCycleMonthly && cycle != models.BillingCycleYearly {
		return nil, fmt.Errorf("%w: unknown billing cycle %q", models.ErrInvalidInput, cycle)
	}

	plan, err := s.plans.GetByID(ctx, planID)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, fmt.Errorf("%w: plan %s is not available", models.ErrInvalidInput, plan.Name)
	}

	now := s.now().UTC()
	end := cycle.Period(now)
	sub := &models.Subscription{
		PlanID:       &plan.ID,
		Status:       models.SubscriptionStatusActive,
		BillingCycle: cycle,
		StartDate:    now,
		EndDate:      &end,
	}
	if err := s.subs.Supersede(ctx, orgID, sub); err != nil {
		return nil, err
	}
	sub.Plan = plan

	s.recordAudit(ctx, &models.AuditLog{
		OrganizationID: orgID,
		Action:         models.AuditActionPlanChanged,
		ResourceType:   "subscription",
		ResourceID:     sub.ID.String(),
		Status:         models.AuditStatusSuccess,
		Message:        fmt.Sprintf("plan %s (%s)", plan.Name, cycle),
	})
	return sub, nil
}

// StartTrial puts the organization on a trial lasting days.
func (s *SubscriptionService) StartTrial(ctx context.Context, orgID uuid.UUID, days int) (*models.Subscription, error) {
	if days <= 0 {
		return nil, fmt.Errorf("%w: trial length must be positive", models.ErrInvalidInput)
	}

	now := s.now().UTC()
	end := now.AddDate(0, 0, days)
	sub := &models.Subscription{
		Status:       models.SubscriptionStatusTrialing,
		BillingCycle: models.BillingCycleMonthly,
		StartDate:    now,
		EndDate:      &end,
		TrialEndDate: &end,
	}
	if err := s.subs.Supersede(ctx, orgID, sub); err != nil {
		return nil, err
	}

	s.recordAudit(ctx, &models.AuditLog{
		OrganizationID: orgID,
		Action:         models.AuditActionTrialStarted,
		ResourceType:   "subscription",
		ResourceID:     sub.ID.String(),
		Status:         models.AuditStatusSuccess,
		Message:        fmt.Sprintf("%d day trial", days),
	})
	return sub, nil
}

// SetSubscriptionType marks an organization unlimited or standard.
func (s *SubscriptionService) SetSubscriptionType(ctx context.Context, orgID uuid.UUID, subscriptionType models.SubscriptionType) error {
	if subscriptionType != models.SubscriptionTypeStandard && subscriptionType != models.SubscriptionTypeUnlimited {
		return fmt.Errorf("%w: unknown subscription type %q", models.ErrInvalidInput, subscriptionType)
	}
	if err := s.orgs.SetSubscriptionType(ctx, orgID, subscriptionType); err != nil {
		return err
	}
	s.recordAudit(ctx, &models.AuditLog{
		OrganizationID: orgID,
		Action:         models.AuditActionTypeChanged,
		ResourceType:   "organization",
		ResourceID:     orgID.String(),
		Status:         models.AuditStatusSuccess,
		Message:        string(subscriptionType),
	})
	return nil
}

func (s *SubscriptionService) recordAudit(ctx context.Context, entry *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		log.Warn().Err(err).Str("action", entry.Action).Msg("Failed to write audit log")
	}
}
