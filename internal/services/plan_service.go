package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// PlanService manages the plan catalog
type PlanService struct {
	plans PlanStore
}

func NewPlanService(plans PlanStore) *PlanService {
	return &PlanService{plans: plans}
}

// PlanInput is the writable part of a catalog plan.
type PlanInput struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	MonthlyPrice decimal.Decimal     `json:"monthly_price"`
	YearlyPrice  decimal.Decimal     `json:"yearly_price"`
	Currency     string              `json:"currency"`
	Features     models.PlanFeatures `json:"features"`
	IsActive     *bool               `json:"is_active,omitempty"`
}

func (in PlanInput) apply(plan *models.SubscriptionPlan) {
	plan.Name = in.Name
	plan.Description = in.Description
	plan.MonthlyPrice = in.MonthlyPrice
	plan.YearlyPrice = in.YearlyPrice
	if in.Currency != "" {
		plan.Currency = in.Currency
	}
	plan.Features = datatypes.NewJSONType(in.Features)
	if in.IsActive != nil {
		plan.IsActive = *in.IsActive
	}
}

func (s *PlanService) Create(ctx context.Context, in PlanInput) (*models.SubscriptionPlan, error) {
	plan := &models.SubscriptionPlan{IsActive: true}
	in.apply(plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, plan); err != nil {
		return nil, err
	}
	log.Info().Str("plan_id", plan.ID.String()).Str("name", plan.Name).Msg("Plan created")
	return plan, nil
}

func (s *PlanService) Update(ctx context.Context, id uuid.UUID, in PlanInput) (*models.SubscriptionPlan, error) {
	plan, err := s.plans.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(plan)
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, plan); err != nil {
		return nil, err
	}
	log.Info().Str("plan_id", plan.ID.String()).Str("name", plan.Name).Msg("Plan updated")
	return plan, nil
}

func (s *PlanService) List(ctx context.Context, activeOnly bool) ([]models.SubscriptionPlan, error) {
	return s.plans.List(ctx, activeOnly)
}

// SeedDefaults upserts DefaultPlans by name.
func (s *PlanService) SeedDefaults(ctx context.Context) ([]models.SubscriptionPlan, error) {
	seeded := make([]models.SubscriptionPlan, 0, 3)
	for _, plan := range DefaultPlans() {
		plan := plan
		if err := s.plans.Upsert(ctx, &plan); err != nil {
			return nil, fmt.Errorf("failed to seed plan %s: %w", plan.Name, err)
		}
		seeded = append(seeded, plan)
	}
	return seeded, nil
}

// DefaultPlans is the starter catalog.
func DefaultPlans() []models.SubscriptionPlan {
	return []models.SubscriptionPlan{
		{
			Name:         "Basic",
			Description:  "For small practices getting started",
			MonthlyPrice: decimal.NewFromInt(29),
			YearlyPrice:  decimal.NewFromInt(290),
			Currency:     "USD",
			IsActive:     true,
			Features: datatypes.NewJSONType(models.PlanFeatures{
				PlanLimits: models.PlanLimits{
					MaxPatients:     models.Limited(50),
					MaxUsers:        models.Limited(3),
					MaxAppointments: models.Limited(200),
				},
				EmailNotifications: true,
			}),
		},
		{
			Name:         "Professional",
			Description:  "For growing practices",
			MonthlyPrice: decimal.NewFromInt(79),
			YearlyPrice:  decimal.NewFromInt(790),
			Currency:     "USD",
			IsActive:     true,
			Features: datatypes.NewJSONType(models.PlanFeatures{
				PlanLimits: models.PlanLimits{
					MaxPatients:     models.Limited(250),
					MaxUsers:        models.Limited(10),
					MaxAppointments: models.Limited(1000),
				},
				AdvancedReports:    true,
				SMSNotifications:   true,
				EmailNotifications: true,
				DataBackup:         true,
			}),
		},
		{
			Name:         "Enterprise",
			Description:  "For multi-site clinics",
			MonthlyPrice: decimal.NewFromInt(199),
			YearlyPrice:  decimal.NewFromInt(1990),
			Currency:     "USD",
			IsActive:     true,
			Features:     datatypes.NewJSONType(models.AllFeatures()),
		},
	}
}
