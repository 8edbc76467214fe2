package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PlanRepository handles the plan catalog
type PlanRepository struct {
	db *gorm.DB
}

// NewPlanRepository creates a new plan repository
func NewPlanRepository(db *gorm.DB) *PlanRepository {
	return &PlanRepository{db: db}
}

func (r *PlanRepository) Create(ctx context.Context, plan *models.SubscriptionPlan) error {
	if err := database.Conn(ctx, r.db).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to create plan: %w", conflict(err, "plan "+plan.Name+" already exists"))
	}
	return nil
}

func (r *PlanRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", notFound(err, models.ErrNotFound))
	}
	return &plan, nil
}

func (r *PlanRepository) GetByName(ctx context.Context, name string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := database.Conn(ctx, r.db).Where("name = ?", name).First(&plan).Error; err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", notFound(err, models.ErrNotFound))
	}
	return &plan, nil
}

// List returns the catalog ordered by monthly price
func (r *PlanRepository) List(ctx context.Context, activeOnly bool) ([]models.SubscriptionPlan, error) {
	var plans []models.SubscriptionPlan
	query := database.Conn(ctx, r.db).Order("monthly_price ASC, name ASC")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r *PlanRepository) Update(ctx context.Context, plan *models.SubscriptionPlan) error {
	if err := database.Conn(ctx, r.db).Save(plan).Error; err != nil {
		return fmt.Errorf("failed to update plan: %w", err)
	}
	return nil
}

// Upsert inserts the plan or refreshes the catalog entry with the same name
func (r *PlanRepository) Upsert(ctx context.Context, plan *models.SubscriptionPlan) error {
	if err := database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"description", "monthly_price", "yearly_price", "currency", "features", "is_active", "updated_at"}),
	}).Create(plan).Error; err != nil {
		return fmt.Errorf("failed to upsert plan: %w", err)
	}
	return nil
}
