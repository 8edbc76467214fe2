package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
)

// SubscriptionRepository handles subscription rows
type SubscriptionRepository struct {
	db *gorm.DB
}

// NewSubscriptionRepository creates a new subscription repository
func NewSubscriptionRepository(db *gorm.DB) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// GetActiveByOrganization returns the newest active or trialing subscription
// with its plan loaded, or nil when there is none.
func (r *SubscriptionRepository) GetActiveByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := database.Conn(ctx, r.db).
		Preload("Plan").
		Where("organization_id = ? AND status IN ?", orgID, models.LiveStatuses).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active subscription: %w", err)
	}
	return &sub, nil
}

// GetLatestByOrganization returns the newest subscription in any status, or nil.
func (r *SubscriptionRepository) GetLatestByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := database.Conn(ctx, r.db).
		Preload("Plan").
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest subscription: %w", err)
	}
	return &sub, nil
}

// Supersede cancels the organization's live subscriptions, inserts sub and
// makes it the organization's current subscription.
func (r *SubscriptionRepository) Supersede(ctx context.Context, orgID uuid.UUID, sub *models.Subscription) error {
	return database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Model(&models.Subscription{}).
			Where("organization_id = ? AND status IN ?", orgID, models.LiveStatuses).
			Updates(map[string]interface{}{
				"status":   models.SubscriptionStatusCancelled,
				"end_date": now,
			}).Error; err != nil {
			return fmt.Errorf("failed to cancel previous subscriptions: %w", err)
		}

		sub.OrganizationID = orgID
		if err := tx.Omit("Plan").Create(sub).Error; err != nil {
			return fmt.Errorf("failed to create subscription: %w", err)
		}

		result := tx.Model(&models.Organization{}).
			Where("id = ?", orgID).
			Update("current_subscription_id", sub.ID)
		if result.Error != nil {
			return fmt.Errorf("failed to link subscription: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to link subscription: %w", models.ErrOrganizationNotFound)
		}
		return nil
	})
}

// UpdateUsageSnapshot stores the denormalised usage counters
func (r *SubscriptionRepository) UpdateUsageSnapshot(ctx context.Context, id uuid.UUID, snapshot models.UsageSnapshot) error {
	if err := database.Conn(ctx, r.db).
		Model(&models.Subscription{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"usage_patients":     snapshot.Patients,
			"usage_users":        snapshot.Users,
			"usage_appointments": snapshot.Appointments,
			"usage_last_updated": snapshot.LastUpdated,
		}).Error; err != nil {
		return fmt.Errorf("failed to update usage snapshot: %w", err)
	}
	return nil
}
