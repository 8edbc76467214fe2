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

// OrganizationRepository handles tenant rows
type OrganizationRepository struct {
	db *gorm.DB
}

// NewOrganizationRepository creates a new organization repository
func NewOrganizationRepository(db *gorm.DB) *OrganizationRepository {
	return &OrganizationRepository{db: db}
}

// Create creates a new organization
func (r *OrganizationRepository) Create(ctx context.Context, org *models.Organization) error {
	if err := database.Conn(ctx, r.db).Create(org).Error; err != nil {
		return fmt.Errorf("failed to create organization: %w", err)
	}
	return nil
}

// GetByID retrieves an organization by ID
func (r *OrganizationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	var org models.Organization
	if err := database.Conn(ctx, r.db).Where("id = ?", id).First(&org).Error; err != nil {
		return nil, fmt.Errorf("failed to get organization: %w", notFound(err, models.ErrOrganizationNotFound))
	}
	return &org, nil
}

// List returns organizations ordered by name
func (r *OrganizationRepository) List(ctx context.Context, limit, offset int) ([]models.Organization, error) {
	var orgs []models.Organization
	query := database.Conn(ctx, r.db).Order("name ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&orgs).Error; err != nil {
		return nil, fmt.Errorf("failed to list organizations: %w", err)
	}
	return orgs, nil
}

// SetSubscriptionType switches an organization between standard and unlimited
func (r *OrganizationRepository) SetSubscriptionType(ctx context.Context, id uuid.UUID, subscriptionType models.SubscriptionType) error {
	result := database.Conn(ctx, r.db).
		Model(&models.Organization{}).
		Where("id = ?", id).
		Update("subscription_type", subscriptionType)
	if result.Error != nil {
		return fmt.Errorf("failed to update subscription type: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("failed to update subscription type: %w", models.ErrOrganizationNotFound)
	}
	return nil
}

// Delete permanently removes an organization and everything it owns
func (r *OrganizationRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		doctors := tx.Model(&models.User{}).Select("id").Where("organization_id = ?", id)
		if err := tx.Where("doctor_id IN (?)", doctors).Delete(&models.Appointment{}).Error; err != nil {
			return fmt.Errorf("failed to delete appointments: %w", err)
		}
		for _, model := range []interface{}{&models.Patient{}, &models.User{}, &models.Subscription{}} {
			if err := tx.Where("organization_id = ?", id).Delete(model).Error; err != nil {
				return fmt.Errorf("failed to delete organization records: %w", err)
			}
		}
		result := tx.Where("id = ?", id).Delete(&models.Organization{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete organization: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("failed to delete organization: %w", models.ErrOrganizationNotFound)
		}
		return nil
	})
}

// InTransaction runs fn in a transaction carried by its context. Repository
// calls made with that context join it.
func (r *OrganizationRepository) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		return fn(database.WithTx(ctx, tx))
	})
}

// WithLock runs fn inside a transaction holding a row lock on the
// organization. Concurrent callers for the same organization are serialised,
// so a limit check and the create that follows it are atomic.
func (r *OrganizationRepository) WithLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error {
	return database.Conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var org models.Organization
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ?", id).
			First(&org).Error; err != nil {
			return fmt.Errorf("failed to lock organization: %w", notFound(err, models.ErrOrganizationNotFound))
		}
		return fn(database.WithTx(ctx, tx))
	})
}
