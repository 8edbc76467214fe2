package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
)

// UserRepository handles staff accounts
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if err := database.Conn(ctx, r.db).Create(user).Error; err != nil {
		return fmt.Errorf("failed to create user: %w", conflict(err, "email "+user.Email+" is already registered"))
	}
	return nil
}

// GetByID returns the user only if it belongs to orgID
func (r *UserRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := database.Conn(ctx, r.db).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&user).Error; err != nil {
		return nil, fmt.Errorf("failed to get user: %w", notFound(err, models.ErrNotFound))
	}
	return &user, nil
}

func (r *UserRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.User, error) {
	var users []models.User
	query := database.Conn(ctx, r.db).
		Where("organization_id = ?", orgID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&users).Error; err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	return users, nil
}

func (r *UserRepository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	if err := database.Conn(ctx, r.db).
		Model(&models.User{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count users: %w", err)
	}
	return count, nil
}
