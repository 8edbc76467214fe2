package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
)

// UsageRepository runs the counting queries behind usage accounting
type UsageRepository struct {
	db *gorm.DB
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// CountPatientsCreated counts patients created in [start, end)
func (r *UsageRepository) CountPatientsCreated(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	if err := database.Conn(ctx, r.db).
		Model(&models.Patient{}).
		Where("organization_id = ? AND created_at >= ? AND created_at < ?", orgID, start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}

// ListUserIDs returns the IDs of every user in the organization
func (r *UsageRepository) ListUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := database.Conn(ctx, r.db).
		Model(&models.User{}).
		Where("organization_id = ?", orgID).
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("failed to list user ids: %w", err)
	}
	return ids, nil
}

// CountAppointmentsCreated counts appointments owned by the given doctors and
// created in [start, end). An empty doctor set counts zero without a query.
func (r *UsageRepository) CountAppointmentsCreated(ctx context.Context, doctorIDs []uuid.UUID, start, end time.Time) (int64, error) {
	if len(doctorIDs) == 0 {
		return 0, nil
	}
	var count int64
	if err := database.Conn(ctx, r.db).
		Model(&models.Appointment{}).
		Where("doctor_id IN ? AND created_at >= ? AND created_at < ?", doctorIDs, start, end).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count appointments: %w", err)
	}
	return count, nil
}
