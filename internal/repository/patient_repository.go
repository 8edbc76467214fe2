package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/database"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"gorm.io/gorm"
)

// PatientRepository handles patient rows
type PatientRepository struct {
	db *gorm.DB
}

func NewPatientRepository(db *gorm.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if err := database.Conn(ctx, r.db).Create(patient).Error; err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

// GetByID returns the patient only if it belongs to orgID
func (r *PatientRepository) GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Patient, error) {
	var patient models.Patient
	if err := database.Conn(ctx, r.db).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&patient).Error; err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", notFound(err, models.ErrNotFound))
	}
	return &patient, nil
}

// ListByOrganization returns patients newest first; limit <= 0 returns all
func (r *PatientRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Patient, error) {
	var patients []models.Patient
	query := database.Conn(ctx, r.db).
		Where("organization_id = ?", orgID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&patients).Error; err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *PatientRepository) CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error) {
	var count int64
	if err := database.Conn(ctx, r.db).
		Model(&models.Patient{}).
		Where("organization_id = ?", orgID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count patients: %w", err)
	}
	return count, nil
}
