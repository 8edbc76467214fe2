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

// AppointmentRepository handles appointments. Appointments have no
// organization column; they are scoped through their doctor.
type AppointmentRepository struct {
	db *gorm.DB
}

func NewAppointmentRepository(db *gorm.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if err := database.Conn(ctx, r.db).Omit("Patient", "Doctor").Create(appointment).Error; err != nil {
		return fmt.Errorf("failed to create appointment: %w", err)
	}
	return nil
}

func (r *AppointmentRepository) scoped(ctx context.Context, orgID uuid.UUID) *gorm.DB {
	return database.Conn(ctx, r.db).
		Model(&models.Appointment{}).
		Joins("JOIN users ON users.id = appointments.doctor_id").
		Where("users.organization_id = ?", orgID)
}

// ListByOrganization returns appointments newest first with patient and doctor loaded
func (r *AppointmentRepository) ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Appointment, error) {
	var appointments []models.Appointment
	query := r.scoped(ctx, orgID).
		Preload("Patient").
		Preload("Doctor").
		Order("appointments.created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	if err := query.Find(&appointments).Error; err != nil {
		return nil, fmt.Errorf("failed to list appointments: %w", err)
	}
	return appointments, nil
}

// CountScheduledBetween counts appointments scheduled in [start, end)
func (r *AppointmentRepository) CountScheduledBetween(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error) {
	var count int64
	if err := r.scoped(ctx, orgID).
		Where("appointments.scheduled_at >= ? AND appointments.scheduled_at < ?", start, end).
		Where("appointments.status <> ?", models.AppointmentStatusCancelled).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count scheduled appointments: %w", err)
	}
	return count, nil
}
