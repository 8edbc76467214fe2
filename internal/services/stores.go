package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
)

// OrganizationStore is the tenant persistence the services need.
type OrganizationStore interface {
	Create(ctx context.Context, org *models.Organization) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	List(ctx context.Context, limit, offset int) ([]models.Organization, error)
	SetSubscriptionType(ctx context.Context, id uuid.UUID, subscriptionType models.SubscriptionType) error
	Delete(ctx context.Context, id uuid.UUID) error
	// WithLock runs fn while no other WithLock call for id can run.
	WithLock(ctx context.Context, id uuid.UUID, fn func(ctx context.Context) error) error
	// InTransaction runs fn so that either all of its writes persist or none do.
	InTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type SubscriptionStore interface {
	// GetActiveByOrganization returns nil, nil when nothing is active or trialing.
	GetActiveByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
	// GetLatestByOrganization returns nil, nil when the organization never subscribed.
	GetLatestByOrganization(ctx context.Context, orgID uuid.UUID) (*models.Subscription, error)
	Supersede(ctx context.Context, orgID uuid.UUID, sub *models.Subscription) error
	UpdateUsageSnapshot(ctx context.Context, id uuid.UUID, snapshot models.UsageSnapshot) error
}

type PlanStore interface {
	Create(ctx context.Context, plan *models.SubscriptionPlan) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)
	List(ctx context.Context, activeOnly bool) ([]models.SubscriptionPlan, error)
	Update(ctx context.Context, plan *models.SubscriptionPlan) error
	Upsert(ctx context.Context, plan *models.SubscriptionPlan) error
}

// UsageCounter runs the counting queries behind usage accounting.
type UsageCounter interface {
	CountPatientsCreated(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error)
	ListUserIDs(ctx context.Context, orgID uuid.UUID) ([]uuid.UUID, error)
	CountAppointmentsCreated(ctx context.Context, doctorIDs []uuid.UUID, start, end time.Time) (int64, error)
}

type PatientStore interface {
	Create(ctx context.Context, patient *models.Patient) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.Patient, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Patient, error)
	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, orgID, id uuid.UUID) (*models.User, error)
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.User, error)
	CountByOrganization(ctx context.Context, orgID uuid.UUID) (int64, error)
}

type AppointmentStore interface {
	Create(ctx context.Context, appointment *models.Appointment) error
	ListByOrganization(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Appointment, error)
	CountScheduledBetween(ctx context.Context, orgID uuid.UUID, start, end time.Time) (int64, error)
}

type AuditStore interface {
	Create(ctx context.Context, entry *models.AuditLog) error
}
