package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
)

// RecordsService creates and lists tenant records. Every create goes through
// the subscription limit for its resource.
type RecordsService struct {
	subscriptions *SubscriptionService
	patients      PatientStore
	users         UserStore
	appointments  AppointmentStore
}

func NewRecordsService(subscriptions *SubscriptionService, patients PatientStore, users UserStore, appointments AppointmentStore) *RecordsService {
	return &RecordsService{
		subscriptions: subscriptions,
		patients:      patients,
		users:         users,
		appointments:  appointments,
	}
}

func (s *RecordsService) CreatePatient(ctx context.Context, orgID uuid.UUID, patient *models.Patient) error {
	patient.OrganizationID = orgID
	if err := patient.Validate(); err != nil {
		return err
	}
	_, err := s.subscriptions.EnforceAndCreate(ctx, orgID, models.ResourcePatient, func(ctx context.Context) error {
		return s.patients.Create(ctx, patient)
	})
	return err
}

func (s *RecordsService) CreateUser(ctx context.Context, orgID uuid.UUID, user *models.User) error {
	user.OrganizationID = orgID
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := user.Validate(); err != nil {
		return err
	}
	if user.Role == models.RoleSuperAdmin {
		return fmt.Errorf("%w: super_admin cannot be assigned to an organization user", models.ErrInvalidInput)
	}
	_, err := s.subscriptions.EnforceAndCreate(ctx, orgID, models.ResourceUser, func(ctx context.Context) error {
		return s.users.Create(ctx, user)
	})
	return err
}

// CreateAppointment books an appointment. Both the patient and the doctor
// must belong to orgID.
func (s *RecordsService) CreateAppointment(ctx context.Context, orgID uuid.UUID, appointment *models.Appointment) error {
	if err := appointment.Validate(); err != nil {
		return err
	}
	if _, err := s.patients.GetByID(ctx, orgID, appointment.PatientID); err != nil {
		return ownership(err, "patient")
	}
	if _, err := s.users.GetByID(ctx, orgID, appointment.DoctorID); err != nil {
		return ownership(err, "doctor")
	}
	_, err := s.subscriptions.EnforceAndCreate(ctx, orgID, models.ResourceAppointment, func(ctx context.Context) error {
		return s.appointments.Create(ctx, appointment)
	})
	return err
}

func ownership(err error, what string) error {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("%w: %s does not belong to this organization", models.ErrInvalidInput, what)
	}
	return err
}

func (s *RecordsService) ListPatients(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Patient, error) {
	return s.patients.ListByOrganization(ctx, orgID, limit, offset)
}

func (s *RecordsService) ListUsers(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.User, error) {
	return s.users.ListByOrganization(ctx, orgID, limit, offset)
}

func (s *RecordsService) ListAppointments(ctx context.Context, orgID uuid.UUID, limit, offset int) ([]models.Appointment, error) {
	return s.appointments.ListByOrganization(ctx, orgID, limit, offset)
}
