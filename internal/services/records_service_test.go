package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordsService(f *fixture) *RecordsService {
	return NewRecordsService(f.svc, f.store.Patients(), f.store.Users(), f.store.Appointments())
}

func TestRecordsService_CreatePatient(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, true)
	f.subscribe("Basic", limitedFeatures(models.Limited(1), models.Limited(3), models.Limited(10)))
	records := newRecordsService(f)

	first := &models.Patient{FirstName: "Kofi", LastName: "Boateng"}
	require.NoError(t, records.CreatePatient(ctx, f.org.ID, first))
	assert.Equal(t, f.org.ID, first.OrganizationID)
	assert.NotEqual(t, uuid.Nil, first.ID)

	err := records.CreatePatient(ctx, f.org.ID, &models.Patient{FirstName: "Esi", LastName: "Adjei"})
	assert.True(t, models.IsLimitExceeded(err))
	assert.Equal(t, 1, f.store.PatientCount())

	err = records.CreatePatient(ctx, f.org.ID, &models.Patient{FirstName: "  "})
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestRecordsService_CreateUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	records := newRecordsService(f)

	user := &models.User{Name: "Yaw", Email: " Yaw@Clinic.TEST ", Role: models.RoleStaff}
	require.NoError(t, records.CreateUser(ctx, f.org.ID, user))
	assert.Equal(t, "yaw@clinic.test", user.Email)

	err := records.CreateUser(ctx, f.org.ID, &models.User{Name: "Root", Email: "root@clinic.test", Role: models.RoleSuperAdmin})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	err = records.CreateUser(ctx, f.org.ID, &models.User{Name: "Yaw Again", Email: "YAW@clinic.test", Role: models.RoleDoctor})
	assert.ErrorIs(t, err, models.ErrConflict)
}

func TestRecordsService_CreateAppointment(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.subscribe("P", limitedFeatures(models.Limited(10), models.Limited(10), models.Limited(1)))
	records := newRecordsService(f)

	doctor := f.doctor()
	patient := f.store.AddPatient(models.Patient{OrganizationID: f.org.ID, FirstName: "Akua", LastName: "Mensah"})
	other := f.store.AddOrganization(models.Organization{Name: "Elsewhere"})
	foreignPatient := f.store.AddPatient(models.Patient{OrganizationID: other.ID, FirstName: "X", LastName: "Y"})

	appt := &models.Appointment{PatientID: patient.ID, DoctorID: doctor.ID, ScheduledAt: fixedNow.Add(48 * time.Hour)}
	require.NoError(t, records.CreateAppointment(ctx, f.org.ID, appt))

	err := records.CreateAppointment(ctx, f.org.ID, &models.Appointment{PatientID: patient.ID, DoctorID: doctor.ID, ScheduledAt: fixedNow})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Monthly appointment limit reached. Your P plan allows 1 appointments per month")

	err = records.CreateAppointment(ctx, f.org.ID, &models.Appointment{PatientID: foreignPatient.ID, DoctorID: doctor.ID, ScheduledAt: fixedNow})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	err = records.CreateAppointment(ctx, f.org.ID, &models.Appointment{PatientID: patient.ID, DoctorID: uuid.New(), ScheduledAt: fixedNow})
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	listed, err := records.ListAppointments(ctx, f.org.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	require.NotNil(t, listed[0].Patient)
	assert.Equal(t, "Akua Mensah", listed[0].Patient.FullName())
}
