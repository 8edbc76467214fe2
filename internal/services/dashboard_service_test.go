package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/cache"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDashboardService(f *fixture, c cache.Cache, now func() time.Time) *DashboardService {
	return NewDashboardService(f.svc, f.store.Patients(), f.store.Users(), f.store.Appointments(), DashboardOptions{
		Cache:   c,
		TTL:     10 * time.Second,
		Metrics: f.metrics,
		Now:     now,
	})
}

func TestDashboard_Aggregates(t *testing.T) {
	f := newFixture(t, false)
	doc := f.doctor()
	for i := 0; i < 6; i++ {
		f.store.AddPatient(models.Patient{
			OrganizationID: f.org.ID,
			FirstName:      "P",
			LastName:       string(rune('A' + i)),
			CreatedAt:      fixedNow.Add(-time.Duration(i) * time.Hour),
		})
	}
	patient := f.store.AddPatient(models.Patient{OrganizationID: f.org.ID, FirstName: "Abena", LastName: "Ofori", CreatedAt: fixedNow.Add(-30 * time.Minute)})
	for i := 0; i < 6; i++ {
		f.store.AddAppointment(models.Appointment{
			PatientID:   patient.ID,
			DoctorID:    doc.ID,
			ScheduledAt: fixedNow.Add(time.Duration(i+1) * time.Hour),
			CreatedAt:   fixedNow.Add(-time.Duration(i)*time.Hour - 15*time.Minute),
		})
	}
	f.store.AddAppointment(models.Appointment{
		PatientID:   patient.ID,
		DoctorID:    doc.ID,
		ScheduledAt: fixedNow.Add(2 * time.Hour),
		Status:      models.AppointmentStatusCancelled,
		CreatedAt:   fixedNow.AddDate(0, 0, -40),
	})

	svc := newDashboardService(f, nil, func() time.Time { return fixedNow })
	dashboard, err := svc.GetDashboard(context.Background(), models.UserContext{UserID: doc.ID, OrganizationID: f.org.ID})
	require.NoError(t, err)

	assert.Equal(t, int64(7), dashboard.Stats.TotalPatients)
	assert.Equal(t, int64(1), dashboard.Stats.TotalStaff)
	assert.Equal(t, int64(6), dashboard.Stats.AppointmentsToday)
	assert.Equal(t, int64(6), dashboard.Stats.UpcomingAppointments)
	assert.Equal(t, int64(6), dashboard.Usage.Appointments)

	require.Len(t, dashboard.Activity, 10)
	for i := 1; i < len(dashboard.Activity); i++ {
		assert.False(t, dashboard.Activity[i].Timestamp.After(dashboard.Activity[i-1].Timestamp), "feed must be newest first")
	}
	assert.Equal(t, "patient", dashboard.Activity[0].Type)
	assert.Equal(t, "appointment", dashboard.Activity[1].Type)
	assert.Equal(t, "Appointment booked for Abena Ofori", dashboard.Activity[1].Title)
}

func TestDashboard_Cache(t *testing.T) {
	f := newFixture(t, false)
	user := models.UserContext{UserID: uuid.New(), OrganizationID: f.org.ID}
	memory := cache.NewMemoryCache(16, time.Minute)
	now := fixedNow
	svc := newDashboardService(f, memory, func() time.Time { return now })

	first, err := svc.GetDashboard(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first.Stats.TotalPatients)

	f.patients(3, fixedNow)

	cached, err := svc.GetDashboard(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), cached.Stats.TotalPatients, "served from cache within the bucket")
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.CacheRequestsTotal.WithLabelValues("dashboard", "hit")))

	now = fixedNow.Add(11 * time.Second)
	fresh, err := svc.GetDashboard(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, int64(3), fresh.Stats.TotalPatients)
}

type brokenCache struct{ cache.Cache }

func (brokenCache) Get(ctx context.Context, key string) ([]byte, error) {
	return nil, errors.New("redis down")
}

func (brokenCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.New("redis down")
}

func TestDashboard_CacheFailuresAreIgnored(t *testing.T) {
	f := newFixture(t, false)
	f.patients(2, fixedNow)
	svc := newDashboardService(f, brokenCache{}, func() time.Time { return fixedNow })

	dashboard, err := svc.GetDashboard(context.Background(), models.UserContext{UserID: uuid.New(), OrganizationID: f.org.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), dashboard.Stats.TotalPatients)
}

func TestDashboard_PropagatesErrors(t *testing.T) {
	f := newFixture(t, false)
	f.store.Err = errors.New("timeout")
	svc := newDashboardService(f, nil, func() time.Time { return fixedNow })

	_, err := svc.GetDashboard(context.Background(), models.UserContext{UserID: uuid.New(), OrganizationID: f.org.ID})
	assert.Error(t, err)
}

func TestMergeActivity_Empty(t *testing.T) {
	assert.Empty(t, mergeActivity(nil, nil, nil))
}
