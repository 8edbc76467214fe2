package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/otcheredev/practice-subscriptions/internal/testutil"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

var fixedNow = time.Date(2024, time.March, 15, 12, 0, 0, 0, time.UTC)

type fixture struct {
	store   *testutil.Store
	usage   testutil.UsageCounter
	metrics *metrics.Metrics
	svc     *SubscriptionService
	org     *models.Organization
}

func newFixture(t *testing.T, strict bool) *fixture {
	t.Helper()
	store := testutil.NewStore()
	store.Now = func() time.Time { return fixedNow }
	usage := store.Usage()
	m := metrics.New(prometheus.NewRegistry())

	svc := NewSubscriptionService(
		store.Organizations(),
		store.Subscriptions(),
		store.Plans(),
		usage,
		store.AuditStore(),
		SubscriptionOptions{
			Strict:  strict,
			Metrics: m,
			Now:     func() time.Time { return fixedNow },
		},
	)
	org := store.AddOrganization(models.Organization{Name: "Riverside Clinic", IsActive: true})
	return &fixture{store: store, usage: usage, metrics: m, svc: svc, org: org}
}

func (f *fixture) subscribe(name string, features models.PlanFeatures) *models.Subscription {
	plan := f.store.AddPlan(models.SubscriptionPlan{
		Name:     name,
		IsActive: true,
		Features: datatypes.NewJSONType(features),
	})
	end := fixedNow.AddDate(0, 1, 0)
	return f.store.AddSubscription(models.Subscription{
		OrganizationID: f.org.ID,
		PlanID:         &plan.ID,
		Status:         models.SubscriptionStatusActive,
		BillingCycle:   models.BillingCycleMonthly,
		StartDate:      fixedNow.AddDate(0, -1, 0),
		EndDate:        &end,
	})
}

func (f *fixture) trial() *models.Subscription {
	end := fixedNow.AddDate(0, 0, 14)
	return f.store.AddSubscription(models.Subscription{
		OrganizationID: f.org.ID,
		Status:         models.SubscriptionStatusTrialing,
		StartDate:      fixedNow.AddDate(0, 0, -1),
		EndDate:        &end,
		TrialEndDate:   &end,
	})
}

func (f *fixture) doctor() *models.User {
	return f.store.AddUser(models.User{
		OrganizationID: f.org.ID,
		Name:           "Dr. Mensah",
		Email:          uuid.NewString() + "@clinic.test",
		Role:           models.RoleDoctor,
		CreatedAt:      fixedNow.AddDate(-1, 0, 0),
	})
}

func (f *fixture) patients(n int, createdAt time.Time) {
	for i := 0; i < n; i++ {
		f.store.AddPatient(models.Patient{
			OrganizationID: f.org.ID,
			FirstName:      "Ama",
			LastName:       "Owusu",
			CreatedAt:      createdAt,
		})
	}
}

func (f *fixture) appointments(n int, doctor *models.User, createdAt time.Time) {
	for i := 0; i < n; i++ {
		f.store.AddAppointment(models.Appointment{
			PatientID:   uuid.New(),
			DoctorID:    doctor.ID,
			ScheduledAt: createdAt.Add(24 * time.Hour),
			CreatedAt:   createdAt,
		})
	}
}

func limitedFeatures(patients, users, appointments models.Limit) models.PlanFeatures {
	return models.PlanFeatures{
		PlanLimits: models.PlanLimits{
			MaxPatients:     patients,
			MaxUsers:        users,
			MaxAppointments: appointments,
		},
	}
}

func TestGetCurrentUsage(t *testing.T) {
	ctx := context.Background()

	t.Run("counts the current month only", func(t *testing.T) {
		f := newFixture(t, false)
		doc := f.doctor()
		f.patients(3, fixedNow.AddDate(0, 0, -10))
		f.patients(4, time.Date(2024, time.February, 28, 23, 59, 0, 0, time.UTC))
		f.appointments(2, doc, fixedNow.AddDate(0, 0, -1))
		f.appointments(5, doc, time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC))

		usage, err := f.svc.GetCurrentUsage(ctx, f.org.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(3), usage.Patients)
		assert.Equal(t, int64(1), usage.Users)
		assert.Equal(t, int64(2), usage.Appointments)
		assert.Equal(t, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC), usage.MonthPeriod.Start)
		assert.Equal(t, time.Date(2024, time.April, 1, 0, 0, 0, 0, time.UTC), usage.MonthPeriod.End)
		assert.Equal(t, fixedNow, usage.LastUpdated)
	})

	t.Run("record created at the month boundary counts", func(t *testing.T) {
		f := newFixture(t, false)
		f.patients(1, time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

		usage, err := f.svc.GetCurrentUsage(ctx, f.org.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), usage.Patients)
	})

	t.Run("no users means no appointment query", func(t *testing.T) {
		f := newFixture(t, false)
		f.patients(2, fixedNow)

		usage, err := f.svc.GetCurrentUsage(ctx, f.org.ID)
		require.NoError(t, err)

		assert.Equal(t, int64(0), usage.Users)
		assert.Equal(t, int64(0), usage.Appointments)
		assert.Equal(t, 0, *f.usage.AppointmentQueries)
	})

	t.Run("store errors are wrapped", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.Err = errors.New("connection reset")

		_, err := f.svc.GetCurrentUsage(ctx, f.org.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to compute usage")
	})
}

func TestGetCurrentUsage_Location(t *testing.T) {
	store := testutil.NewStore()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 02:00 UTC on April 1st is still March 31st in New York.
	now := time.Date(2024, time.April, 1, 2, 0, 0, 0, time.UTC)
	svc := NewSubscriptionService(store.Organizations(), store.Subscriptions(), store.Plans(), store.Usage(), nil,
		SubscriptionOptions{Location: loc, Now: func() time.Time { return now }})
	org := store.AddOrganization(models.Organization{Name: "Harbor"})
	store.AddPatient(models.Patient{OrganizationID: org.ID, FirstName: "A", LastName: "B", CreatedAt: time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC)})

	usage, err := svc.GetCurrentUsage(context.Background(), org.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.Patients)
	assert.Equal(t, time.March, usage.MonthPeriod.Start.Month())
}

func TestValidateSubscriptionLimit_UnlimitedOrganization(t *testing.T) {
	f := newFixture(t, false)
	f.store.Organizations().SetSubscriptionType(context.Background(), f.org.ID, models.SubscriptionTypeUnlimited)
	f.subscribe("Tiny", limitedFeatures(models.Limited(0), models.Limited(0), models.Limited(0)))
	f.patients(10, fixedNow)

	for _, resource := range []models.Resource{models.ResourcePatient, models.ResourceUser, models.ResourceAppointment, "invoice"} {
		result, err := f.svc.ValidateSubscriptionLimit(context.Background(), f.org.ID, resource, models.ActionCreate)
		require.NoError(t, err, resource)
		assert.True(t, result.Allowed)
		assert.Equal(t, models.UnlimitedPlanName, result.PlanName)
		assert.True(t, result.Limits.MaxPatients.IsUnlimited())
		assert.Equal(t, int64(10), result.CurrentUsage.Patients)
	}
	assert.Equal(t, 4.0, promtest.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues("patient", metrics.OutcomeBypass))+
		promtest.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues("user", metrics.OutcomeBypass))+
		promtest.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues("appointment", metrics.OutcomeBypass))+
		promtest.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues("invoice", metrics.OutcomeBypass)))
}

func TestValidateSubscriptionLimit_Trial(t *testing.T) {
	t.Run("trialing subscription", func(t *testing.T) {
		f := newFixture(t, false)
		f.trial()
		f.patients(500, fixedNow)

		result, err := f.svc.ValidateSubscriptionLimit(context.Background(), f.org.ID, models.ResourcePatient, models.ActionCreate)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, models.TrialPlanName, result.PlanName)
		assert.Equal(t, models.UnlimitedLimits(), result.Limits)
	})

	t.Run("no subscription at all", func(t *testing.T) {
		f := newFixture(t, false)

		result, err := f.svc.ValidateSubscriptionLimit(context.Background(), f.org.ID, models.ResourceUser, models.ActionCreate)
		require.NoError(t, err)
		assert.Equal(t, models.TrialPlanName, result.PlanName)
	})

	t.Run("unknown resource is allowed", func(t *testing.T) {
		f := newFixture(t, false)
		f.trial()

		result, err := f.svc.ValidateSubscriptionLimit(context.Background(), f.org.ID, "invoice", models.ActionCreate)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})
}

func TestValidateSubscriptionLimit_Paid(t *testing.T) {
	ctx := context.Background()

	t.Run("allows below the limit", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		f.patients(4, fixedNow)

		result, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, "Basic", result.PlanName)
		assert.Equal(t, int64(5), result.Limits.MaxPatients.Max())
		assert.Equal(t, int64(4), result.CurrentUsage.Patients)
	})

	t.Run("rejects at the limit", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		f.patients(5, fixedNow)

		result, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		assert.Nil(t, result)

		var limitErr *models.LimitExceededError
		require.ErrorAs(t, err, &limitErr)
		assert.Equal(t, models.ResourcePatient, limitErr.Resource)
		assert.Equal(t, int64(5), limitErr.Limit)
		assert.Equal(t, int64(5), limitErr.Current)
		assert.True(t, limitErr.Monthly())
		assert.Equal(t,
			"Monthly patient limit reached. Your Basic plan allows 5 new patients per month and 5 have been added in March. Please upgrade your plan to add more patients.",
			err.Error())
		assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.LimitChecksTotal.WithLabelValues("patient", metrics.OutcomeDenied)))
	})

	t.Run("last month does not count toward the limit", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		f.patients(5, time.Date(2024, time.February, 20, 0, 0, 0, 0, time.UTC))

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		assert.NoError(t, err)
	})

	t.Run("minus one never rejects", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Big", limitedFeatures(models.Unlimited(), models.Limited(3), models.Limited(10)))
		f.patients(200, fixedNow)

		result, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		require.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, int64(-1), result.Limits.MaxPatients.Max())
	})

	t.Run("appointment limit message", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("P", limitedFeatures(models.Limited(100), models.Limited(10), models.Limited(2)))
		doc := f.doctor()
		f.appointments(2, doc, fixedNow.AddDate(0, 0, -3))

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourceAppointment, models.ActionCreate)
		require.Error(t, err)
		assert.True(t, models.IsLimitExceeded(err))
		assert.Contains(t, err.Error(), "Monthly appointment limit reached")
		assert.Contains(t, err.Error(), "Your P plan allows 2 appointments per month")
	})

	t.Run("user limit is lifetime", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(1), models.Limited(10)))
		f.doctor()

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourceUser, models.ActionCreate)
		var limitErr *models.LimitExceededError
		require.ErrorAs(t, err, &limitErr)
		assert.False(t, limitErr.Monthly())
		assert.Contains(t, err.Error(), "User limit reached")
	})

	t.Run("zero limit rejects the first", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Frozen", limitedFeatures(models.Limited(0), models.Limited(0), models.Limited(0)))

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		assert.True(t, models.IsLimitExceeded(err))
	})

	t.Run("other actions are not compared", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		f.patients(9, fixedNow)

		result, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, "read")
		require.NoError(t, err)
		assert.True(t, result.Allowed)
	})

	t.Run("unknown resource is an error", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, "invoice", models.ActionCreate)
		assert.ErrorIs(t, err, models.ErrUnknownResource)
	})
}

func TestValidateSubscriptionLimit_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown organization", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.svc.ValidateSubscriptionLimit(ctx, uuid.New(), models.ResourcePatient, models.ActionCreate)
		assert.ErrorIs(t, err, models.ErrOrganizationNotFound)
	})

	t.Run("active subscription past its end date", func(t *testing.T) {
		f := newFixture(t, false)
		plan := f.store.AddPlan(models.SubscriptionPlan{Name: "Basic", IsActive: true})
		ended := fixedNow.AddDate(0, 0, -1)
		f.store.AddSubscription(models.Subscription{
			OrganizationID: f.org.ID,
			PlanID:         &plan.ID,
			Status:         models.SubscriptionStatusActive,
			StartDate:      fixedNow.AddDate(0, -1, -1),
			EndDate:        &ended,
		})

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		assert.ErrorIs(t, err, models.ErrNoActiveSubscription)
		assert.Equal(t, "No active subscription found", err.Error())
	})

	t.Run("subscription without a plan", func(t *testing.T) {
		f := newFixture(t, false)
		end := fixedNow.AddDate(0, 1, 0)
		f.store.AddSubscription(models.Subscription{
			OrganizationID: f.org.ID,
			Status:         models.SubscriptionStatusActive,
			StartDate:      fixedNow,
			EndDate:        &end,
		})

		_, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
		assert.ErrorIs(t, err, models.ErrNoSubscriptionPlan)
	})
}

func TestValidateFeatureAccess(t *testing.T) {
	ctx := context.Background()

	t.Run("trial gets every feature", func(t *testing.T) {
		f := newFixture(t, false)
		f.trial()

		enabled, err := f.svc.ValidateFeatureAccess(ctx, f.org.ID, models.FeatureDataBackup)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("unlimited gets every feature", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.Organizations().SetSubscriptionType(ctx, f.org.ID, models.SubscriptionTypeUnlimited)

		enabled, err := f.svc.ValidateFeatureAccess(ctx, f.org.ID, models.FeatureAPIAccess)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("paid plan decides", func(t *testing.T) {
		f := newFixture(t, false)
		features := limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10))
		features.SMSNotifications = true
		f.subscribe("Basic", features)

		enabled, err := f.svc.ValidateFeatureAccess(ctx, f.org.ID, models.FeatureDataBackup)
		require.NoError(t, err)
		assert.False(t, enabled)

		enabled, err = f.svc.ValidateFeatureAccess(ctx, f.org.ID, models.FeatureSMSNotifications)
		require.NoError(t, err)
		assert.True(t, enabled)
	})

	t.Run("unknown feature is disabled, not an error", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Enterprise", models.AllFeatures())

		enabled, err := f.svc.ValidateFeatureAccess(ctx, f.org.ID, "teleportation")
		require.NoError(t, err)
		assert.False(t, enabled)
	})

	t.Run("require feature reports the plan", func(t *testing.T) {
		f := newFixture(t, false)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))

		err := f.svc.RequireFeature(ctx, f.org.ID, models.FeatureDataBackup)
		var denied *models.FeatureDeniedError
		require.ErrorAs(t, err, &denied)
		assert.Equal(t, "Basic", denied.PlanName)
		assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.FeatureChecksTotal.WithLabelValues("dataBackup", metrics.OutcomeDenied)))
	})
}

func TestGetSubscriptionDetails(t *testing.T) {
	ctx := context.Background()

	t.Run("unlimited organization", func(t *testing.T) {
		f := newFixture(t, false)
		f.store.Organizations().SetSubscriptionType(ctx, f.org.ID, models.SubscriptionTypeUnlimited)

		details, err := f.svc.GetSubscriptionDetails(ctx, f.org.ID)
		require.NoError(t, err)
		require.NotNil(t, details)
		assert.Equal(t, models.PlanSourceSyntheticUnlimited, details.Plan.Source)
		assert.Equal(t, models.UnlimitedPlanName, details.Plan.Name)
		assert.True(t, details.IsActive)
		assert.Equal(t, models.UnlimitedLimits(), details.Limits)
		_, ok := details.Plan.Catalog()
		assert.False(t, ok)
	})

	t.Run("organization that never subscribed is on trial", func(t *testing.T) {
		f := newFixture(t, false)

		details, err := f.svc.GetSubscriptionDetails(ctx, f.org.ID)
		require.NoError(t, err)
		require.NotNil(t, details)
		assert.Equal(t, models.PlanSourceSyntheticTrial, details.Plan.Source)
		assert.Nil(t, details.Subscription)
		assert.True(t, details.Plan.Features.DataBackup)
	})

	t.Run("lapsed subscription yields nothing", func(t *testing.T) {
		f := newFixture(t, false)
		ended := fixedNow.AddDate(0, 0, -5)
		f.store.AddSubscription(models.Subscription{
			OrganizationID: f.org.ID,
			Status:         models.SubscriptionStatusCancelled,
			StartDate:      fixedNow.AddDate(0, -2, 0),
			EndDate:        &ended,
		})

		details, err := f.svc.GetSubscriptionDetails(ctx, f.org.ID)
		require.NoError(t, err)
		assert.Nil(t, details)
	})

	t.Run("catalog plan refreshes the usage snapshot", func(t *testing.T) {
		f := newFixture(t, false)
		sub := f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		f.patients(2, fixedNow)

		details, err := f.svc.GetSubscriptionDetails(ctx, f.org.ID)
		require.NoError(t, err)
		require.NotNil(t, details)
		assert.Equal(t, models.PlanSourceCatalog, details.Plan.Source)
		assert.Equal(t, "Basic", details.Plan.Name)
		assert.True(t, details.IsActive)
		assert.Equal(t, int64(5), details.Limits.MaxPatients.Max())
		assert.Equal(t, int64(2), details.Usage.Patients)

		plan, ok := details.Plan.Catalog()
		require.True(t, ok)
		assert.Equal(t, "Basic", plan.Name)
		assert.Equal(t, int64(2), f.store.Subscriptions().Snapshot(sub.ID).Patients)
	})
}

func TestEnforceAndCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("strict mode never overshoots", func(t *testing.T) {
		f := newFixture(t, true)
		f.subscribe("Basic", limitedFeatures(models.Limited(5), models.Limited(3), models.Limited(10)))
		patients := f.store.Patients()

		var wg sync.WaitGroup
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, _ = f.svc.EnforceAndCreate(ctx, f.org.ID, models.ResourcePatient, func(ctx context.Context) error {
					return patients.Create(ctx, &models.Patient{OrganizationID: f.org.ID, FirstName: "K", LastName: "A"})
				})
			}()
		}
		wg.Wait()

		assert.Equal(t, 5, f.store.PatientCount())
	})

	t.Run("denial is audited and create is skipped", func(t *testing.T) {
		f := newFixture(t, true)
		f.subscribe("Basic", limitedFeatures(models.Limited(1), models.Limited(3), models.Limited(10)))
		f.patients(1, fixedNow)

		called := false
		result, err := f.svc.EnforceAndCreate(ctx, f.org.ID, models.ResourcePatient, func(ctx context.Context) error {
			called = true
			return nil
		})
		assert.Nil(t, result)
		assert.True(t, models.IsLimitExceeded(err))
		assert.False(t, called)

		logs := f.store.Audit()
		require.Len(t, logs, 1)
		assert.Equal(t, models.AuditActionLimitDenied, logs[0].Action)
		assert.Equal(t, models.AuditStatusDenied, logs[0].Status)
		assert.Equal(t, "patient", logs[0].ResourceType)
	})

	t.Run("create errors are returned", func(t *testing.T) {
		f := newFixture(t, false)
		boom := errors.New("insert failed")

		_, err := f.svc.EnforceAndCreate(ctx, f.org.ID, models.ResourcePatient, func(ctx context.Context) error {
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Empty(t, f.store.Audit())
	})
}

func TestChangePlanAndTrial(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	trial, err := f.svc.StartTrial(ctx, f.org.ID, 14)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusTrialing, trial.Status)
	require.NotNil(t, trial.TrialEndDate)
	assert.Equal(t, fixedNow.AddDate(0, 0, 14), *trial.TrialEndDate)

	plan := f.store.AddPlan(models.SubscriptionPlan{
		Name:     "Basic",
		IsActive: true,
		Features: datatypes.NewJSONType(limitedFeatures(models.Limited(1), models.Limited(3), models.Limited(10))),
	})
	sub, err := f.svc.ChangePlan(ctx, f.org.ID, plan.ID, models.BillingCycleYearly)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.EndDate)
	assert.Equal(t, fixedNow.AddDate(1, 0, 0), *sub.EndDate)

	org, err := f.store.Organizations().GetByID(ctx, f.org.ID)
	require.NoError(t, err)
	require.NotNil(t, org.CurrentSubscriptionID)
	assert.Equal(t, sub.ID, *org.CurrentSubscriptionID)

	f.patients(1, fixedNow)
	_, err = f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
	assert.True(t, models.IsLimitExceeded(err), "trial must no longer apply")

	actions := []string{}
	for _, entry := range f.store.Audit() {
		actions = append(actions, entry.Action)
	}
	assert.Equal(t, []string{models.AuditActionTrialStarted, models.AuditActionPlanChanged}, actions)
}

func TestChangePlan_Validation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)

	_, err := f.svc.ChangePlan(ctx, f.org.ID, uuid.New(), "weekly")
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.ChangePlan(ctx, f.org.ID, uuid.New(), models.BillingCycleMonthly)
	assert.ErrorIs(t, err, models.ErrNotFound)

	retired := f.store.AddPlan(models.SubscriptionPlan{Name: "Legacy", IsActive: false})
	_, err = f.svc.ChangePlan(ctx, f.org.ID, retired.ID, models.BillingCycleMonthly)
	assert.ErrorIs(t, err, models.ErrInvalidInput)

	_, err = f.svc.StartTrial(ctx, f.org.ID, 0)
	assert.ErrorIs(t, err, models.ErrInvalidInput)
}

func TestSetSubscriptionType(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, false)
	f.subscribe("Frozen", limitedFeatures(models.Limited(0), models.Limited(0), models.Limited(0)))

	require.NoError(t, f.svc.SetSubscriptionType(ctx, f.org.ID, models.SubscriptionTypeUnlimited))
	result, err := f.svc.ValidateSubscriptionLimit(ctx, f.org.ID, models.ResourcePatient, models.ActionCreate)
	require.NoError(t, err)
	assert.Equal(t, models.UnlimitedPlanName, result.PlanName)

	assert.ErrorIs(t, f.svc.SetSubscriptionType(ctx, f.org.ID, "gold"), models.ErrInvalidInput)
	assert.ErrorIs(t, f.svc.SetSubscriptionType(ctx, uuid.New(), models.SubscriptionTypeStandard), models.ErrOrganizationNotFound)
}
