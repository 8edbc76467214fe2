package services

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"time"

	"github.com/otcheredev/practice-subscriptions/internal/cache"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

const (
	dashboardCacheName  = "dashboard"
	dashboardFeedLength = 10
	upcomingWindow      = 7 * 24 * time.Hour
)

// DashboardStats are the headline counts on the dashboard.
type DashboardStats struct {
	TotalPatients        int64 `json:"total_patients"`
	TotalStaff           int64 `json:"total_staff"`
	AppointmentsToday    int64 `json:"appointments_today"`
	UpcomingAppointments int64 `json:"upcoming_appointments"`
}

// Activity is one entry of the recent activity feed.
type Activity struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Timestamp time.Time `json:"timestamp"`
}

type Dashboard struct {
	Stats       DashboardStats `json:"stats"`
	Usage       *models.Usage  `json:"usage"`
	Activity    []Activity     `json:"recent_activity"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// DashboardService aggregates dashboard data, caching each result briefly.
type DashboardService struct {
	subscriptions *SubscriptionService
	patients      PatientStore
	users         UserStore
	appointments  AppointmentStore
	cache         cache.Cache
	ttl           time.Duration
	metrics       *metrics.Metrics
	loc           *time.Location
	now           func() time.Time
}

type DashboardOptions struct {
	// Cache may be nil to disable caching.
	Cache    cache.Cache
	TTL      time.Duration
	Metrics  *metrics.Metrics
	Location *time.Location
	Now      func() time.Time
}

func NewDashboardService(subscriptions *SubscriptionService, patients PatientStore, users UserStore, appointments AppointmentStore, opts DashboardOptions) *DashboardService {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &DashboardService{
		subscriptions: subscriptions,
		patients:      patients,
		users:         users,
		appointments:  appointments,
		cache:         opts.Cache,
		ttl:           opts.TTL,
		metrics:       opts.Metrics,
		loc:           opts.Location,
		now:           opts.Now,
	}
}

// cacheKey buckets time by the TTL so entries roll over even when the
// backing cache keeps them longer.
func (s *DashboardService) cacheKey(user models.UserContext) string {
	width := int64(s.ttl / time.Second)
	if width < 1 {
		width = 1
	}
	bucket := s.now().Unix() / width
	return cache.Key(dashboardCacheName, user.OrganizationID.String(), user.UserID.String(), strconv.FormatInt(bucket, 10))
}

// GetDashboard returns the dashboard for the caller's organization.
func (s *DashboardService) GetDashboard(ctx context.Context, user models.UserContext) (*Dashboard, error) {
	key := s.cacheKey(user)
	if cached, ok := s.fromCache(ctx, key); ok {
		return cached, nil
	}

	dashboard, err := s.build(ctx, user)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(dashboard); err == nil {
			if err := s.cache.Set(ctx, key, data, s.ttl); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("Failed to cache dashboard")
			}
		}
	}
	return dashboard, nil
}

func (s *DashboardService) fromCache(ctx context.Context, key string) (*Dashboard, bool) {
	if s.cache == nil {
		return nil, false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.Warn().Err(err).Str("key", key).Msg("Dashboard cache read failed")
		}
		s.metrics.RecordCache(dashboardCacheName, false)
		return nil, false
	}
	var dashboard Dashboard
	if err := json.Unmarshal(data, &dashboard); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Discarding unreadable dashboard cache entry")
		s.metrics.RecordCache(dashboardCacheName, false)
		return nil, false
	}
	s.metrics.RecordCache(dashboardCacheName, true)
	return &dashboard, true
}

func (s *DashboardService) build(ctx context.Context, user models.UserContext) (*Dashboard, error) {
	orgID := user.OrganizationID
	now := s.now()
	local := now.In(s.loc)
	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, s.loc)

	var (
		stats        DashboardStats
		usage        *models.Usage
		patients     []models.Patient
		users        []models.User
		appointments []models.Appointment
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		stats.TotalPatients, err = s.patients.CountByOrganization(ctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		stats.TotalStaff, err = s.users.CountByOrganization(ctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		stats.AppointmentsToday, err = s.appointments.CountScheduledBetween(ctx, orgID, dayStart, dayStart.AddDate(0, 0, 1))
		return err
	})
	g.Go(func() (err error) {
		stats.UpcomingAppointments, err = s.appointments.CountScheduledBetween(ctx, orgID, now, now.Add(upcomingWindow))
		return err
	})
	g.Go(func() (err error) {
		usage, err = s.subscriptions.GetCurrentUsage(ctx, orgID)
		return err
	})
	g.Go(func() (err error) {
		patients, err = s.patients.ListByOrganization(ctx, orgID, dashboardFeedLength, 0)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.users.ListByOrganization(ctx, orgID, dashboardFeedLength, 0)
		return err
	})
	g.Go(func() (err error) {
		appointments, err = s.appointments.ListByOrganization(ctx, orgID, dashboardFeedLength, 0)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Dashboard{
		Stats:       stats,
		Usage:       usage,
		Activity:    mergeActivity(patients, users, appointments),
		GeneratedAt: now,
	}, nil
}

// mergeActivity interleaves the three feeds newest first and keeps the
// first dashboardFeedLength entries.
func mergeActivity(patients []models.Patient, users []models.User, appointments []models.Appointment) []Activity {
	feed := make([]Activity, 0, len(patients)+len(users)+len(appointments))
	for _, p := range patients {
		feed = append(feed, Activity{
			Type:      "patient",
			ID:        p.ID.String(),
			Title:     "New patient " + p.FullName(),
			Timestamp: p.CreatedAt,
		})
	}
	for _, u := range users {
		feed = append(feed, Activity{
			Type:      "user",
			ID:        u.ID.String(),
			Title:     "New staff member " + u.Name,
			Timestamp: u.CreatedAt,
		})
	}
	for _, a := range appointments {
		title := "Appointment booked"
		if a.Patient != nil {
			title += " for " + a.Patient.FullName()
		}
		feed = append(feed, Activity{
			Type:      "appointment",
			ID:        a.ID.String(),
			Title:     title,
			Timestamp: a.CreatedAt,
		})
	}

	sort.SliceStable(feed, func(i, j int) bool {
		return feed[i].Timestamp.After(feed[j].Timestamp)
	})
	if len(feed) > dashboardFeedLength {
		feed = feed[:dashboardFeedLength]
	}
	return feed
}
