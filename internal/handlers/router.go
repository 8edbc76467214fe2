package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/otcheredev/practice-subscriptions/internal/metrics"
	"github.com/otcheredev/practice-subscriptions/internal/middleware"
	"github.com/otcheredev/practice-subscriptions/internal/models"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterConfig carries everything the HTTP surface needs.
type RouterConfig struct {
	JWTSecret      []byte
	AllowedOrigins []string
	// MetricsHandler is mounted at /metrics when set.
	MetricsHandler http.Handler
	Metrics        *metrics.Metrics

	Health       *HealthHandler
	Subscription *SubscriptionHandler
	Records      *RecordsHandler
	Dashboard    *DashboardHandler
	Admin        *AdminHandler
	Features     middleware.FeatureGate
}

// NewRouter builds the chi router with global middleware and every route.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Recovery)
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Compress(5))

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.OrganizationHeader},
		ExposedHeaders:   []string{"Content-Length", "Content-Type", "Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health endpoints (no authentication required)
	if cfg.Health != nil {
		r.Get("/health", cfg.Health.Health)
		r.Get("/ready", cfg.Health.Ready)
	}

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(cfg.JWTSecret))

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(models.RoleSuperAdmin))

			r.Get("/plans", cfg.Admin.ListPlans)
			r.Post("/plans", cfg.Admin.CreatePlan)
			r.Put("/plans/{id}", cfg.Admin.UpdatePlan)

			r.Get("/organizations", cfg.Admin.ListOrganizations)
			r.Post("/organizations", cfg.Admin.CreateOrganization)
			r.Put("/organizations/{id}/subscription-type", cfg.Admin.SetSubscriptionType)
			r.Post("/organizations/{id}/subscription", cfg.Admin.ChangeSubscription)
			r.Delete("/organizations/{id}", cfg.Admin.DeleteOrganization)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.TenantID)

			r.Get("/subscription", cfg.Subscription.GetDetails)
			r.Get("/subscription/usage", cfg.Subscription.GetUsage)
			r.Get("/subscription/limits/{resource}", cfg.Subscription.CheckLimit)
			r.Get("/subscription/features/{feature}", cfg.Subscription.CheckFeature)

			r.Get("/patients", cfg.Records.ListPatients)
			r.Post("/patients", cfg.Records.CreatePatient)
			r.Get("/appointments", cfg.Records.ListAppointments)
			r.Post("/appointments", cfg.Records.CreateAppointment)
			r.With(middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin)).
				Post("/users", cfg.Records.CreateUser)

			r.Get("/dashboard", cfg.Dashboard.GetDashboard)
			r.With(
				middleware.RequireRole(models.RoleSuperAdmin, models.RoleAdmin),
				middleware.RequireFeature(cfg.Features, models.FeatureDataBackup),
			).Get("/backup", cfg.Dashboard.Backup)
		})
	})

	return r
}

// DefaultMetricsHandler exposes the default Prometheus registry.
func DefaultMetricsHandler() http.Handler {
	return promhttp.Handler()
}
